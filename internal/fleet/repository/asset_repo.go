package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/fleetops/internal/fleet/entity"
	"gorm.io/gorm"
)

// AssetRepository 资产仓库
type AssetRepository struct {
	db *gorm.DB
}

func NewAssetRepository(db *gorm.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// FindAll 查询资产列表
func (r *AssetRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Asset, int64, error) {
	var items []entity.Asset
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Asset{})

	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if assetType := filters["type"]; assetType != "" {
		query = query.Where("asset_type = ?", assetType)
	}
	if search := filters["search"]; search != "" {
		query = query.Where("registration ILIKE ? OR make ILIKE ? OR model ILIKE ?",
			"%"+search+"%", "%"+search+"%", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 根据ID查找资产
func (r *AssetRepository) FindByID(ctx context.Context, id string) (*entity.Asset, error) {
	var asset entity.Asset
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&asset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &asset, nil
}

// ExistsByRegistration 注册号是否已存在
func (r *AssetRepository) ExistsByRegistration(ctx context.Context, registration string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Asset{}).
		Where("registration = ?", registration).
		Count(&count).Error
	return count > 0, err
}

// Create 创建资产
func (r *AssetRepository) Create(ctx context.Context, asset *entity.Asset) error {
	return r.db.WithContext(ctx).Create(asset).Error
}

// Update 更新资产
func (r *AssetRepository) Update(ctx context.Context, asset *entity.Asset) error {
	return r.db.WithContext(ctx).Save(asset).Error
}

// FindOperational 查找可开单的资产（active/in_service）
func (r *AssetRepository) FindOperational(ctx context.Context) ([]entity.Asset, error) {
	var assets []entity.Asset
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{entity.AssetStatusActive, entity.AssetStatusInService}).
		Order("registration ASC").
		Find(&assets).Error
	return assets, err
}

// DistinctDepartments 已有资产的部门去重列表，用于表单联想
func (r *AssetRepository) DistinctDepartments(ctx context.Context) ([]string, error) {
	return r.distinctColumn(ctx, "department")
}

// DistinctCostCenters 已有资产的成本中心去重列表
func (r *AssetRepository) DistinctCostCenters(ctx context.Context) ([]string, error) {
	return r.distinctColumn(ctx, "cost_center")
}

func (r *AssetRepository) distinctColumn(ctx context.Context, column string) ([]string, error) {
	var values []string
	err := r.db.WithContext(ctx).
		Model(&entity.Asset{}).
		Distinct(column).
		Where(column+" <> ''").
		Order(column + " ASC").
		Pluck(column, &values).Error
	return values, err
}

// FindActiveSchedules 查找资产的有效保养计划
func (r *AssetRepository) FindActiveSchedules(ctx context.Context, assetID string) ([]entity.MaintenanceSchedule, error) {
	var schedules []entity.MaintenanceSchedule
	err := r.db.WithContext(ctx).
		Where("asset_id = ? AND is_active = ?", assetID, true).
		Order("next_due_date ASC").
		Find(&schedules).Error
	return schedules, err
}

// FindRecentJobCards 查找资产最近的工单
func (r *AssetRepository) FindRecentJobCards(ctx context.Context, assetID string, limit int) ([]entity.JobCard, error) {
	var jobs []entity.JobCard
	err := r.db.WithContext(ctx).
		Where("asset_id = ?", assetID).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// AssetTypeCount 按类型统计
type AssetTypeCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// CountByType 按类型统计（不含已报废）
func (r *AssetRepository) CountByType(ctx context.Context) (map[string]int64, error) {
	return r.groupCount(ctx, "asset_type")
}

// CountByStatus 按状态统计（不含已报废）
func (r *AssetRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return r.groupCount(ctx, "status")
}

func (r *AssetRepository) groupCount(ctx context.Context, column string) (map[string]int64, error) {
	var rows []AssetTypeCount
	err := r.db.WithContext(ctx).
		Model(&entity.Asset{}).
		Select(column+" AS key, COUNT(id) AS count").
		Where("status <> ?", entity.AssetStatusDisposed).
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[string]int64, len(rows))
	for _, row := range rows {
		result[row.Key] = row.Count
	}
	return result, nil
}

// CountTotal 资产总数（不含已报废）
func (r *AssetRepository) CountTotal(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Asset{}).
		Where("status <> ?", entity.AssetStatusDisposed).
		Count(&count).Error
	return count, err
}
