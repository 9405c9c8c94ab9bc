package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/fleetops/internal/fleet/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PartRepository 配件仓库
type PartRepository struct {
	db *gorm.DB
}

func NewPartRepository(db *gorm.DB) *PartRepository {
	return &PartRepository{db: db}
}

// FindAll 查询配件列表
func (r *PartRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Part, int64, error) {
	var items []entity.Part
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Part{})

	if category := filters["category"]; category != "" {
		query = query.Where("category = ?", category)
	}
	if search := filters["search"]; search != "" {
		query = query.Where("part_number ILIKE ? OR name ILIKE ?",
			"%"+search+"%", "%"+search+"%")
	}
	if filters["low_stock"] == "true" {
		query = query.Where("quantity_in_stock <= reorder_level")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("name ASC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 根据ID查找配件
func (r *PartRepository) FindByID(ctx context.Context, id string) (*entity.Part, error) {
	var part entity.Part
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&part).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &part, nil
}

// FindByIDForUpdate 锁行读取配件，用于库存增减的读改写串行化
func (r *PartRepository) FindByIDForUpdate(tx *gorm.DB, id string) (*entity.Part, error) {
	var part entity.Part
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&part).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &part, nil
}

// ExistsByPartNumber 配件号是否已存在
func (r *PartRepository) ExistsByPartNumber(ctx context.Context, partNumber string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Part{}).
		Where("part_number = ?", partNumber).
		Count(&count).Error
	return count > 0, err
}

// Create 创建配件
func (r *PartRepository) Create(ctx context.Context, part *entity.Part) error {
	return r.db.WithContext(ctx).Create(part).Error
}

// Update 更新配件
func (r *PartRepository) Update(ctx context.Context, part *entity.Part) error {
	return r.db.WithContext(ctx).Save(part).Error
}

// FindLowStock 库存降到补货线的配件
func (r *PartRepository) FindLowStock(ctx context.Context) ([]entity.Part, error) {
	var parts []entity.Part
	err := r.db.WithContext(ctx).
		Where("quantity_in_stock <= reorder_level").
		Order("name ASC").
		Find(&parts).Error
	return parts, err
}

// FindAllOrdered 全量配件，导出用
func (r *PartRepository) FindAllOrdered(ctx context.Context) ([]entity.Part, error) {
	var parts []entity.Part
	err := r.db.WithContext(ctx).
		Order("part_number ASC").
		Find(&parts).Error
	return parts, err
}

// CountTotal 配件总数
func (r *PartRepository) CountTotal(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Part{}).Count(&count).Error
	return count, err
}

// CountLowStock 低库存配件数
func (r *PartRepository) CountLowStock(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Part{}).
		Where("quantity_in_stock <= reorder_level").
		Count(&count).Error
	return count, err
}

// FindRecentUsage 配件最近的领用记录
func (r *PartRepository) FindRecentUsage(ctx context.Context, partID string, limit int) ([]entity.PartsUsed, error) {
	var usage []entity.PartsUsed
	err := r.db.WithContext(ctx).
		Where("part_id = ?", partID).
		Order("created_at DESC").
		Limit(limit).
		Find(&usage).Error
	return usage, err
}
