package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/fleetops/internal/fleet/entity"
	"gorm.io/gorm"
)

// ScheduleRepository 保养计划仓库
type ScheduleRepository struct {
	db *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// FindAll 查询保养计划列表
func (r *ScheduleRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.MaintenanceSchedule, int64, error) {
	var items []entity.MaintenanceSchedule
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.MaintenanceSchedule{})

	if assetID := filters["asset_id"]; assetID != "" {
		query = query.Where("asset_id = ?", assetID)
	}
	if isActive := filters["is_active"]; isActive != "" {
		query = query.Where("is_active = ?", isActive == "true")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Asset").
		Order("next_due_date ASC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 根据ID查找保养计划
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*entity.MaintenanceSchedule, error) {
	var schedule entity.MaintenanceSchedule
	err := r.db.WithContext(ctx).
		Preload("Asset").
		Where("id = ?", id).
		First(&schedule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &schedule, nil
}

// FindDueBefore 查询指定日期前到期的有效计划
func (r *ScheduleRepository) FindDueBefore(ctx context.Context, cutoff time.Time) ([]entity.MaintenanceSchedule, error) {
	var schedules []entity.MaintenanceSchedule
	err := r.db.WithContext(ctx).
		Preload("Asset").
		Where("is_active = ? AND next_due_date <= ?", true, cutoff).
		Order("next_due_date ASC").
		Find(&schedules).Error
	return schedules, err
}

// FindActive 查询所有有效计划
func (r *ScheduleRepository) FindActive(ctx context.Context) ([]entity.MaintenanceSchedule, error) {
	var schedules []entity.MaintenanceSchedule
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("next_due_date ASC").
		Find(&schedules).Error
	return schedules, err
}

// Create 创建保养计划
func (r *ScheduleRepository) Create(ctx context.Context, schedule *entity.MaintenanceSchedule) error {
	return r.db.WithContext(ctx).Create(schedule).Error
}

// Update 更新保养计划
func (r *ScheduleRepository) Update(ctx context.Context, schedule *entity.MaintenanceSchedule) error {
	return r.db.WithContext(ctx).Save(schedule).Error
}

// CountOverdue 过期计划数
func (r *ScheduleRepository) CountOverdue(ctx context.Context, today time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.MaintenanceSchedule{}).
		Where("is_active = ? AND next_due_date < ?", true, today).
		Count(&count).Error
	return count, err
}

// CountDueBetween 区间内到期计划数
func (r *ScheduleRepository) CountDueBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.MaintenanceSchedule{}).
		Where("is_active = ? AND next_due_date >= ? AND next_due_date <= ?", true, from, to).
		Count(&count).Error
	return count, err
}
