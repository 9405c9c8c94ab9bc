package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/fleetops/internal/fleet/entity"
	"gorm.io/gorm"
)

// WorkshopRepository 车间仓库
type WorkshopRepository struct {
	db *gorm.DB
}

func NewWorkshopRepository(db *gorm.DB) *WorkshopRepository {
	return &WorkshopRepository{db: db}
}

// FindActive 查询启用中的车间
func (r *WorkshopRepository) FindActive(ctx context.Context) ([]entity.Workshop, error) {
	var workshops []entity.Workshop
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&workshops).Error
	return workshops, err
}

// FindByID 根据ID查找车间
func (r *WorkshopRepository) FindByID(ctx context.Context, id string) (*entity.Workshop, error) {
	var workshop entity.Workshop
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&workshop).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &workshop, nil
}

// Create 创建车间
func (r *WorkshopRepository) Create(ctx context.Context, workshop *entity.Workshop) error {
	return r.db.WithContext(ctx).Create(workshop).Error
}

// Update 更新车间
func (r *WorkshopRepository) Update(ctx context.Context, workshop *entity.Workshop) error {
	return r.db.WithContext(ctx).Save(workshop).Error
}

// CountActiveJobs 车间在途工单数，利用率只数 pending/in_progress
func (r *WorkshopRepository) CountActiveJobs(ctx context.Context, workshopID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.JobCard{}).
		Where("workshop_id = ? AND status IN ?", workshopID,
			[]string{entity.JobStatusPending, entity.JobStatusInProgress}).
		Count(&count).Error
	return count, err
}

// FindRecentJobs 车间最近的工单
func (r *WorkshopRepository) FindRecentJobs(ctx context.Context, workshopID string, limit int) ([]entity.JobCard, error) {
	var jobs []entity.JobCard
	err := r.db.WithContext(ctx).
		Where("workshop_id = ?", workshopID).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}
