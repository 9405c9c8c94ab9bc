package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/fleetops/internal/fleet/entity"
	"github.com/bitfantasy/fleetops/internal/fleet/repository"
	"github.com/google/uuid"
)

// MaintenanceService 保养计划服务
type MaintenanceService struct {
	scheduleRepo *repository.ScheduleRepository
	assetRepo    *repository.AssetRepository
}

// NewMaintenanceService 创建保养计划服务
func NewMaintenanceService(scheduleRepo *repository.ScheduleRepository, assetRepo *repository.AssetRepository) *MaintenanceService {
	return &MaintenanceService{scheduleRepo: scheduleRepo, assetRepo: assetRepo}
}

// CreateScheduleRequest 创建保养计划请求
type CreateScheduleRequest struct {
	AssetID                string     `json:"asset_id" binding:"required"`
	ScheduleType           string     `json:"schedule_type" binding:"required"`
	Name                   string     `json:"name" binding:"required"`
	Description            string     `json:"description"`
	FrequencyDays          *int       `json:"frequency_days"`
	FrequencyMileage       *int       `json:"frequency_mileage"`
	NextDueDate            *time.Time `json:"next_due_date"`
	NextDueMileage         *int       `json:"next_due_mileage"`
	Priority               string     `json:"priority"`
	EstimatedDurationHours *float64   `json:"estimated_duration_hours"`
	EstimatedCost          *float64   `json:"estimated_cost"`
}

// UpdateScheduleRequest 更新保养计划请求
type UpdateScheduleRequest struct {
	ScheduleType           *string    `json:"schedule_type"`
	Name                   *string    `json:"name"`
	Description            *string    `json:"description"`
	FrequencyDays          *int       `json:"frequency_days"`
	FrequencyMileage       *int       `json:"frequency_mileage"`
	NextDueDate            *time.Time `json:"next_due_date"`
	NextDueMileage         *int       `json:"next_due_mileage"`
	IsActive               *bool      `json:"is_active"`
	Priority               *string    `json:"priority"`
	EstimatedDurationHours *float64   `json:"estimated_duration_hours"`
	EstimatedCost          *float64   `json:"estimated_cost"`
}

// DueScheduleItem 到期保养计划条目
type DueScheduleItem struct {
	entity.MaintenanceSchedule
	DaysUntilDue int  `json:"days_until_due"`
	IsOverdue    bool `json:"is_overdue"`
}

// List 保养计划列表
func (s *MaintenanceService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.MaintenanceSchedule, int64, error) {
	return s.scheduleRepo.FindAll(ctx, page, pageSize, filters)
}

// Get 保养计划详情
func (s *MaintenanceService) Get(ctx context.Context, id string) (*entity.MaintenanceSchedule, error) {
	return s.scheduleRepo.FindByID(ctx, id)
}

// DueSoon 未来 days 天内到期的有效计划，含逾期
func (s *MaintenanceService) DueSoon(ctx context.Context, days int) ([]DueScheduleItem, error) {
	today := time.Now().Truncate(24 * time.Hour)
	cutoff := today.AddDate(0, 0, days)

	schedules, err := s.scheduleRepo.FindDueBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("find due schedules: %w", err)
	}

	items := make([]DueScheduleItem, 0, len(schedules))
	for _, sch := range schedules {
		if sch.NextDueDate == nil {
			continue
		}
		until := int(sch.NextDueDate.Truncate(24*time.Hour).Sub(today).Hours() / 24)
		items = append(items, DueScheduleItem{
			MaintenanceSchedule: sch,
			DaysUntilDue:        until,
			IsOverdue:           until < 0,
		})
	}
	return items, nil
}

// Create 创建保养计划。必须至少给出一种触发条件（天数或里程）
func (s *MaintenanceService) Create(ctx context.Context, req *CreateScheduleRequest) (*entity.MaintenanceSchedule, error) {
	if req.FrequencyDays == nil && req.FrequencyMileage == nil {
		return nil, fmt.Errorf("%w: frequency_days or frequency_mileage required", ErrInvalidInput)
	}

	if _, err := s.assetRepo.FindByID(ctx, req.AssetID); err != nil {
		return nil, fmt.Errorf("find asset: %w", err)
	}

	priority := req.Priority
	if priority == "" {
		priority = "medium"
	}

	now := time.Now()
	schedule := &entity.MaintenanceSchedule{
		ID:                     uuid.New().String()[:32],
		AssetID:                req.AssetID,
		ScheduleType:           req.ScheduleType,
		Name:                   req.Name,
		Description:            req.Description,
		FrequencyDays:          req.FrequencyDays,
		FrequencyMileage:       req.FrequencyMileage,
		NextDueDate:            req.NextDueDate,
		NextDueMileage:         req.NextDueMileage,
		IsActive:               true,
		Priority:               priority,
		EstimatedDurationHours: req.EstimatedDurationHours,
		EstimatedCost:          req.EstimatedCost,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := s.scheduleRepo.Create(ctx, schedule); err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}
	return schedule, nil
}

// Update 更新保养计划
func (s *MaintenanceService) Update(ctx context.Context, id string, req *UpdateScheduleRequest) (*entity.MaintenanceSchedule, error) {
	schedule, err := s.scheduleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.ScheduleType != nil {
		schedule.ScheduleType = *req.ScheduleType
	}
	if req.Name != nil {
		schedule.Name = *req.Name
	}
	if req.Description != nil {
		schedule.Description = *req.Description
	}
	if req.FrequencyDays != nil {
		schedule.FrequencyDays = req.FrequencyDays
	}
	if req.FrequencyMileage != nil {
		schedule.FrequencyMileage = req.FrequencyMileage
	}
	if req.NextDueDate != nil {
		schedule.NextDueDate = req.NextDueDate
	}
	if req.NextDueMileage != nil {
		schedule.NextDueMileage = req.NextDueMileage
	}
	if req.IsActive != nil {
		schedule.IsActive = *req.IsActive
	}
	if req.Priority != nil {
		schedule.Priority = *req.Priority
	}
	if req.EstimatedDurationHours != nil {
		schedule.EstimatedDurationHours = req.EstimatedDurationHours
	}
	if req.EstimatedCost != nil {
		schedule.EstimatedCost = req.EstimatedCost
	}
	schedule.UpdatedAt = time.Now()

	if err := s.scheduleRepo.Update(ctx, schedule); err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}
	return schedule, nil
}

// Delete 停用保养计划。不做物理删除，置 is_active=false
func (s *MaintenanceService) Delete(ctx context.Context, id string) error {
	schedule, err := s.scheduleRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	schedule.IsActive = false
	schedule.UpdatedAt = time.Now()
	return s.scheduleRepo.Update(ctx, schedule)
}
