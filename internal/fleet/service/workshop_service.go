package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/bitfantasy/fleetops/internal/fleet/entity"
	"github.com/bitfantasy/fleetops/internal/fleet/repository"
	"github.com/google/uuid"
)

// WorkshopService 车间服务
type WorkshopService struct {
	workshopRepo *repository.WorkshopRepository
	userRepo     *repository.UserRepository
}

// NewWorkshopService 创建车间服务
func NewWorkshopService(workshopRepo *repository.WorkshopRepository, userRepo *repository.UserRepository) *WorkshopService {
	return &WorkshopService{workshopRepo: workshopRepo, userRepo: userRepo}
}

// CreateWorkshopRequest 创建车间请求
type CreateWorkshopRequest struct {
	Name            string `json:"name" binding:"required"`
	Location        string `json:"location"`
	Capacity        int    `json:"capacity"`
	Specializations string `json:"specializations"`
	ContactPhone    string `json:"contact_phone"`
	ContactEmail    string `json:"contact_email"`
}

// UpdateWorkshopRequest 更新车间请求
type UpdateWorkshopRequest struct {
	Name            *string `json:"name"`
	Location        *string `json:"location"`
	Capacity        *int    `json:"capacity"`
	Specializations *string `json:"specializations"`
	ContactPhone    *string `json:"contact_phone"`
	ContactEmail    *string `json:"contact_email"`
	IsActive        *bool   `json:"is_active"`
}

// WorkshopSummary 车间概览，带在途工单数和利用率
type WorkshopSummary struct {
	entity.Workshop
	ActiveJobs  int64   `json:"active_jobs"`
	Utilization float64 `json:"utilization"`
}

// WorkshopDetail 车间详情
type WorkshopDetail struct {
	entity.Workshop
	ActiveJobs  int64            `json:"active_jobs"`
	Utilization float64          `json:"utilization"`
	Staff       []entity.User    `json:"staff"`
	RecentJobs  []entity.JobCard `json:"recent_jobs"`
}

// utilization = active_jobs / capacity × 100，保留一位小数，容量为0时取0
func utilization(activeJobs int64, capacity int) float64 {
	if capacity <= 0 {
		return 0
	}
	return math.Round(float64(activeJobs)/float64(capacity)*1000) / 10
}

// List 有效车间列表，每个车间附带负载信息
func (s *WorkshopService) List(ctx context.Context) ([]WorkshopSummary, error) {
	workshops, err := s.workshopRepo.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workshops: %w", err)
	}

	summaries := make([]WorkshopSummary, 0, len(workshops))
	for _, w := range workshops {
		active, err := s.workshopRepo.CountActiveJobs(ctx, w.ID)
		if err != nil {
			return nil, fmt.Errorf("count active jobs: %w", err)
		}
		summaries = append(summaries, WorkshopSummary{
			Workshop:    w,
			ActiveJobs:  active,
			Utilization: utilization(active, w.Capacity),
		})
	}
	return summaries, nil
}

// Get 车间详情（含负载和最近工单）
func (s *WorkshopService) Get(ctx context.Context, id string) (*WorkshopDetail, error) {
	workshop, err := s.workshopRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	active, err := s.workshopRepo.CountActiveJobs(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count active jobs: %w", err)
	}
	staff, err := s.userRepo.FindByWorkshop(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find workshop staff: %w", err)
	}
	recent, err := s.workshopRepo.FindRecentJobs(ctx, id, 10)
	if err != nil {
		return nil, fmt.Errorf("find recent jobs: %w", err)
	}

	return &WorkshopDetail{
		Workshop:    *workshop,
		ActiveJobs:  active,
		Utilization: utilization(active, workshop.Capacity),
		Staff:       staff,
		RecentJobs:  recent,
	}, nil
}

// Create 创建车间
func (s *WorkshopService) Create(ctx context.Context, req *CreateWorkshopRequest) (*entity.Workshop, error) {
	capacity := req.Capacity
	if capacity == 0 {
		capacity = 5
	}

	now := time.Now()
	workshop := &entity.Workshop{
		ID:              uuid.New().String()[:32],
		Name:            req.Name,
		Location:        req.Location,
		Capacity:        capacity,
		Specializations: req.Specializations,
		IsActive:        true,
		ContactPhone:    req.ContactPhone,
		ContactEmail:    req.ContactEmail,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.workshopRepo.Create(ctx, workshop); err != nil {
		return nil, fmt.Errorf("create workshop: %w", err)
	}
	return workshop, nil
}

// Update 更新车间
func (s *WorkshopService) Update(ctx context.Context, id string, req *UpdateWorkshopRequest) (*entity.Workshop, error) {
	workshop, err := s.workshopRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		workshop.Name = *req.Name
	}
	if req.Location != nil {
		workshop.Location = *req.Location
	}
	if req.Capacity != nil {
		workshop.Capacity = *req.Capacity
	}
	if req.Specializations != nil {
		workshop.Specializations = *req.Specializations
	}
	if req.ContactPhone != nil {
		workshop.ContactPhone = *req.ContactPhone
	}
	if req.ContactEmail != nil {
		workshop.ContactEmail = *req.ContactEmail
	}
	if req.IsActive != nil {
		workshop.IsActive = *req.IsActive
	}
	workshop.UpdatedAt = time.Now()

	if err := s.workshopRepo.Update(ctx, workshop); err != nil {
		return nil, fmt.Errorf("update workshop: %w", err)
	}
	return workshop, nil
}
