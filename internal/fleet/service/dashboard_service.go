package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/fleetops/internal/fleet/entity"
	"github.com/bitfantasy/fleetops/internal/fleet/repository"
	"gorm.io/gorm"
)

// DashboardService 总览看板。所有汇总都是请求时现算，不做缓存
type DashboardService struct {
	assetRepo    *repository.AssetRepository
	jobRepo      *repository.JobCardRepository
	scheduleRepo *repository.ScheduleRepository
	partRepo     *repository.PartRepository
	workshopRepo *repository.WorkshopRepository
	db           *gorm.DB
}

// NewDashboardService 创建看板服务
func NewDashboardService(
	assetRepo *repository.AssetRepository,
	jobRepo *repository.JobCardRepository,
	scheduleRepo *repository.ScheduleRepository,
	partRepo *repository.PartRepository,
	workshopRepo *repository.WorkshopRepository,
	db *gorm.DB,
) *DashboardService {
	return &DashboardService{
		assetRepo:    assetRepo,
		jobRepo:      jobRepo,
		scheduleRepo: scheduleRepo,
		partRepo:     partRepo,
		workshopRepo: workshopRepo,
		db:           db,
	}
}

// AssetCostRank 资产费用排行条目
type AssetCostRank struct {
	AssetID      string  `json:"asset_id"`
	Registration string  `json:"registration"`
	Make         string  `json:"make"`
	Model        string  `json:"model"`
	TotalCost    float64 `json:"total_cost"`
}

// DashboardStats 看板汇总
type DashboardStats struct {
	Assets struct {
		Total    int64            `json:"total"`
		ByType   map[string]int64 `json:"by_type"`
		ByStatus map[string]int64 `json:"by_status"`
	} `json:"assets"`
	JobCards struct {
		Total    int64            `json:"total"`
		ByStatus map[string]int64 `json:"by_status"`
	} `json:"job_cards"`
	Maintenance struct {
		Overdue int64 `json:"overdue"`
		DueSoon int64 `json:"due_soon"`
	} `json:"maintenance"`
	Parts struct {
		Total    int64 `json:"total"`
		LowStock int64 `json:"low_stock"`
	} `json:"parts"`
	MaintenanceCost30Days float64           `json:"maintenance_cost_30_days"`
	TopAssetsByCost       []AssetCostRank   `json:"top_assets_by_cost"`
	Workshops             []WorkshopSummary `json:"workshops"`
}

// Stats 汇总看板数据
func (s *DashboardService) Stats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{}
	var err error

	if stats.Assets.Total, err = s.assetRepo.CountTotal(ctx); err != nil {
		return nil, fmt.Errorf("count assets: %w", err)
	}
	if stats.Assets.ByType, err = s.assetRepo.CountByType(ctx); err != nil {
		return nil, fmt.Errorf("count assets by type: %w", err)
	}
	if stats.Assets.ByStatus, err = s.assetRepo.CountByStatus(ctx); err != nil {
		return nil, fmt.Errorf("count assets by status: %w", err)
	}

	if stats.JobCards.Total, err = s.jobRepo.CountTotal(ctx); err != nil {
		return nil, fmt.Errorf("count job cards: %w", err)
	}
	if stats.JobCards.ByStatus, err = s.jobRepo.CountByStatus(ctx); err != nil {
		return nil, fmt.Errorf("count job cards by status: %w", err)
	}

	today := time.Now().Truncate(24 * time.Hour)
	if stats.Maintenance.Overdue, err = s.scheduleRepo.CountOverdue(ctx, today); err != nil {
		return nil, fmt.Errorf("count overdue: %w", err)
	}
	if stats.Maintenance.DueSoon, err = s.scheduleRepo.CountDueBetween(ctx, today, today.AddDate(0, 0, 30)); err != nil {
		return nil, fmt.Errorf("count due soon: %w", err)
	}

	if stats.Parts.Total, err = s.partRepo.CountTotal(ctx); err != nil {
		return nil, fmt.Errorf("count parts: %w", err)
	}
	if stats.Parts.LowStock, err = s.partRepo.CountLowStock(ctx); err != nil {
		return nil, fmt.Errorf("count low stock: %w", err)
	}

	if stats.MaintenanceCost30Days, err = s.completedCostSince(ctx, time.Now().AddDate(0, 0, -30)); err != nil {
		return nil, fmt.Errorf("sum 30-day cost: %w", err)
	}
	if stats.TopAssetsByCost, err = s.topAssetsByCost(ctx, time.Now().AddDate(0, 0, -90), 5); err != nil {
		return nil, fmt.Errorf("rank assets by cost: %w", err)
	}

	workshops, err := s.workshopRepo.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workshops: %w", err)
	}
	stats.Workshops = make([]WorkshopSummary, 0, len(workshops))
	for _, w := range workshops {
		active, err := s.workshopRepo.CountActiveJobs(ctx, w.ID)
		if err != nil {
			return nil, fmt.Errorf("count active jobs: %w", err)
		}
		stats.Workshops = append(stats.Workshops, WorkshopSummary{
			Workshop:    w,
			ActiveJobs:  active,
			Utilization: utilization(active, w.Capacity),
		})
	}

	return stats, nil
}

// completedCostSince 窗口期内已完成工单的实际费用合计
func (s *DashboardService) completedCostSince(ctx context.Context, since time.Time) (float64, error) {
	var total float64
	err := s.db.WithContext(ctx).
		Model(&entity.JobCard{}).
		Select("COALESCE(SUM(actual_cost), 0)").
		Where("status = ? AND completed_at >= ?", entity.JobStatusCompleted, since).
		Scan(&total).Error
	return total, err
}

// topAssetsByCost 窗口期内完成的维修中费用最高的资产，按完成时间计窗
func (s *DashboardService) topAssetsByCost(ctx context.Context, since time.Time, limit int) ([]AssetCostRank, error) {
	var ranks []AssetCostRank
	err := s.db.WithContext(ctx).Raw(`
		SELECT a.id AS asset_id, a.registration, a.make, a.model,
		       COALESCE(SUM(j.actual_cost), 0) AS total_cost
		FROM job_cards j
		JOIN assets a ON a.id = j.asset_id
		WHERE j.status = ? AND j.completed_at >= ? AND j.actual_cost IS NOT NULL
		GROUP BY a.id, a.registration, a.make, a.model
		ORDER BY total_cost DESC
		LIMIT ?`, entity.JobStatusCompleted, since, limit).Scan(&ranks).Error
	if err != nil {
		return nil, err
	}
	if ranks == nil {
		ranks = []AssetCostRank{}
	}
	return ranks, nil
}

// RecentActivity 最近创建/更新的工单
func (s *DashboardService) RecentActivity(ctx context.Context) ([]entity.JobCard, error) {
	return s.jobRepo.FindRecent(ctx, 10)
}
