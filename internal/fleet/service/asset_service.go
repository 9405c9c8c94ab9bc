package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bitfantasy/fleetops/internal/fleet/entity"
	"github.com/bitfantasy/fleetops/internal/fleet/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AssetService 资产服务
type AssetService struct {
	assetRepo    *repository.AssetRepository
	workshopRepo *repository.WorkshopRepository
	auditRepo    *repository.AuditLogRepository
	db           *gorm.DB
}

// NewAssetService 创建资产服务
func NewAssetService(assetRepo *repository.AssetRepository, workshopRepo *repository.WorkshopRepository, auditRepo *repository.AuditLogRepository, db *gorm.DB) *AssetService {
	return &AssetService{
		assetRepo:    assetRepo,
		workshopRepo: workshopRepo,
		auditRepo:    auditRepo,
		db:           db,
	}
}

// CreateAssetRequest 创建资产请求
type CreateAssetRequest struct {
	Registration    string     `json:"registration" binding:"required"`
	AssetType       string     `json:"asset_type" binding:"required"`
	Make            string     `json:"make" binding:"required"`
	Model           string     `json:"model" binding:"required"`
	Year            *int       `json:"year"`
	VIN             *string    `json:"vin"`
	Status          string     `json:"status"`
	CurrentMileage  int        `json:"current_mileage"`
	FuelType        string     `json:"fuel_type"`
	Capacity        string     `json:"capacity"`
	PurchaseDate    *time.Time `json:"purchase_date"`
	PurchaseCost    *float64   `json:"purchase_cost"`
	CurrentValue    *float64   `json:"current_value"`
	CostCenter      string     `json:"cost_center"`
	Department      string     `json:"department"`
	CurrentLocation string     `json:"current_location"`
	AssignedTo      string     `json:"assigned_to"`
	HomeWorkshopID  *string    `json:"home_workshop_id"`
}

// UpdateAssetRequest 更新资产请求。指针字段缺省表示不修改
type UpdateAssetRequest struct {
	AssetType       *string    `json:"asset_type"`
	Make            *string    `json:"make"`
	Model           *string    `json:"model"`
	Year            *int       `json:"year"`
	VIN             *string    `json:"vin"`
	Status          *string    `json:"status"`
	CurrentMileage  *int       `json:"current_mileage"`
	FuelType        *string    `json:"fuel_type"`
	Capacity        *string    `json:"capacity"`
	PurchaseDate    *time.Time `json:"purchase_date"`
	PurchaseCost    *float64   `json:"purchase_cost"`
	CurrentValue    *float64   `json:"current_value"`
	CostCenter      *string    `json:"cost_center"`
	Department      *string    `json:"department"`
	CurrentLocation *string    `json:"current_location"`
	AssignedTo      *string    `json:"assigned_to"`
	HomeWorkshopID  *string    `json:"home_workshop_id"`
}

// AssetDetail 资产详情（含有效保养计划和最近工单）
type AssetDetail struct {
	entity.Asset
	MaintenanceSchedules []entity.MaintenanceSchedule `json:"maintenance_schedules"`
	RecentJobCards       []entity.JobCard             `json:"recent_job_cards"`
}

// AssetStats 资产统计（不含已报废）
type AssetStats struct {
	Total    int64            `json:"total"`
	ByType   map[string]int64 `json:"by_type"`
	ByStatus map[string]int64 `json:"by_status"`
}

// AssetFormOptions 新建资产表单的下拉项
type AssetFormOptions struct {
	AssetTypes  []SelectOption   `json:"asset_types"`
	Statuses    []SelectOption   `json:"statuses"`
	FuelTypes   []SelectOption   `json:"fuel_types"`
	Workshops   []WorkshopOption `json:"workshops"`
	Departments []string         `json:"departments"`
	CostCenters []string         `json:"cost_centers"`
}

// AssetForm 新建资产表单元数据
type AssetForm struct {
	Options        AssetFormOptions       `json:"options"`
	Defaults       map[string]interface{} `json:"defaults"`
	RequiredFields []string               `json:"required_fields"`
}

// List 资产列表
func (s *AssetService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Asset, int64, error) {
	return s.assetRepo.FindAll(ctx, page, pageSize, filters)
}

// NewForm 新建资产的表单元数据：下拉项、默认值、必填字段
func (s *AssetService) NewForm(ctx context.Context) (*AssetForm, error) {
	workshops, err := s.workshopRepo.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workshops: %w", err)
	}
	workshopOptions := make([]WorkshopOption, 0, len(workshops))
	for _, w := range workshops {
		workshopOptions = append(workshopOptions, WorkshopOption{ID: w.ID, Name: w.Name, Location: w.Location})
	}

	departments, err := s.assetRepo.DistinctDepartments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	costCenters, err := s.assetRepo.DistinctCostCenters(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cost centers: %w", err)
	}

	return &AssetForm{
		Options: AssetFormOptions{
			AssetTypes: []SelectOption{
				{Value: entity.AssetTypeVehicle, Label: "Vehicle"},
				{Value: entity.AssetTypeEquipment, Label: "Equipment"},
				{Value: entity.AssetTypePlant, Label: "Plant"},
			},
			Statuses: []SelectOption{
				{Value: entity.AssetStatusActive, Label: "Active"},
				{Value: entity.AssetStatusInService, Label: "In Service"},
				{Value: entity.AssetStatusRetired, Label: "Retired"},
				{Value: entity.AssetStatusDisposed, Label: "Disposed"},
			},
			FuelTypes: []SelectOption{
				{Value: "petrol", Label: "Petrol"},
				{Value: "diesel", Label: "Diesel"},
				{Value: "electric", Label: "Electric"},
				{Value: "hybrid", Label: "Hybrid"},
				{Value: "cng", Label: "CNG"},
				{Value: "lpg", Label: "LPG"},
			},
			Workshops:   workshopOptions,
			Departments: departments,
			CostCenters: costCenters,
		},
		Defaults: map[string]interface{}{
			"status":          entity.AssetStatusActive,
			"current_mileage": 0,
			"asset_type":      entity.AssetTypeVehicle,
		},
		RequiredFields: []string{"registration", "asset_type", "make", "model"},
	}, nil
}

// Get 资产详情
func (s *AssetService) Get(ctx context.Context, id string) (*AssetDetail, error) {
	asset, err := s.assetRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	schedules, err := s.assetRepo.FindActiveSchedules(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find schedules: %w", err)
	}
	jobs, err := s.assetRepo.FindRecentJobCards(ctx, id, 10)
	if err != nil {
		return nil, fmt.Errorf("find recent jobs: %w", err)
	}

	return &AssetDetail{
		Asset:                *asset,
		MaintenanceSchedules: schedules,
		RecentJobCards:       jobs,
	}, nil
}

// Create 创建资产。注册号重复返回 ErrConflict
func (s *AssetService) Create(ctx context.Context, userID, ip string, req *CreateAssetRequest) (*entity.Asset, error) {
	exists, err := s.assetRepo.ExistsByRegistration(ctx, req.Registration)
	if err != nil {
		return nil, fmt.Errorf("check registration: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: registration %s already exists", ErrConflict, req.Registration)
	}

	status := req.Status
	if status == "" {
		status = entity.AssetStatusActive
	}

	now := time.Now()
	asset := &entity.Asset{
		ID:              uuid.New().String()[:32],
		Registration:    req.Registration,
		AssetType:       req.AssetType,
		Make:            req.Make,
		Model:           req.Model,
		Year:            req.Year,
		VIN:             req.VIN,
		Status:          status,
		CurrentMileage:  req.CurrentMileage,
		FuelType:        req.FuelType,
		Capacity:        req.Capacity,
		PurchaseDate:    req.PurchaseDate,
		PurchaseCost:    req.PurchaseCost,
		CurrentValue:    req.CurrentValue,
		CostCenter:      req.CostCenter,
		Department:      req.Department,
		CurrentLocation: req.CurrentLocation,
		AssignedTo:      req.AssignedTo,
		HomeWorkshopID:  req.HomeWorkshopID,
		CreatedBy:       userID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(asset).Error; err != nil {
			return fmt.Errorf("create asset: %w", err)
		}
		return s.auditRepo.CreateTx(tx, &entity.AuditLog{
			UserID:     &userID,
			Action:     entity.AuditActionCreate,
			EntityType: "asset",
			EntityID:   &asset.ID,
			Details:    fmt.Sprintf("Created asset %s", asset.Registration),
			IPAddress:  ip,
		})
	})
	if err != nil {
		return nil, err
	}
	return asset, nil
}

// Update 更新资产，变更字段写入审计明细
func (s *AssetService) Update(ctx context.Context, id, userID, ip string, req *UpdateAssetRequest) (*entity.Asset, error) {
	asset, err := s.assetRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := map[string]interface{}{}
	if req.AssetType != nil {
		asset.AssetType = *req.AssetType
		changes["asset_type"] = *req.AssetType
	}
	if req.Make != nil {
		asset.Make = *req.Make
		changes["make"] = *req.Make
	}
	if req.Model != nil {
		asset.Model = *req.Model
		changes["model"] = *req.Model
	}
	if req.Year != nil {
		asset.Year = req.Year
		changes["year"] = *req.Year
	}
	if req.VIN != nil {
		asset.VIN = req.VIN
		changes["vin"] = *req.VIN
	}
	if req.Status != nil {
		asset.Status = *req.Status
		changes["status"] = *req.Status
	}
	if req.CurrentMileage != nil {
		asset.CurrentMileage = *req.CurrentMileage
		changes["current_mileage"] = *req.CurrentMileage
	}
	if req.FuelType != nil {
		asset.FuelType = *req.FuelType
		changes["fuel_type"] = *req.FuelType
	}
	if req.Capacity != nil {
		asset.Capacity = *req.Capacity
		changes["capacity"] = *req.Capacity
	}
	if req.PurchaseDate != nil {
		asset.PurchaseDate = req.PurchaseDate
		changes["purchase_date"] = req.PurchaseDate.Format("2006-01-02")
	}
	if req.PurchaseCost != nil {
		asset.PurchaseCost = req.PurchaseCost
		changes["purchase_cost"] = *req.PurchaseCost
	}
	if req.CurrentValue != nil {
		asset.CurrentValue = req.CurrentValue
		changes["current_value"] = *req.CurrentValue
	}
	if req.CostCenter != nil {
		asset.CostCenter = *req.CostCenter
		changes["cost_center"] = *req.CostCenter
	}
	if req.Department != nil {
		asset.Department = *req.Department
		changes["department"] = *req.Department
	}
	if req.CurrentLocation != nil {
		asset.CurrentLocation = *req.CurrentLocation
		changes["current_location"] = *req.CurrentLocation
	}
	if req.AssignedTo != nil {
		asset.AssignedTo = *req.AssignedTo
		changes["assigned_to"] = *req.AssignedTo
	}
	if req.HomeWorkshopID != nil {
		asset.HomeWorkshopID = req.HomeWorkshopID
		changes["home_workshop_id"] = *req.HomeWorkshopID
	}
	asset.UpdatedAt = time.Now()

	details, _ := json.Marshal(changes)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(asset).Error; err != nil {
			return fmt.Errorf("update asset: %w", err)
		}
		return s.auditRepo.CreateTx(tx, &entity.AuditLog{
			UserID:     &userID,
			Action:     entity.AuditActionUpdate,
			EntityType: "asset",
			EntityID:   &asset.ID,
			Details:    string(details),
			IPAddress:  ip,
		})
	})
	if err != nil {
		return nil, err
	}
	return asset, nil
}

// Delete 报废资产。不做物理删除，状态置为 disposed
func (s *AssetService) Delete(ctx context.Context, id, userID, ip string) error {
	asset, err := s.assetRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	asset.Status = entity.AssetStatusDisposed
	asset.UpdatedAt = time.Now()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(asset).Error; err != nil {
			return fmt.Errorf("dispose asset: %w", err)
		}
		return s.auditRepo.CreateTx(tx, &entity.AuditLog{
			UserID:     &userID,
			Action:     entity.AuditActionDelete,
			EntityType: "asset",
			EntityID:   &asset.ID,
			Details:    fmt.Sprintf("Disposed asset %s", asset.Registration),
			IPAddress:  ip,
		})
	})
}

// Stats 资产统计
func (s *AssetService) Stats(ctx context.Context) (*AssetStats, error) {
	total, err := s.assetRepo.CountTotal(ctx)
	if err != nil {
		return nil, err
	}
	byType, err := s.assetRepo.CountByType(ctx)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.assetRepo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	return &AssetStats{Total: total, ByType: byType, ByStatus: byStatus}, nil
}
