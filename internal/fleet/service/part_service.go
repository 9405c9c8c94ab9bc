package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/fleetops/internal/fleet/entity"
	"github.com/bitfantasy/fleetops/internal/fleet/repository"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// PartService 配件库存服务
type PartService struct {
	partRepo *repository.PartRepository
	db       *gorm.DB
}

// NewPartService 创建配件服务
func NewPartService(partRepo *repository.PartRepository, db *gorm.DB) *PartService {
	return &PartService{partRepo: partRepo, db: db}
}

// CreatePartRequest 创建配件请求
type CreatePartRequest struct {
	PartNumber         string   `json:"part_number" binding:"required"`
	Name               string   `json:"name" binding:"required"`
	Description        string   `json:"description"`
	Category           string   `json:"category"`
	SupplierName       string   `json:"supplier_name"`
	SupplierPartNumber string   `json:"supplier_part_number"`
	QuantityInStock    int      `json:"quantity_in_stock"`
	ReorderLevel       int      `json:"reorder_level"`
	UnitCost           *float64 `json:"unit_cost"`
	StorageLocation    string   `json:"storage_location"`
}

// UpdatePartRequest 更新配件请求
type UpdatePartRequest struct {
	Name               *string  `json:"name"`
	Description        *string  `json:"description"`
	Category           *string  `json:"category"`
	SupplierName       *string  `json:"supplier_name"`
	SupplierPartNumber *string  `json:"supplier_part_number"`
	ReorderLevel       *int     `json:"reorder_level"`
	UnitCost           *float64 `json:"unit_cost"`
	StorageLocation    *string  `json:"storage_location"`
}

// AdjustStockRequest 库存调整请求。正数入库，负数出库
type AdjustStockRequest struct {
	Adjustment int    `json:"adjustment" binding:"required"`
	Reason     string `json:"reason"`
}

// PartDetail 配件详情（含最近领用记录）
type PartDetail struct {
	entity.Part
	RecentUsage []entity.PartsUsed `json:"recent_usage"`
}

// List 配件列表
func (s *PartService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Part, int64, error) {
	return s.partRepo.FindAll(ctx, page, pageSize, filters)
}

// Get 配件详情
func (s *PartService) Get(ctx context.Context, id string) (*PartDetail, error) {
	part, err := s.partRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	usage, err := s.partRepo.FindRecentUsage(ctx, id, 10)
	if err != nil {
		return nil, fmt.Errorf("find recent usage: %w", err)
	}
	return &PartDetail{Part: *part, RecentUsage: usage}, nil
}

// Create 创建配件。编号重复返回 ErrConflict
func (s *PartService) Create(ctx context.Context, req *CreatePartRequest) (*entity.Part, error) {
	exists, err := s.partRepo.ExistsByPartNumber(ctx, req.PartNumber)
	if err != nil {
		return nil, fmt.Errorf("check part number: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: part number %s already exists", ErrConflict, req.PartNumber)
	}

	reorderLevel := req.ReorderLevel
	if reorderLevel == 0 {
		reorderLevel = 5
	}

	now := time.Now()
	part := &entity.Part{
		ID:                 uuid.New().String()[:32],
		PartNumber:         req.PartNumber,
		Name:               req.Name,
		Description:        req.Description,
		Category:           req.Category,
		SupplierName:       req.SupplierName,
		SupplierPartNumber: req.SupplierPartNumber,
		QuantityInStock:    req.QuantityInStock,
		ReorderLevel:       reorderLevel,
		UnitCost:           req.UnitCost,
		StorageLocation:    req.StorageLocation,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.partRepo.Create(ctx, part); err != nil {
		return nil, fmt.Errorf("create part: %w", err)
	}
	part.Refresh()
	return part, nil
}

// Update 更新配件资料。库存数量只能走 AdjustStock
func (s *PartService) Update(ctx context.Context, id string, req *UpdatePartRequest) (*entity.Part, error) {
	part, err := s.partRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		part.Name = *req.Name
	}
	if req.Description != nil {
		part.Description = *req.Description
	}
	if req.Category != nil {
		part.Category = *req.Category
	}
	if req.SupplierName != nil {
		part.SupplierName = *req.SupplierName
	}
	if req.SupplierPartNumber != nil {
		part.SupplierPartNumber = *req.SupplierPartNumber
	}
	if req.ReorderLevel != nil {
		part.ReorderLevel = *req.ReorderLevel
	}
	if req.UnitCost != nil {
		part.UnitCost = req.UnitCost
	}
	if req.StorageLocation != nil {
		part.StorageLocation = *req.StorageLocation
	}
	part.UpdatedAt = time.Now()

	if err := s.partRepo.Update(ctx, part); err != nil {
		return nil, fmt.Errorf("update part: %w", err)
	}
	part.Refresh()
	return part, nil
}

// AdjustStock 调整库存。行锁串行化读改写，结果为负直接拒绝
func (s *PartService) AdjustStock(ctx context.Context, id string, req *AdjustStockRequest) (*entity.Part, error) {
	var part *entity.Part
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		part, err = s.partRepo.FindByIDForUpdate(tx, id)
		if err != nil {
			return err
		}

		next := part.QuantityInStock + req.Adjustment
		if next < 0 {
			return fmt.Errorf("%w: adjustment would leave stock at %d", ErrInvalidInput, next)
		}

		part.QuantityInStock = next
		part.UpdatedAt = time.Now()
		return tx.Save(part).Error
	})
	if err != nil {
		return nil, err
	}
	part.Refresh()
	return part, nil
}

// LowStock 库存不高于补货线的配件
func (s *PartService) LowStock(ctx context.Context) ([]entity.Part, error) {
	return s.partRepo.FindLowStock(ctx)
}

// ExportXLSX 导出配件清单
func (s *PartService) ExportXLSX(ctx context.Context) (*bytes.Buffer, error) {
	parts, err := s.partRepo.FindAllOrdered(ctx)
	if err != nil {
		return nil, fmt.Errorf("load parts: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Parts"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Part Number", "Name", "Category", "Supplier", "In Stock", "Reorder Level", "Unit Cost", "Location", "Needs Reorder"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for row, p := range parts {
		unitCost := 0.0
		if p.UnitCost != nil {
			unitCost = *p.UnitCost
		}
		values := []interface{}{
			p.PartNumber, p.Name, p.Category, p.SupplierName,
			p.QuantityInStock, p.ReorderLevel, unitCost, p.StorageLocation, p.NeedsReorder,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf, nil
}
