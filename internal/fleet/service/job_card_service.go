package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/bitfantasy/fleetops/internal/fleet/entity"
	"github.com/bitfantasy/fleetops/internal/fleet/repository"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobCardService 工单服务。费用汇总与库存扣减的一致性都在这里保证
type JobCardService struct {
	jobRepo      *repository.JobCardRepository
	assetRepo    *repository.AssetRepository
	workshopRepo *repository.WorkshopRepository
	scheduleRepo *repository.ScheduleRepository
	partRepo     *repository.PartRepository
	userRepo     *repository.UserRepository
	auditRepo    *repository.AuditLogRepository
	minioClient  *minio.Client
	bucketName   string
	db           *gorm.DB
}

// NewJobCardService 创建工单服务
func NewJobCardService(
	jobRepo *repository.JobCardRepository,
	assetRepo *repository.AssetRepository,
	workshopRepo *repository.WorkshopRepository,
	scheduleRepo *repository.ScheduleRepository,
	partRepo *repository.PartRepository,
	userRepo *repository.UserRepository,
	auditRepo *repository.AuditLogRepository,
	minioClient *minio.Client,
	bucketName string,
	db *gorm.DB,
) *JobCardService {
	return &JobCardService{
		jobRepo:      jobRepo,
		assetRepo:    assetRepo,
		workshopRepo: workshopRepo,
		scheduleRepo: scheduleRepo,
		partRepo:     partRepo,
		userRepo:     userRepo,
		auditRepo:    auditRepo,
		minioClient:  minioClient,
		bucketName:   bucketName,
		db:           db,
	}
}

// CreateJobCardRequest 创建工单请求
type CreateJobCardRequest struct {
	AssetID               string     `json:"asset_id" binding:"required"`
	WorkshopID            string     `json:"workshop_id" binding:"required"`
	MaintenanceScheduleID *string    `json:"maintenance_schedule_id"`
	JobType               string     `json:"job_type" binding:"required"`
	Title                 string     `json:"title" binding:"required"`
	Description           string     `json:"description"`
	ReportedIssue         string     `json:"reported_issue"`
	Priority              string     `json:"priority"`
	ScheduledStart        *time.Time `json:"scheduled_start"`
	ScheduledEnd          *time.Time `json:"scheduled_end"`
	EstimatedCost         *float64   `json:"estimated_cost"`
	MileageAtService      *int       `json:"mileage_at_service"`
	AssignedTo            *string    `json:"assigned_to"`
}

// UpdateJobCardRequest 更新工单请求
type UpdateJobCardRequest struct {
	Title          *string    `json:"title"`
	Description    *string    `json:"description"`
	ReportedIssue  *string    `json:"reported_issue"`
	Diagnosis      *string    `json:"diagnosis"`
	WorkPerformed  *string    `json:"work_performed"`
	Status         *string    `json:"status"`
	Priority       *string    `json:"priority"`
	ScheduledStart *time.Time `json:"scheduled_start"`
	ScheduledEnd   *time.Time `json:"scheduled_end"`
	EstimatedCost  *float64   `json:"estimated_cost"`
	AssignedTo     *string    `json:"assigned_to"`
}

// AddLaborEntryRequest 工时录入请求
type AddLaborEntryRequest struct {
	TechnicianID string     `json:"technician_id" binding:"required"`
	HoursWorked  float64    `json:"hours_worked" binding:"required"`
	HourlyRate   float64    `json:"hourly_rate"`
	WorkDate     *time.Time `json:"work_date"`
	Notes        string     `json:"notes"`
}

// AddPartsUsedRequest 配件消耗请求
type AddPartsUsedRequest struct {
	PartID   string `json:"part_id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required"`
	Notes    string `json:"notes"`
}

// JobCardStats 工单统计
type JobCardStats struct {
	Total      int64            `json:"total"`
	ByStatus   map[string]int64 `json:"by_status"`
	ByPriority map[string]int64 `json:"by_priority"`
}

// AssetOption 资产下拉选项
type AssetOption struct {
	ID             string `json:"id"`
	Registration   string `json:"registration"`
	Make           string `json:"make"`
	Model          string `json:"model"`
	CurrentMileage int    `json:"current_mileage"`
	Status         string `json:"status"`
}

// JobCardFormOptions 新建工单表单的下拉项
type JobCardFormOptions struct {
	JobTypes             []SelectOption               `json:"job_types"`
	Priorities           []SelectOption               `json:"priorities"`
	Statuses             []SelectOption               `json:"statuses"`
	Workshops            []WorkshopOption             `json:"workshops"`
	Assets               []AssetOption                `json:"assets"`
	MaintenanceSchedules []entity.MaintenanceSchedule `json:"maintenance_schedules"`
}

// JobCardForm 新建工单表单元数据，含下一个工单号预览
type JobCardForm struct {
	Options        JobCardFormOptions     `json:"options"`
	Defaults       map[string]interface{} `json:"defaults"`
	RequiredFields []string               `json:"required_fields"`
	NextJobNumber  string                 `json:"next_job_number"`
}

// List 工单列表
func (s *JobCardService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.JobCard, int64, error) {
	return s.jobRepo.FindAll(ctx, page, pageSize, filters)
}

// NewForm 新建工单的表单元数据：下拉项、默认值、必填字段、工单号预览。
// 号段预览只读不预留，真正的号在创建事务内发放
func (s *JobCardService) NewForm(ctx context.Context) (*JobCardForm, error) {
	workshops, err := s.workshopRepo.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workshops: %w", err)
	}
	workshopOptions := make([]WorkshopOption, 0, len(workshops))
	for _, w := range workshops {
		workshopOptions = append(workshopOptions, WorkshopOption{ID: w.ID, Name: w.Name, Location: w.Location})
	}

	assets, err := s.assetRepo.FindOperational(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	assetOptions := make([]AssetOption, 0, len(assets))
	for _, a := range assets {
		assetOptions = append(assetOptions, AssetOption{
			ID:             a.ID,
			Registration:   a.Registration,
			Make:           a.Make,
			Model:          a.Model,
			CurrentMileage: a.CurrentMileage,
			Status:         a.Status,
		})
	}

	schedules, err := s.scheduleRepo.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}

	nextNumber, err := s.jobRepo.NextJobNumber(s.db.WithContext(ctx), time.Now())
	if err != nil {
		return nil, fmt.Errorf("preview job number: %w", err)
	}

	return &JobCardForm{
		Options: JobCardFormOptions{
			JobTypes: []SelectOption{
				{Value: entity.JobTypePlanned, Label: "Planned Maintenance"},
				{Value: entity.JobTypeUnplanned, Label: "Unplanned Repair"},
				{Value: entity.JobTypeInspection, Label: "Inspection"},
				{Value: entity.JobTypeRepair, Label: "Repair"},
				{Value: entity.JobTypeService, Label: "Service"},
			},
			Priorities: []SelectOption{
				{Value: "low", Label: "Low"},
				{Value: "medium", Label: "Medium"},
				{Value: "high", Label: "High"},
				{Value: "critical", Label: "Critical"},
			},
			Statuses: []SelectOption{
				{Value: entity.JobStatusPending, Label: "Pending"},
				{Value: entity.JobStatusAssigned, Label: "Assigned"},
				{Value: entity.JobStatusInProgress, Label: "In Progress"},
				{Value: entity.JobStatusOnHold, Label: "On Hold"},
				{Value: entity.JobStatusCompleted, Label: "Completed"},
				{Value: entity.JobStatusCancelled, Label: "Cancelled"},
			},
			Workshops:            workshopOptions,
			Assets:               assetOptions,
			MaintenanceSchedules: schedules,
		},
		Defaults: map[string]interface{}{
			"job_type": entity.JobTypeUnplanned,
			"status":   entity.JobStatusPending,
			"priority": "medium",
		},
		RequiredFields: []string{"asset_id", "workshop_id", "title"},
		NextJobNumber:  nextNumber,
	}, nil
}

// Get 工单详情（含工时、用料、附件）
func (s *JobCardService) Get(ctx context.Context, id string) (*entity.JobCard, error) {
	return s.jobRepo.FindByID(ctx, id)
}

// Create 创建工单。工单号在事务内顺序发放，里程从资产快照
func (s *JobCardService) Create(ctx context.Context, userID, ip string, req *CreateJobCardRequest) (*entity.JobCard, error) {
	asset, err := s.assetRepo.FindByID(ctx, req.AssetID)
	if err != nil {
		return nil, fmt.Errorf("find asset: %w", err)
	}

	if req.AssignedTo != nil {
		if _, err := s.userRepo.FindByID(ctx, *req.AssignedTo); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: assigned user %s not found", ErrInvalidInput, *req.AssignedTo)
			}
			return nil, err
		}
	}

	priority := req.Priority
	if priority == "" {
		priority = "medium"
	}
	mileage := req.MileageAtService
	if mileage == nil {
		m := asset.CurrentMileage
		mileage = &m
	}

	now := time.Now()
	job := &entity.JobCard{
		ID:                    uuid.New().String()[:32],
		AssetID:               req.AssetID,
		WorkshopID:            req.WorkshopID,
		MaintenanceScheduleID: req.MaintenanceScheduleID,
		JobType:               req.JobType,
		Title:                 req.Title,
		Description:           req.Description,
		ReportedIssue:         req.ReportedIssue,
		Status:                entity.JobStatusPending,
		Priority:              priority,
		ScheduledStart:        req.ScheduledStart,
		ScheduledEnd:          req.ScheduledEnd,
		EstimatedCost:         req.EstimatedCost,
		MileageAtService:      mileage,
		AssignedTo:            req.AssignedTo,
		CreatedBy:             userID,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if job.AssignedTo != nil {
		job.Status = entity.JobStatusAssigned
	}

	// 发号按月前缀串行化；极端情况下撞到唯一索引就整个事务重试
	for attempt := 0; attempt < 3; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			number, err := s.jobRepo.NextJobNumber(tx, now)
			if err != nil {
				return fmt.Errorf("reserve job number: %w", err)
			}
			job.JobNumber = number

			if err := tx.Create(job).Error; err != nil {
				return fmt.Errorf("create job card: %w", err)
			}
			return s.auditRepo.CreateTx(tx, &entity.AuditLog{
				UserID:     &userID,
				Action:     entity.AuditActionCreate,
				EntityType: "job_card",
				EntityID:   &job.ID,
				Details:    fmt.Sprintf("Created job card %s for asset %s", job.JobNumber, asset.Registration),
				IPAddress:  ip,
			})
		})
		if err == nil {
			return job, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: job number %s", ErrConflict, job.JobNumber)
}

// Update 更新工单。状态推进到 in_progress 首次盖 actual_start，
// 推进到 completed 首次盖 actual_end / completed_at
func (s *JobCardService) Update(ctx context.Context, id, userID, ip string, req *UpdateJobCardRequest) (*entity.JobCard, error) {
	job, err := s.jobRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	changes := map[string]interface{}{}

	if req.Title != nil {
		job.Title = *req.Title
		changes["title"] = *req.Title
	}
	if req.Description != nil {
		job.Description = *req.Description
		changes["description"] = *req.Description
	}
	if req.ReportedIssue != nil {
		job.ReportedIssue = *req.ReportedIssue
		changes["reported_issue"] = *req.ReportedIssue
	}
	if req.Diagnosis != nil {
		job.Diagnosis = *req.Diagnosis
		changes["diagnosis"] = *req.Diagnosis
	}
	if req.WorkPerformed != nil {
		job.WorkPerformed = *req.WorkPerformed
		changes["work_performed"] = *req.WorkPerformed
	}
	if req.Priority != nil {
		job.Priority = *req.Priority
		changes["priority"] = *req.Priority
	}
	if req.ScheduledStart != nil {
		job.ScheduledStart = req.ScheduledStart
	}
	if req.ScheduledEnd != nil {
		job.ScheduledEnd = req.ScheduledEnd
	}
	if req.EstimatedCost != nil {
		job.EstimatedCost = req.EstimatedCost
		changes["estimated_cost"] = *req.EstimatedCost
	}
	if req.AssignedTo != nil {
		if _, err := s.userRepo.FindByID(ctx, *req.AssignedTo); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: assigned user %s not found", ErrInvalidInput, *req.AssignedTo)
			}
			return nil, err
		}
		job.AssignedTo = req.AssignedTo
		changes["assigned_to"] = *req.AssignedTo
		if job.Status == entity.JobStatusPending {
			job.Status = entity.JobStatusAssigned
			changes["status"] = job.Status
		}
	}
	if req.Status != nil && *req.Status != job.Status {
		job.Status = *req.Status
		changes["status"] = *req.Status
		switch *req.Status {
		case entity.JobStatusInProgress:
			if job.ActualStart == nil {
				job.ActualStart = &now
			}
		case entity.JobStatusCompleted:
			if job.ActualEnd == nil {
				job.ActualEnd = &now
			}
			if job.CompletedAt == nil {
				job.CompletedAt = &now
			}
		}
	}
	job.UpdatedAt = now

	details, _ := json.Marshal(changes)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(job).Error; err != nil {
			return fmt.Errorf("update job card: %w", err)
		}
		return s.auditRepo.CreateTx(tx, &entity.AuditLog{
			UserID:     &userID,
			Action:     entity.AuditActionUpdate,
			EntityType: "job_card",
			EntityID:   &job.ID,
			Details:    string(details),
			IPAddress:  ip,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.jobRepo.FindByID(ctx, id)
}

// AddLaborEntry 录入工时并重算工单人工费。
// 明细插入、labor_cost、actual_cost 三个写动作在同一事务提交
func (s *JobCardService) AddLaborEntry(ctx context.Context, jobID string, req *AddLaborEntryRequest) (*entity.LaborEntry, error) {
	if req.HoursWorked <= 0 {
		return nil, fmt.Errorf("%w: hours_worked must be positive", ErrInvalidInput)
	}
	if _, err := s.userRepo.FindByID(ctx, req.TechnicianID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: technician %s not found", ErrInvalidInput, req.TechnicianID)
		}
		return nil, err
	}

	workDate := time.Now()
	if req.WorkDate != nil {
		workDate = *req.WorkDate
	}

	entry := &entity.LaborEntry{
		ID:           uuid.New().String()[:32],
		JobCardID:    jobID,
		TechnicianID: req.TechnicianID,
		WorkDate:     workDate,
		HoursWorked:  req.HoursWorked,
		HourlyRate:   req.HourlyRate,
		TotalCost:    req.HoursWorked * req.HourlyRate,
		Notes:        req.Notes,
		CreatedAt:    time.Now(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job entity.JobCard
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", jobID).First(&job).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrNotFound
			}
			return err
		}

		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("create labor entry: %w", err)
		}

		laborCost, err := s.jobRepo.SumLaborCost(tx, jobID)
		if err != nil {
			return fmt.Errorf("sum labor cost: %w", err)
		}
		partsCost := 0.0
		if job.PartsCost != nil {
			partsCost = *job.PartsCost
		}
		actualCost := laborCost + partsCost

		return tx.Model(&entity.JobCard{}).
			Where("id = ?", jobID).
			Updates(map[string]interface{}{
				"labor_cost":  laborCost,
				"actual_cost": actualCost,
				"updated_at":  time.Now(),
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// AddPartsUsed 工单领用配件。校验并扣减库存、快照单价、重算配件费，
// 全部在同一事务内完成，配件行加行锁防止并发超扣
func (s *JobCardService) AddPartsUsed(ctx context.Context, jobID string, req *AddPartsUsedRequest) (*entity.PartsUsed, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}

	var usage *entity.PartsUsed
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job entity.JobCard
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", jobID).First(&job).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrNotFound
			}
			return err
		}

		part, err := s.partRepo.FindByIDForUpdate(tx, req.PartID)
		if err != nil {
			return err
		}

		if part.QuantityInStock < req.Quantity {
			return fmt.Errorf("%w: %s has %d in stock, requested %d",
				ErrInsufficientStock, part.PartNumber, part.QuantityInStock, req.Quantity)
		}

		unitCost := 0.0
		if part.UnitCost != nil {
			unitCost = *part.UnitCost
		}
		usage = &entity.PartsUsed{
			ID:        uuid.New().String()[:32],
			JobCardID: jobID,
			PartID:    part.ID,
			Quantity:  req.Quantity,
			UnitCost:  unitCost,
			TotalCost: float64(req.Quantity) * unitCost,
			Notes:     req.Notes,
			CreatedAt: time.Now(),
		}
		if err := tx.Create(usage).Error; err != nil {
			return fmt.Errorf("create parts usage: %w", err)
		}

		if err := tx.Model(&entity.Part{}).
			Where("id = ?", part.ID).
			Updates(map[string]interface{}{
				"quantity_in_stock": part.QuantityInStock - req.Quantity,
				"updated_at":        time.Now(),
			}).Error; err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}

		partsCost, err := s.jobRepo.SumPartsCost(tx, jobID)
		if err != nil {
			return fmt.Errorf("sum parts cost: %w", err)
		}
		laborCost := 0.0
		if job.LaborCost != nil {
			laborCost = *job.LaborCost
		}
		actualCost := laborCost + partsCost

		return tx.Model(&entity.JobCard{}).
			Where("id = ?", jobID).
			Updates(map[string]interface{}{
				"parts_cost":  partsCost,
				"actual_cost": actualCost,
				"updated_at":  time.Now(),
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return usage, nil
}

// Stats 工单统计
func (s *JobCardService) Stats(ctx context.Context) (*JobCardStats, error) {
	total, err := s.jobRepo.CountTotal(ctx)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.jobRepo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	byPriority, err := s.jobRepo.CountByPriority(ctx)
	if err != nil {
		return nil, err
	}
	return &JobCardStats{Total: total, ByStatus: byStatus, ByPriority: byPriority}, nil
}

// UploadAttachment 上传工单附件到对象存储
func (s *JobCardService) UploadAttachment(ctx context.Context, jobID, userID string, reader io.Reader, fileName string, fileSize int64, contentType string) (*entity.JobCardAttachment, error) {
	job, err := s.jobRepo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	objectName := fmt.Sprintf("job-cards/%s/%s%s", job.ID, uuid.New().String()[:8], filepath.Ext(fileName))

	if s.minioClient != nil {
		_, err = s.minioClient.PutObject(ctx, s.bucketName, objectName, reader, fileSize, minio.PutObjectOptions{
			ContentType: contentType,
		})
		if err != nil {
			return nil, fmt.Errorf("upload attachment: %w", err)
		}
	}

	att := &entity.JobCardAttachment{
		ID:          uuid.New().String()[:32],
		JobCardID:   job.ID,
		FileName:    fileName,
		FileSize:    fileSize,
		ContentType: contentType,
		ObjectPath:  objectName,
		UploadedBy:  userID,
		CreatedAt:   time.Now(),
	}
	if err := s.jobRepo.CreateAttachment(ctx, att); err != nil {
		return nil, fmt.Errorf("save attachment: %w", err)
	}
	return att, nil
}

// ListAttachments 工单附件列表
func (s *JobCardService) ListAttachments(ctx context.Context, jobID string) ([]entity.JobCardAttachment, error) {
	if _, err := s.jobRepo.FindByID(ctx, jobID); err != nil {
		return nil, err
	}
	return s.jobRepo.FindAttachments(ctx, jobID)
}
