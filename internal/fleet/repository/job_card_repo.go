package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/fleetops/internal/fleet/entity"
	"gorm.io/gorm"
)

// JobCardRepository 工单仓库
type JobCardRepository struct {
	db *gorm.DB
}

func NewJobCardRepository(db *gorm.DB) *JobCardRepository {
	return &JobCardRepository{db: db}
}

// FindAll 查询工单列表
func (r *JobCardRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.JobCard, int64, error) {
	var items []entity.JobCard
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.JobCard{})

	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if workshopID := filters["workshop_id"]; workshopID != "" {
		query = query.Where("workshop_id = ?", workshopID)
	}
	if assetID := filters["asset_id"]; assetID != "" {
		query = query.Where("asset_id = ?", assetID)
	}
	if priority := filters["priority"]; priority != "" {
		query = query.Where("priority = ?", priority)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Asset").
		Preload("Workshop").
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 根据ID查找工单（含关联明细）
func (r *JobCardRepository) FindByID(ctx context.Context, id string) (*entity.JobCard, error) {
	var job entity.JobCard
	err := r.db.WithContext(ctx).
		Preload("Asset").
		Preload("Workshop").
		Preload("AssignedTechnician").
		Preload("LaborEntries").
		Preload("LaborEntries.Technician").
		Preload("PartsUsed").
		Preload("PartsUsed.Part").
		Preload("Attachments").
		Where("id = ?", id).
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// Create 创建工单
func (r *JobCardRepository) Create(ctx context.Context, job *entity.JobCard) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// Update 更新工单
func (r *JobCardRepository) Update(ctx context.Context, job *entity.JobCard) error {
	return r.db.WithContext(ctx).Save(job).Error
}

// NextJobNumber 预留工单号 JC<YYYYMM><5位序号>。
// 事务级咨询锁按月前缀串行化发号，锁随提交释放后，等待方
// 以新快照重读当月最大号；唯一索引兜底，调用方捕获重号后重试
func (r *JobCardRepository) NextJobNumber(tx *gorm.DB, now time.Time) (string, error) {
	prefix := "JC" + now.Format("200601")

	if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", prefix).Error; err != nil {
		return "", err
	}

	var last entity.JobCard
	err := tx.
		Where("job_number LIKE ?", prefix+"%").
		Order("job_number DESC").
		Limit(1).
		Find(&last).Error
	if err != nil {
		return "", err
	}

	seq := 0
	if last.JobNumber != "" {
		fmt.Sscanf(last.JobNumber, prefix+"%05d", &seq)
	}
	return fmt.Sprintf("%s%05d", prefix, seq+1), nil
}

// SumLaborCost 工单工时费合计
func (r *JobCardRepository) SumLaborCost(tx *gorm.DB, jobID string) (float64, error) {
	var total float64
	err := tx.Model(&entity.LaborEntry{}).
		Where("job_card_id = ?", jobID).
		Select("COALESCE(SUM(total_cost), 0)").
		Scan(&total).Error
	return total, err
}

// SumPartsCost 工单配件费合计
func (r *JobCardRepository) SumPartsCost(tx *gorm.DB, jobID string) (float64, error) {
	var total float64
	err := tx.Model(&entity.PartsUsed{}).
		Where("job_card_id = ?", jobID).
		Select("COALESCE(SUM(total_cost), 0)").
		Scan(&total).Error
	return total, err
}

// CountByStatus 按状态统计
func (r *JobCardRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return r.groupCount(ctx, "status")
}

// CountByPriority 按优先级统计
func (r *JobCardRepository) CountByPriority(ctx context.Context) (map[string]int64, error) {
	return r.groupCount(ctx, "priority")
}

func (r *JobCardRepository) groupCount(ctx context.Context, column string) (map[string]int64, error) {
	type row struct {
		Key   string
		Count int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&entity.JobCard{}).
		Select(column + " AS key, COUNT(id) AS count").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[string]int64, len(rows))
	for _, r := range rows {
		result[r.Key] = r.Count
	}
	return result, nil
}

// CountTotal 工单总数
func (r *JobCardRepository) CountTotal(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.JobCard{}).Count(&count).Error
	return count, err
}

// FindRecent 最近创建的工单
func (r *JobCardRepository) FindRecent(ctx context.Context, limit int) ([]entity.JobCard, error) {
	var jobs []entity.JobCard
	err := r.db.WithContext(ctx).
		Preload("Asset").
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// CreateAttachment 创建工单附件记录
func (r *JobCardRepository) CreateAttachment(ctx context.Context, att *entity.JobCardAttachment) error {
	return r.db.WithContext(ctx).Create(att).Error
}

// FindAttachments 查询工单附件
func (r *JobCardRepository) FindAttachments(ctx context.Context, jobID string) ([]entity.JobCardAttachment, error) {
	var atts []entity.JobCardAttachment
	err := r.db.WithContext(ctx).
		Where("job_card_id = ?", jobID).
		Order("created_at DESC").
		Find(&atts).Error
	return atts, err
}
