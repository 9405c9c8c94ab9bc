package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/fleetops/internal/fleet/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditLogRepository 审计日志仓库。日志只追加，不提供更新删除
type AuditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Create 写入审计日志
func (r *AuditLogRepository) Create(ctx context.Context, log *entity.AuditLog) error {
	prepareAuditLog(log)
	return r.db.WithContext(ctx).Create(log).Error
}

// CreateTx 在既有事务内写入审计日志，与业务变更同提交同回滚
func (r *AuditLogRepository) CreateTx(tx *gorm.DB, log *entity.AuditLog) error {
	prepareAuditLog(log)
	return tx.Create(log).Error
}

func prepareAuditLog(log *entity.AuditLog) {
	if log.ID == "" {
		log.ID = uuid.New().String()[:32]
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now()
	}
}

// FindAll 查询审计日志
func (r *AuditLogRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.AuditLog, int64, error) {
	var items []entity.AuditLog
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.AuditLog{})

	if userID := filters["user_id"]; userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if action := filters["action"]; action != "" {
		query = query.Where("action = ?", action)
	}
	if entityType := filters["entity_type"]; entityType != "" {
		query = query.Where("entity_type = ?", entityType)
	}
	if entityID := filters["entity_id"]; entityID != "" {
		query = query.Where("entity_id = ?", entityID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("User").
		Order("timestamp DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByEntity 查询某实体的完整审计轨迹
func (r *AuditLogRepository) FindByEntity(ctx context.Context, entityType, entityID string) ([]entity.AuditLog, error) {
	var items []entity.AuditLog
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("timestamp DESC").
		Find(&items).Error
	return items, err
}
