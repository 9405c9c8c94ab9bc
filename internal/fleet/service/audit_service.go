package service

import (
	"context"

	"github.com/bitfantasy/fleetops/internal/fleet/entity"
	"github.com/bitfantasy/fleetops/internal/fleet/repository"
)

// AuditService 审计日志查询
type AuditService struct {
	auditRepo *repository.AuditLogRepository
}

// NewAuditService 创建审计服务
func NewAuditService(auditRepo *repository.AuditLogRepository) *AuditService {
	return &AuditService{auditRepo: auditRepo}
}

// List 审计日志列表
func (s *AuditService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.AuditLog, int64, error) {
	return s.auditRepo.FindAll(ctx, page, pageSize, filters)
}

// EntityTrail 单个实体的变更轨迹
func (s *AuditService) EntityTrail(ctx context.Context, entityType, entityID string) ([]entity.AuditLog, error) {
	return s.auditRepo.FindByEntity(ctx, entityType, entityID)
}
