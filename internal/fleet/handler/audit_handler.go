package handler

import (
	"net/http"

	"github.com/bitfantasy/fleetops/internal/fleet/service"
	"github.com/gin-gonic/gin"
)

// AuditHandler 审计日志处理器
type AuditHandler struct {
	svc *service.AuditService
}

// NewAuditHandler 创建审计日志处理器
func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// List 审计日志列表
func (h *AuditHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"user_id":     c.Query("user_id"),
		"action":      c.Query("action"),
		"entity_type": c.Query("entity_type"),
		"entity_id":   c.Query("entity_id"),
	}

	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		RespondError(c, err)
		return
	}
	List(c, items, total, page, pageSize)
}

// EntityTrail 单实体变更轨迹
func (h *AuditHandler) EntityTrail(c *gin.Context) {
	items, err := h.svc.EntityTrail(c.Request.Context(), c.Param("type"), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
