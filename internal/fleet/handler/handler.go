package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bitfantasy/fleetops/internal/fleet/repository"
	"github.com/bitfantasy/fleetops/internal/fleet/service"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handlers 处理器集合
type Handlers struct {
	Auth        *AuthHandler
	Asset       *AssetHandler
	Workshop    *WorkshopHandler
	JobCard     *JobCardHandler
	Maintenance *MaintenanceHandler
	Part        *PartHandler
	Dashboard   *DashboardHandler
	Audit       *AuditHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		Auth:        NewAuthHandler(svc.Auth),
		Asset:       NewAssetHandler(svc.Asset),
		Workshop:    NewWorkshopHandler(svc.Workshop),
		JobCard:     NewJobCardHandler(svc.JobCard),
		Maintenance: NewMaintenanceHandler(svc.Maintenance),
		Part:        NewPartHandler(svc.Part),
		Dashboard:   NewDashboardHandler(svc.Dashboard),
		Audit:       NewAuditHandler(svc.Audit),
	}
}

// ListResponse 列表响应结构
type ListResponse struct {
	Items       interface{} `json:"items"`
	Total       int64       `json:"total"`
	Pages       int         `json:"pages"`
	CurrentPage int         `json:"current_page"`
}

// List 列表响应
func List(c *gin.Context, items interface{}, total int64, page, pageSize int) {
	pages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		pages++
	}
	c.JSON(http.StatusOK, ListResponse{
		Items:       items,
		Total:       total,
		Pages:       pages,
		CurrentPage: page,
	})
}

// Error 错误响应
func Error(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// RespondError 按错误类型映射HTTP状态码
func RespondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		Error(c, http.StatusNotFound, "Resource not found")
	case errors.Is(err, service.ErrConflict):
		Error(c, http.StatusConflict, err.Error())
	case errors.Is(err, gorm.ErrDuplicatedKey):
		Error(c, http.StatusConflict, "Resource already exists")
	case errors.Is(err, service.ErrInsufficientStock):
		Error(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		Error(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidCredential):
		Error(c, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, service.ErrInactiveAccount):
		Error(c, http.StatusForbidden, "Account is inactive")
	default:
		Error(c, http.StatusInternalServerError, "Internal server error")
	}
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("per_page"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}
