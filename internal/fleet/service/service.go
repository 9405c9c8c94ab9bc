package service

import (
	"errors"

	"github.com/bitfantasy/fleetops/internal/config"
	"github.com/bitfantasy/fleetops/internal/fleet/repository"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// 业务错误。handler 层据此映射HTTP状态码
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidCredential = errors.New("invalid credentials")
	ErrInactiveAccount   = errors.New("account is inactive")
)

// SelectOption 表单下拉选项
type SelectOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// WorkshopOption 车间下拉选项
type WorkshopOption struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

// Services 服务集合
type Services struct {
	Auth        *AuthService
	Asset       *AssetService
	Workshop    *WorkshopService
	JobCard     *JobCardService
	Maintenance *MaintenanceService
	Part        *PartService
	Dashboard   *DashboardService
	Audit       *AuditService
}

// NewServices 创建服务集合
func NewServices(db *gorm.DB, repos *repository.Repositories, rdb *redis.Client, minioClient *minio.Client, cfg *config.Config) *Services {
	return &Services{
		Auth:        NewAuthService(repos.User, repos.AuditLog, rdb, cfg),
		Asset:       NewAssetService(repos.Asset, repos.Workshop, repos.AuditLog, db),
		Workshop:    NewWorkshopService(repos.Workshop, repos.User),
		JobCard:     NewJobCardService(repos.JobCard, repos.Asset, repos.Workshop, repos.Schedule, repos.Part, repos.User, repos.AuditLog, minioClient, cfg.MinIO.Bucket, db),
		Maintenance: NewMaintenanceService(repos.Schedule, repos.Asset),
		Part:        NewPartService(repos.Part, db),
		Dashboard:   NewDashboardService(repos.Asset, repos.JobCard, repos.Schedule, repos.Part, repos.Workshop, db),
		Audit:       NewAuditService(repos.AuditLog),
	}
}
