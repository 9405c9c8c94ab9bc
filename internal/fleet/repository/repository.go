package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 仓库集合
type Repositories struct {
	User     *UserRepository
	Workshop *WorkshopRepository
	Asset    *AssetRepository
	Schedule *ScheduleRepository
	JobCard  *JobCardRepository
	Part     *PartRepository
	AuditLog *AuditLogRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:     NewUserRepository(db),
		Workshop: NewWorkshopRepository(db),
		Asset:    NewAssetRepository(db),
		Schedule: NewScheduleRepository(db),
		JobCard:  NewJobCardRepository(db),
		Part:     NewPartRepository(db),
		AuditLog: NewAuditLogRepository(db),
	}
}
