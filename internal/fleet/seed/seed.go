package seed

import (
	"errors"
	"time"

	"github.com/bitfantasy/fleetops/internal/fleet/entity"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Run 初始化基础数据。以 seed_markers 表做幂等门闸，只在首次启动写入
func Run(db *gorm.DB, logger *zap.Logger) error {
	var marker entity.SeedMarker
	err := db.Where("name = ?", "initial").First(&marker).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	logger.Info("Seeding initial data")

	return db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		workshops := []entity.Workshop{
			{
				ID:              uuid.New().String()[:32],
				Name:            "Central Workshop",
				Location:        "Main Depot",
				Capacity:        10,
				Specializations: "general,engine,electrical",
				IsActive:        true,
				CreatedAt:       now,
				UpdatedAt:       now,
			},
			{
				ID:              uuid.New().String()[:32],
				Name:            "North Workshop",
				Location:        "North Depot",
				Capacity:        5,
				Specializations: "general,bodywork",
				IsActive:        true,
				CreatedAt:       now,
				UpdatedAt:       now,
			},
			{
				ID:              uuid.New().String()[:32],
				Name:            "Plant Maintenance Bay",
				Location:        "Equipment Yard",
				Capacity:        8,
				Specializations: "hydraulics,plant",
				IsActive:        true,
				CreatedAt:       now,
				UpdatedAt:       now,
			},
		}
		for i := range workshops {
			if err := tx.Create(&workshops[i]).Error; err != nil {
				return err
			}
		}

		users := []struct {
			Email     string
			FirstName string
			LastName  string
			Role      string
			Password  string
			Workshop  *string
		}{
			{"admin@fleetops.local", "System", "Admin", entity.RoleAdmin, "admin123", nil},
			{"manager@fleetops.local", "Fleet", "Manager", entity.RoleFleetManager, "manager123", nil},
			{"supervisor@fleetops.local", "Workshop", "Supervisor", entity.RoleSupervisor, "supervisor123", &workshops[0].ID},
			{"tech@fleetops.local", "Lead", "Technician", entity.RoleTechnician, "tech123", &workshops[0].ID},
			{"viewer@fleetops.local", "Read", "Only", entity.RoleViewer, "viewer123", nil},
		}
		for _, u := range users {
			hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			user := &entity.User{
				ID:           uuid.New().String()[:32],
				Email:        u.Email,
				PasswordHash: string(hash),
				FirstName:    u.FirstName,
				LastName:     u.LastName,
				Role:         u.Role,
				IsActive:     true,
				WorkshopID:   u.Workshop,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := tx.Create(user).Error; err != nil {
				return err
			}
		}

		return tx.Create(&entity.SeedMarker{
			ID:        uuid.New().String()[:32],
			Name:      "initial",
			AppliedAt: now,
		}).Error
	})
}
