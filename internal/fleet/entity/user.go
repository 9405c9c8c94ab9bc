package entity

import "time"

// User 系统用户
type User struct {
	ID           string  `json:"id" gorm:"primaryKey;size:32"`
	Email        string  `json:"email" gorm:"size:120;uniqueIndex;not null"`
	PasswordHash string  `json:"-" gorm:"size:255;not null"`
	FirstName    string  `json:"first_name" gorm:"size:100;not null"`
	LastName     string  `json:"last_name" gorm:"size:100;not null"`
	Role         string  `json:"role" gorm:"size:50;not null"` // admin/fleet_manager/supervisor/technician/viewer
	IsActive     bool    `json:"is_active" gorm:"default:true"`
	WorkshopID   *string `json:"workshop_id" gorm:"size:32"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Workshop *Workshop `json:"workshop,omitempty" gorm:"foreignKey:WorkshopID"`
}

func (User) TableName() string {
	return "users"
}

// 用户角色
const (
	RoleAdmin        = "admin"
	RoleFleetManager = "fleet_manager"
	RoleSupervisor   = "supervisor"
	RoleTechnician   = "technician"
	RoleViewer       = "viewer"
)

// FullName 姓名拼接，用于工时记录等展示字段
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
