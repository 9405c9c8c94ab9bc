package entity

import "time"

// AuditLog 审计日志。写入后不可变，每次变更操作一条
type AuditLog struct {
	ID     string  `json:"id" gorm:"primaryKey;size:32"`
	UserID *string `json:"user_id" gorm:"size:32;index"` // 匿名失败操作为空

	Action     string  `json:"action" gorm:"size:100;not null"` // create/update/delete/login/login_failed/password_changed
	EntityType string  `json:"entity_type" gorm:"size:100;not null;index:idx_audit_entity"`
	EntityID   *string `json:"entity_id" gorm:"size:32;index:idx_audit_entity"`

	Details   string    `json:"details" gorm:"type:text"` // 变更diff或描述，JSON串
	IPAddress string    `json:"ip_address" gorm:"size:50"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index"`

	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

// 审计动作
const (
	AuditActionCreate          = "create"
	AuditActionUpdate          = "update"
	AuditActionDelete          = "delete"
	AuditActionLogin           = "login"
	AuditActionLoginFailed     = "login_failed"
	AuditActionPasswordChanged = "password_changed"
)

// SeedMarker 初始化标记。落库防止多实例/重启重复播种
type SeedMarker struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	Name      string    `json:"name" gorm:"size:100;uniqueIndex;not null"`
	AppliedAt time.Time `json:"applied_at"`
}

func (SeedMarker) TableName() string {
	return "seed_markers"
}
