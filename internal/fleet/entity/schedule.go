package entity

import "time"

// MaintenanceSchedule 保养计划。按天数和/或里程触发，至少设置一个
type MaintenanceSchedule struct {
	ID      string `json:"id" gorm:"primaryKey;size:32"`
	AssetID string `json:"asset_id" gorm:"size:32;not null;index"`

	ScheduleType string `json:"schedule_type" gorm:"size:50;not null"` // periodic/inspection/service
	Name         string `json:"name" gorm:"size:200;not null"`
	Description  string `json:"description" gorm:"type:text"`

	// 触发条件
	FrequencyDays    *int `json:"frequency_days"`
	FrequencyMileage *int `json:"frequency_mileage"`

	// 下次到期
	NextDueDate    *time.Time `json:"next_due_date" gorm:"type:date"`
	NextDueMileage *int       `json:"next_due_mileage"`

	IsActive               bool     `json:"is_active" gorm:"default:true"`
	Priority               string   `json:"priority" gorm:"size:20;default:medium"` // low/medium/high/critical
	EstimatedDurationHours *float64 `json:"estimated_duration_hours" gorm:"type:decimal(5,2)"`
	EstimatedCost          *float64 `json:"estimated_cost" gorm:"type:decimal(10,2)"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Asset *Asset `json:"asset,omitempty" gorm:"foreignKey:AssetID"`
}

func (MaintenanceSchedule) TableName() string {
	return "maintenance_schedules"
}

// 计划类型
const (
	ScheduleTypePeriodic   = "periodic"
	ScheduleTypeInspection = "inspection"
	ScheduleTypeService    = "service"
)
