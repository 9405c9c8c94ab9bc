package entity

import "time"

// Workshop 维修车间
type Workshop struct {
	ID              string `json:"id" gorm:"primaryKey;size:32"`
	Name            string `json:"name" gorm:"size:100;not null"`
	Location        string `json:"location" gorm:"size:200;not null"`
	Capacity        int    `json:"capacity" gorm:"default:5"` // 可同时处理的工单数
	Specializations string `json:"specializations" gorm:"type:text"`
	IsActive        bool   `json:"is_active" gorm:"default:true"`
	ContactPhone    string `json:"contact_phone" gorm:"size:20"`
	ContactEmail    string `json:"contact_email" gorm:"size:120"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Workshop) TableName() string {
	return "workshops"
}
