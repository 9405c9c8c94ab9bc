package entity

import "time"

// Asset 车队资产（车辆/设备/机械）
type Asset struct {
	ID           string  `json:"id" gorm:"primaryKey;size:32"`
	Registration string  `json:"registration" gorm:"size:50;uniqueIndex;not null"`
	AssetType    string  `json:"asset_type" gorm:"size:50;not null"` // vehicle/equipment/plant
	Make         string  `json:"make" gorm:"size:100;not null"`
	Model        string  `json:"model" gorm:"size:100;not null"`
	Year         *int    `json:"year"`
	VIN          *string `json:"vin" gorm:"size:100;uniqueIndex"`

	// 运行状态
	Status         string `json:"status" gorm:"size:50;default:active"` // active/in_service/retired/disposed
	CurrentMileage int    `json:"current_mileage" gorm:"default:0"`
	FuelType       string `json:"fuel_type" gorm:"size:50"`
	Capacity       string `json:"capacity" gorm:"size:100"`

	// 财务信息
	PurchaseDate *time.Time `json:"purchase_date" gorm:"type:date"`
	PurchaseCost *float64   `json:"purchase_cost" gorm:"type:decimal(10,2)"`
	CurrentValue *float64   `json:"current_value" gorm:"type:decimal(10,2)"`
	CostCenter   string     `json:"cost_center" gorm:"size:100"`
	Department   string     `json:"department" gorm:"size:100"`

	// 位置与归属
	CurrentLocation string  `json:"current_location" gorm:"size:200"`
	AssignedTo      string  `json:"assigned_to" gorm:"size:100"`
	HomeWorkshopID  *string `json:"home_workshop_id" gorm:"size:32"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedBy string    `json:"created_by" gorm:"size:32"`

	HomeWorkshop *Workshop `json:"home_workshop,omitempty" gorm:"foreignKey:HomeWorkshopID"`
}

func (Asset) TableName() string {
	return "assets"
}

// 资产类型
const (
	AssetTypeVehicle   = "vehicle"
	AssetTypeEquipment = "equipment"
	AssetTypePlant     = "plant"
)

// 资产状态。资产不做物理删除，报废置为 disposed
const (
	AssetStatusActive    = "active"
	AssetStatusInService = "in_service"
	AssetStatusRetired   = "retired"
	AssetStatusDisposed  = "disposed"
)
