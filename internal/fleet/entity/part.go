package entity

import (
	"time"

	"gorm.io/gorm"
)

// Part 库存配件
type Part struct {
	ID          string `json:"id" gorm:"primaryKey;size:32"`
	PartNumber  string `json:"part_number" gorm:"size:100;uniqueIndex;not null"`
	Name        string `json:"name" gorm:"size:200;not null"`
	Description string `json:"description" gorm:"type:text"`
	Category    string `json:"category" gorm:"size:100"`

	// 供应商
	SupplierName       string `json:"supplier_name" gorm:"size:200"`
	SupplierPartNumber string `json:"supplier_part_number" gorm:"size:100"`

	// 库存。quantity_in_stock 任何时刻不允许为负
	QuantityInStock int      `json:"quantity_in_stock" gorm:"default:0"`
	ReorderLevel    int      `json:"reorder_level" gorm:"default:5"`
	UnitCost        *float64 `json:"unit_cost" gorm:"type:decimal(10,2)"`

	StorageLocation string `json:"storage_location" gorm:"size:100"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 计算字段，不落库：库存降到补货线（含相等）即标记
	NeedsReorder bool `json:"needs_reorder" gorm:"-"`
}

func (Part) TableName() string {
	return "parts"
}

// AfterFind 读取后回填 needs_reorder
func (p *Part) AfterFind(*gorm.DB) error {
	p.Refresh()
	return nil
}

// Refresh 重算计算字段。库存变更后返回实体前调用
func (p *Part) Refresh() {
	p.NeedsReorder = p.QuantityInStock <= p.ReorderLevel
}
