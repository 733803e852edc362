package models

import (
	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Orders never reference products live;
// order items snapshot the fields they need at purchase time.
type Product struct {
	BaseModel
	Name        string          `json:"name"`
	SKU         string          `gorm:"uniqueIndex" json:"sku"`
	Slug        string          `gorm:"uniqueIndex" json:"slug"`
	Description string          `json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2)" json:"price"`
	ImageURL    string          `json:"image_url"`
	Stock       int             `json:"stock"`
	IsActive    bool            `gorm:"default:true" json:"is_active"`
}
