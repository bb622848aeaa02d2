package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the catalog view the pricing engine reads. A null TaxRate
// falls back to the configured default rate.
type Product struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID    uuid.UUID           `gorm:"column:vendor_id;type:uuid;not null"`
	SKU         string              `gorm:"column:sku;not null;uniqueIndex"`
	Name        string              `gorm:"column:name;not null"`
	Category    string              `gorm:"column:category;not null"`
	Unit        string              `gorm:"column:unit;not null"`
	UnitPrice   decimal.Decimal     `gorm:"column:unit_price;type:numeric(12,2);not null"`
	CostPrice   decimal.Decimal     `gorm:"column:cost_price;type:numeric(12,2);not null"`
	TaxRate     decimal.NullDecimal `gorm:"column:tax_rate;type:numeric(5,4)"`
	WeightKg    decimal.Decimal     `gorm:"column:weight_kg;type:numeric(10,3);not null"`
	MinOrderQty int                 `gorm:"column:min_order_qty;not null"`
	IsActive    bool                `gorm:"column:is_active;not null"`
	PriceTiers  []ProductPriceTier  `gorm:"foreignKey:ProductID;references:ID"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
