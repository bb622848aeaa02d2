package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartItem is one product line in a cart with its last computed price breakdown.
type CartItem struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID          uuid.UUID       `gorm:"column:cart_id;type:uuid;not null;index"`
	ProductID       uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	WarehouseID     uuid.UUID       `gorm:"column:warehouse_id;type:uuid;not null"`
	Quantity        int             `gorm:"column:quantity;not null"`
	OriginalPrice   decimal.Decimal `gorm:"column:original_price;type:numeric(12,2);not null"`
	UnitPrice       decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	DiscountPercent decimal.Decimal `gorm:"column:discount_percent;type:numeric(5,2);not null"`
	TierName        *string         `gorm:"column:tier_name"`
	TaxRate         decimal.Decimal `gorm:"column:tax_rate;type:numeric(5,4);not null"`
	Subtotal        decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null"`
	TaxAmount       decimal.Decimal `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	Total           decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null"`
	Notes           *string         `gorm:"column:notes"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// Savings is what bulk pricing took off the catalog price for the whole line.
func (i CartItem) Savings() decimal.Decimal {
	return i.OriginalPrice.Sub(i.UnitPrice).Mul(decimal.NewFromInt(int64(i.Quantity)))
}
