package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/freshlane/pkg/enums"
)

// OrderItem is one product line within an order.
type OrderItem struct {
	ID                 uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID            uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID          uuid.UUID             `gorm:"column:product_id;type:uuid;not null"`
	WarehouseID        uuid.UUID             `gorm:"column:warehouse_id;type:uuid;not null"`
	SKU                string                `gorm:"column:sku;not null"`
	Name               string                `gorm:"column:name;not null"`
	Unit               string                `gorm:"column:unit;not null"`
	WeightKg           decimal.Decimal       `gorm:"column:weight_kg;type:numeric(10,3);not null"`
	Quantity           int                   `gorm:"column:quantity;not null"`
	UnitPrice          decimal.Decimal       `gorm:"column:unit_price;type:numeric(12,2);not null"`
	CostPrice          decimal.Decimal       `gorm:"column:cost_price;type:numeric(12,2);not null"`
	DiscountAmount     decimal.Decimal       `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	TaxAmount          decimal.Decimal       `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	Subtotal           decimal.Decimal       `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Total              decimal.Decimal       `gorm:"column:total;type:numeric(12,2);not null"`
	Status             enums.OrderItemStatus `gorm:"column:status;type:text;not null"`
	ReservedQty        int                   `gorm:"column:reserved_qty;not null"`
	PickedQty          int                   `gorm:"column:picked_qty;not null"`
	PackedQty          int                   `gorm:"column:packed_qty;not null"`
	DeliveredQty       int                   `gorm:"column:delivered_qty;not null"`
	ReturnedQty        int                   `gorm:"column:returned_qty;not null"`
	DamagedQty         int                   `gorm:"column:damaged_qty;not null"`
	IsSubstitution     bool                  `gorm:"column:is_substitution;not null"`
	OriginalItemID     *uuid.UUID            `gorm:"column:original_item_id;type:uuid"`
	SubstitutionReason *string               `gorm:"column:substitution_reason"`
	IsBackordered      bool                  `gorm:"column:is_backordered;not null"`
	BatchNumber        *string               `gorm:"column:batch_number"`
	ExpiryDate         *time.Time            `gorm:"column:expiry_date"`
	LocationCode       *string               `gorm:"column:location_code"`
	Archived           bool                  `gorm:"column:archived;not null"`
	CreatedAt          time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (i OrderItem) IsFullyDelivered() bool {
	return i.Quantity > 0 && i.DeliveredQty >= i.Quantity
}

func (i OrderItem) IsPartiallyDelivered() bool {
	return i.DeliveredQty > 0 && i.DeliveredQty < i.Quantity
}

func (i OrderItem) UndeliveredQty() int {
	if i.DeliveredQty >= i.Quantity {
		return 0
	}
	return i.Quantity - i.DeliveredQty
}

// ReturnableQty is what was delivered and not already returned or written off.
func (i OrderItem) ReturnableQty() int {
	left := i.DeliveredQty - i.ReturnedQty - i.DamagedQty
	if left < 0 {
		return 0
	}
	return left
}

// Profit is the line subtotal minus its cost.
func (i OrderItem) Profit() decimal.Decimal {
	return i.Subtotal.Sub(i.CostPrice.Mul(decimal.NewFromInt(int64(i.Quantity))))
}

// MarginPercent is profit over subtotal, as a percentage rounded to 2 places.
func (i OrderItem) MarginPercent() decimal.Decimal {
	if i.Subtotal.IsZero() {
		return decimal.Zero
	}
	return i.Profit().Div(i.Subtotal).Mul(decimal.NewFromInt(100)).Round(2)
}
