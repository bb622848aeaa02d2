package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/freshlane/pkg/enums"
)

// Cart is a buyer's working set of lines with live-computed pricing.
type Cart struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID         uuid.UUID             `gorm:"column:buyer_id;type:uuid;not null;index"`
	VendorID        uuid.UUID             `gorm:"column:vendor_id;type:uuid;not null"`
	Status          enums.CartStatus      `gorm:"column:status;type:text;not null"`
	FulfillmentType enums.FulfillmentType `gorm:"column:fulfillment_type;type:text;not null"`
	Subtotal        decimal.Decimal       `gorm:"column:subtotal;type:numeric(12,2);not null"`
	TaxAmount       decimal.Decimal       `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	ShippingAmount  decimal.Decimal       `gorm:"column:shipping_amount;type:numeric(12,2);not null"`
	DiscountAmount  decimal.Decimal       `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	TotalAmount     decimal.Decimal       `gorm:"column:total_amount;type:numeric(12,2);not null"`
	TotalWeightKg   decimal.Decimal       `gorm:"column:total_weight_kg;type:numeric(12,3);not null"`
	ItemsCount      int                   `gorm:"column:items_count;not null"`
	CouponCodes     pq.StringArray        `gorm:"column:coupon_codes;type:text[]"`
	LastActivityAt  time.Time             `gorm:"column:last_activity_at;not null"`
	AbandonedAt     *time.Time            `gorm:"column:abandoned_at"`
	CheckedOutAt    *time.Time            `gorm:"column:checked_out_at"`
	ExpiresAt       *time.Time            `gorm:"column:expires_at"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (c Cart) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}
