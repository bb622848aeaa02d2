package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/freshlane/pkg/enums"
)

// Coupon is a discount a buyer can attach to a cart.
type Coupon struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code       string           `gorm:"column:code;not null;uniqueIndex"`
	Kind       enums.CouponKind `gorm:"column:kind;type:text;not null"`
	Value      decimal.Decimal  `gorm:"column:value;type:numeric(12,2);not null"`
	MinSpend   decimal.Decimal  `gorm:"column:min_spend;type:numeric(12,2);not null"`
	ValidFrom  *time.Time       `gorm:"column:valid_from"`
	ValidUntil *time.Time       `gorm:"column:valid_until"`
	ProductID  *uuid.UUID       `gorm:"column:product_id;type:uuid"`
	Category   *string          `gorm:"column:category"`
	IsActive   bool             `gorm:"column:is_active;not null"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
}
