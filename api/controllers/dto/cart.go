package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/freshlane/internal/cart"
	"github.com/angelmondragon/freshlane/pkg/db/models"
	"github.com/angelmondragon/freshlane/pkg/enums"
)

type Cart struct {
	ID              uuid.UUID             `json:"id"`
	BuyerID         uuid.UUID             `json:"buyer_id"`
	VendorID        uuid.UUID             `json:"vendor_id"`
	Status          enums.CartStatus      `json:"status"`
	FulfillmentType enums.FulfillmentType `json:"fulfillment_type"`
	Subtotal        string                `json:"subtotal"`
	TaxAmount       string                `json:"tax_amount"`
	ShippingAmount  string                `json:"shipping_amount"`
	DiscountAmount  string                `json:"discount_amount"`
	TotalAmount     string                `json:"total_amount"`
	TotalWeightKg   string                `json:"total_weight_kg"`
	ItemsCount      int                   `json:"items_count"`
	CouponCodes     []string              `json:"coupon_codes"`
	AppliedCoupons  []AppliedCoupon       `json:"applied_coupons,omitempty"`
	RejectedCoupons []RejectedCoupon      `json:"rejected_coupons,omitempty"`
	Items           []CartItem            `json:"items"`
	LastActivityAt  time.Time             `json:"last_activity_at"`
	ExpiresAt       *time.Time            `json:"expires_at,omitempty"`
	CheckedOutAt    *time.Time            `json:"checked_out_at,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

type CartItem struct {
	ID              uuid.UUID `json:"id"`
	ProductID       uuid.UUID `json:"product_id"`
	WarehouseID     uuid.UUID `json:"warehouse_id"`
	Quantity        int       `json:"quantity"`
	OriginalPrice   string    `json:"original_price"`
	UnitPrice       string    `json:"unit_price"`
	DiscountPercent string    `json:"discount_percent"`
	TierName        *string   `json:"tier_name,omitempty"`
	TaxRate         string    `json:"tax_rate"`
	Subtotal        string    `json:"subtotal"`
	TaxAmount       string    `json:"tax_amount"`
	Total           string    `json:"total"`
	Notes           *string   `json:"notes,omitempty"`
}

type AppliedCoupon struct {
	Code   string `json:"code"`
	Amount string `json:"amount"`
}

type RejectedCoupon struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

func NewCart(detail *cart.Detail) Cart {
	c := detail.Cart
	items := make([]CartItem, 0, len(detail.Items))
	for _, item := range detail.Items {
		items = append(items, newCartItem(item))
	}
	applied := make([]AppliedCoupon, 0, len(detail.Applied))
	for _, coupon := range detail.Applied {
		applied = append(applied, AppliedCoupon{Code: coupon.Code, Amount: Money(coupon.Amount)})
	}
	rejected := make([]RejectedCoupon, 0, len(detail.Rejected))
	for _, coupon := range detail.Rejected {
		rejected = append(rejected, RejectedCoupon{Code: coupon.Code, Reason: coupon.Reason})
	}
	codes := []string(c.CouponCodes)
	if codes == nil {
		codes = []string{}
	}
	return Cart{
		ID:              c.ID,
		BuyerID:         c.BuyerID,
		VendorID:        c.VendorID,
		Status:          c.Status,
		FulfillmentType: c.FulfillmentType,
		Subtotal:        Money(c.Subtotal),
		TaxAmount:       Money(c.TaxAmount),
		ShippingAmount:  Money(c.ShippingAmount),
		DiscountAmount:  Money(c.DiscountAmount),
		TotalAmount:     Money(c.TotalAmount),
		TotalWeightKg:   c.TotalWeightKg.StringFixed(3),
		ItemsCount:      c.ItemsCount,
		CouponCodes:     codes,
		AppliedCoupons:  applied,
		RejectedCoupons: rejected,
		Items:           items,
		LastActivityAt:  c.LastActivityAt,
		ExpiresAt:       c.ExpiresAt,
		CheckedOutAt:    c.CheckedOutAt,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func newCartItem(item models.CartItem) CartItem {
	return CartItem{
		ID:              item.ID,
		ProductID:       item.ProductID,
		WarehouseID:     item.WarehouseID,
		Quantity:        item.Quantity,
		OriginalPrice:   Money(item.OriginalPrice),
		UnitPrice:       Money(item.UnitPrice),
		DiscountPercent: Percent(item.DiscountPercent),
		TierName:        item.TierName,
		TaxRate:         Percent(item.TaxRate),
		Subtotal:        Money(item.Subtotal),
		TaxAmount:       Money(item.TaxAmount),
		Total:           Money(item.Total),
		Notes:           item.Notes,
	}
}
