package pricing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/freshlane/pkg/db/models"
	"github.com/angelmondragon/freshlane/pkg/enums"
)

// Line is a priced cart line as seen by cart-level totals.
type Line struct {
	ProductID uuid.UUID
	Category  string
	Price     ItemPrice
}

// AppliedCoupon is one coupon that contributed a discount.
type AppliedCoupon struct {
	Code   string
	Amount decimal.Decimal
}

// RejectedCoupon is one coupon that was offered but did not apply.
type RejectedCoupon struct {
	Code   string
	Reason string
}

// CartTotals is the cart-level breakdown.
type CartTotals struct {
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	Shipping       decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
	TotalWeightKg  decimal.Decimal
	ItemsCount     int
	Applied        []AppliedCoupon
	Rejected       []RejectedCoupon
}

// CalculateCartTotals sums the priced lines and applies shipping and coupons.
func (e *Engine) CalculateCartTotals(lines []Line, fulfillment enums.FulfillmentType, coupons []models.Coupon, now time.Time) CartTotals {
	totals := CartTotals{
		Subtotal:      decimal.Zero,
		TaxAmount:     decimal.Zero,
		TotalWeightKg: decimal.Zero,
	}
	for _, line := range lines {
		totals.Subtotal = totals.Subtotal.Add(line.Price.Subtotal)
		totals.TaxAmount = totals.TaxAmount.Add(line.Price.TaxAmount)
		totals.TotalWeightKg = totals.TotalWeightKg.Add(line.Price.WeightKg)
		totals.ItemsCount += line.Price.Quantity
	}

	totals.Shipping = e.Shipping(totals.Subtotal, totals.TotalWeightKg, fulfillment)

	discount := decimal.Zero
	seen := map[string]bool{}
	for _, coupon := range coupons {
		code := strings.ToUpper(strings.TrimSpace(coupon.Code))
		if seen[code] {
			totals.Rejected = append(totals.Rejected, RejectedCoupon{Code: coupon.Code, Reason: "duplicate"})
			continue
		}
		seen[code] = true

		if reason := couponIneligible(coupon, totals.Subtotal, now); reason != "" {
			totals.Rejected = append(totals.Rejected, RejectedCoupon{Code: coupon.Code, Reason: reason})
			continue
		}
		amount := couponDiscount(coupon, scopeSubtotal(coupon, lines))
		if amount.IsZero() {
			totals.Rejected = append(totals.Rejected, RejectedCoupon{Code: coupon.Code, Reason: "no matching items"})
			continue
		}
		totals.Applied = append(totals.Applied, AppliedCoupon{Code: coupon.Code, Amount: amount})
		discount = discount.Add(amount)
	}
	totals.DiscountAmount = discount

	total := totals.Subtotal.Add(totals.TaxAmount).Add(totals.Shipping).Sub(totals.DiscountAmount)
	totals.Total = decimal.Max(decimal.Zero, total)
	return totals
}

// Shipping is free for pickup or at the threshold, otherwise charged per kg up to the cap.
func (e *Engine) Shipping(subtotal, weightKg decimal.Decimal, fulfillment enums.FulfillmentType) decimal.Decimal {
	if fulfillment == enums.FulfillmentTypePickup {
		return decimal.Zero
	}
	if subtotal.GreaterThanOrEqual(e.rules.FreeShippingThreshold) {
		return decimal.Zero
	}
	charge := weightKg.Mul(e.rules.PerKgRate).Round(2)
	return decimal.Min(charge, e.rules.ShippingCap)
}

func couponIneligible(coupon models.Coupon, cartSubtotal decimal.Decimal, now time.Time) string {
	switch {
	case !coupon.IsActive:
		return "inactive"
	case coupon.ValidFrom != nil && now.Before(*coupon.ValidFrom):
		return "not yet valid"
	case coupon.ValidUntil != nil && now.After(*coupon.ValidUntil):
		return "expired"
	case cartSubtotal.LessThan(coupon.MinSpend):
		return "minimum spend not met"
	case !coupon.Kind.IsValid():
		return "unknown kind"
	}
	return ""
}

// scopeSubtotal is the pre-discount subtotal of the lines the coupon targets.
func scopeSubtotal(coupon models.Coupon, lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		if coupon.ProductID != nil && line.ProductID != *coupon.ProductID {
			continue
		}
		if coupon.Category != nil && !strings.EqualFold(line.Category, *coupon.Category) {
			continue
		}
		sum = sum.Add(line.Price.Subtotal)
	}
	return sum
}

func couponDiscount(coupon models.Coupon, base decimal.Decimal) decimal.Decimal {
	if !base.IsPositive() || !coupon.Value.IsPositive() {
		return decimal.Zero
	}
	switch coupon.Kind {
	case enums.CouponKindPercent:
		pct := decimal.Min(coupon.Value, hundred)
		return base.Mul(pct).Div(hundred).Round(2)
	case enums.CouponKindFixed:
		return decimal.Min(coupon.Value, base)
	}
	return decimal.Zero
}
