package enums

import "slices"

// CouponKind selects how a coupon computes its discount.
type CouponKind string

const (
	CouponKindPercent CouponKind = "percent"
	CouponKindFixed   CouponKind = "fixed"
)

var validCouponKinds = []CouponKind{
	CouponKindPercent,
	CouponKindFixed,
}

// String implements fmt.Stringer.
func (c CouponKind) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CouponKind.
func (c CouponKind) IsValid() bool {
	return slices.Contains(validCouponKinds, c)
}

// ParseCouponKind converts raw input into a CouponKind.
func ParseCouponKind(value string) (CouponKind, error) {
	return parseEnum("coupon kind", value, validCouponKinds)
}
