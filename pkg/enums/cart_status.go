package enums

import "slices"

// CartStatus tracks the lifecycle of a buyer cart.
type CartStatus string

const (
	CartStatusActive     CartStatus = "active"
	CartStatusAbandoned  CartStatus = "abandoned"
	CartStatusExpired    CartStatus = "expired"
	CartStatusCheckedOut CartStatus = "checked_out"
)

var validCartStatuses = []CartStatus{
	CartStatusActive,
	CartStatusAbandoned,
	CartStatusExpired,
	CartStatusCheckedOut,
}

// String implements fmt.Stringer.
func (c CartStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CartStatus.
func (c CartStatus) IsValid() bool {
	return slices.Contains(validCartStatuses, c)
}

// ParseCartStatus converts raw input into a CartStatus.
func ParseCartStatus(value string) (CartStatus, error) {
	return parseEnum("cart status", value, validCartStatuses)
}
