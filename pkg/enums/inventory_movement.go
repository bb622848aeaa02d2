package enums

import "slices"

// InventoryMovementKind labels a row in the inventory movement log.
type InventoryMovementKind string

const (
	InventoryMovementReserve InventoryMovementKind = "reserve"
	InventoryMovementRelease InventoryMovementKind = "release"
	InventoryMovementAdjust  InventoryMovementKind = "adjust"
	InventoryMovementConsume InventoryMovementKind = "consume"
)

var validInventoryMovementKinds = []InventoryMovementKind{
	InventoryMovementReserve,
	InventoryMovementRelease,
	InventoryMovementAdjust,
	InventoryMovementConsume,
}

// String implements fmt.Stringer.
func (i InventoryMovementKind) String() string {
	return string(i)
}

// IsValid reports whether the value is a known InventoryMovementKind.
func (i InventoryMovementKind) IsValid() bool {
	return slices.Contains(validInventoryMovementKinds, i)
}

// ParseInventoryMovementKind converts raw input into a InventoryMovementKind.
func ParseInventoryMovementKind(value string) (InventoryMovementKind, error) {
	return parseEnum("inventory movement kind", value, validInventoryMovementKinds)
}
