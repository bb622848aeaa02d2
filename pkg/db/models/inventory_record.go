package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryRecord holds stock counters for one product in one warehouse.
// QuantityAvailable always equals QuantityOnHand - QuantityReserved.
type InventoryRecord struct {
	ID                uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID         uuid.UUID  `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_inventory_product_warehouse"`
	WarehouseID       uuid.UUID  `gorm:"column:warehouse_id;type:uuid;not null;uniqueIndex:ux_inventory_product_warehouse"`
	QuantityOnHand    int        `gorm:"column:quantity_on_hand;not null"`
	QuantityReserved  int        `gorm:"column:quantity_reserved;not null"`
	QuantityAvailable int        `gorm:"column:quantity_available;not null"`
	ReorderPoint      int        `gorm:"column:reorder_point;not null"`
	ReorderQuantity   int        `gorm:"column:reorder_quantity;not null"`
	Location          *string    `gorm:"column:location"`
	BinNumber         *string    `gorm:"column:bin_number"`
	LastRestockedAt   *time.Time `gorm:"column:last_restocked_at"`
	LastCountedAt     *time.Time `gorm:"column:last_counted_at"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (r InventoryRecord) NeedsReorder() bool {
	return r.QuantityAvailable <= r.ReorderPoint
}

func (r InventoryRecord) IsOutOfStock() bool {
	return r.QuantityAvailable <= 0
}

// Consistent reports whether the counters satisfy the ledger invariant.
func (r InventoryRecord) Consistent() bool {
	return r.QuantityReserved >= 0 &&
		r.QuantityOnHand >= r.QuantityReserved &&
		r.QuantityAvailable == r.QuantityOnHand-r.QuantityReserved
}
