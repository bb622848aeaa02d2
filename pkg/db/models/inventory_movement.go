package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/freshlane/pkg/enums"
)

// InventoryMovement records an immutable ledger mutation.
type InventoryMovement struct {
	ID          uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID   uuid.UUID                   `gorm:"column:product_id;type:uuid;not null"`
	WarehouseID uuid.UUID                   `gorm:"column:warehouse_id;type:uuid;not null"`
	Kind        enums.InventoryMovementKind `gorm:"column:kind;type:text;not null"`
	Quantity    int                         `gorm:"column:quantity;not null"`
	Reason      string                      `gorm:"column:reason;not null"`
	OrderID     *uuid.UUID                  `gorm:"column:order_id;type:uuid"`
	CreatedAt   time.Time                   `gorm:"column:created_at;autoCreateTime"`
}
