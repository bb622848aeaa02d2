package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/freshlane/pkg/db/models"
)

type InventoryRecord struct {
	ProductID         uuid.UUID  `json:"product_id"`
	WarehouseID       uuid.UUID  `json:"warehouse_id"`
	QuantityOnHand    int        `json:"quantity_on_hand"`
	QuantityReserved  int        `json:"quantity_reserved"`
	QuantityAvailable int        `json:"quantity_available"`
	ReorderPoint      int        `json:"reorder_point"`
	ReorderQuantity   int        `json:"reorder_quantity"`
	Location          *string    `json:"location,omitempty"`
	BinNumber         *string    `json:"bin_number,omitempty"`
	LastRestockedAt   *time.Time `json:"last_restocked_at,omitempty"`
	LastCountedAt     *time.Time `json:"last_counted_at,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func NewInventoryRecord(rec models.InventoryRecord) InventoryRecord {
	return InventoryRecord{
		ProductID:         rec.ProductID,
		WarehouseID:       rec.WarehouseID,
		QuantityOnHand:    rec.QuantityOnHand,
		QuantityReserved:  rec.QuantityReserved,
		QuantityAvailable: rec.QuantityAvailable,
		ReorderPoint:      rec.ReorderPoint,
		ReorderQuantity:   rec.ReorderQuantity,
		Location:          rec.Location,
		BinNumber:         rec.BinNumber,
		LastRestockedAt:   rec.LastRestockedAt,
		LastCountedAt:     rec.LastCountedAt,
		UpdatedAt:         rec.UpdatedAt,
	}
}
