package inventory

import "github.com/google/uuid"

type adjustRequest struct {
	ProductID   uuid.UUID `json:"product_id" validate:"required"`
	WarehouseID uuid.UUID `json:"warehouse_id" validate:"required"`
	Delta       int       `json:"delta" validate:"ne=0"`
	Reason      string    `json:"reason" validate:"required,max=255"`
}
