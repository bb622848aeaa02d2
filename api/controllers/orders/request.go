package orders

import "github.com/google/uuid"

type transitionRequest struct {
	Status   string            `json:"status" validate:"required"`
	Note     string            `json:"note" validate:"max=1000"`
	Metadata map[string]string `json:"metadata"`
}

type substitutionRequest struct {
	ProductID   uuid.UUID  `json:"product_id" validate:"required"`
	WarehouseID *uuid.UUID `json:"warehouse_id"`
	Reason      string     `json:"reason" validate:"required,max=500"`
}

// quantityRequest carries an optional partial quantity; omitted means the
// whole line.
type quantityRequest struct {
	Quantity *int `json:"quantity" validate:"omitempty,min=0"`
}

type returnRequest struct {
	Returned int `json:"returned" validate:"min=0"`
	Damaged  int `json:"damaged" validate:"min=0"`
}
