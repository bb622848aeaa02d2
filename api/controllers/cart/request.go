package cart

import (
	"github.com/google/uuid"
)

type createCartRequest struct {
	VendorID        uuid.UUID `json:"vendor_id" validate:"required"`
	FulfillmentType string    `json:"fulfillment_type" validate:"omitempty,oneof=pickup delivery"`
}

type addItemRequest struct {
	ProductID   uuid.UUID `json:"product_id" validate:"required"`
	WarehouseID uuid.UUID `json:"warehouse_id" validate:"required"`
	Quantity    int       `json:"quantity" validate:"min=1"`
	Notes       *string   `json:"notes" validate:"omitempty,max=500"`
}

type updateItemRequest struct {
	Quantity int     `json:"quantity" validate:"min=0"`
	Notes    *string `json:"notes" validate:"omitempty,max=500"`
}

type couponRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

type fulfillmentRequest struct {
	FulfillmentType string `json:"fulfillment_type" validate:"required,oneof=pickup delivery"`
}

type checkoutRequest struct {
	DeliveryAddress      *string           `json:"delivery_address" validate:"omitempty,max=500"`
	DeliveryDate         *string           `json:"delivery_date" validate:"omitempty,isodate"`
	DeliveryInstructions *string           `json:"delivery_instructions" validate:"omitempty,max=1000"`
	Notes                *string           `json:"notes" validate:"omitempty,max=1000"`
	IsUrgent             bool              `json:"is_urgent"`
	Metadata             map[string]string `json:"metadata"`
}

// checkoutResponse is the submitted order plus advisory stock warnings.
type checkoutResponse struct {
	Order    any      `json:"order"`
	Warnings []string `json:"warnings"`
	Replayed bool     `json:"replayed"`
}
