package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/freshlane/pkg/db/models"
	"github.com/angelmondragon/freshlane/pkg/enums"
)

type Order struct {
	ID                   uuid.UUID             `json:"id"`
	OrderNumber          string                `json:"order_number"`
	BuyerID              uuid.UUID             `json:"buyer_id"`
	VendorID             uuid.UUID             `json:"vendor_id"`
	CartID               *uuid.UUID            `json:"cart_id,omitempty"`
	ParentOrderID        *uuid.UUID            `json:"parent_order_id,omitempty"`
	Status               enums.OrderStatus     `json:"status"`
	PaymentStatus        enums.PaymentStatus   `json:"payment_status"`
	FulfillmentType      enums.FulfillmentType `json:"fulfillment_type"`
	Subtotal             string                `json:"subtotal"`
	TaxAmount            string                `json:"tax_amount"`
	DeliveryFee          string                `json:"delivery_fee"`
	DiscountAmount       string                `json:"discount_amount"`
	TotalAmount          string                `json:"total_amount"`
	PaidAmount           string                `json:"paid_amount"`
	IsUrgent             bool                  `json:"is_urgent"`
	DeliveryAddress      *string               `json:"delivery_address,omitempty"`
	DeliveryDate         *time.Time            `json:"delivery_date,omitempty"`
	DeliveryInstructions *string               `json:"delivery_instructions,omitempty"`
	PaymentDueDate       *time.Time            `json:"payment_due_date,omitempty"`
	Notes                *string               `json:"notes,omitempty"`
	SubmittedAt          *time.Time            `json:"submitted_at,omitempty"`
	ConfirmedAt          *time.Time            `json:"confirmed_at,omitempty"`
	PreparingAt          *time.Time            `json:"preparing_at,omitempty"`
	ReadyAt              *time.Time            `json:"ready_at,omitempty"`
	PickedUpAt           *time.Time            `json:"picked_up_at,omitempty"`
	DeliveredAt          *time.Time            `json:"delivered_at,omitempty"`
	CompletedAt          *time.Time            `json:"completed_at,omitempty"`
	CancelledAt          *time.Time            `json:"cancelled_at,omitempty"`
	RefundedAt           *time.Time            `json:"refunded_at,omitempty"`
	CancelledBy          *uuid.UUID            `json:"cancelled_by,omitempty"`
	CancellationReason   *string               `json:"cancellation_reason,omitempty"`
	Items                []OrderItem           `json:"items,omitempty"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

type OrderItem struct {
	ID                 uuid.UUID             `json:"id"`
	OrderID            uuid.UUID             `json:"order_id"`
	ProductID          uuid.UUID             `json:"product_id"`
	WarehouseID        uuid.UUID             `json:"warehouse_id"`
	SKU                string                `json:"sku"`
	Name               string                `json:"name"`
	Unit               string                `json:"unit"`
	Quantity           int                   `json:"quantity"`
	UnitPrice          string                `json:"unit_price"`
	DiscountAmount     string                `json:"discount_amount"`
	TaxAmount          string                `json:"tax_amount"`
	Subtotal           string                `json:"subtotal"`
	Total              string                `json:"total"`
	Status             enums.OrderItemStatus `json:"status"`
	ReservedQty        int                   `json:"reserved_qty"`
	PickedQty          int                   `json:"picked_qty"`
	PackedQty          int                   `json:"packed_qty"`
	DeliveredQty       int                   `json:"delivered_qty"`
	ReturnedQty        int                   `json:"returned_qty"`
	DamagedQty         int                   `json:"damaged_qty"`
	IsSubstitution     bool                  `json:"is_substitution"`
	OriginalItemID     *uuid.UUID            `json:"original_item_id,omitempty"`
	SubstitutionReason *string               `json:"substitution_reason,omitempty"`
	IsBackordered      bool                  `json:"is_backordered"`
	BatchNumber        *string               `json:"batch_number,omitempty"`
	ExpiryDate         *time.Time            `json:"expiry_date,omitempty"`
	LocationCode       *string               `json:"location_code,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

type StatusChange struct {
	ID             uuid.UUID         `json:"id"`
	OrderID        uuid.UUID         `json:"order_id"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	Status         enums.OrderStatus `json:"status"`
	ActorID        *uuid.UUID        `json:"actor_id,omitempty"`
	ActorRole      enums.ActorRole   `json:"actor_role"`
	Note           *string           `json:"note,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// OrderPage is one page of orders without their lines.
type OrderPage struct {
	Orders     []Order `json:"orders"`
	NextCursor string  `json:"next_cursor,omitempty"`
}

func NewOrder(o models.Order, items []models.OrderItem) Order {
	out := Order{
		ID:                   o.ID,
		OrderNumber:          o.OrderNumber,
		BuyerID:              o.BuyerID,
		VendorID:             o.VendorID,
		CartID:               o.CartID,
		ParentOrderID:        o.ParentOrderID,
		Status:               o.Status,
		PaymentStatus:        o.PaymentStatus,
		FulfillmentType:      o.FulfillmentType,
		Subtotal:             Money(o.Subtotal),
		TaxAmount:            Money(o.TaxAmount),
		DeliveryFee:          Money(o.DeliveryFee),
		DiscountAmount:       Money(o.DiscountAmount),
		TotalAmount:          Money(o.TotalAmount),
		PaidAmount:           Money(o.PaidAmount),
		IsUrgent:             o.IsUrgent,
		DeliveryAddress:      o.DeliveryAddress,
		DeliveryDate:         o.DeliveryDate,
		DeliveryInstructions: o.DeliveryInstructions,
		PaymentDueDate:       o.PaymentDueDate,
		Notes:                o.Notes,
		SubmittedAt:          o.SubmittedAt,
		ConfirmedAt:          o.ConfirmedAt,
		PreparingAt:          o.PreparingAt,
		ReadyAt:              o.ReadyAt,
		PickedUpAt:           o.PickedUpAt,
		DeliveredAt:          o.DeliveredAt,
		CompletedAt:          o.CompletedAt,
		CancelledAt:          o.CancelledAt,
		RefundedAt:           o.RefundedAt,
		CancelledBy:          o.CancelledBy,
		CancellationReason:   o.CancellationReason,
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
	}
	if len(items) > 0 {
		out.Items = NewOrderItems(items)
	}
	return out
}

func NewOrderItem(item models.OrderItem) OrderItem {
	return OrderItem{
		ID:                 item.ID,
		OrderID:            item.OrderID,
		ProductID:          item.ProductID,
		WarehouseID:        item.WarehouseID,
		SKU:                item.SKU,
		Name:               item.Name,
		Unit:               item.Unit,
		Quantity:           item.Quantity,
		UnitPrice:          Money(item.UnitPrice),
		DiscountAmount:     Money(item.DiscountAmount),
		TaxAmount:          Money(item.TaxAmount),
		Subtotal:           Money(item.Subtotal),
		Total:              Money(item.Total),
		Status:             item.Status,
		ReservedQty:        item.ReservedQty,
		PickedQty:          item.PickedQty,
		PackedQty:          item.PackedQty,
		DeliveredQty:       item.DeliveredQty,
		ReturnedQty:        item.ReturnedQty,
		DamagedQty:         item.DamagedQty,
		IsSubstitution:     item.IsSubstitution,
		OriginalItemID:     item.OriginalItemID,
		SubstitutionReason: item.SubstitutionReason,
		IsBackordered:      item.IsBackordered,
		BatchNumber:        item.BatchNumber,
		ExpiryDate:         item.ExpiryDate,
		LocationCode:       item.LocationCode,
		CreatedAt:          item.CreatedAt,
		UpdatedAt:          item.UpdatedAt,
	}
}

func NewOrderItems(items []models.OrderItem) []OrderItem {
	out := make([]OrderItem, 0, len(items))
	for _, item := range items {
		out = append(out, NewOrderItem(item))
	}
	return out
}

func NewStatusChange(h models.OrderStatusHistory) StatusChange {
	return StatusChange{
		ID:             h.ID,
		OrderID:        h.OrderID,
		PreviousStatus: h.PreviousStatus,
		Status:         h.Status,
		ActorID:        h.ActorID,
		ActorRole:      h.ActorRole,
		Note:           h.Note,
		Metadata:       h.Metadata,
		CreatedAt:      h.CreatedAt,
	}
}
