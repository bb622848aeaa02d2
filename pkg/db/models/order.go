package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/freshlane/pkg/enums"
)

// Order is one purchase from one buyer to one vendor. Financial record: archived, never deleted.
type Order struct {
	ID                   uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber          string                `gorm:"column:order_number;not null;uniqueIndex"`
	BuyerID              uuid.UUID             `gorm:"column:buyer_id;type:uuid;not null"`
	VendorID             uuid.UUID             `gorm:"column:vendor_id;type:uuid;not null"`
	SupplierID           *uuid.UUID            `gorm:"column:supplier_id;type:uuid"`
	CartID               *uuid.UUID            `gorm:"column:cart_id;type:uuid"`
	ParentOrderID        *uuid.UUID            `gorm:"column:parent_order_id;type:uuid"`
	Status               enums.OrderStatus     `gorm:"column:status;type:text;not null"`
	PaymentStatus        enums.PaymentStatus   `gorm:"column:payment_status;type:text;not null"`
	FulfillmentType      enums.FulfillmentType `gorm:"column:fulfillment_type;type:text;not null"`
	Subtotal             decimal.Decimal       `gorm:"column:subtotal;type:numeric(12,2);not null"`
	TaxAmount            decimal.Decimal       `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	DeliveryFee          decimal.Decimal       `gorm:"column:delivery_fee;type:numeric(12,2);not null"`
	DiscountAmount       decimal.Decimal       `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	TotalAmount          decimal.Decimal       `gorm:"column:total_amount;type:numeric(12,2);not null"`
	PaidAmount           decimal.Decimal       `gorm:"column:paid_amount;type:numeric(12,2);not null"`
	IsUrgent             bool                  `gorm:"column:is_urgent;not null"`
	DeliveryAddress      *string               `gorm:"column:delivery_address"`
	DeliveryDate         *time.Time            `gorm:"column:delivery_date"`
	DeliveryInstructions *string               `gorm:"column:delivery_instructions"`
	PaymentDueDate       *time.Time            `gorm:"column:payment_due_date"`
	Notes                *string               `gorm:"column:notes"`
	SubmittedAt          *time.Time            `gorm:"column:submitted_at"`
	ConfirmedAt          *time.Time            `gorm:"column:confirmed_at"`
	PreparingAt          *time.Time            `gorm:"column:preparing_at"`
	ReadyAt              *time.Time            `gorm:"column:ready_at"`
	PickedUpAt           *time.Time            `gorm:"column:picked_up_at"`
	DeliveredAt          *time.Time            `gorm:"column:delivered_at"`
	CompletedAt          *time.Time            `gorm:"column:completed_at"`
	CancelledAt          *time.Time            `gorm:"column:cancelled_at"`
	RefundedAt           *time.Time            `gorm:"column:refunded_at"`
	CancelledBy          *uuid.UUID            `gorm:"column:cancelled_by;type:uuid"`
	CancellationReason   *string               `gorm:"column:cancellation_reason"`
	Archived             bool                  `gorm:"column:archived;not null"`
	CreatedAt            time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// OutstandingAmount is the unpaid remainder, never negative.
func (o Order) OutstandingAmount() decimal.Decimal {
	return decimal.Max(decimal.Zero, o.TotalAmount.Sub(o.PaidAmount))
}

// IsPaymentOverdue reports whether the payment due date has passed while money is still owed.
func (o Order) IsPaymentOverdue(now time.Time) bool {
	if o.PaymentDueDate == nil || !now.After(*o.PaymentDueDate) {
		return false
	}
	return o.PaymentStatus == enums.PaymentStatusPending || o.PaymentStatus == enums.PaymentStatusPartiallyPaid
}

// StatusTime returns the lifecycle timestamp recorded when the order entered status.
func (o Order) StatusTime(status enums.OrderStatus) *time.Time {
	if slot := o.statusSlot(status); slot != nil {
		return *slot
	}
	return nil
}

// StampStatus records at for status unless it was already recorded.
func (o *Order) StampStatus(status enums.OrderStatus, at time.Time) {
	slot := o.statusSlot(status)
	if slot == nil || *slot != nil {
		return
	}
	t := at
	*slot = &t
}

// OrderStatusColumn names the timestamp column stamped on entering status.
func OrderStatusColumn(status enums.OrderStatus) string {
	switch status {
	case enums.OrderStatusSubmitted:
		return "submitted_at"
	case enums.OrderStatusConfirmed:
		return "confirmed_at"
	case enums.OrderStatusPreparing:
		return "preparing_at"
	case enums.OrderStatusReadyForPickup:
		return "ready_at"
	case enums.OrderStatusInTransit:
		return "picked_up_at"
	case enums.OrderStatusDelivered:
		return "delivered_at"
	case enums.OrderStatusCompleted:
		return "completed_at"
	case enums.OrderStatusCancelled:
		return "cancelled_at"
	case enums.OrderStatusRefunded:
		return "refunded_at"
	}
	return ""
}

func (o *Order) statusSlot(status enums.OrderStatus) **time.Time {
	switch status {
	case enums.OrderStatusSubmitted:
		return &o.SubmittedAt
	case enums.OrderStatusConfirmed:
		return &o.ConfirmedAt
	case enums.OrderStatusPreparing:
		return &o.PreparingAt
	case enums.OrderStatusReadyForPickup:
		return &o.ReadyAt
	case enums.OrderStatusInTransit:
		return &o.PickedUpAt
	case enums.OrderStatusDelivered:
		return &o.DeliveredAt
	case enums.OrderStatusCompleted:
		return &o.CompletedAt
	case enums.OrderStatusCancelled:
		return &o.CancelledAt
	case enums.OrderStatusRefunded:
		return &o.RefundedAt
	}
	return nil
}
