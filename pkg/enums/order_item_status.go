package enums

import "slices"

// OrderItemStatus tracks fulfillment of a single order line.
type OrderItemStatus string

const (
	OrderItemStatusPending     OrderItemStatus = "pending"
	OrderItemStatusConfirmed   OrderItemStatus = "confirmed"
	OrderItemStatusPreparing   OrderItemStatus = "preparing"
	OrderItemStatusReady       OrderItemStatus = "ready"
	OrderItemStatusPicked      OrderItemStatus = "picked"
	OrderItemStatusPacked      OrderItemStatus = "packed"
	OrderItemStatusShipped     OrderItemStatus = "shipped"
	OrderItemStatusDelivered   OrderItemStatus = "delivered"
	OrderItemStatusCancelled   OrderItemStatus = "cancelled"
	OrderItemStatusRefunded    OrderItemStatus = "refunded"
	OrderItemStatusBackordered OrderItemStatus = "backordered"
	OrderItemStatusSubstituted OrderItemStatus = "substituted"
)

var validOrderItemStatuses = []OrderItemStatus{
	OrderItemStatusPending,
	OrderItemStatusConfirmed,
	OrderItemStatusPreparing,
	OrderItemStatusReady,
	OrderItemStatusPicked,
	OrderItemStatusPacked,
	OrderItemStatusShipped,
	OrderItemStatusDelivered,
	OrderItemStatusCancelled,
	OrderItemStatusRefunded,
	OrderItemStatusBackordered,
	OrderItemStatusSubstituted,
}

var orderItemTransitions = map[OrderItemStatus][]OrderItemStatus{
	OrderItemStatusPending:     {OrderItemStatusConfirmed, OrderItemStatusBackordered, OrderItemStatusSubstituted, OrderItemStatusCancelled},
	OrderItemStatusConfirmed:   {OrderItemStatusPreparing, OrderItemStatusBackordered, OrderItemStatusSubstituted, OrderItemStatusCancelled},
	OrderItemStatusBackordered: {OrderItemStatusConfirmed, OrderItemStatusSubstituted, OrderItemStatusCancelled},
	OrderItemStatusPreparing:   {OrderItemStatusReady, OrderItemStatusCancelled},
	OrderItemStatusReady:       {OrderItemStatusPicked, OrderItemStatusCancelled},
	OrderItemStatusPicked:      {OrderItemStatusPacked, OrderItemStatusCancelled},
	OrderItemStatusPacked:      {OrderItemStatusShipped, OrderItemStatusDelivered, OrderItemStatusCancelled},
	OrderItemStatusShipped:     {OrderItemStatusDelivered},
	OrderItemStatusDelivered:   {OrderItemStatusRefunded},
	OrderItemStatusCancelled:   {},
	OrderItemStatusRefunded:    {},
	OrderItemStatusSubstituted: {},
}

// String implements fmt.Stringer.
func (s OrderItemStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderItemStatus.
func (s OrderItemStatus) IsValid() bool {
	return slices.Contains(validOrderItemStatuses, s)
}

// CanTransitionTo reports whether next is an allowed successor of s.
func (s OrderItemStatus) CanTransitionTo(next OrderItemStatus) bool {
	return slices.Contains(orderItemTransitions[s], next)
}

// CanBeSubstituted reports whether the line may still be swapped for another product.
func (s OrderItemStatus) CanBeSubstituted() bool {
	return s.CanTransitionTo(OrderItemStatusSubstituted)
}

// IsActive reports whether the line still counts toward fulfillment.
func (s OrderItemStatus) IsActive() bool {
	switch s {
	case OrderItemStatusCancelled, OrderItemStatusSubstituted, OrderItemStatusRefunded:
		return false
	}
	return true
}

// HasLeftWarehouse reports whether the goods are with the carrier or the buyer.
func (s OrderItemStatus) HasLeftWarehouse() bool {
	switch s {
	case OrderItemStatusShipped, OrderItemStatusDelivered, OrderItemStatusRefunded:
		return true
	}
	return false
}

// IsSettled reports whether the line has reached an end state for delivery purposes.
func (s OrderItemStatus) IsSettled() bool {
	switch s {
	case OrderItemStatusDelivered, OrderItemStatusCancelled, OrderItemStatusSubstituted, OrderItemStatusRefunded:
		return true
	}
	return false
}

// ParseOrderItemStatus converts raw input into an OrderItemStatus.
func ParseOrderItemStatus(value string) (OrderItemStatus, error) {
	return parseEnum("order item status", value, validOrderItemStatuses)
}
