package enums

import "slices"

// OrderStatus tracks the lifecycle of a wholesale order.
type OrderStatus string

const (
	OrderStatusDraft          OrderStatus = "draft"
	OrderStatusSubmitted      OrderStatus = "submitted"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusReadyForPickup OrderStatus = "ready_for_pickup"
	OrderStatusInTransit      OrderStatus = "in_transit"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCompleted      OrderStatus = "completed"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusRefunded       OrderStatus = "refunded"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusDraft,
	OrderStatusSubmitted,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusReadyForPickup,
	OrderStatusInTransit,
	OrderStatusDelivered,
	OrderStatusCompleted,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

// orderTransitions is the full adjacency table; a status missing from a
// successor list can never be reached from that status.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusDraft:          {OrderStatusSubmitted, OrderStatusCancelled},
	OrderStatusSubmitted:      {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:      {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing:      {OrderStatusReadyForPickup, OrderStatusCancelled},
	OrderStatusReadyForPickup: {OrderStatusInTransit, OrderStatusCancelled},
	OrderStatusInTransit:      {OrderStatusDelivered},
	OrderStatusDelivered:      {OrderStatusCompleted, OrderStatusRefunded},
	OrderStatusCompleted:      {OrderStatusRefunded},
	OrderStatusCancelled:      {},
	OrderStatusRefunded:       {},
}

// orderProgression is the non-cancelled path in order.
var orderProgression = []OrderStatus{
	OrderStatusDraft,
	OrderStatusSubmitted,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusReadyForPickup,
	OrderStatusInTransit,
	OrderStatusDelivered,
	OrderStatusCompleted,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	return slices.Contains(validOrderStatuses, s)
}

// Successors returns the statuses reachable in one step.
func (s OrderStatus) Successors() []OrderStatus {
	next := orderTransitions[s]
	out := make([]OrderStatus, len(next))
	copy(out, next)
	return out
}

// CanTransitionTo reports whether next is an allowed successor of s.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return slices.Contains(orderTransitions[s], next)
}

// IsTerminal reports whether no further fulfillment happens for the order.
// Completed orders can still be refunded.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// IsCancellable reports whether a plain cancel is still possible.
func (s OrderStatus) IsCancellable() bool {
	return s.CanTransitionTo(OrderStatusCancelled)
}

// Rank returns the position on the non-cancelled path, or -1 for side states.
func (s OrderStatus) Rank() int {
	return slices.Index(orderProgression, s)
}

// OrderProgression returns the non-cancelled path from draft to completed.
func OrderProgression() []OrderStatus {
	return slices.Clone(orderProgression)
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	return parseEnum("order status", value, validOrderStatuses)
}
