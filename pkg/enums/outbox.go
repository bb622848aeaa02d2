package enums

import "slices"

// OutboxAggregateType names the entity an outbox event is about.
type OutboxAggregateType string

const (
	AggregateOrder     OutboxAggregateType = "order"
	AggregateOrderItem OutboxAggregateType = "order_item"
	AggregateInvoice   OutboxAggregateType = "invoice"
	AggregateInventory OutboxAggregateType = "inventory"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateOrderItem,
	AggregateInvoice,
	AggregateInventory,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parseEnum("aggregate type", value, validAggregateTypes)
}

// OutboxEventType doubles as the notification event name published downstream.
type OutboxEventType string

const (
	EventOrderPlaced          OutboxEventType = "order.placed"
	EventOrderStatusChanged   OutboxEventType = "order.status_changed"
	EventOrderItemSubstituted OutboxEventType = "order.item_substituted"
	EventOrderItemBackordered OutboxEventType = "order.item_backordered"
	EventInvoiceGenerated     OutboxEventType = "invoice.generated"
	EventInvoicePaymentPosted OutboxEventType = "invoice.payment_recorded"
	EventInvoiceOverdue       OutboxEventType = "invoice.overdue"
	EventInventoryLowStock    OutboxEventType = "inventory.low_stock"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderPlaced,
	EventOrderStatusChanged,
	EventOrderItemSubstituted,
	EventOrderItemBackordered,
	EventInvoiceGenerated,
	EventInvoicePaymentPosted,
	EventInvoiceOverdue,
	EventInventoryLowStock,
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validOutboxEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parseEnum("event type", value, validOutboxEventTypes)
}
