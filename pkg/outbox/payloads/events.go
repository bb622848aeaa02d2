package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/freshlane/pkg/enums"
)

// OrderPlacedEvent signals a checkout produced a submitted order.
type OrderPlacedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	BuyerID     uuid.UUID       `json:"buyer_id"`
	VendorID    uuid.UUID       `json:"vendor_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
}

// OrderStatusChangedEvent is emitted after every committed order transition.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	OrderNumber    string            `json:"order_number"`
	BuyerID        uuid.UUID         `json:"buyer_id"`
	VendorID       uuid.UUID         `json:"vendor_id"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	Status         enums.OrderStatus `json:"status"`
	Note           string            `json:"note,omitempty"`
	ChangedAt      time.Time         `json:"changed_at"`
}

// OrderItemSubstitutedEvent tells the buyer a line was swapped for another product.
type OrderItemSubstitutedEvent struct {
	OrderID          uuid.UUID `json:"order_id"`
	OriginalItemID   uuid.UUID `json:"original_item_id"`
	SubstituteItemID uuid.UUID `json:"substitute_item_id"`
	OriginalSKU      string    `json:"original_sku"`
	SubstituteSKU    string    `json:"substitute_sku"`
	Reason           string    `json:"reason"`
}

// OrderItemBackorderedEvent is emitted when a line could not be reserved.
type OrderItemBackorderedEvent struct {
	OrderID  uuid.UUID `json:"order_id"`
	ItemID   uuid.UUID `json:"item_id"`
	SKU      string    `json:"sku"`
	Quantity int       `json:"quantity"`
}

// InvoiceGeneratedEvent covers both order invoices and recurring children.
type InvoiceGeneratedEvent struct {
	InvoiceID       uuid.UUID       `json:"invoice_id"`
	InvoiceNumber   string          `json:"invoice_number"`
	BuyerID         uuid.UUID       `json:"buyer_id"`
	VendorID        uuid.UUID       `json:"vendor_id"`
	OrderID         *uuid.UUID      `json:"order_id,omitempty"`
	ParentInvoiceID *uuid.UUID      `json:"parent_invoice_id,omitempty"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	DueDate         time.Time       `json:"due_date"`
}

// InvoicePaymentRecordedEvent is emitted once per accepted payment.
type InvoicePaymentRecordedEvent struct {
	InvoiceID      uuid.UUID           `json:"invoice_id"`
	InvoiceNumber  string              `json:"invoice_number"`
	PaymentID      uuid.UUID           `json:"payment_id"`
	TransactionRef string              `json:"transaction_ref"`
	Amount         decimal.Decimal     `json:"amount"`
	BalanceDue     decimal.Decimal     `json:"balance_due"`
	Status         enums.InvoiceStatus `json:"status"`
}

// InvoiceOverdueEvent is emitted when the overdue sweep flips an invoice.
type InvoiceOverdueEvent struct {
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	BuyerID       uuid.UUID       `json:"buyer_id"`
	BalanceDue    decimal.Decimal `json:"balance_due"`
	DueDate       time.Time       `json:"due_date"`
}

// InventoryLowStockEvent asks the warehouse team to reorder.
type InventoryLowStockEvent struct {
	ProductID       uuid.UUID `json:"product_id"`
	WarehouseID     uuid.UUID `json:"warehouse_id"`
	Available       int       `json:"available"`
	ReorderPoint    int       `json:"reorder_point"`
	ReorderQuantity int       `json:"reorder_quantity"`
}
