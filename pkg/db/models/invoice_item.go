package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceItem is one billed line, ordered by SortOrder.
type InvoiceItem struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceID      uuid.UUID       `gorm:"column:invoice_id;type:uuid;not null;index"`
	ProductID      *uuid.UUID      `gorm:"column:product_id;type:uuid"`
	Description    string          `gorm:"column:description;not null"`
	Quantity       int             `gorm:"column:quantity;not null"`
	Unit           string          `gorm:"column:unit;not null"`
	UnitPrice      decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	DiscountAmount decimal.Decimal `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	TaxAmount      decimal.Decimal `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	LineTotal      decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	SortOrder      int             `gorm:"column:sort_order;not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}
