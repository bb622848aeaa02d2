package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/freshlane/pkg/enums"
)

// Invoice is the amount a buyer owes a vendor, optionally derived from an order.
// BalanceDue is kept equal to max(0, TotalAmount - PaidAmount).
type Invoice struct {
	ID                 uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceNumber      string                    `gorm:"column:invoice_number;not null;uniqueIndex"`
	BuyerID            uuid.UUID                 `gorm:"column:buyer_id;type:uuid;not null"`
	VendorID           uuid.UUID                 `gorm:"column:vendor_id;type:uuid;not null"`
	OrderID            *uuid.UUID                `gorm:"column:order_id;type:uuid"`
	Status             enums.InvoiceStatus       `gorm:"column:status;type:text;not null"`
	Subtotal           decimal.Decimal           `gorm:"column:subtotal;type:numeric(12,2);not null"`
	TaxAmount          decimal.Decimal           `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	DiscountAmount     decimal.Decimal           `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	ShippingAmount     decimal.Decimal           `gorm:"column:shipping_amount;type:numeric(12,2);not null"`
	TotalAmount        decimal.Decimal           `gorm:"column:total_amount;type:numeric(12,2);not null"`
	PaidAmount         decimal.Decimal           `gorm:"column:paid_amount;type:numeric(12,2);not null"`
	BalanceDue         decimal.Decimal           `gorm:"column:balance_due;type:numeric(12,2);not null"`
	InvoiceDate        time.Time                 `gorm:"column:invoice_date;type:date;not null"`
	DueDate            time.Time                 `gorm:"column:due_date;type:date;not null"`
	PaidDate           *time.Time                `gorm:"column:paid_date"`
	SentAt             *time.Time                `gorm:"column:sent_at"`
	ViewedAt           *time.Time                `gorm:"column:viewed_at"`
	TermsDays          int                       `gorm:"column:terms_days;not null"`
	LateFeeAmount      decimal.Decimal           `gorm:"column:late_fee_amount;type:numeric(12,2);not null"`
	LateFeePercentage  decimal.Decimal           `gorm:"column:late_fee_percentage;type:numeric(5,2);not null"`
	IsRecurring        bool                      `gorm:"column:is_recurring;not null"`
	RecurringFrequency *enums.RecurringFrequency `gorm:"column:recurring_frequency;type:text"`
	RecurringEndDate   *time.Time                `gorm:"column:recurring_end_date"`
	ParentInvoiceID    *uuid.UUID                `gorm:"column:parent_invoice_id;type:uuid;index"`
	Notes              *string                   `gorm:"column:notes"`
	Archived           bool                      `gorm:"column:archived;not null"`
	CreatedAt          time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
