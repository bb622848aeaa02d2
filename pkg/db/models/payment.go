package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/freshlane/pkg/enums"
)

// Payment is one settlement event against an invoice. TransactionRef is unique.
type Payment struct {
	ID             uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceID      uuid.UUID                 `gorm:"column:invoice_id;type:uuid;not null;index"`
	OrderID        *uuid.UUID                `gorm:"column:order_id;type:uuid"`
	Amount         decimal.Decimal           `gorm:"column:amount;type:numeric(12,2);not null"`
	TransactionRef string                    `gorm:"column:transaction_ref;not null;uniqueIndex:ux_payments_transaction_ref"`
	Method         enums.PaymentMethod       `gorm:"column:method;type:text;not null"`
	Status         enums.PaymentRecordStatus `gorm:"column:status;type:text;not null"`
	PaidAt         time.Time                 `gorm:"column:paid_at;not null"`
	CreatedAt      time.Time                 `gorm:"column:created_at;autoCreateTime"`
}
