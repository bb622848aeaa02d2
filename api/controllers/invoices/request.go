package invoices

import "github.com/google/uuid"

type createInvoiceRequest struct {
	OrderID            uuid.UUID `json:"order_id" validate:"required"`
	TermsDays          int       `json:"terms_days" validate:"min=0,max=365"`
	LateFeeAmount      string    `json:"late_fee_amount" validate:"omitempty,decimal"`
	LateFeePercentage  string    `json:"late_fee_percentage" validate:"omitempty,decimal"`
	RecurringFrequency string    `json:"recurring_frequency" validate:"omitempty,oneof=monthly quarterly yearly"`
	RecurringEndDate   *string   `json:"recurring_end_date" validate:"omitempty,isodate"`
	Notes              string    `json:"notes" validate:"max=2000"`
}

type paymentRequest struct {
	Amount         string  `json:"amount" validate:"required,decimal"`
	TransactionRef string  `json:"transaction_ref" validate:"required,max=128"`
	Method         string  `json:"method" validate:"required"`
	PaidAt         *string `json:"paid_at" validate:"omitempty,isodate"`
}
