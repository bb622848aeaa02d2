package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/freshlane/internal/invoices"
	"github.com/angelmondragon/freshlane/pkg/db/models"
	"github.com/angelmondragon/freshlane/pkg/enums"
)

type Invoice struct {
	ID                 uuid.UUID                 `json:"id"`
	InvoiceNumber      string                    `json:"invoice_number"`
	BuyerID            uuid.UUID                 `json:"buyer_id"`
	VendorID           uuid.UUID                 `json:"vendor_id"`
	OrderID            *uuid.UUID                `json:"order_id,omitempty"`
	Status             enums.InvoiceStatus       `json:"status"`
	Subtotal           string                    `json:"subtotal"`
	TaxAmount          string                    `json:"tax_amount"`
	DiscountAmount     string                    `json:"discount_amount"`
	ShippingAmount     string                    `json:"shipping_amount"`
	TotalAmount        string                    `json:"total_amount"`
	PaidAmount         string                    `json:"paid_amount"`
	BalanceDue         string                    `json:"balance_due"`
	InvoiceDate        time.Time                 `json:"invoice_date"`
	DueDate            time.Time                 `json:"due_date"`
	PaidDate           *time.Time                `json:"paid_date,omitempty"`
	SentAt             *time.Time                `json:"sent_at,omitempty"`
	ViewedAt           *time.Time                `json:"viewed_at,omitempty"`
	TermsDays          int                       `json:"terms_days"`
	LateFeeAmount      string                    `json:"late_fee_amount"`
	LateFeePercentage  string                    `json:"late_fee_percentage"`
	IsRecurring        bool                      `json:"is_recurring"`
	RecurringFrequency *enums.RecurringFrequency `json:"recurring_frequency,omitempty"`
	RecurringEndDate   *time.Time                `json:"recurring_end_date,omitempty"`
	ParentInvoiceID    *uuid.UUID                `json:"parent_invoice_id,omitempty"`
	Notes              *string                   `json:"notes,omitempty"`
	CreatedAt          time.Time                 `json:"created_at"`
	UpdatedAt          time.Time                 `json:"updated_at"`
}

type InvoiceItem struct {
	ID             uuid.UUID  `json:"id"`
	ProductID      *uuid.UUID `json:"product_id,omitempty"`
	Description    string     `json:"description"`
	Quantity       int        `json:"quantity"`
	Unit           string     `json:"unit"`
	UnitPrice      string     `json:"unit_price"`
	DiscountAmount string     `json:"discount_amount"`
	TaxAmount      string     `json:"tax_amount"`
	LineTotal      string     `json:"line_total"`
}

type Payment struct {
	ID             uuid.UUID                 `json:"id"`
	InvoiceID      uuid.UUID                 `json:"invoice_id"`
	Amount         string                    `json:"amount"`
	TransactionRef string                    `json:"transaction_ref"`
	Method         enums.PaymentMethod       `json:"method"`
	Status         enums.PaymentRecordStatus `json:"status"`
	PaidAt         time.Time                 `json:"paid_at"`
}

type InvoiceSummary struct {
	InvoiceID         string `json:"invoice_id"`
	Status            string `json:"status"`
	TotalAmount       string `json:"total_amount"`
	PaidAmount        string `json:"paid_amount"`
	BalanceDue        string `json:"balance_due"`
	PaymentPercentage string `json:"payment_percentage"`
	IsOverdue         bool   `json:"is_overdue"`
	DaysOverdue       int    `json:"days_overdue"`
	IsDueSoon         bool   `json:"is_due_soon"`
	LateFee           string `json:"late_fee"`
	TotalWithLateFees string `json:"total_with_late_fees"`
}

// InvoiceDetail is the invoice with its lines, payments and summary.
type InvoiceDetail struct {
	Invoice  Invoice        `json:"invoice"`
	Items    []InvoiceItem  `json:"items"`
	Payments []Payment      `json:"payments"`
	Summary  InvoiceSummary `json:"summary"`
}

// PaymentReceipt is the outcome of recording a payment.
type PaymentReceipt struct {
	Invoice   Invoice  `json:"invoice"`
	Payment   *Payment `json:"payment,omitempty"`
	Duplicate bool     `json:"duplicate"`
}

func NewInvoice(inv models.Invoice) Invoice {
	return Invoice{
		ID:                 inv.ID,
		InvoiceNumber:      inv.InvoiceNumber,
		BuyerID:            inv.BuyerID,
		VendorID:           inv.VendorID,
		OrderID:            inv.OrderID,
		Status:             inv.Status,
		Subtotal:           Money(inv.Subtotal),
		TaxAmount:          Money(inv.TaxAmount),
		DiscountAmount:     Money(inv.DiscountAmount),
		ShippingAmount:     Money(inv.ShippingAmount),
		TotalAmount:        Money(inv.TotalAmount),
		PaidAmount:         Money(inv.PaidAmount),
		BalanceDue:         Money(inv.BalanceDue),
		InvoiceDate:        inv.InvoiceDate,
		DueDate:            inv.DueDate,
		PaidDate:           inv.PaidDate,
		SentAt:             inv.SentAt,
		ViewedAt:           inv.ViewedAt,
		TermsDays:          inv.TermsDays,
		LateFeeAmount:      Money(inv.LateFeeAmount),
		LateFeePercentage:  Percent(inv.LateFeePercentage),
		IsRecurring:        inv.IsRecurring,
		RecurringFrequency: inv.RecurringFrequency,
		RecurringEndDate:   inv.RecurringEndDate,
		ParentInvoiceID:    inv.ParentInvoiceID,
		Notes:              inv.Notes,
		CreatedAt:          inv.CreatedAt,
		UpdatedAt:          inv.UpdatedAt,
	}
}

func NewPayment(p models.Payment) Payment {
	return Payment{
		ID:             p.ID,
		InvoiceID:      p.InvoiceID,
		Amount:         Money(p.Amount),
		TransactionRef: p.TransactionRef,
		Method:         p.Method,
		Status:         p.Status,
		PaidAt:         p.PaidAt,
	}
}

func NewInvoiceSummary(s invoices.Summary) InvoiceSummary {
	return InvoiceSummary{
		InvoiceID:         s.InvoiceID,
		Status:            s.Status,
		TotalAmount:       Money(s.TotalAmount),
		PaidAmount:        Money(s.PaidAmount),
		BalanceDue:        Money(s.BalanceDue),
		PaymentPercentage: s.PaymentPercentage.StringFixed(2),
		IsOverdue:         s.IsOverdue,
		DaysOverdue:       s.DaysOverdue,
		IsDueSoon:         s.IsDueSoon,
		LateFee:           Money(s.LateFee),
		TotalWithLateFees: Money(s.TotalWithLateFees),
	}
}

func NewInvoiceDetail(d *invoices.Detail) InvoiceDetail {
	items := make([]InvoiceItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, InvoiceItem{
			ID:             item.ID,
			ProductID:      item.ProductID,
			Description:    item.Description,
			Quantity:       item.Quantity,
			Unit:           item.Unit,
			UnitPrice:      Money(item.UnitPrice),
			DiscountAmount: Money(item.DiscountAmount),
			TaxAmount:      Money(item.TaxAmount),
			LineTotal:      Money(item.LineTotal),
		})
	}
	payments := make([]Payment, 0, len(d.Payments))
	for _, p := range d.Payments {
		payments = append(payments, NewPayment(p))
	}
	return InvoiceDetail{
		Invoice:  NewInvoice(d.Invoice),
		Items:    items,
		Payments: payments,
		Summary:  NewInvoiceSummary(d.Summary),
	}
}

func NewPaymentReceipt(res *invoices.PaymentResult) PaymentReceipt {
	out := PaymentReceipt{Duplicate: res.Duplicate}
	if res.Invoice != nil {
		out.Invoice = NewInvoice(*res.Invoice)
	}
	if res.Payment != nil {
		p := NewPayment(*res.Payment)
		out.Payment = &p
	}
	return out
}
