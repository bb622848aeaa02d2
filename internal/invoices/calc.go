package invoices

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/freshlane/pkg/db/models"
	"github.com/angelmondragon/freshlane/pkg/enums"
)

const (
	// DefaultTermsDays applies when an invoice carries no terms.
	DefaultTermsDays = 30

	numberPrefix = "INV-"
	numberDigits = 6
)

var hundred = decimal.NewFromInt(100)

// Summary is the derived payment view of an invoice at a point in time.
type Summary struct {
	InvoiceID         string          `json:"invoice_id"`
	Status            string          `json:"status"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	BalanceDue        decimal.Decimal `json:"balance_due"`
	PaymentPercentage decimal.Decimal `json:"payment_percentage"`
	IsOverdue         bool            `json:"is_overdue"`
	DaysOverdue       int             `json:"days_overdue"`
	IsDueSoon         bool            `json:"is_due_soon"`
	LateFee           decimal.Decimal `json:"late_fee"`
	TotalWithLateFees decimal.Decimal `json:"total_with_late_fees"`
}

// BalanceDue is total minus paid, floored at zero.
func BalanceDue(total, paid decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, total.Sub(paid)).Round(2)
}

// IsOverdue reports whether money is still owed after the due date.
func IsOverdue(inv models.Invoice, now time.Time) bool {
	if inv.Status == enums.InvoiceStatusPaid || inv.Status == enums.InvoiceStatusCancelled {
		return false
	}
	return inv.BalanceDue.IsPositive() && now.After(inv.DueDate)
}

// DaysOverdue counts whole days past the due date, 0 when not overdue.
func DaysOverdue(inv models.Invoice, now time.Time) int {
	if !IsOverdue(inv, now) {
		return 0
	}
	return int(now.Sub(inv.DueDate).Hours() / 24)
}

// IsDueSoon reports whether an unpaid invoice falls due within window.
func IsDueSoon(inv models.Invoice, now time.Time, window time.Duration) bool {
	if inv.Status == enums.InvoiceStatusPaid || inv.Status == enums.InvoiceStatusCancelled {
		return false
	}
	if !inv.BalanceDue.IsPositive() || !now.Before(inv.DueDate) {
		return false
	}
	return inv.DueDate.Sub(now) <= window
}

// CalculateLateFee returns flat + balance × pct / 100 for an overdue invoice
// and zero otherwise. Fees are never compounded into the balance.
func CalculateLateFee(inv models.Invoice, now time.Time) decimal.Decimal {
	if !IsOverdue(inv, now) {
		return decimal.Zero
	}
	fee := inv.LateFeeAmount
	if inv.LateFeePercentage.IsPositive() {
		fee = fee.Add(inv.BalanceDue.Mul(inv.LateFeePercentage).Div(hundred))
	}
	return fee.Round(2)
}

// PaymentPercentage is paid / total as a percentage with two decimals.
func PaymentPercentage(inv models.Invoice) decimal.Decimal {
	if !inv.TotalAmount.IsPositive() {
		return decimal.Zero
	}
	return inv.PaidAmount.Div(inv.TotalAmount).Mul(hundred).Round(2)
}

// Summarize builds the derived view used by the API and reminders.
func Summarize(inv models.Invoice, now time.Time, dueSoon time.Duration) Summary {
	fee := CalculateLateFee(inv, now)
	return Summary{
		InvoiceID:         inv.ID.String(),
		Status:            string(inv.Status),
		TotalAmount:       inv.TotalAmount,
		PaidAmount:        inv.PaidAmount,
		BalanceDue:        inv.BalanceDue,
		PaymentPercentage: PaymentPercentage(inv),
		IsOverdue:         IsOverdue(inv, now),
		DaysOverdue:       DaysOverdue(inv, now),
		IsDueSoon:         IsDueSoon(inv, now, dueSoon),
		LateFee:           fee,
		TotalWithLateFees: inv.TotalAmount.Add(fee),
	}
}

// NextRecurringDate advances from by one unit of freq.
func NextRecurringDate(from time.Time, freq enums.RecurringFrequency) (time.Time, bool) {
	switch freq {
	case enums.RecurringFrequencyMonthly:
		return from.AddDate(0, 1, 0), true
	case enums.RecurringFrequencyQuarterly:
		return from.AddDate(0, 3, 0), true
	case enums.RecurringFrequencyYearly:
		return from.AddDate(1, 0, 0), true
	}
	return time.Time{}, false
}

// DueDate is the invoice date plus terms, defaulting to DefaultTermsDays.
func DueDate(invoiceDate time.Time, termsDays int) time.Time {
	if termsDays <= 0 {
		termsDays = DefaultTermsDays
	}
	return invoiceDate.AddDate(0, 0, termsDays)
}

// paymentOutcome applies amount to inv and returns the new invoice status
// and the status mirrored onto the linked order.
func paymentOutcome(inv models.Invoice, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, enums.InvoiceStatus, enums.PaymentStatus) {
	paid := inv.PaidAmount.Add(amount).Round(2)
	balance := BalanceDue(inv.TotalAmount, paid)
	switch {
	case balance.IsZero():
		return paid, balance, enums.InvoiceStatusPaid, enums.PaymentStatusPaid
	case !inv.PaidAmount.IsPositive():
		return paid, balance, enums.InvoiceStatusPartial, enums.PaymentStatusPartiallyPaid
	default:
		return paid, balance, inv.Status, enums.PaymentStatusPartiallyPaid
	}
}

// NumberPrefix is the invoice number prefix for a year, e.g. INV-2026-.
func NumberPrefix(year int) string {
	return fmt.Sprintf("%s%d-", numberPrefix, year)
}

// NextNumber returns the number following last within year's sequence.
// An empty or foreign last starts the sequence at 1.
func NextNumber(year int, last string) string {
	prefix := NumberPrefix(year)
	seq := 1
	if strings.HasPrefix(last, prefix) {
		if n, err := strconv.Atoi(strings.TrimPrefix(last, prefix)); err == nil {
			seq = n + 1
		}
	}
	return fmt.Sprintf("%s%0*d", prefix, numberDigits, seq)
}
