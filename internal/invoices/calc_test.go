package invoices

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/freshlane/pkg/db/models"
	"github.com/angelmondragon/freshlane/pkg/enums"
)

func money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestCalculateLateFee(t *testing.T) {
	now := time.Date(2026, 5, 20, 9, 0, 0, 0, time.UTC)
	inv := models.Invoice{
		Status:            enums.InvoiceStatusSent,
		TotalAmount:       money("1000.00"),
		BalanceDue:        money("1000.00"),
		DueDate:           now.AddDate(0, 0, -10),
		LateFeeAmount:     money("25.00"),
		LateFeePercentage: money("1.5"),
	}

	fee := CalculateLateFee(inv, now)
	assert.Equal(t, "40.00", fee.StringFixed(2))
	assert.Equal(t, "40.00", CalculateLateFee(inv, now).StringFixed(2))
	assert.Equal(t, "40.00", CalculateLateFee(inv, now.AddDate(0, 1, 0)).StringFixed(2))
	assert.Equal(t, "1000.00", inv.BalanceDue.StringFixed(2))

	notDue := inv
	notDue.DueDate = now.AddDate(0, 0, 3)
	assert.True(t, CalculateLateFee(notDue, now).IsZero())

	settled := inv
	settled.BalanceDue = decimal.Zero
	assert.True(t, CalculateLateFee(settled, now).IsZero())

	flatOnly := inv
	flatOnly.LateFeePercentage = decimal.Zero
	assert.Equal(t, "25.00", CalculateLateFee(flatOnly, now).StringFixed(2))
}

func TestSummarize(t *testing.T) {
	now := time.Date(2026, 5, 20, 9, 0, 0, 0, time.UTC)
	inv := models.Invoice{
		Status:        enums.InvoiceStatusPartial,
		TotalAmount:   money("200.00"),
		PaidAmount:    money("50.00"),
		BalanceDue:    money("150.00"),
		DueDate:       now.Add(-72 * time.Hour),
		LateFeeAmount: money("10.00"),
	}

	s := Summarize(inv, now, 7*24*time.Hour)
	assert.Equal(t, "25.00", s.PaymentPercentage.StringFixed(2))
	assert.True(t, s.IsOverdue)
	assert.Equal(t, 3, s.DaysOverdue)
	assert.False(t, s.IsDueSoon)
	assert.Equal(t, "210.00", s.TotalWithLateFees.StringFixed(2))

	inv.DueDate = now.Add(48 * time.Hour)
	s = Summarize(inv, now, 7*24*time.Hour)
	assert.False(t, s.IsOverdue)
	assert.Equal(t, 0, s.DaysOverdue)
	assert.True(t, s.IsDueSoon)
	assert.True(t, s.LateFee.IsZero())

	inv.Status = enums.InvoiceStatusPaid
	assert.False(t, IsDueSoon(inv, now, 7*24*time.Hour))
}

func TestPaymentOutcome(t *testing.T) {
	inv := models.Invoice{
		Status:      enums.InvoiceStatusSent,
		TotalAmount: money("100.00"),
		PaidAmount:  decimal.Zero,
		BalanceDue:  money("100.00"),
	}

	paid, balance, status, orderStatus := paymentOutcome(inv, money("40.00"))
	assert.Equal(t, "40.00", paid.StringFixed(2))
	assert.Equal(t, "60.00", balance.StringFixed(2))
	assert.Equal(t, enums.InvoiceStatusPartial, status)
	assert.Equal(t, enums.PaymentStatusPartiallyPaid, orderStatus)

	inv.PaidAmount, inv.BalanceDue, inv.Status = paid, balance, enums.InvoiceStatusOverdue
	_, _, status, _ = paymentOutcome(inv, money("10.00"))
	assert.Equal(t, enums.InvoiceStatusOverdue, status)

	_, balance, status, orderStatus = paymentOutcome(inv, money("60.00"))
	assert.True(t, balance.IsZero())
	assert.Equal(t, enums.InvoiceStatusPaid, status)
	assert.Equal(t, enums.PaymentStatusPaid, orderStatus)
}

func TestNextRecurringDate(t *testing.T) {
	base := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	cases := map[enums.RecurringFrequency]time.Time{
		enums.RecurringFrequencyMonthly:   time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC),
		enums.RecurringFrequencyQuarterly: time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC),
		enums.RecurringFrequencyYearly:    time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC),
	}
	for freq, want := range cases {
		got, ok := NextRecurringDate(base, freq)
		assert.True(t, ok, string(freq))
		assert.Equal(t, want, got, string(freq))
	}
	_, ok := NextRecurringDate(base, "weekly")
	assert.False(t, ok)
}

func TestNextNumber(t *testing.T) {
	assert.Equal(t, "INV-2026-000001", NextNumber(2026, ""))
	assert.Equal(t, "INV-2026-000043", NextNumber(2026, "INV-2026-000042"))
	assert.Equal(t, "INV-2027-000001", NextNumber(2027, "INV-2026-000042"))
}

func TestDueDate(t *testing.T) {
	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), DueDate(date, 0))
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), DueDate(date, 14))
}
