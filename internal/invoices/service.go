package invoices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/freshlane/internal/notifications"
	"github.com/angelmondragon/freshlane/internal/orderitems"
	"github.com/angelmondragon/freshlane/internal/orders"
	"github.com/angelmondragon/freshlane/pkg/db"
	"github.com/angelmondragon/freshlane/pkg/db/models"
	"github.com/angelmondragon/freshlane/pkg/enums"
	pkgerrors "github.com/angelmondragon/freshlane/pkg/errors"
	"github.com/angelmondragon/freshlane/pkg/logger"
	"github.com/angelmondragon/freshlane/pkg/metrics"
	"github.com/angelmondragon/freshlane/pkg/outbox/payloads"
)

const (
	paymentRefConstraint    = "ux_payments_transaction_ref"
	invoiceNumberConstraint = "ux_invoices_invoice_number"
	numberAttempts          = 3
)

// Service reconciles invoices and payments.
type Service interface {
	CreateFromOrder(ctx context.Context, input CreateFromOrderInput) (*models.Invoice, error)
	Get(ctx context.Context, id uuid.UUID) (*Detail, error)
	Summary(ctx context.Context, id uuid.UUID) (*Summary, error)
	RecordPayment(ctx context.Context, input RecordPaymentInput) (*PaymentResult, error)
	GenerateRecurringInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	GenerateDueRecurring(ctx context.Context, now time.Time, limit int) (int, error)
	MarkSent(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	MarkViewed(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	MarkOverdue(ctx context.Context, now time.Time, limit int) (int, error)
}

// CreateFromOrderInput bills an order. Zero TermsDays uses the configured default.
type CreateFromOrderInput struct {
	OrderID           uuid.UUID
	TermsDays         int
	LateFeeAmount     decimal.Decimal
	LateFeePercentage decimal.Decimal
	Frequency         *enums.RecurringFrequency
	RecurringEndDate  *time.Time
	Notes             string
}

// RecordPaymentInput is one settled payment against an invoice.
type RecordPaymentInput struct {
	InvoiceID      uuid.UUID
	Amount         decimal.Decimal
	TransactionRef string
	Method         enums.PaymentMethod
	PaidAt         *time.Time
}

// PaymentResult reports the invoice after a payment. Duplicate is set when
// the transaction reference had already been recorded.
type PaymentResult struct {
	Invoice   *models.Invoice `json:"invoice"`
	Payment   *models.Payment `json:"payment"`
	Duplicate bool            `json:"duplicate"`
}

// Detail is an invoice with its lines, payments and derived summary.
type Detail struct {
	Invoice  models.Invoice       `json:"invoice"`
	Items    []models.InvoiceItem `json:"items"`
	Payments []models.Payment     `json:"payments"`
	Summary  Summary              `json:"summary"`
}

// ServiceParams wires the invoice service.
type ServiceParams struct {
	Repository    Repository
	Orders        *orders.Repository
	Items         *orderitems.Repository
	TxRunner      db.TxRunner
	Notifier      notifications.Notifier
	Logger        *logger.Logger
	Metrics       *metrics.EngineMetrics
	Clock         func() time.Time
	DefaultTerms  int
	DueSoonWindow time.Duration
}

type service struct {
	repo     Repository
	orders   *orders.Repository
	items    *orderitems.Repository
	tx       db.TxRunner
	notifier notifications.Notifier
	logg     *logger.Logger
	metrics  *metrics.EngineMetrics
	now      func() time.Time
	terms    int
	dueSoon  time.Duration
}

// NewService validates dependencies and returns the reconciler.
func NewService(p ServiceParams) (Service, error) {
	if p.Repository == nil {
		return nil, errors.New("invoice repository required")
	}
	if p.Orders == nil {
		return nil, errors.New("orders repository required")
	}
	if p.Items == nil {
		return nil, errors.New("order items repository required")
	}
	if p.TxRunner == nil {
		return nil, errors.New("transaction runner required")
	}
	if p.Notifier == nil {
		p.Notifier = notifications.Discard{}
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Clock == nil {
		p.Clock = time.Now
	}
	if p.DefaultTerms <= 0 {
		p.DefaultTerms = DefaultTermsDays
	}
	if p.DueSoonWindow <= 0 {
		p.DueSoonWindow = 7 * 24 * time.Hour
	}
	return &service{
		repo:     p.Repository,
		orders:   p.Orders,
		items:    p.Items,
		tx:       p.TxRunner,
		notifier: p.Notifier,
		logg:     p.Logger,
		metrics:  p.Metrics,
		now:      p.Clock,
		terms:    p.DefaultTerms,
		dueSoon:  p.DueSoonWindow,
	}, nil
}

func (s *service) CreateFromOrder(ctx context.Context, input CreateFromOrderInput) (*models.Invoice, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.TermsDays < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "terms days must not be negative")
	}
	if input.LateFeeAmount.IsNegative() || input.LateFeePercentage.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "late fees must not be negative")
	}
	if input.Frequency != nil && !input.Frequency.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid recurring frequency %q", *input.Frequency)
	}
	terms := input.TermsDays
	if terms == 0 {
		terms = s.terms
	}

	var invoice *models.Invoice
	err := s.withNumber(ctx, func(tx *gorm.DB, number string) error {
		repo := s.repo.WithTx(tx)
		order, err := s.orders.WithTx(tx).Find(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if order.Archived || order.Status == enums.OrderStatusDraft || order.Status == enums.OrderStatusCancelled {
			return pkgerrors.Newf(pkgerrors.CodeInvalidState, "order in status %s cannot be invoiced", order.Status)
		}
		if existing, err := repo.FindByOrder(ctx, order.ID); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already invoiced").
				WithDetails(map[string]any{"invoice_id": existing.ID, "invoice_number": existing.InvoiceNumber})
		} else if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return err
		}

		lines, err := s.items.WithTx(tx).ListByOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		built, items := buildFromOrder(*order, lines)
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "order has no billable items")
		}

		date := dateOnly(s.now())
		orderID := order.ID
		built.InvoiceNumber = number
		built.OrderID = &orderID
		built.InvoiceDate = date
		built.DueDate = DueDate(date, terms)
		built.TermsDays = terms
		built.LateFeeAmount = input.LateFeeAmount.Round(2)
		built.LateFeePercentage = input.LateFeePercentage.Round(2)
		if input.Frequency != nil {
			freq := *input.Frequency
			built.IsRecurring = true
			built.RecurringFrequency = &freq
			built.RecurringEndDate = input.RecurringEndDate
		}
		if note := strings.TrimSpace(input.Notes); note != "" {
			built.Notes = &note
		}

		if err := repo.Create(ctx, &built, items); err != nil {
			return err
		}
		if err := s.orders.WithTx(tx).SetPaymentDueDate(ctx, order.ID, built.DueDate); err != nil {
			return err
		}
		invoice = &built
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.generated(ctx, invoice)
	return invoice, nil
}

// buildFromOrder copies the order's active lines and totals onto a draft invoice.
func buildFromOrder(order models.Order, lines []models.OrderItem) (models.Invoice, []models.InvoiceItem) {
	invoice := models.Invoice{
		ID:             uuid.New(),
		BuyerID:        order.BuyerID,
		VendorID:       order.VendorID,
		Status:         enums.InvoiceStatusDraft,
		Subtotal:       decimal.Zero,
		TaxAmount:      decimal.Zero,
		DiscountAmount: order.DiscountAmount.Round(2),
		ShippingAmount: order.DeliveryFee.Round(2),
		PaidAmount:     decimal.Zero,
	}
	var items []models.InvoiceItem
	for _, line := range lines {
		if !line.Status.IsActive() {
			continue
		}
		productID := line.ProductID
		items = append(items, models.InvoiceItem{
			ID:             uuid.New(),
			InvoiceID:      invoice.ID,
			ProductID:      &productID,
			Description:    fmt.Sprintf("%s (%s)", line.Name, line.SKU),
			Quantity:       line.Quantity,
			Unit:           line.Unit,
			UnitPrice:      line.UnitPrice,
			DiscountAmount: line.DiscountAmount,
			TaxAmount:      line.TaxAmount,
			LineTotal:      line.Total,
			SortOrder:      len(items),
		})
		invoice.Subtotal = invoice.Subtotal.Add(line.Subtotal)
		invoice.TaxAmount = invoice.TaxAmount.Add(line.TaxAmount)
	}
	total := invoice.Subtotal.Add(invoice.TaxAmount).Add(invoice.ShippingAmount).Sub(invoice.DiscountAmount)
	invoice.TotalAmount = decimal.Max(decimal.Zero, total).Round(2)
	invoice.BalanceDue = invoice.TotalAmount
	return invoice, items
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	invoice, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.Items(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice items")
	}
	payments, err := s.repo.Payments(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payments")
	}
	return &Detail{
		Invoice:  *invoice,
		Items:    items,
		Payments: payments,
		Summary:  Summarize(*invoice, s.now(), s.dueSoon),
	}, nil
}

func (s *service) Summary(ctx context.Context, id uuid.UUID) (*Summary, error) {
	invoice, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	summary := Summarize(*invoice, s.now(), s.dueSoon)
	return &summary, nil
}

func (s *service) RecordPayment(ctx context.Context, input RecordPaymentInput) (*PaymentResult, error) {
	if input.InvoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}
	ref := strings.TrimSpace(input.TransactionRef)
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction reference required")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment method %q", input.Method)
	}
	if !input.Amount.IsPositive() || !input.Amount.Equal(input.Amount.Round(2)) {
		s.metrics.IncPayment("rejected")
		return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, "payment amount must be positive with at most two decimals").
			WithDetails(map[string]any{"amount": input.Amount.String()})
	}

	now := s.now().UTC()
	paidAt := now
	if input.PaidAt != nil {
		paidAt = input.PaidAt.UTC()
	}

	var result *PaymentResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		invoice, err := repo.Lock(ctx, input.InvoiceID)
		if err != nil {
			return err
		}
		existing, err := repo.FindPaymentByRef(ctx, ref)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.InvoiceID != invoice.ID {
				return pkgerrors.New(pkgerrors.CodeIdempotency, "transaction reference already used for another invoice").
					WithDetails(map[string]any{"transaction_ref": ref})
			}
			result = &PaymentResult{Invoice: invoice, Payment: existing, Duplicate: true}
			return nil
		}
		if invoice.Archived || invoice.Status == enums.InvoiceStatusCancelled {
			return pkgerrors.Newf(pkgerrors.CodeInvalidState, "invoice in status %s cannot take payments", invoice.Status)
		}
		if input.Amount.GreaterThan(invoice.BalanceDue) {
			return pkgerrors.New(pkgerrors.CodeInvalidAmount, "payment exceeds balance due").
				WithDetails(map[string]any{
					"amount":      input.Amount.String(),
					"balance_due": invoice.BalanceDue.String(),
				})
		}

		paid, balance, status, orderStatus := paymentOutcome(*invoice, input.Amount)
		payment := &models.Payment{
			ID:             uuid.New(),
			InvoiceID:      invoice.ID,
			OrderID:        invoice.OrderID,
			Amount:         input.Amount,
			TransactionRef: ref,
			Method:         input.Method,
			Status:         enums.PaymentRecordStatusCompleted,
			PaidAt:         paidAt,
		}
		if err := repo.CreatePayment(ctx, payment); err != nil {
			return err
		}

		updates := map[string]any{
			"paid_amount": paid,
			"balance_due": balance,
			"status":      status,
			"updated_at":  now,
		}
		if status == enums.InvoiceStatusPaid {
			updates["paid_date"] = now
			invoice.PaidDate = &now
		}
		if err := repo.Update(ctx, invoice.ID, updates); err != nil {
			return err
		}
		if invoice.OrderID != nil {
			if err := s.orders.WithTx(tx).UpdatePayment(ctx, *invoice.OrderID, paid, orderStatus); err != nil {
				return err
			}
		}

		invoice.PaidAmount = paid
		invoice.BalanceDue = balance
		invoice.Status = status
		invoice.UpdatedAt = now
		result = &PaymentResult{Invoice: invoice, Payment: payment}
		return nil
	})
	if err != nil && db.IsUniqueViolation(err, paymentRefConstraint) {
		result, err = s.duplicatePayment(ctx, input.InvoiceID, ref)
	}

	logCtx := s.logg.WithInvoiceID(ctx, input.InvoiceID.String())
	logCtx = s.logg.WithField(logCtx, "transaction_ref", ref)
	if err != nil {
		s.metrics.IncPayment("rejected")
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "payment rejected")
		return nil, err
	}
	if result.Duplicate {
		s.metrics.IncPayment("duplicate")
		s.logg.Info(logCtx, "duplicate payment ignored")
		return result, nil
	}

	s.metrics.IncPayment("recorded")
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"amount":      result.Payment.Amount.String(),
		"balance_due": result.Invoice.BalanceDue.String(),
		"status":      result.Invoice.Status,
	}), "payment recorded")
	s.notifier.Notify(ctx, notifications.Notification{
		Event:         enums.EventInvoicePaymentPosted,
		AggregateType: enums.AggregateInvoice,
		AggregateID:   result.Invoice.ID,
		Data: payloads.InvoicePaymentRecordedEvent{
			InvoiceID:      result.Invoice.ID,
			InvoiceNumber:  result.Invoice.InvoiceNumber,
			PaymentID:      result.Payment.ID,
			TransactionRef: ref,
			Amount:         result.Payment.Amount,
			BalanceDue:     result.Invoice.BalanceDue,
			Status:         result.Invoice.Status,
		},
		OccurredAt: now,
	})
	return result, nil
}

// duplicatePayment resolves a payment that lost the insert race on its
// transaction reference.
func (s *service) duplicatePayment(ctx context.Context, invoiceID uuid.UUID, ref string) (*PaymentResult, error) {
	existing, err := s.repo.FindPaymentByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment reference conflict")
	}
	if existing.InvoiceID != invoiceID {
		return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "transaction reference already used for another invoice").
			WithDetails(map[string]any{"transaction_ref": ref})
	}
	invoice, err := s.repo.Find(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return &PaymentResult{Invoice: invoice, Payment: existing, Duplicate: true}, nil
}

func (s *service) GenerateRecurringInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}
	return s.generateRecurring(ctx, id, nil)
}

// GenerateDueRecurring creates the next child for every recurring invoice
// whose next date has arrived.
func (s *service) GenerateDueRecurring(ctx context.Context, now time.Time, limit int) (int, error) {
	parents, err := s.repo.ListRecurringParents(ctx, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list recurring invoices")
	}
	cutoff := now.UTC()
	created := 0
	var errs error
	for _, parent := range parents {
		child, err := s.generateRecurring(ctx, parent.ID, &cutoff)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("invoice %s: %w", parent.ID, err))
			continue
		}
		if child != nil {
			created++
		}
	}
	return created, errs
}

// generateRecurring clones a recurring invoice into a draft child. It returns
// nil when the invoice does not recur, the schedule has ended, or the next
// date is after notAfter.
func (s *service) generateRecurring(ctx context.Context, id uuid.UUID, notAfter *time.Time) (*models.Invoice, error) {
	var child *models.Invoice
	err := s.withNumber(ctx, func(tx *gorm.DB, number string) error {
		repo := s.repo.WithTx(tx)
		parent, err := repo.Lock(ctx, id)
		if err != nil {
			return err
		}
		if !parent.IsRecurring || parent.RecurringFrequency == nil || parent.Archived {
			return nil
		}
		base := parent.InvoiceDate
		latest, err := repo.LatestChild(ctx, parent.ID)
		if err != nil {
			return err
		}
		if latest != nil {
			base = latest.InvoiceDate
		}
		next, ok := NextRecurringDate(base, *parent.RecurringFrequency)
		if !ok {
			return nil
		}
		if parent.RecurringEndDate != nil && next.After(*parent.RecurringEndDate) {
			return nil
		}
		if notAfter != nil && next.After(*notAfter) {
			return nil
		}

		items, err := repo.Items(ctx, parent.ID)
		if err != nil {
			return err
		}
		clone := cloneRecurring(*parent, items, number, next)
		if err := repo.Create(ctx, &clone.invoice, clone.items); err != nil {
			return err
		}
		child = &clone.invoice
		return nil
	})
	if err != nil || child == nil {
		return nil, err
	}
	s.generated(ctx, child)
	return child, nil
}

type recurringClone struct {
	invoice models.Invoice
	items   []models.InvoiceItem
}

func cloneRecurring(parent models.Invoice, items []models.InvoiceItem, number string, date time.Time) recurringClone {
	parentID := parent.ID
	child := parent
	child.ID = uuid.New()
	child.InvoiceNumber = number
	child.ParentInvoiceID = &parentID
	// payments on a child never roll up into the order the parent billed
	child.OrderID = nil
	child.Status = enums.InvoiceStatusDraft
	child.InvoiceDate = date
	child.DueDate = DueDate(date, parent.TermsDays)
	child.PaidAmount = decimal.Zero
	child.BalanceDue = child.TotalAmount
	child.PaidDate = nil
	child.SentAt = nil
	child.ViewedAt = nil
	child.CreatedAt = time.Time{}
	child.UpdatedAt = time.Time{}

	out := make([]models.InvoiceItem, 0, len(items))
	for _, item := range items {
		item.ID = uuid.New()
		item.InvoiceID = child.ID
		item.CreatedAt = time.Time{}
		out = append(out, item)
	}
	return recurringClone{invoice: child, items: out}
}

func (s *service) MarkSent(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	return s.stamp(ctx, id, func(inv *models.Invoice, now time.Time) (map[string]any, error) {
		switch inv.Status {
		case enums.InvoiceStatusDraft, enums.InvoiceStatusSent:
		default:
			return nil, pkgerrors.Newf(pkgerrors.CodeInvalidState, "invoice in status %s cannot be sent", inv.Status)
		}
		inv.Status = enums.InvoiceStatusSent
		inv.SentAt = &now
		return map[string]any{"status": inv.Status, "sent_at": now}, nil
	})
}

func (s *service) MarkViewed(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	return s.stamp(ctx, id, func(inv *models.Invoice, now time.Time) (map[string]any, error) {
		if inv.Status == enums.InvoiceStatusDraft || inv.Status == enums.InvoiceStatusCancelled {
			return nil, pkgerrors.Newf(pkgerrors.CodeInvalidState, "invoice in status %s cannot be viewed", inv.Status)
		}
		if inv.ViewedAt != nil {
			return nil, nil
		}
		inv.ViewedAt = &now
		updates := map[string]any{"viewed_at": now}
		if inv.Status == enums.InvoiceStatusSent {
			inv.Status = enums.InvoiceStatusViewed
			updates["status"] = inv.Status
		}
		return updates, nil
	})
}

func (s *service) stamp(ctx context.Context, id uuid.UUID, apply func(*models.Invoice, time.Time) (map[string]any, error)) (*models.Invoice, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}
	var invoice *models.Invoice
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		inv, err := repo.Lock(ctx, id)
		if err != nil {
			return err
		}
		if inv.Archived {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "invoice is archived")
		}
		now := s.now().UTC()
		updates, err := apply(inv, now)
		if err != nil {
			return err
		}
		invoice = inv
		if len(updates) == 0 {
			return nil
		}
		updates["updated_at"] = now
		return repo.Update(ctx, inv.ID, updates)
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// MarkOverdue flags unpaid invoices past their due date and returns how many
// changed.
func (s *service) MarkOverdue(ctx context.Context, now time.Time, limit int) (int, error) {
	candidates, err := s.repo.ListOverdueCandidates(ctx, now, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list overdue invoices")
	}
	marked := 0
	var errs error
	for _, candidate := range candidates {
		if !IsOverdue(candidate, now) {
			continue
		}
		var flipped *models.Invoice
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			inv, err := repo.Lock(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if !IsOverdue(*inv, now) || inv.Status == enums.InvoiceStatusOverdue || inv.Status == enums.InvoiceStatusDraft {
				return nil
			}
			if err := repo.Update(ctx, inv.ID, map[string]any{
				"status":     enums.InvoiceStatusOverdue,
				"updated_at": now.UTC(),
			}); err != nil {
				return err
			}
			inv.Status = enums.InvoiceStatusOverdue
			flipped = inv
			return nil
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("invoice %s: %w", candidate.ID, err))
			continue
		}
		if flipped == nil {
			continue
		}
		marked++
		s.notifier.Notify(ctx, notifications.Notification{
			Event:         enums.EventInvoiceOverdue,
			AggregateType: enums.AggregateInvoice,
			AggregateID:   flipped.ID,
			Data: payloads.InvoiceOverdueEvent{
				InvoiceID:     flipped.ID,
				InvoiceNumber: flipped.InvoiceNumber,
				BuyerID:       flipped.BuyerID,
				BalanceDue:    flipped.BalanceDue,
				DueDate:       flipped.DueDate,
			},
			OccurredAt: now,
		})
	}
	if marked > 0 {
		s.logg.Info(s.logg.WithField(ctx, "marked", marked), "invoices marked overdue")
	}
	return marked, errs
}

// withNumber runs fn in a transaction with the next invoice number for the
// current year, retrying when a concurrent writer took the same number.
func (s *service) withNumber(ctx context.Context, fn func(tx *gorm.DB, number string) error) error {
	var err error
	for attempt := 0; attempt < numberAttempts; attempt++ {
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			prefix := NumberPrefix(s.now().UTC().Year())
			last, err := s.repo.WithTx(tx).LastNumber(ctx, prefix)
			if err != nil {
				return err
			}
			return fn(tx, NextNumber(s.now().UTC().Year(), last))
		})
		if err == nil || !db.IsUniqueViolation(err, invoiceNumberConstraint) {
			return err
		}
		s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt+1), "invoice number taken, retrying")
	}
	return err
}

func (s *service) generated(ctx context.Context, invoice *models.Invoice) {
	s.logg.Info(s.logg.WithFields(s.logg.WithInvoiceID(ctx, invoice.ID.String()), map[string]any{
		"invoice_number": invoice.InvoiceNumber,
		"total_amount":   invoice.TotalAmount.String(),
	}), "invoice generated")
	s.notifier.Notify(ctx, notifications.Notification{
		Event:         enums.EventInvoiceGenerated,
		AggregateType: enums.AggregateInvoice,
		AggregateID:   invoice.ID,
		Data: payloads.InvoiceGeneratedEvent{
			InvoiceID:       invoice.ID,
			InvoiceNumber:   invoice.InvoiceNumber,
			BuyerID:         invoice.BuyerID,
			VendorID:        invoice.VendorID,
			OrderID:         invoice.OrderID,
			ParentInvoiceID: invoice.ParentInvoiceID,
			TotalAmount:     invoice.TotalAmount,
			DueDate:         invoice.DueDate,
		},
		OccurredAt: s.now().UTC(),
	})
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
