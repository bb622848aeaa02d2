package invoices

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/freshlane/api/controllers/access"
	"github.com/angelmondragon/freshlane/api/controllers/dto"
	"github.com/angelmondragon/freshlane/api/responses"
	"github.com/angelmondragon/freshlane/api/validators"
	internalinvoices "github.com/angelmondragon/freshlane/internal/invoices"
	internalorders "github.com/angelmondragon/freshlane/internal/orders"
	"github.com/angelmondragon/freshlane/pkg/auth"
	"github.com/angelmondragon/freshlane/pkg/db/models"
	"github.com/angelmondragon/freshlane/pkg/enums"
	pkgerrors "github.com/angelmondragon/freshlane/pkg/errors"
	"github.com/angelmondragon/freshlane/pkg/logger"
)

// Handlers serves the invoice routes.
type Handlers struct {
	Invoices internalinvoices.Service
	Orders   internalorders.Service
	Logger   *logger.Logger
}

// Create bills an order. Only the order's vendor (or an admin) may invoice it.
func (h Handlers) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.Invoices == nil || h.Orders == nil {
			responses.WriteError(r.Context(), h.Logger, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
			return
		}
		actor, err := access.Actor(r)
		if err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		var payload createInvoiceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		input, err := toCreateInput(payload)
		if err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}

		order, err := h.Orders.Get(r.Context(), payload.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		if !access.CanManage(actor, order.Order.VendorID) {
			responses.WriteError(r.Context(), h.Logger, w, access.NotFound("order"))
			return
		}

		ctx := r.Context()
		if h.Logger != nil {
			ctx = h.Logger.WithOrderID(ctx, payload.OrderID.String())
		}
		invoice, err := h.Invoices.CreateFromOrder(ctx, input)
		if err != nil {
			responses.WriteError(ctx, h.Logger, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto.NewInvoice(*invoice))
	}
}

// Detail returns the invoice with lines, payments and its summary.
func (h Handlers) Detail() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detail, _, err := h.loadVisible(r)
		if err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewInvoiceDetail(detail))
	}
}

// Summary returns only the derived balance and late-fee figures.
func (h Handlers) Summary() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detail, _, err := h.loadVisible(r)
		if err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewInvoiceSummary(detail.Summary))
	}
}

// RecordPayment applies a payment. A repeated transaction reference returns
// the original payment with 200 instead of 201.
func (h Handlers) RecordPayment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detail, ctx, err := h.loadManaged(r)
		if err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		var payload paymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, h.Logger, w, err)
			return
		}
		input, err := toPaymentInput(payload)
		if err != nil {
			responses.WriteError(ctx, h.Logger, w, err)
			return
		}
		input.InvoiceID = detail.Invoice.ID

		result, err := h.Invoices.RecordPayment(ctx, input)
		if err != nil {
			responses.WriteError(ctx, h.Logger, w, err)
			return
		}
		status := http.StatusCreated
		if result.Duplicate {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, dto.NewPaymentReceipt(result))
	}
}

// GenerateRecurring creates the next child of a recurring invoice now.
func (h Handlers) GenerateRecurring() http.HandlerFunc {
	return h.managedAction(http.StatusCreated, internalinvoices.Service.GenerateRecurringInvoice)
}

// Send marks the invoice as sent to the buyer.
func (h Handlers) Send() http.HandlerFunc {
	return h.managedAction(http.StatusOK, internalinvoices.Service.MarkSent)
}

// View records that the buyer opened the invoice.
func (h Handlers) View() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detail, actor, err := h.loadVisible(r)
		if err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		if actor.Role != enums.ActorRoleBuyer {
			responses.WriteError(r.Context(), h.Logger, w, pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer may mark an invoice viewed"))
			return
		}
		invoice, err := h.Invoices.MarkViewed(invoiceContext(r.Context(), h.Logger, detail), detail.Invoice.ID)
		if err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewInvoice(*invoice))
	}
}

type invoiceStep func(internalinvoices.Service, context.Context, uuid.UUID) (*models.Invoice, error)

func (h Handlers) managedAction(status int, step invoiceStep) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detail, ctx, err := h.loadManaged(r)
		if err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		invoice, err := step(h.Invoices, ctx, detail.Invoice.ID)
		if err != nil {
			responses.WriteError(ctx, h.Logger, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, dto.NewInvoice(*invoice))
	}
}

// loadVisible resolves {invoiceId} and hides invoices the caller is not a
// party to.
func (h Handlers) loadVisible(r *http.Request) (*internalinvoices.Detail, auth.Actor, error) {
	if h.Invoices == nil {
		return nil, auth.Actor{}, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable")
	}
	actor, err := access.Actor(r)
	if err != nil {
		return nil, auth.Actor{}, err
	}
	invoiceID, err := validators.ParseUUIDParam(r, "invoiceId")
	if err != nil {
		return nil, actor, err
	}
	detail, err := h.Invoices.Get(r.Context(), invoiceID)
	if err != nil {
		return nil, actor, err
	}
	if !access.CanView(actor, detail.Invoice.BuyerID, detail.Invoice.VendorID) {
		return nil, actor, access.NotFound("invoice")
	}
	return detail, actor, nil
}

// loadManaged is loadVisible restricted to the billing vendor.
func (h Handlers) loadManaged(r *http.Request) (*internalinvoices.Detail, context.Context, error) {
	detail, actor, err := h.loadVisible(r)
	if err != nil {
		return nil, r.Context(), err
	}
	if !access.CanManage(actor, detail.Invoice.VendorID) {
		return nil, r.Context(), pkgerrors.New(pkgerrors.CodeForbidden, "only the billing vendor may change this invoice")
	}
	return detail, invoiceContext(r.Context(), h.Logger, detail), nil
}

func invoiceContext(ctx context.Context, logg *logger.Logger, detail *internalinvoices.Detail) context.Context {
	if logg == nil {
		return ctx
	}
	return logg.WithInvoiceID(ctx, detail.Invoice.ID.String())
}

func toCreateInput(payload createInvoiceRequest) (internalinvoices.CreateFromOrderInput, error) {
	input := internalinvoices.CreateFromOrderInput{
		OrderID:   payload.OrderID,
		TermsDays: payload.TermsDays,
		Notes:     validators.SanitizeString(payload.Notes, 2000),
	}
	var err error
	if input.LateFeeAmount, err = validators.ParseDecimal("late_fee_amount", payload.LateFeeAmount); err != nil {
		return input, err
	}
	if input.LateFeePercentage, err = validators.ParseDecimal("late_fee_percentage", payload.LateFeePercentage); err != nil {
		return input, err
	}
	if payload.RecurringFrequency != "" {
		freq := enums.RecurringFrequency(payload.RecurringFrequency)
		input.Frequency = &freq
	}
	if input.RecurringEndDate, err = validators.ParseDate("recurring_end_date", payload.RecurringEndDate); err != nil {
		return input, err
	}
	if input.RecurringEndDate != nil && input.Frequency == nil {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "recurring_end_date requires recurring_frequency")
	}
	return input, nil
}

func toPaymentInput(payload paymentRequest) (internalinvoices.RecordPaymentInput, error) {
	var input internalinvoices.RecordPaymentInput
	amount, err := validators.ParseDecimal("amount", payload.Amount)
	if err != nil {
		return input, err
	}
	method, err := enums.ParsePaymentMethod(payload.Method)
	if err != nil {
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method").
			WithDetails(map[string]any{"field": "method"})
	}
	paidAt, err := validators.ParseDate("paid_at", payload.PaidAt)
	if err != nil {
		return input, err
	}
	input.Amount = amount
	input.TransactionRef = validators.SanitizeString(payload.TransactionRef, 128)
	input.Method = method
	input.PaidAt = paidAt
	return input, nil
}
