package orders

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/freshlane/api/controllers/access"
	"github.com/angelmondragon/freshlane/api/controllers/dto"
	"github.com/angelmondragon/freshlane/api/responses"
	"github.com/angelmondragon/freshlane/api/validators"
	internalorders "github.com/angelmondragon/freshlane/internal/orders"
	"github.com/angelmondragon/freshlane/pkg/auth"
	"github.com/angelmondragon/freshlane/pkg/enums"
	pkgerrors "github.com/angelmondragon/freshlane/pkg/errors"
	"github.com/angelmondragon/freshlane/pkg/logger"
	"github.com/angelmondragon/freshlane/pkg/pagination"
)

// List pages through orders. Buyers and vendors only ever see their own.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		actor, err := access.Actor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters, err := buildFilters(r, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query := validators.QueryOf(r)
		limit, err := query.Int("limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{Limit: limit, Cursor: query.String("cursor", 512)}

		page, err := svc.List(r.Context(), filters, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := dto.OrderPage{Orders: make([]dto.Order, 0, len(page.Orders)), NextCursor: page.NextCursor}
		for _, order := range page.Orders {
			out.Orders = append(out.Orders, dto.NewOrder(order, nil))
		}
		responses.WriteSuccess(w, out)
	}
}

// Detail returns the order with its lines.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detail, _, err := loadVisibleOrder(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewOrder(detail.Order, detail.Items))
	}
}

// History returns the status audit trail, oldest first.
func History(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detail, _, err := loadVisibleOrder(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.History(r.Context(), detail.Order.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]dto.StatusChange, 0, len(rows))
		for _, row := range rows {
			out = append(out, dto.NewStatusChange(row))
		}
		responses.WriteSuccess(w, out)
	}
}

// Transition moves the order to the requested status. Buyers may only cancel
// their own orders; vendors drive every other step.
func Transition(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detail, actor, err := loadVisibleOrder(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload transitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
				WithDetails(map[string]any{"status": payload.Status}))
			return
		}
		if actor.Role == enums.ActorRoleBuyer && target != enums.OrderStatusCancelled {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "buyers may only cancel orders"))
			return
		}

		ctx := orderContext(r.Context(), logg, detail.Order.ID)
		history, err := svc.Transition(ctx, internalorders.TransitionInput{
			OrderID:   detail.Order.ID,
			Status:    target,
			Note:      validators.SanitizeString(payload.Note, 1000),
			ActorID:   actor.ID,
			ActorRole: actor.Role,
			Metadata:  payload.Metadata,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewStatusChange(*history))
	}
}

func buildFilters(r *http.Request, actor auth.Actor) (internalorders.ListFilters, error) {
	var filters internalorders.ListFilters
	query := validators.QueryOf(r)

	if raw := query.String("status", 32); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		filters.Status = &status
	}
	overdue, err := query.Bool("overdue")
	if err != nil {
		return filters, err
	}
	filters.Overdue = overdue

	buyerID, err := query.UUID("buyer_id")
	if err != nil {
		return filters, err
	}
	vendorID, err := query.UUID("vendor_id")
	if err != nil {
		return filters, err
	}
	filters.BuyerID, filters.VendorID = buyerID, vendorID

	switch actor.Role {
	case enums.ActorRoleBuyer:
		id := actor.ID
		filters.BuyerID = &id
	case enums.ActorRoleVendor:
		id := actor.ID
		filters.VendorID = &id
	}
	return filters, nil
}

// loadVisibleOrder resolves {orderId} and hides orders the caller is not a
// party to.
func loadVisibleOrder(r *http.Request, svc internalorders.Service) (*internalorders.Detail, auth.Actor, error) {
	if svc == nil {
		return nil, auth.Actor{}, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable")
	}
	actor, err := access.Actor(r)
	if err != nil {
		return nil, auth.Actor{}, err
	}
	orderID, err := validators.ParseUUIDParam(r, "orderId")
	if err != nil {
		return nil, actor, err
	}
	detail, err := svc.Get(r.Context(), orderID)
	if err != nil {
		return nil, actor, err
	}
	if !access.CanView(actor, detail.Order.BuyerID, detail.Order.VendorID) {
		return nil, actor, access.NotFound("order")
	}
	return detail, actor, nil
}

func orderContext(ctx context.Context, logg *logger.Logger, orderID uuid.UUID) context.Context {
	if logg == nil {
		return ctx
	}
	return logg.WithOrderID(ctx, orderID.String())
}
