package orders

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/freshlane/api/controllers/access"
	"github.com/angelmondragon/freshlane/api/controllers/dto"
	"github.com/angelmondragon/freshlane/api/responses"
	"github.com/angelmondragon/freshlane/api/validators"
	"github.com/angelmondragon/freshlane/internal/orderitems"
	internalorders "github.com/angelmondragon/freshlane/internal/orders"
	"github.com/angelmondragon/freshlane/pkg/auth"
	"github.com/angelmondragon/freshlane/pkg/db/models"
	pkgerrors "github.com/angelmondragon/freshlane/pkg/errors"
	"github.com/angelmondragon/freshlane/pkg/logger"
)

// ItemTracker is the slice of the order item tracker the item routes drive.
type ItemTracker interface {
	CreateSubstitution(ctx context.Context, input orderitems.SubstitutionInput) (*models.OrderItem, error)
	MarkPicked(ctx context.Context, itemID uuid.UUID, qty *int) (*models.OrderItem, error)
	MarkPacked(ctx context.Context, itemID uuid.UUID, qty *int) (*models.OrderItem, error)
	MarkShipped(ctx context.Context, itemID uuid.UUID) (*models.OrderItem, error)
	MarkDelivered(ctx context.Context, itemID uuid.UUID, qty *int) (orderitems.DeliveryResult, error)
	RecordReturn(ctx context.Context, itemID uuid.UUID, returned, damaged int) (*models.OrderItem, error)
	RecheckBackorders(ctx context.Context, orderID *uuid.UUID, limit int) (orderitems.RecheckResult, error)
}

// ItemRoutes serves the per-line fulfillment endpoints under an order.
type ItemRoutes struct {
	Orders  internalorders.Service
	Tracker ItemTracker
	Logger  *logger.Logger
}

type itemTarget struct {
	actor auth.Actor
	order models.Order
	item  models.OrderItem
	ctx   context.Context
}

type deliveryResponse struct {
	Item               dto.OrderItem     `json:"item"`
	FullyDelivered     bool              `json:"fully_delivered"`
	PartiallyDelivered bool              `json:"partially_delivered"`
	OrderStatus        *dto.StatusChange `json:"order_status,omitempty"`
}

type recheckResponse struct {
	Checked  int `json:"checked"`
	Restored int `json:"restored"`
}

// Substitute replaces the line with another product as a new pending line.
func (h ItemRoutes) Substitute() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, err := h.resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		var payload substitutionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(target.ctx, h.Logger, w, err)
			return
		}
		item, err := h.Tracker.CreateSubstitution(target.ctx, orderitems.SubstitutionInput{
			ItemID:      target.item.ID,
			ProductID:   payload.ProductID,
			WarehouseID: payload.WarehouseID,
			Reason:      payload.Reason,
			ActorID:     target.actor.ID,
			ActorRole:   target.actor.Role,
		})
		if err != nil {
			responses.WriteError(target.ctx, h.Logger, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto.NewOrderItem(*item))
	}
}

func (h ItemRoutes) Pick() http.HandlerFunc {
	return h.quantityAction(ItemTracker.MarkPicked)
}

func (h ItemRoutes) Pack() http.HandlerFunc {
	return h.quantityAction(ItemTracker.MarkPacked)
}

func (h ItemRoutes) Ship() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, err := h.resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		item, err := h.Tracker.MarkShipped(target.ctx, target.item.ID)
		if err != nil {
			responses.WriteError(target.ctx, h.Logger, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewOrderItem(*item))
	}
}

// Deliver records the delivered quantity and advances the order to delivered
// once every line is settled.
func (h ItemRoutes) Deliver() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, err := h.resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		var payload quantityRequest
		if err := decodeOptionalBody(r, &payload); err != nil {
			responses.WriteError(target.ctx, h.Logger, w, err)
			return
		}
		result, err := h.Tracker.MarkDelivered(target.ctx, target.item.ID, payload.Quantity)
		if err != nil {
			responses.WriteError(target.ctx, h.Logger, w, err)
			return
		}
		out := deliveryResponse{
			Item:               dto.NewOrderItem(*result.Item),
			FullyDelivered:     result.FullyDelivered,
			PartiallyDelivered: result.PartiallyDelivered,
		}
		history, err := h.Orders.AdvanceIfDelivered(target.ctx, target.order.ID, target.actor.ID, target.actor.Role)
		if err != nil {
			responses.WriteError(target.ctx, h.Logger, w, err)
			return
		}
		if history != nil {
			change := dto.NewStatusChange(*history)
			out.OrderStatus = &change
		}
		responses.WriteSuccess(w, out)
	}
}

// Return records goods sent back; damaged units are written off.
func (h ItemRoutes) Return() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, err := h.resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		var payload returnRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(target.ctx, h.Logger, w, err)
			return
		}
		item, err := h.Tracker.RecordReturn(target.ctx, target.item.ID, payload.Returned, payload.Damaged)
		if err != nil {
			responses.WriteError(target.ctx, h.Logger, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewOrderItem(*item))
	}
}

// RecheckBackorders retries reservation for the order's backordered lines.
func (h ItemRoutes) RecheckBackorders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detail, actor, err := loadVisibleOrder(r, h.Orders)
		if err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		if !access.CanManage(actor, detail.Order.VendorID) {
			responses.WriteError(r.Context(), h.Logger, w, pkgerrors.New(pkgerrors.CodeForbidden, "only the vendor may recheck backorders"))
			return
		}
		orderID := detail.Order.ID
		result, err := h.Tracker.RecheckBackorders(orderContext(r.Context(), h.Logger, orderID), &orderID, 0)
		if err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		responses.WriteSuccess(w, recheckResponse{Checked: result.Checked, Restored: result.Restored})
	}
}

type quantityStep func(ItemTracker, context.Context, uuid.UUID, *int) (*models.OrderItem, error)

func (h ItemRoutes) quantityAction(apply quantityStep) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, err := h.resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		var payload quantityRequest
		if err := decodeOptionalBody(r, &payload); err != nil {
			responses.WriteError(target.ctx, h.Logger, w, err)
			return
		}
		item, err := apply(h.Tracker, target.ctx, target.item.ID, payload.Quantity)
		if err != nil {
			responses.WriteError(target.ctx, h.Logger, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewOrderItem(*item))
	}
}

// resolve loads the order and line from the path, checks the line belongs to
// the order and that the caller fulfils for the order's vendor.
func (h ItemRoutes) resolve(r *http.Request) (*itemTarget, error) {
	if h.Tracker == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order item tracker unavailable")
	}
	detail, actor, err := loadVisibleOrder(r, h.Orders)
	if err != nil {
		return nil, err
	}
	if !access.CanManage(actor, detail.Order.VendorID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the vendor may fulfil order items")
	}
	itemID, err := validators.ParseUUIDParam(r, "itemId")
	if err != nil {
		return nil, err
	}
	for _, item := range detail.Items {
		if item.ID == itemID {
			return &itemTarget{
				actor: actor,
				order: detail.Order,
				item:  item,
				ctx:   orderContext(r.Context(), h.Logger, detail.Order.ID),
			}, nil
		}
	}
	return nil, access.NotFound("order item")
}

// decodeOptionalBody accepts an empty body as the zero payload.
func decodeOptionalBody(r *http.Request, dest any) error {
	if r.Body == nil {
		return nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return validators.DecodeJSONBody(r, dest)
}
