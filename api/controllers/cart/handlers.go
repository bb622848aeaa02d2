package cart

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/freshlane/api/controllers/access"
	"github.com/angelmondragon/freshlane/api/controllers/dto"
	"github.com/angelmondragon/freshlane/api/responses"
	"github.com/angelmondragon/freshlane/api/validators"
	cartsvc "github.com/angelmondragon/freshlane/internal/cart"
	"github.com/angelmondragon/freshlane/internal/checkout"
	"github.com/angelmondragon/freshlane/pkg/enums"
	pkgerrors "github.com/angelmondragon/freshlane/pkg/errors"
	"github.com/angelmondragon/freshlane/pkg/logger"
)

// Create opens a cart for the calling buyer against one vendor.
func Create(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		actor, err := access.Actor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if actor.Role != enums.ActorRoleBuyer {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only buyers open carts"))
			return
		}

		var payload createCartRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		fulfillment := enums.FulfillmentTypeDelivery
		if payload.FulfillmentType != "" {
			fulfillment = enums.FulfillmentType(payload.FulfillmentType)
		}

		detail, err := svc.Create(r.Context(), cartsvc.CreateInput{
			BuyerID:         actor.ID,
			VendorID:        payload.VendorID,
			FulfillmentType: fulfillment,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto.NewCart(detail))
	}
}

// Fetch returns a priced cart the caller owns.
func Fetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		ref, err := cartRef(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.Get(r.Context(), ref.CartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if ref.BuyerID != uuid.Nil && detail.Cart.BuyerID != ref.BuyerID {
			responses.WriteError(r.Context(), logg, w, access.NotFound("cart"))
			return
		}
		responses.WriteSuccess(w, dto.NewCart(detail))
	}
}

// AddItem adds a product line or increments the existing line.
func AddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, err := cartRef(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.AddItem(r.Context(), cartsvc.AddItemInput{
			Ref:         ref,
			ProductID:   payload.ProductID,
			WarehouseID: payload.WarehouseID,
			Quantity:    payload.Quantity,
			Notes:       validators.OptionalString(payload.Notes, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto.NewCart(detail))
	}
}

// UpdateItem sets a line's quantity; zero removes the line.
func UpdateItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, err := cartRef(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.UpdateItem(r.Context(), cartsvc.UpdateItemInput{
			Ref:      ref,
			ItemID:   itemID,
			Quantity: payload.Quantity,
			Notes:    validators.OptionalString(payload.Notes, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewCart(detail))
	}
}

func RemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, err := cartRef(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.RemoveItem(r.Context(), ref, itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewCart(detail))
	}
}

func Clear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, err := cartRef(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.Clear(r.Context(), ref)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewCart(detail))
	}
}

func SetFulfillment(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, err := cartRef(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload fulfillmentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.SetFulfillment(r.Context(), ref, enums.FulfillmentType(payload.FulfillmentType))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewCart(detail))
	}
}

// ApplyCoupon attaches a coupon code; a code that does not qualify for the
// cart is refused with a validation error.
func ApplyCoupon(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, err := cartRef(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload couponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.ApplyCoupon(r.Context(), ref, payload.Code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewCart(detail))
	}
}

func RemoveCoupon(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, err := cartRef(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		code := strings.TrimSpace(chi.URLParam(r, "code"))
		if code == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required"))
			return
		}
		detail, err := svc.RemoveCoupon(r.Context(), ref, code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewCart(detail))
	}
}

// Checkout submits the cart as an order. Repeating a checkout for a cart that
// already converted returns the existing order with 200.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		ref, err := cartRef(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		deliveryDate, err := validators.ParseDate("delivery_date", payload.DeliveryDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Checkout(r.Context(), checkout.Input{
			CartID:               ref.CartID,
			BuyerID:              ref.BuyerID,
			DeliveryAddress:      validators.OptionalString(payload.DeliveryAddress, 500),
			DeliveryDate:         deliveryDate,
			DeliveryInstructions: validators.OptionalString(payload.DeliveryInstructions, 1000),
			Notes:                validators.OptionalString(payload.Notes, 1000),
			IsUrgent:             payload.IsUrgent,
			Metadata:             payload.Metadata,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		warnings := result.Warnings
		if warnings == nil {
			warnings = []string{}
		}
		status := http.StatusCreated
		if result.Replayed {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, checkoutResponse{
			Order:    dto.NewOrder(result.Order, result.Items),
			Warnings: warnings,
			Replayed: result.Replayed,
		})
	}
}

func cartRef(r *http.Request) (cartsvc.Ref, error) {
	actor, err := access.Actor(r)
	if err != nil {
		return cartsvc.Ref{}, err
	}
	cartID, err := validators.ParseUUIDParam(r, "cartId")
	if err != nil {
		return cartsvc.Ref{}, err
	}
	return cartsvc.Ref{CartID: cartID, BuyerID: access.BuyerScope(actor)}, nil
}
