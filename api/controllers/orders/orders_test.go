package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/freshlane/api/middleware"
	"github.com/angelmondragon/freshlane/internal/orderitems"
	internalorders "github.com/angelmondragon/freshlane/internal/orders"
	"github.com/angelmondragon/freshlane/pkg/auth"
	"github.com/angelmondragon/freshlane/pkg/db/models"
	"github.com/angelmondragon/freshlane/pkg/enums"
	pkgerrors "github.com/angelmondragon/freshlane/pkg/errors"
	"github.com/angelmondragon/freshlane/pkg/pagination"
)

type stubOrderService struct {
	detail     *internalorders.Detail
	filters    internalorders.ListFilters
	params     pagination.Params
	transition internalorders.TransitionInput
	advanced   bool
	advance    *models.OrderStatusHistory
	err        error
}

func (s *stubOrderService) Transition(_ context.Context, input internalorders.TransitionInput) (*models.OrderStatusHistory, error) {
	s.transition = input
	if s.err != nil {
		return nil, s.err
	}
	return &models.OrderStatusHistory{ID: uuid.New(), OrderID: input.OrderID, PreviousStatus: s.detail.Order.Status, Status: input.Status, ActorRole: input.ActorRole}, nil
}

func (s *stubOrderService) AdvanceIfDelivered(context.Context, uuid.UUID, uuid.UUID, enums.ActorRole) (*models.OrderStatusHistory, error) {
	s.advanced = true
	return s.advance, nil
}

func (s *stubOrderService) Get(_ context.Context, id uuid.UUID) (*internalorders.Detail, error) {
	if s.detail == nil || s.detail.Order.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return s.detail, nil
}

func (s *stubOrderService) List(_ context.Context, filters internalorders.ListFilters, params pagination.Params) (*internalorders.Page, error) {
	s.filters, s.params = filters, params
	return &internalorders.Page{Orders: []models.Order{s.detail.Order}, NextCursor: "next"}, nil
}

func (s *stubOrderService) History(_ context.Context, id uuid.UUID) ([]models.OrderStatusHistory, error) {
	return []models.OrderStatusHistory{
		{ID: uuid.New(), OrderID: id, PreviousStatus: enums.OrderStatusDraft, Status: enums.OrderStatusSubmitted, ActorRole: enums.ActorRoleBuyer},
	}, nil
}

type stubTracker struct {
	ItemTracker
	delivered orderitems.DeliveryResult
	pickedQty *int
	calls     []string
}

func (s *stubTracker) MarkPicked(_ context.Context, id uuid.UUID, qty *int) (*models.OrderItem, error) {
	s.calls = append(s.calls, "pick")
	s.pickedQty = qty
	return &models.OrderItem{ID: id, Status: enums.OrderItemStatusPicked}, nil
}

func (s *stubTracker) MarkDelivered(_ context.Context, id uuid.UUID, _ *int) (orderitems.DeliveryResult, error) {
	s.calls = append(s.calls, "deliver")
	return s.delivered, nil
}

func sampleOrder(buyerID, vendorID uuid.UUID) *internalorders.Detail {
	orderID := uuid.New()
	return &internalorders.Detail{
		Order: models.Order{
			ID:          orderID,
			OrderNumber: "ORD-20260301-XYZ789",
			BuyerID:     buyerID,
			VendorID:    vendorID,
			Status:      enums.OrderStatusInTransit,
			TotalAmount: decimal.RequireFromString("99.9"),
		},
		Items: []models.OrderItem{
			{ID: uuid.New(), OrderID: orderID, Quantity: 10, Status: enums.OrderItemStatusShipped, UnitPrice: decimal.RequireFromString("2")},
		},
	}
}

func router(svc internalorders.Service, tracker ItemTracker, actor auth.Actor) http.Handler {
	items := ItemRoutes{Orders: svc, Tracker: tracker}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithActor(req.Context(), actor)))
		})
	})
	r.Get("/orders", List(svc, nil))
	r.Get("/orders/{orderId}", Detail(svc, nil))
	r.Get("/orders/{orderId}/history", History(svc, nil))
	r.Post("/orders/{orderId}/transitions", Transition(svc, nil))
	r.Post("/orders/{orderId}/items/{itemId}/pick", items.Pick())
	r.Post("/orders/{orderId}/items/{itemId}/deliver", items.Deliver())
	return r
}

func serve(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(method, path, strings.NewReader(body)))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &decoded))
	return resp, decoded
}

func TestListForcesOwnScope(t *testing.T) {
	buyer := auth.Actor{ID: uuid.New(), Role: enums.ActorRoleBuyer}
	svc := &stubOrderService{detail: sampleOrder(buyer.ID, uuid.New())}

	resp, body := serve(t, router(svc, nil, buyer), http.MethodGet, "/orders?buyer_id="+uuid.NewString()+"&status=in_transit&limit=10", "")

	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, svc.filters.BuyerID)
	assert.Equal(t, buyer.ID, *svc.filters.BuyerID)
	require.NotNil(t, svc.filters.Status)
	assert.Equal(t, enums.OrderStatusInTransit, *svc.filters.Status)
	assert.Equal(t, 10, svc.params.Limit)
	data := body["data"].(map[string]any)
	assert.Equal(t, "next", data["next_cursor"])
	assert.Equal(t, "99.90", data["orders"].([]any)[0].(map[string]any)["total_amount"])
}

func TestListRejectsUnknownStatus(t *testing.T) {
	admin := auth.Actor{ID: uuid.New(), Role: enums.ActorRoleAdmin}
	svc := &stubOrderService{detail: sampleOrder(uuid.New(), uuid.New())}
	resp, _ := serve(t, router(svc, nil, admin), http.MethodGet, "/orders?status=lost", "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestDetailHidesForeignOrder(t *testing.T) {
	svc := &stubOrderService{detail: sampleOrder(uuid.New(), uuid.New())}
	stranger := auth.Actor{ID: uuid.New(), Role: enums.ActorRoleVendor}

	resp, _ := serve(t, router(svc, nil, stranger), http.MethodGet, "/orders/"+svc.detail.Order.ID.String(), "")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	vendor := auth.Actor{ID: svc.detail.Order.VendorID, Role: enums.ActorRoleVendor}
	resp, body := serve(t, router(svc, nil, vendor), http.MethodGet, "/orders/"+svc.detail.Order.ID.String(), "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, body["data"].(map[string]any)["items"], 1)
}

func TestHistory(t *testing.T) {
	buyer := auth.Actor{ID: uuid.New(), Role: enums.ActorRoleBuyer}
	svc := &stubOrderService{detail: sampleOrder(buyer.ID, uuid.New())}

	resp, body := serve(t, router(svc, nil, buyer), http.MethodGet, "/orders/"+svc.detail.Order.ID.String()+"/history", "")
	require.Equal(t, http.StatusOK, resp.Code)
	rows := body["data"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "submitted", rows[0].(map[string]any)["status"])
}

func TestTransitionBuyerMayOnlyCancel(t *testing.T) {
	buyer := auth.Actor{ID: uuid.New(), Role: enums.ActorRoleBuyer}
	svc := &stubOrderService{detail: sampleOrder(buyer.ID, uuid.New())}
	path := "/orders/" + svc.detail.Order.ID.String() + "/transitions"

	resp, _ := serve(t, router(svc, nil, buyer), http.MethodPost, path, `{"status":"confirmed"}`)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp, body := serve(t, router(svc, nil, buyer), http.MethodPost, path, `{"status":"cancelled","note":" changed plans "}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, enums.OrderStatusCancelled, svc.transition.Status)
	assert.Equal(t, "changed plans", svc.transition.Note)
	assert.Equal(t, buyer.ID, svc.transition.ActorID)
	assert.Equal(t, "cancelled", body["data"].(map[string]any)["status"])
}

func TestTransitionSurfacesInvalidTransition(t *testing.T) {
	vendor := auth.Actor{ID: uuid.New(), Role: enums.ActorRoleVendor}
	svc := &stubOrderService{
		detail: sampleOrder(uuid.New(), vendor.ID),
		err:    pkgerrors.New(pkgerrors.CodeInvalidTransition, "cannot move from in_transit to confirmed"),
	}
	resp, body := serve(t, router(svc, nil, vendor), http.MethodPost, "/orders/"+svc.detail.Order.ID.String()+"/transitions", `{"status":"confirmed"}`)

	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, string(pkgerrors.CodeInvalidTransition), errBody["code"])
	assert.Equal(t, true, errBody["retryable"])
}

func TestItemActionsRequireOwningVendor(t *testing.T) {
	svc := &stubOrderService{detail: sampleOrder(uuid.New(), uuid.New())}
	tracker := &stubTracker{}
	itemPath := "/orders/" + svc.detail.Order.ID.String() + "/items/" + svc.detail.Items[0].ID.String() + "/pick"

	buyer := auth.Actor{ID: svc.detail.Order.BuyerID, Role: enums.ActorRoleBuyer}
	resp, _ := serve(t, router(svc, tracker, buyer), http.MethodPost, itemPath, "")
	assert.Equal(t, http.StatusForbidden, resp.Code)

	vendor := auth.Actor{ID: svc.detail.Order.VendorID, Role: enums.ActorRoleVendor}
	resp, _ = serve(t, router(svc, tracker, vendor), http.MethodPost, itemPath, `{"quantity":4}`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, tracker.pickedQty)
	assert.Equal(t, 4, *tracker.pickedQty)

	resp, _ = serve(t, router(svc, tracker, vendor), http.MethodPost, itemPath, "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Nil(t, tracker.pickedQty)
}

func TestItemActionRejectsItemFromAnotherOrder(t *testing.T) {
	svc := &stubOrderService{detail: sampleOrder(uuid.New(), uuid.New())}
	vendor := auth.Actor{ID: svc.detail.Order.VendorID, Role: enums.ActorRoleVendor}
	path := "/orders/" + svc.detail.Order.ID.String() + "/items/" + uuid.NewString() + "/pick"

	resp, _ := serve(t, router(svc, &stubTracker{}, vendor), http.MethodPost, path, "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestDeliverAdvancesOrder(t *testing.T) {
	svc := &stubOrderService{detail: sampleOrder(uuid.New(), uuid.New())}
	item := svc.detail.Items[0]
	delivered := item
	delivered.Status = enums.OrderItemStatusDelivered
	delivered.DeliveredQty = item.Quantity
	tracker := &stubTracker{delivered: orderitems.DeliveryResult{Item: &delivered, FullyDelivered: true}}
	svc.advance = &models.OrderStatusHistory{ID: uuid.New(), OrderID: svc.detail.Order.ID, PreviousStatus: enums.OrderStatusInTransit, Status: enums.OrderStatusDelivered}

	vendor := auth.Actor{ID: svc.detail.Order.VendorID, Role: enums.ActorRoleVendor}
	resp, body := serve(t, router(svc, tracker, vendor), http.MethodPost,
		"/orders/"+svc.detail.Order.ID.String()+"/items/"+item.ID.String()+"/deliver", "")

	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, svc.advanced)
	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["fully_delivered"])
	assert.Equal(t, "delivered", data["order_status"].(map[string]any)["status"])
}
