package inventory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/freshlane/api/middleware"
	internalinventory "github.com/angelmondragon/freshlane/internal/inventory"
	"github.com/angelmondragon/freshlane/pkg/auth"
	"github.com/angelmondragon/freshlane/pkg/db/models"
	"github.com/angelmondragon/freshlane/pkg/enums"
)

type stubInventory struct {
	internalinventory.Service
	adjusted internalinventory.AdjustInput
	low      []models.InventoryRecord
}

func (s *stubInventory) Adjust(_ context.Context, input internalinventory.AdjustInput) (*models.InventoryRecord, error) {
	s.adjusted = input
	return &models.InventoryRecord{
		ProductID:         input.ProductID,
		WarehouseID:       input.WarehouseID,
		QuantityOnHand:    40 + input.Delta,
		QuantityAvailable: 40 + input.Delta,
	}, nil
}

func (s *stubInventory) Get(_ context.Context, productID, warehouseID uuid.UUID) (*models.InventoryRecord, error) {
	return &models.InventoryRecord{ProductID: productID, WarehouseID: warehouseID, QuantityOnHand: 12, QuantityReserved: 2, QuantityAvailable: 10}, nil
}

func (s *stubInventory) LowStock(context.Context, uuid.UUID) ([]models.InventoryRecord, error) {
	return s.low, nil
}

type stubProducts map[uuid.UUID]models.Product

func (s stubProducts) Product(_ context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := s[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (s stubProducts) ListByVendor(_ context.Context, vendorID uuid.UUID) ([]models.Product, error) {
	var out []models.Product
	for _, p := range s {
		if p.VendorID == vendorID {
			out = append(out, p)
		}
	}
	return out, nil
}

func newRouter(h Handlers, actor auth.Actor) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithActor(req.Context(), actor)))
		})
	})
	r.Post("/inventory/adjustments", h.Adjust())
	r.Get("/inventory/{productId}/{warehouseId}", h.Get())
	r.Get("/inventory/warehouses/{warehouseId}/low-stock", h.LowStock())
	return r
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(method, path, strings.NewReader(body)))
	return resp
}

func TestAdjustOwnProduct(t *testing.T) {
	vendor := auth.Actor{ID: uuid.New(), Role: enums.ActorRoleVendor}
	product := models.Product{ID: uuid.New(), VendorID: vendor.ID}
	warehouse := uuid.New()
	inv := &stubInventory{}
	h := newRouter(Handlers{Inventory: inv, Products: stubProducts{product.ID: product}}, vendor)

	resp := serve(h, http.MethodPost, "/inventory/adjustments",
		`{"product_id":"`+product.ID.String()+`","warehouse_id":"`+warehouse.String()+`","delta":-5,"reason":" spoilage "}`)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, -5, inv.adjusted.Delta)
	assert.Equal(t, "spoilage", inv.adjusted.Reason)
	var body struct {
		Data struct {
			QuantityOnHand int `json:"quantity_on_hand"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, 35, body.Data.QuantityOnHand)
}

func TestAdjustValidation(t *testing.T) {
	vendor := auth.Actor{ID: uuid.New(), Role: enums.ActorRoleVendor}
	product := models.Product{ID: uuid.New(), VendorID: vendor.ID}
	h := newRouter(Handlers{Inventory: &stubInventory{}, Products: stubProducts{product.ID: product}}, vendor)

	resp := serve(h, http.MethodPost, "/inventory/adjustments",
		`{"product_id":"`+product.ID.String()+`","warehouse_id":"`+uuid.NewString()+`","delta":0,"reason":"count"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = serve(h, http.MethodPost, "/inventory/adjustments",
		`{"product_id":"`+product.ID.String()+`","warehouse_id":"`+uuid.NewString()+`","delta":3}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAdjustHidesOtherVendorsProduct(t *testing.T) {
	vendor := auth.Actor{ID: uuid.New(), Role: enums.ActorRoleVendor}
	product := models.Product{ID: uuid.New(), VendorID: uuid.New()}
	inv := &stubInventory{}
	h := newRouter(Handlers{Inventory: inv, Products: stubProducts{product.ID: product}}, vendor)

	resp := serve(h, http.MethodPost, "/inventory/adjustments",
		`{"product_id":"`+product.ID.String()+`","warehouse_id":"`+uuid.NewString()+`","delta":5,"reason":"delivery"}`)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Zero(t, inv.adjusted.Delta)

	resp = serve(h, http.MethodGet, "/inventory/"+uuid.NewString()+"/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestGetForAdmin(t *testing.T) {
	admin := auth.Actor{ID: uuid.New(), Role: enums.ActorRoleAdmin}
	product := models.Product{ID: uuid.New(), VendorID: uuid.New()}
	h := newRouter(Handlers{Inventory: &stubInventory{}, Products: stubProducts{product.ID: product}}, admin)

	resp := serve(h, http.MethodGet, "/inventory/"+product.ID.String()+"/"+uuid.NewString(), "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"quantity_available":10`)

	resp = serve(h, http.MethodGet, "/inventory/not-a-uuid/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestLowStockFiltersToVendorProducts(t *testing.T) {
	vendor := auth.Actor{ID: uuid.New(), Role: enums.ActorRoleVendor}
	own := models.Product{ID: uuid.New(), VendorID: vendor.ID}
	other := models.Product{ID: uuid.New(), VendorID: uuid.New()}
	inv := &stubInventory{low: []models.InventoryRecord{{ProductID: own.ID}, {ProductID: other.ID}}}
	products := stubProducts{own.ID: own, other.ID: other}

	resp := serve(newRouter(Handlers{Inventory: inv, Products: products}, vendor), http.MethodGet, "/inventory/warehouses/"+uuid.NewString()+"/low-stock", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var body struct {
		Data []struct {
			ProductID uuid.UUID `json:"product_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, own.ID, body.Data[0].ProductID)

	inv.low = []models.InventoryRecord{{ProductID: own.ID}, {ProductID: other.ID}}
	admin := auth.Actor{ID: uuid.New(), Role: enums.ActorRoleAdmin}
	resp = serve(newRouter(Handlers{Inventory: inv, Products: products}, admin), http.MethodGet, "/inventory/warehouses/"+uuid.NewString()+"/low-stock", "")
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Len(t, body.Data, 2)
}
