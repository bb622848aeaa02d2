package inventory

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/freshlane/api/controllers/access"
	"github.com/angelmondragon/freshlane/api/controllers/dto"
	"github.com/angelmondragon/freshlane/api/responses"
	"github.com/angelmondragon/freshlane/api/validators"
	internalinventory "github.com/angelmondragon/freshlane/internal/inventory"
	"github.com/angelmondragon/freshlane/pkg/auth"
	"github.com/angelmondragon/freshlane/pkg/db/models"
	"github.com/angelmondragon/freshlane/pkg/enums"
	pkgerrors "github.com/angelmondragon/freshlane/pkg/errors"
	"github.com/angelmondragon/freshlane/pkg/logger"
)

// ProductLookup resolves product ownership. catalog.Repository satisfies it.
type ProductLookup interface {
	Product(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Product, error)
}

// Handlers serves the stock routes. Vendors only see stock of their own
// products.
type Handlers struct {
	Inventory internalinventory.Service
	Products  ProductLookup
	Logger    *logger.Logger
}

// Adjust applies a physical stock change such as a delivery or write-off.
func (h Handlers) Adjust() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.Inventory == nil || h.Products == nil {
			responses.WriteError(r.Context(), h.Logger, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}
		actor, err := access.Actor(r)
		if err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		var payload adjustRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		if err := h.ensureOwner(r.Context(), actor, payload.ProductID); err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}

		ctx := r.Context()
		if h.Logger != nil {
			ctx = h.Logger.WithFields(ctx, map[string]any{
				"product_id":   payload.ProductID.String(),
				"warehouse_id": payload.WarehouseID.String(),
				"delta":        payload.Delta,
			})
		}
		record, err := h.Inventory.Adjust(ctx, internalinventory.AdjustInput{
			ProductID:   payload.ProductID,
			WarehouseID: payload.WarehouseID,
			Delta:       payload.Delta,
			Reason:      validators.SanitizeString(payload.Reason, 255),
		})
		if err != nil {
			responses.WriteError(ctx, h.Logger, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewInventoryRecord(*record))
	}
}

// Get returns one product's stock at one warehouse.
func (h Handlers) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.Inventory == nil || h.Products == nil {
			responses.WriteError(r.Context(), h.Logger, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}
		actor, err := access.Actor(r)
		if err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		warehouseID, err := validators.ParseUUIDParam(r, "warehouseId")
		if err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		if err := h.ensureOwner(r.Context(), actor, productID); err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		record, err := h.Inventory.Get(r.Context(), productID, warehouseID)
		if err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewInventoryRecord(*record))
	}
}

// LowStock lists records at or below their reorder point in a warehouse.
func (h Handlers) LowStock() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.Inventory == nil || h.Products == nil {
			responses.WriteError(r.Context(), h.Logger, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}
		actor, err := access.Actor(r)
		if err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		warehouseID, err := validators.ParseUUIDParam(r, "warehouseId")
		if err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		records, err := h.Inventory.LowStock(r.Context(), warehouseID)
		if err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		if actor.Role == enums.ActorRoleVendor {
			if records, err = h.ownedOnly(r.Context(), actor.ID, records); err != nil {
				responses.WriteError(r.Context(), h.Logger, w, err)
				return
			}
		}
		out := make([]dto.InventoryRecord, 0, len(records))
		for _, rec := range records {
			out = append(out, dto.NewInventoryRecord(rec))
		}
		responses.WriteSuccess(w, out)
	}
}

func (h Handlers) ensureOwner(ctx context.Context, actor auth.Actor, productID uuid.UUID) error {
	product, err := h.Products.Product(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return access.NotFound("product")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !access.CanManage(actor, product.VendorID) {
		return access.NotFound("product")
	}
	return nil
}

func (h Handlers) ownedOnly(ctx context.Context, vendorID uuid.UUID, records []models.InventoryRecord) ([]models.InventoryRecord, error) {
	products, err := h.Products.ListByVendor(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vendor products")
	}
	owned := make(map[uuid.UUID]struct{}, len(products))
	for _, p := range products {
		owned[p.ID] = struct{}{}
	}
	filtered := records[:0]
	for _, rec := range records {
		if _, ok := owned[rec.ProductID]; ok {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}
