package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/freshlane/internal/catalog"
	"github.com/angelmondragon/freshlane/internal/pricing"
	"github.com/angelmondragon/freshlane/pkg/db/models"
	pkgerrors "github.com/angelmondragon/freshlane/pkg/errors"
)

// Quote is a cart re-priced against the live catalog.
type Quote struct {
	Items    []models.CartItem
	Products map[uuid.UUID]*models.Product
	Totals   pricing.CartTotals
}

// Pricer re-prices cart lines from the catalog. Cart mutations and checkout
// share it so both see the same numbers.
type Pricer struct {
	engine  *pricing.Engine
	catalog *catalog.Repository
}

func NewPricer(engine *pricing.Engine, catalogRepo *catalog.Repository) (*Pricer, error) {
	if engine == nil {
		return nil, errors.New("pricing engine required")
	}
	if catalogRepo == nil {
		return nil, errors.New("catalog repository required")
	}
	return &Pricer{engine: engine, catalog: catalogRepo}, nil
}

// Quote prices every line and applies the cart's coupons. When tx is set the
// catalog is read through it.
func (p *Pricer) Quote(ctx context.Context, tx *gorm.DB, cart *models.Cart, items []models.CartItem, now time.Time) (*Quote, error) {
	source := p.catalog
	if tx != nil {
		source = p.catalog.WithTx(tx)
	}

	quote := &Quote{
		Items:    make([]models.CartItem, 0, len(items)),
		Products: make(map[uuid.UUID]*models.Product, len(items)),
	}
	lines := make([]pricing.Line, 0, len(items))
	for _, item := range items {
		product, price, err := p.engine.QuoteLine(ctx, source, item.ProductID, item.Quantity)
		if err != nil {
			return nil, err
		}
		if product.VendorID != cart.VendorID {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "product %s belongs to another vendor", product.SKU).
				WithDetails(map[string]any{"product_id": product.ID, "cart_vendor_id": cart.VendorID})
		}
		applyPrice(&item, price)
		quote.Items = append(quote.Items, item)
		quote.Products[product.ID] = product
		lines = append(lines, pricing.Line{ProductID: product.ID, Category: product.Category, Price: price})
	}

	coupons, err := source.CouponsByCode(ctx, cart.CouponCodes)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupons")
	}
	quote.Totals = p.engine.CalculateCartTotals(lines, cart.FulfillmentType, coupons, now)
	return quote, nil
}

func applyPrice(item *models.CartItem, price pricing.ItemPrice) {
	item.OriginalPrice = price.OriginalPrice
	item.UnitPrice = price.UnitPrice
	item.DiscountPercent = price.DiscountPercent
	item.TierName = price.TierName
	item.TaxRate = price.TaxRate
	item.Subtotal = price.Subtotal
	item.TaxAmount = price.TaxAmount
	item.Total = price.Total
}

// applyTotals copies the cart-level figures onto the cart row.
func applyTotals(cart *models.Cart, totals pricing.CartTotals) {
	cart.Subtotal = totals.Subtotal
	cart.TaxAmount = totals.TaxAmount
	cart.ShippingAmount = totals.Shipping
	cart.DiscountAmount = totals.DiscountAmount
	cart.TotalAmount = totals.Total
	cart.TotalWeightKg = totals.TotalWeightKg
	cart.ItemsCount = totals.ItemsCount
}
