package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/freshlane/pkg/db/models"
	pkgerrors "github.com/angelmondragon/freshlane/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// Catalog resolves products together with their bulk tiers.
type Catalog interface {
	Product(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Rules carries the cart-level defaults.
type Rules struct {
	FreeShippingThreshold decimal.Decimal
	PerKgRate             decimal.Decimal
	ShippingCap           decimal.Decimal
	DefaultTaxRate        decimal.Decimal
}

// DefaultRules mirrors the stock configuration.
func DefaultRules() Rules {
	return Rules{
		FreeShippingThreshold: decimal.NewFromInt(500),
		PerKgRate:             decimal.NewFromInt(2),
		ShippingCap:           decimal.NewFromInt(50),
		DefaultTaxRate:        decimal.RequireFromString("0.10"),
	}
}

// ItemPrice is the computed breakdown for one line.
type ItemPrice struct {
	Quantity        int
	OriginalPrice   decimal.Decimal
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
	TierName        *string
	TaxRate         decimal.Decimal
	Subtotal        decimal.Decimal
	TaxAmount       decimal.Decimal
	Total           decimal.Decimal
	WeightKg        decimal.Decimal
}

// Savings is what the tier took off the catalog price across the whole line.
func (p ItemPrice) Savings() decimal.Decimal {
	return p.OriginalPrice.Sub(p.UnitPrice).Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// Engine prices lines and carts. It holds no state besides its rules and is
// safe for concurrent use.
type Engine struct {
	rules Rules
}

func NewEngine(rules Rules) *Engine {
	return &Engine{rules: rules}
}

func (e *Engine) Rules() Rules {
	return e.rules
}

// CalculateItemPrice prices qty units of product, applying the best bulk tier.
func (e *Engine) CalculateItemPrice(product *models.Product, qty int) (ItemPrice, error) {
	if product == nil {
		return ItemPrice{}, pkgerrors.New(pkgerrors.CodeValidation, "product is required")
	}
	if qty <= 0 {
		return ItemPrice{}, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
	}
	if product.UnitPrice.IsNegative() {
		return ItemPrice{}, pkgerrors.Newf(pkgerrors.CodeValidation, "product %s has a negative price", product.SKU)
	}

	quantity := decimal.NewFromInt(int64(qty))
	price := ItemPrice{
		Quantity:        qty,
		OriginalPrice:   product.UnitPrice.Round(2),
		UnitPrice:       product.UnitPrice.Round(2),
		DiscountPercent: decimal.Zero,
		TaxRate:         e.taxRate(product),
		WeightKg:        product.WeightKg.Mul(quantity),
	}

	if tier := SelectTier(qty, product.PriceTiers); tier != nil {
		price.UnitPrice = discounted(product.UnitPrice, tier.DiscountPercent)
		price.DiscountPercent = tier.DiscountPercent
		name := tier.Name
		price.TierName = &name
	}

	price.Subtotal = price.UnitPrice.Mul(quantity).Round(2)
	price.TaxAmount = price.Subtotal.Mul(price.TaxRate).Round(2)
	price.Total = price.Subtotal.Add(price.TaxAmount)
	return price, nil
}

// QuoteLine loads the product from the catalog and prices qty units of it.
func (e *Engine) QuoteLine(ctx context.Context, catalog Catalog, productID uuid.UUID, qty int) (*models.Product, ItemPrice, error) {
	if catalog == nil {
		return nil, ItemPrice{}, pkgerrors.New(pkgerrors.CodeInternal, "catalog is required")
	}
	product, err := catalog.Product(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ItemPrice{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, ItemPrice{}, err
	}
	if !product.IsActive {
		return nil, ItemPrice{}, pkgerrors.Newf(pkgerrors.CodeValidation, "product %s is not available", product.SKU)
	}
	if product.MinOrderQty > 0 && qty < product.MinOrderQty {
		return nil, ItemPrice{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity below minimum order").
			WithDetails(map[string]any{"min_order_qty": product.MinOrderQty, "quantity": qty})
	}
	price, err := e.CalculateItemPrice(product, qty)
	if err != nil {
		return nil, ItemPrice{}, err
	}
	return product, price, nil
}

// SelectTier returns the tier with the highest threshold at or below qty.
// Tiers sharing that threshold resolve to the deepest discount.
func SelectTier(qty int, tiers []models.ProductPriceTier) *models.ProductPriceTier {
	var best *models.ProductPriceTier
	for i := range tiers {
		tier := &tiers[i]
		if tier.MinQuantity > qty || tier.MinQuantity <= 0 {
			continue
		}
		if tier.DiscountPercent.IsNegative() || tier.DiscountPercent.GreaterThan(hundred) {
			continue
		}
		if best == nil || tier.MinQuantity > best.MinQuantity {
			best = tier
			continue
		}
		if tier.MinQuantity == best.MinQuantity && tier.DiscountPercent.GreaterThan(best.DiscountPercent) {
			best = tier
		}
	}
	return best
}

func (e *Engine) taxRate(product *models.Product) decimal.Decimal {
	if product.TaxRate.Valid {
		return product.TaxRate.Decimal
	}
	return e.rules.DefaultTaxRate
}

func discounted(base, pct decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(pct.Div(hundred))
	return base.Mul(factor).Round(2)
}

func (p ItemPrice) String() string {
	return fmt.Sprintf("%d x %s = %s (+%s tax)", p.Quantity, p.UnitPrice.StringFixed(2), p.Subtotal.StringFixed(2), p.TaxAmount.StringFixed(2))
}
