package dbtest

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/freshlane/pkg/db/models"
	"github.com/angelmondragon/freshlane/pkg/enums"
)

// Product inserts an active product priced at unitPrice with a 1 kg unit
// weight and the default tax rate.
func Product(t *testing.T, conn *gorm.DB, sku, unitPrice string, tiers ...models.ProductPriceTier) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:          uuid.New(),
		VendorID:    uuid.New(),
		SKU:         sku,
		Name:        strings.ToLower(sku),
		Category:    "produce",
		Unit:        "case",
		UnitPrice:   decimal.RequireFromString(unitPrice),
		CostPrice:   decimal.RequireFromString(unitPrice).Mul(decimal.RequireFromString("0.6")).Round(2),
		WeightKg:    decimal.NewFromInt(1),
		MinOrderQty: 1,
		IsActive:    true,
	}
	for _, tier := range tiers {
		tier.ID = uuid.New()
		tier.ProductID = product.ID
		product.PriceTiers = append(product.PriceTiers, tier)
	}
	require.NoError(t, conn.Create(product).Error)
	return product
}

// Stock inserts an inventory record with nothing reserved.
func Stock(t *testing.T, conn *gorm.DB, productID, warehouseID uuid.UUID, onHand int) *models.InventoryRecord {
	t.Helper()
	record := &models.InventoryRecord{
		ID:                uuid.New(),
		ProductID:         productID,
		WarehouseID:       warehouseID,
		QuantityOnHand:    onHand,
		QuantityAvailable: onHand,
		ReorderPoint:      2,
		ReorderQuantity:   20,
	}
	require.NoError(t, conn.Create(record).Error)
	return record
}

// Order inserts an order in status with zero totals.
func Order(t *testing.T, conn *gorm.DB, status enums.OrderStatus) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:              uuid.New(),
		OrderNumber:     "ORD-TEST-" + strings.ToUpper(uuid.NewString()[:8]),
		BuyerID:         uuid.New(),
		VendorID:        uuid.New(),
		Status:          status,
		PaymentStatus:   enums.PaymentStatusPending,
		FulfillmentType: enums.FulfillmentTypeDelivery,
	}
	require.NoError(t, conn.Create(order).Error)
	return order
}

// Item inserts a line for qty units of product at the product's list price.
func Item(t *testing.T, conn *gorm.DB, order *models.Order, product *models.Product, warehouseID uuid.UUID, qty int, status enums.OrderItemStatus) *models.OrderItem {
	t.Helper()
	subtotal := product.UnitPrice.Mul(decimal.NewFromInt(int64(qty)))
	tax := subtotal.Mul(decimal.RequireFromString("0.10")).Round(2)
	item := &models.OrderItem{
		ID:          uuid.New(),
		OrderID:     order.ID,
		ProductID:   product.ID,
		WarehouseID: warehouseID,
		SKU:         product.SKU,
		Name:        product.Name,
		Unit:        product.Unit,
		WeightKg:    product.WeightKg,
		Quantity:    qty,
		UnitPrice:   product.UnitPrice,
		CostPrice:   product.CostPrice,
		TaxAmount:   tax,
		Subtotal:    subtotal,
		Total:       subtotal.Add(tax),
		Status:      status,
	}
	require.NoError(t, conn.Create(item).Error)
	return item
}
