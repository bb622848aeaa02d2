package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/freshlane/pkg/db/dbtest"
	"github.com/angelmondragon/freshlane/pkg/db/models"
	"github.com/angelmondragon/freshlane/pkg/enums"
)

func TestRepositoryProductLoadsTiersInOrder(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	product := &models.Product{
		VendorID:    uuid.New(),
		SKU:         "LET-ICE-BOX",
		Name:        "Iceberg lettuce",
		Category:    "vegetables",
		Unit:        "box",
		UnitPrice:   decimal.RequireFromString("24.00"),
		CostPrice:   decimal.RequireFromString("15.50"),
		WeightKg:    decimal.RequireFromString("8"),
		MinOrderQty: 1,
		IsActive:    true,
		PriceTiers: []models.ProductPriceTier{
			{Name: "pallet", MinQuantity: 40, DiscountPercent: decimal.NewFromInt(12)},
			{Name: "stack", MinQuantity: 10, DiscountPercent: decimal.NewFromInt(5)},
		},
	}
	_, err := repo.CreateProduct(ctx, product)
	require.NoError(t, err)

	got, err := repo.Product(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, got.PriceTiers, 2)
	assert.Equal(t, 10, got.PriceTiers[0].MinQuantity)
	assert.Equal(t, 40, got.PriceTiers[1].MinQuantity)
	assert.False(t, got.TaxRate.Valid)
	assert.True(t, got.UnitPrice.Equal(decimal.RequireFromString("24.00")))

	require.NoError(t, repo.ReplacePriceTiers(ctx, product.ID, []models.ProductPriceTier{
		{Name: "bulk", MinQuantity: 25, DiscountPercent: decimal.NewFromInt(8)},
	}))
	got, err = repo.Product(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, got.PriceTiers, 1)
	assert.Equal(t, "bulk", got.PriceTiers[0].Name)

	listed, err := repo.ListByVendor(ctx, product.VendorID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestRepositoryCouponsByCode(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	_, err := repo.CreateCoupon(ctx, &models.Coupon{
		Code:     "spring10",
		Kind:     enums.CouponKindPercent,
		Value:    decimal.NewFromInt(10),
		MinSpend: decimal.Zero,
		IsActive: true,
	})
	require.NoError(t, err)

	coupons, err := repo.CouponsByCode(ctx, []string{" Spring10 ", "MISSING"})
	require.NoError(t, err)
	require.Len(t, coupons, 1)
	assert.Equal(t, "SPRING10", coupons[0].Code)

	none, err := repo.CouponsByCode(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}
