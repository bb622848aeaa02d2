package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/freshlane/internal/catalog"
	"github.com/angelmondragon/freshlane/internal/pricing"
	"github.com/angelmondragon/freshlane/pkg/db/dbtest"
	"github.com/angelmondragon/freshlane/pkg/db/models"
	"github.com/angelmondragon/freshlane/pkg/enums"
	pkgerrors "github.com/angelmondragon/freshlane/pkg/errors"
)

type cartFixture struct {
	conn      *gorm.DB
	svc       Service
	catalog   *catalog.Repository
	now       time.Time
	buyer     uuid.UUID
	warehouse uuid.UUID
	apples    *models.Product
}

func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()
	client, conn := dbtest.Client(t)
	f := &cartFixture{
		conn:      conn,
		catalog:   catalog.NewRepository(conn),
		now:       time.Date(2026, 4, 7, 12, 0, 0, 0, time.UTC),
		buyer:     uuid.New(),
		warehouse: uuid.New(),
	}
	f.apples = dbtest.Product(t, conn, "APPLES", "2.00",
		models.ProductPriceTier{Name: "case", MinQuantity: 10, DiscountPercent: decimal.NewFromInt(5)},
		models.ProductPriceTier{Name: "pallet", MinQuantity: 50, DiscountPercent: decimal.NewFromInt(10)},
	)

	pricer, err := NewPricer(pricing.NewEngine(pricing.DefaultRules()), f.catalog)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Repository: NewRepository(conn),
		Catalog:    f.catalog,
		Pricer:     pricer,
		TxRunner:   client,
		Clock:      func() time.Time { return f.now },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *cartFixture) newCart(t *testing.T) *Detail {
	t.Helper()
	detail, err := f.svc.Create(context.Background(), CreateInput{BuyerID: f.buyer, VendorID: f.apples.VendorID})
	require.NoError(t, err)
	return detail
}

func (f *cartFixture) add(t *testing.T, cartID uuid.UUID, qty int) *Detail {
	t.Helper()
	detail, err := f.svc.AddItem(context.Background(), AddItemInput{
		Ref:         Ref{CartID: cartID, BuyerID: f.buyer},
		ProductID:   f.apples.ID,
		WarehouseID: f.warehouse,
		Quantity:    qty,
	})
	require.NoError(t, err)
	return detail
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)

	_, err = NewPricer(nil, nil)
	require.Error(t, err)
}

func TestCreateDefaultsToDelivery(t *testing.T) {
	f := newCartFixture(t)
	detail := f.newCart(t)

	assert.Equal(t, enums.CartStatusActive, detail.Cart.Status)
	assert.Equal(t, enums.FulfillmentTypeDelivery, detail.Cart.FulfillmentType)
	require.NotNil(t, detail.Cart.ExpiresAt)
	assert.Equal(t, f.now.Add(DefaultTTL), *detail.Cart.ExpiresAt)

	_, err := f.svc.Create(context.Background(), CreateInput{BuyerID: f.buyer})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestAddItemPricesAndMergesLines(t *testing.T) {
	f := newCartFixture(t)
	cart := f.newCart(t)

	detail := f.add(t, cart.Cart.ID, 5)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, "2.00", detail.Items[0].UnitPrice.StringFixed(2))
	assert.Nil(t, detail.Items[0].TierName)
	assert.Equal(t, "10.00", detail.Cart.Subtotal.StringFixed(2))
	assert.Equal(t, "1.00", detail.Cart.TaxAmount.StringFixed(2))
	assert.Equal(t, "10.00", detail.Cart.ShippingAmount.StringFixed(2))
	assert.Equal(t, "21.00", detail.Cart.TotalAmount.StringFixed(2))
	assert.Equal(t, 5, detail.Cart.ItemsCount)

	detail = f.add(t, cart.Cart.ID, 15)
	require.Len(t, detail.Items, 1)
	item := detail.Items[0]
	assert.Equal(t, 20, item.Quantity)
	assert.Equal(t, "1.90", item.UnitPrice.StringFixed(2))
	require.NotNil(t, item.TierName)
	assert.Equal(t, "case", *item.TierName)
	assert.Equal(t, "2.00", item.Savings().StringFixed(2))
	assert.Equal(t, "38.00", detail.Cart.Subtotal.StringFixed(2))
	assert.Equal(t, "40.00", detail.Cart.ShippingAmount.StringFixed(2))
	assert.Equal(t, "81.80", detail.Cart.TotalAmount.StringFixed(2))

	stored, err := f.svc.Get(context.Background(), cart.Cart.ID)
	require.NoError(t, err)
	assert.Equal(t, "81.80", stored.Cart.TotalAmount.StringFixed(2))
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "38.00", stored.Items[0].Subtotal.StringFixed(2))
}

func TestAddItemRejectsOtherVendorsProduct(t *testing.T) {
	f := newCartFixture(t)
	cart := f.newCart(t)
	pears := dbtest.Product(t, f.conn, "PEARS", "3.00")

	_, err := f.svc.AddItem(context.Background(), AddItemInput{
		Ref:         Ref{CartID: cart.Cart.ID},
		ProductID:   pears.ID,
		WarehouseID: f.warehouse,
		Quantity:    2,
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	stored, err := f.svc.Get(context.Background(), cart.Cart.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Items)
	assert.True(t, stored.Cart.Subtotal.IsZero())
}

func TestUpdateItemToZeroRemovesLine(t *testing.T) {
	f := newCartFixture(t)
	cart := f.newCart(t)
	detail := f.add(t, cart.Cart.ID, 12)
	itemID := detail.Items[0].ID
	ref := Ref{CartID: cart.Cart.ID, BuyerID: f.buyer}

	detail, err := f.svc.UpdateItem(context.Background(), UpdateItemInput{Ref: ref, ItemID: itemID, Quantity: 60})
	require.NoError(t, err)
	assert.Equal(t, "1.80", detail.Items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "108.00", detail.Cart.Subtotal.StringFixed(2))

	detail, err = f.svc.UpdateItem(context.Background(), UpdateItemInput{Ref: ref, ItemID: itemID, Quantity: 0})
	require.NoError(t, err)
	assert.Empty(t, detail.Items)
	assert.True(t, detail.Cart.TotalAmount.IsZero())
	assert.Equal(t, 0, detail.Cart.ItemsCount)

	_, err = f.svc.RemoveItem(context.Background(), ref, itemID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestApplyAndRemoveCoupon(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	_, err := f.catalog.CreateCoupon(ctx, &models.Coupon{
		Code:     "save10",
		Kind:     enums.CouponKindPercent,
		Value:    decimal.NewFromInt(10),
		MinSpend: decimal.Zero,
		IsActive: true,
	})
	require.NoError(t, err)
	_, err = f.catalog.CreateCoupon(ctx, &models.Coupon{
		Code:     "BIGSPEND",
		Kind:     enums.CouponKindFixed,
		Value:    decimal.NewFromInt(20),
		MinSpend: decimal.NewFromInt(100),
		IsActive: true,
	})
	require.NoError(t, err)

	cart := f.newCart(t)
	f.add(t, cart.Cart.ID, 5)
	ref := Ref{CartID: cart.Cart.ID, BuyerID: f.buyer}

	detail, err := f.svc.ApplyCoupon(ctx, ref, " Save10 ")
	require.NoError(t, err)
	require.Len(t, detail.Applied, 1)
	assert.Equal(t, "1.00", detail.Cart.DiscountAmount.StringFixed(2))
	assert.Equal(t, "20.00", detail.Cart.TotalAmount.StringFixed(2))
	assert.Equal(t, []string{"SAVE10"}, []string(detail.Cart.CouponCodes))

	_, err = f.svc.ApplyCoupon(ctx, ref, "SAVE10")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	_, err = f.svc.ApplyCoupon(ctx, ref, "NOPE")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.ApplyCoupon(ctx, ref, "BIGSPEND")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	stored, err := f.svc.Get(ctx, cart.Cart.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"SAVE10"}, []string(stored.Cart.CouponCodes))

	detail, err = f.svc.RemoveCoupon(ctx, ref, "save10")
	require.NoError(t, err)
	assert.True(t, detail.Cart.DiscountAmount.IsZero())
	assert.Equal(t, "21.00", detail.Cart.TotalAmount.StringFixed(2))

	_, err = f.svc.RemoveCoupon(ctx, ref, "save10")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestPickupCartHasNoShipping(t *testing.T) {
	f := newCartFixture(t)
	cart := f.newCart(t)
	f.add(t, cart.Cart.ID, 5)

	detail, err := f.svc.SetFulfillment(context.Background(), Ref{CartID: cart.Cart.ID}, enums.FulfillmentTypePickup)
	require.NoError(t, err)
	assert.True(t, detail.Cart.ShippingAmount.IsZero())
	assert.Equal(t, "11.00", detail.Cart.TotalAmount.StringFixed(2))
}

func TestMutationsRejectForeignOrClosedCarts(t *testing.T) {
	f := newCartFixture(t)
	cart := f.newCart(t)

	_, err := f.svc.AddItem(context.Background(), AddItemInput{
		Ref:         Ref{CartID: cart.Cart.ID, BuyerID: uuid.New()},
		ProductID:   f.apples.ID,
		WarehouseID: f.warehouse,
		Quantity:    1,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	f.now = f.now.Add(DefaultTTL)
	_, err = f.svc.Clear(context.Background(), Ref{CartID: cart.Cart.ID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidState))

	_, err = f.svc.Clear(context.Background(), Ref{CartID: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestExpireStaleExpiresAndAbandons(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	start := f.now

	old := f.newCart(t)
	f.now = start.Add(6 * 24 * time.Hour)
	idle := f.newCart(t)

	sweepAt := start.Add(DefaultTTL + time.Hour)
	result, err := f.svc.ExpireStale(ctx, sweepAt, 100)
	require.NoError(t, err)
	assert.Equal(t, ExpiryResult{Expired: 1, Abandoned: 1}, result)

	expired, err := f.svc.Get(ctx, old.Cart.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.CartStatusExpired, expired.Cart.Status)

	abandoned, err := f.svc.Get(ctx, idle.Cart.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.CartStatusAbandoned, abandoned.Cart.Status)
	assert.NotNil(t, abandoned.Cart.AbandonedAt)

	result, err = f.svc.ExpireStale(ctx, sweepAt, 100)
	require.NoError(t, err)
	assert.Equal(t, ExpiryResult{}, result)

	f.now = sweepAt
	revived := f.add(t, idle.Cart.ID, 1)
	assert.Equal(t, enums.CartStatusActive, revived.Cart.Status)
	assert.Nil(t, revived.Cart.AbandonedAt)

	_, err = f.svc.Clear(ctx, Ref{CartID: old.Cart.ID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidState))
}
