package checkout

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/freshlane/internal/cart"
	"github.com/angelmondragon/freshlane/internal/catalog"
	"github.com/angelmondragon/freshlane/internal/inventory"
	"github.com/angelmondragon/freshlane/internal/notifications"
	"github.com/angelmondragon/freshlane/internal/orderitems"
	"github.com/angelmondragon/freshlane/internal/orders"
	"github.com/angelmondragon/freshlane/internal/pricing"
	"github.com/angelmondragon/freshlane/pkg/db/dbtest"
	"github.com/angelmondragon/freshlane/pkg/db/models"
	"github.com/angelmondragon/freshlane/pkg/enums"
	pkgerrors "github.com/angelmondragon/freshlane/pkg/errors"
	"github.com/angelmondragon/freshlane/pkg/outbox/payloads"
)

type recordingNotifier struct {
	got []notifications.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n notifications.Notification) {
	r.got = append(r.got, n)
}

type checkoutFixture struct {
	conn      *gorm.DB
	carts     cart.Service
	svc       Service
	orders    *orders.Repository
	notifier  *recordingNotifier
	buyer     uuid.UUID
	warehouse uuid.UUID
	apples    *models.Product
	address   string
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	client, conn := dbtest.Client(t)
	now := time.Date(2026, 4, 7, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	catalogRepo := catalog.NewRepository(conn)
	pricer, err := cart.NewPricer(pricing.NewEngine(pricing.DefaultRules()), catalogRepo)
	require.NoError(t, err)
	cartRepo := cart.NewRepository(conn)
	carts, err := cart.NewService(cart.ServiceParams{
		Repository: cartRepo,
		Catalog:    catalogRepo,
		Pricer:     pricer,
		TxRunner:   client,
		Clock:      clock,
	})
	require.NoError(t, err)

	f := &checkoutFixture{
		conn:      conn,
		carts:     carts,
		orders:    orders.NewRepository(conn),
		notifier:  &recordingNotifier{},
		buyer:     uuid.New(),
		warehouse: uuid.New(),
		address:   "12 Market St, Sydney",
	}
	svc, err := NewService(ServiceParams{
		Carts:    cartRepo,
		Pricer:   pricer,
		Orders:   f.orders,
		Items:    orderitems.NewRepository(conn),
		Ledger:   inventory.NewLedger(conn, nil),
		TxRunner: client,
		Notifier: f.notifier,
		Clock:    clock,
	})
	require.NoError(t, err)
	f.svc = svc

	f.apples = dbtest.Product(t, conn, "APPLES", "2.00",
		models.ProductPriceTier{Name: "case", MinQuantity: 10, DiscountPercent: decimal.NewFromInt(5)},
	)
	dbtest.Stock(t, conn, f.apples.ID, f.warehouse, 5)
	return f
}

func (f *checkoutFixture) filledCart(t *testing.T, qty int) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	created, err := f.carts.Create(ctx, cart.CreateInput{BuyerID: f.buyer, VendorID: f.apples.VendorID})
	require.NoError(t, err)
	if qty > 0 {
		_, err = f.carts.AddItem(ctx, cart.AddItemInput{
			Ref:         cart.Ref{CartID: created.Cart.ID, BuyerID: f.buyer},
			ProductID:   f.apples.ID,
			WarehouseID: f.warehouse,
			Quantity:    qty,
		})
		require.NoError(t, err)
	}
	return created.Cart.ID
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestCheckoutSubmitsOrderFromCart(t *testing.T) {
	f := newCheckoutFixture(t)
	cartID := f.filledCart(t, 12)

	result, err := f.svc.Checkout(context.Background(), Input{
		CartID:          cartID,
		BuyerID:         f.buyer,
		DeliveryAddress: &f.address,
		Metadata:        map[string]string{"ip": "10.0.0.1"},
	})
	require.NoError(t, err)
	require.False(t, result.Replayed)

	order := result.Order
	assert.Regexp(t, regexp.MustCompile(`^ORD-20260407-[A-Z0-9]{6}$`), order.OrderNumber)
	assert.Equal(t, enums.OrderStatusSubmitted, order.Status)
	assert.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	require.NotNil(t, order.SubmittedAt)
	require.NotNil(t, order.CartID)
	assert.Equal(t, cartID, *order.CartID)
	assert.Equal(t, "22.80", order.Subtotal.StringFixed(2))
	assert.Equal(t, "2.28", order.TaxAmount.StringFixed(2))
	assert.Equal(t, "24.00", order.DeliveryFee.StringFixed(2))
	assert.Equal(t, "49.08", order.TotalAmount.StringFixed(2))
	require.NotNil(t, order.DeliveryAddress)
	assert.Equal(t, f.address, *order.DeliveryAddress)

	require.Len(t, result.Items, 1)
	item := result.Items[0]
	assert.Equal(t, enums.OrderItemStatusPending, item.Status)
	assert.Equal(t, "APPLES", item.SKU)
	assert.Equal(t, "1.90", item.UnitPrice.StringFixed(2))
	assert.Equal(t, "1.20", item.DiscountAmount.StringFixed(2))
	assert.Equal(t, "1.20", item.CostPrice.StringFixed(2))
	assert.Equal(t, 0, item.ReservedQty)
	assert.Equal(t, []string{"APPLES: only 5 available"}, result.Warnings)

	history, err := f.orders.History(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, enums.OrderStatusDraft, history[0].PreviousStatus)
	assert.Equal(t, enums.OrderStatusSubmitted, history[0].Status)
	assert.Equal(t, enums.ActorRoleBuyer, history[0].ActorRole)
	assert.Equal(t, cartID.String(), history[0].Metadata["cart_id"])
	assert.Equal(t, "10.0.0.1", history[0].Metadata["ip"])

	stored, err := f.carts.Get(context.Background(), cartID)
	require.NoError(t, err)
	assert.Equal(t, enums.CartStatusCheckedOut, stored.Cart.Status)
	assert.NotNil(t, stored.Cart.CheckedOutAt)

	require.Len(t, f.notifier.got, 1)
	n := f.notifier.got[0]
	assert.Equal(t, enums.EventOrderPlaced, n.Event)
	placed, ok := n.Data.(payloads.OrderPlacedEvent)
	require.True(t, ok)
	assert.Equal(t, order.ID, placed.OrderID)
	assert.Equal(t, 1, placed.ItemCount)
}

func TestCheckoutTwiceReturnsSameOrder(t *testing.T) {
	f := newCheckoutFixture(t)
	cartID := f.filledCart(t, 3)
	input := Input{CartID: cartID, BuyerID: f.buyer, DeliveryAddress: &f.address}

	first, err := f.svc.Checkout(context.Background(), input)
	require.NoError(t, err)
	second, err := f.svc.Checkout(context.Background(), input)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Len(t, second.Items, 1)
	assert.Len(t, f.notifier.got, 1)

	var count int64
	require.NoError(t, f.conn.Model(&models.Order{}).Where("cart_id = ?", cartID).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	_, err = f.svc.Checkout(context.Background(), Input{CartID: cartID, BuyerID: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestCheckoutRejectsIncompleteCarts(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	empty := f.filledCart(t, 0)
	_, err := f.svc.Checkout(ctx, Input{CartID: empty, BuyerID: f.buyer, DeliveryAddress: &f.address})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	filled := f.filledCart(t, 2)
	blank := "  "
	_, err = f.svc.Checkout(ctx, Input{CartID: filled, BuyerID: f.buyer, DeliveryAddress: &blank})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Checkout(ctx, Input{CartID: filled, BuyerID: uuid.New(), DeliveryAddress: &f.address})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.Checkout(ctx, Input{CartID: uuid.New(), BuyerID: f.buyer})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	stored, err := f.carts.Get(ctx, filled)
	require.NoError(t, err)
	assert.Equal(t, enums.CartStatusActive, stored.Cart.Status)
	assert.Empty(t, f.notifier.got)
}

func TestPickupCheckoutNeedsNoAddress(t *testing.T) {
	f := newCheckoutFixture(t)
	cartID := f.filledCart(t, 2)
	_, err := f.carts.SetFulfillment(context.Background(), cart.Ref{CartID: cartID}, enums.FulfillmentTypePickup)
	require.NoError(t, err)

	result, err := f.svc.Checkout(context.Background(), Input{CartID: cartID, BuyerID: f.buyer})
	require.NoError(t, err)
	assert.Equal(t, enums.FulfillmentTypePickup, result.Order.FulfillmentType)
	assert.True(t, result.Order.DeliveryFee.IsZero())
	assert.Nil(t, result.Order.DeliveryAddress)
	assert.Empty(t, result.Warnings)
}
