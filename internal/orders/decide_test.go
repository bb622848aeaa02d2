package orders

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/freshlane/pkg/db/models"
	"github.com/angelmondragon/freshlane/pkg/enums"
	pkgerrors "github.com/angelmondragon/freshlane/pkg/errors"
)

var decideNow = time.Date(2026, 4, 7, 9, 30, 0, 0, time.UTC)

func TestDecideFollowsAdjacency(t *testing.T) {
	statuses := []enums.OrderStatus{
		enums.OrderStatusDraft,
		enums.OrderStatusSubmitted,
		enums.OrderStatusConfirmed,
		enums.OrderStatusPreparing,
		enums.OrderStatusReadyForPickup,
		enums.OrderStatusInTransit,
		enums.OrderStatusDelivered,
		enums.OrderStatusCompleted,
		enums.OrderStatusCancelled,
		enums.OrderStatusRefunded,
	}
	for _, from := range statuses {
		for _, to := range statuses {
			order := models.Order{ID: uuid.New(), Status: from}
			d, err := Decide(order, nil, Request{Target: to}, decideNow)
			if from.CanTransitionTo(to) {
				require.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, d.Order.Status)
				assert.Equal(t, from, d.Previous)
				continue
			}
			require.Error(t, err, "%s -> %s", from, to)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition), "%s -> %s", from, to)
		}
	}
}

func TestDecideRejectsUnknownAndArchived(t *testing.T) {
	_, err := Decide(models.Order{Status: enums.OrderStatusDraft}, nil, Request{Target: "shipped"}, decideNow)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = Decide(models.Order{Status: enums.OrderStatusDraft, Archived: true}, nil, Request{Target: enums.OrderStatusSubmitted}, decideNow)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidState))
}

func TestDecideInvalidTransitionDetails(t *testing.T) {
	_, err := Decide(models.Order{Status: enums.OrderStatusInTransit}, nil, Request{Target: enums.OrderStatusCancelled}, decideNow)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, enums.OrderStatusInTransit, details["from"])
	assert.Equal(t, []enums.OrderStatus{enums.OrderStatusDelivered}, details["allowed"])
}

func TestDecideStampsTimestampOnce(t *testing.T) {
	earlier := decideNow.Add(-time.Hour)
	order := models.Order{ID: uuid.New(), Status: enums.OrderStatusSubmitted, ConfirmedAt: &earlier}

	d, err := Decide(order, nil, Request{Target: enums.OrderStatusConfirmed}, decideNow)
	require.NoError(t, err)
	assert.Equal(t, earlier, *d.Order.ConfirmedAt)

	order = models.Order{ID: uuid.New(), Status: enums.OrderStatusReadyForPickup}
	d, err = Decide(order, nil, Request{Target: enums.OrderStatusInTransit}, decideNow)
	require.NoError(t, err)
	require.NotNil(t, d.Order.PickedUpAt)
	assert.Equal(t, decideNow, *d.Order.PickedUpAt)
}

func TestDecideHistory(t *testing.T) {
	actor := uuid.New()
	order := models.Order{ID: uuid.New(), Status: enums.OrderStatusDraft}
	meta := map[string]string{"channel": "portal"}

	d, err := Decide(order, nil, Request{
		Target:    enums.OrderStatusSubmitted,
		Note:      "  rush please ",
		ActorID:   actor,
		ActorRole: enums.ActorRoleBuyer,
		Metadata:  meta,
	}, decideNow)
	require.NoError(t, err)

	h := d.History
	assert.Equal(t, order.ID, h.OrderID)
	assert.Equal(t, enums.OrderStatusDraft, h.PreviousStatus)
	assert.Equal(t, enums.OrderStatusSubmitted, h.Status)
	assert.Equal(t, enums.ActorRoleBuyer, h.ActorRole)
	require.NotNil(t, h.ActorID)
	assert.Equal(t, actor, *h.ActorID)
	require.NotNil(t, h.Note)
	assert.Equal(t, "rush please", *h.Note)
	assert.Equal(t, "portal", h.Metadata["channel"])

	meta["channel"] = "changed"
	assert.Equal(t, "portal", h.Metadata["channel"])

	d, err = Decide(order, nil, Request{Target: enums.OrderStatusSubmitted}, decideNow)
	require.NoError(t, err)
	assert.Equal(t, enums.ActorRoleSystem, d.History.ActorRole)
	assert.Nil(t, d.History.ActorID)
	assert.Nil(t, d.History.Note)
}

func TestDecideConfirmReservesPendingLines(t *testing.T) {
	product, warehouse := uuid.New(), uuid.New()
	items := []models.OrderItem{
		{ID: uuid.New(), ProductID: product, WarehouseID: warehouse, Quantity: 10, ReservedQty: 4, Status: enums.OrderItemStatusPending},
		{ID: uuid.New(), ProductID: uuid.New(), WarehouseID: warehouse, Quantity: 3, Status: enums.OrderItemStatusSubstituted},
	}
	d, err := Decide(models.Order{ID: uuid.New(), Status: enums.OrderStatusSubmitted}, items, Request{Target: enums.OrderStatusConfirmed}, decideNow)
	require.NoError(t, err)

	require.Len(t, d.Commands, 3)
	assert.Equal(t, CommandReserveStock, d.Commands[0].Kind)
	require.Len(t, d.Commands[0].Lines, 1)
	assert.Equal(t, 6, d.Commands[0].Lines[0].Quantity)
	assert.Equal(t, CommandSetItems, d.Commands[1].Kind)
	assert.Equal(t, []uuid.UUID{items[0].ID}, d.Commands[1].ItemIDs)
	assert.Equal(t, enums.OrderItemStatusConfirmed, d.Commands[1].ItemStatus)
	assert.Equal(t, CommandNotify, d.Commands[2].Kind)
}

func TestDecideCancelReleasesReservations(t *testing.T) {
	actor := uuid.New()
	warehouse := uuid.New()
	items := []models.OrderItem{
		{ID: uuid.New(), ProductID: uuid.New(), WarehouseID: warehouse, Quantity: 5, ReservedQty: 5, Status: enums.OrderItemStatusPreparing},
		{ID: uuid.New(), ProductID: uuid.New(), WarehouseID: warehouse, Quantity: 2, Status: enums.OrderItemStatusSubstituted},
	}
	order := models.Order{ID: uuid.New(), Status: enums.OrderStatusPreparing}

	d, err := Decide(order, items, Request{Target: enums.OrderStatusCancelled, Note: "buyer closed", ActorID: actor, ActorRole: enums.ActorRoleVendor}, decideNow)
	require.NoError(t, err)

	require.Len(t, d.Commands, 3)
	assert.Equal(t, CommandReleaseStock, d.Commands[0].Kind)
	assert.Equal(t, 5, d.Commands[0].Lines[0].Quantity)
	assert.Equal(t, []uuid.UUID{items[0].ID}, d.Commands[1].ItemIDs)
	require.NotNil(t, d.Order.CancelledBy)
	assert.Equal(t, actor, *d.Order.CancelledBy)
	require.NotNil(t, d.Order.CancellationReason)
	assert.Equal(t, "buyer closed", *d.Order.CancellationReason)
	require.NotNil(t, d.Order.CancelledAt)
}

func TestDecideCancelCoversPickedAndPackedItems(t *testing.T) {
	warehouse := uuid.New()
	picked := models.OrderItem{ID: uuid.New(), ProductID: uuid.New(), WarehouseID: warehouse, Quantity: 10, ReservedQty: 10, PickedQty: 10, Status: enums.OrderItemStatusPicked}
	packed := models.OrderItem{ID: uuid.New(), ProductID: uuid.New(), WarehouseID: warehouse, Quantity: 4, ReservedQty: 4, PackedQty: 4, Status: enums.OrderItemStatusPacked}
	order := models.Order{ID: uuid.New(), Status: enums.OrderStatusReadyForPickup}

	d, err := Decide(order, []models.OrderItem{picked, packed}, Request{Target: enums.OrderStatusCancelled}, decideNow)
	require.NoError(t, err)
	require.Len(t, d.Commands, 3)
	assert.Equal(t, CommandReleaseStock, d.Commands[0].Kind)
	assert.Len(t, d.Commands[0].Lines, 2)
	assert.ElementsMatch(t, []uuid.UUID{picked.ID, packed.ID}, d.Commands[1].ItemIDs)
	assert.Equal(t, enums.OrderItemStatusCancelled, d.Commands[1].ItemStatus)
}

func TestDecideCancelRejectsShippedItems(t *testing.T) {
	shipped := models.OrderItem{ID: uuid.New(), ProductID: uuid.New(), Quantity: 3, ReservedQty: 3, Status: enums.OrderItemStatusShipped}
	ready := models.OrderItem{ID: uuid.New(), ProductID: uuid.New(), Quantity: 2, ReservedQty: 2, Status: enums.OrderItemStatusReady}
	order := models.Order{ID: uuid.New(), Status: enums.OrderStatusReadyForPickup}

	_, err := Decide(order, []models.OrderItem{ready, shipped}, Request{Target: enums.OrderStatusCancelled}, decideNow)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidState))
}

func TestDeliveryComplete(t *testing.T) {
	assert.False(t, DeliveryComplete(nil))
	assert.False(t, DeliveryComplete([]models.OrderItem{{Status: enums.OrderItemStatusCancelled}}))
	assert.False(t, DeliveryComplete([]models.OrderItem{
		{Status: enums.OrderItemStatusDelivered},
		{Status: enums.OrderItemStatusShipped},
	}))
	assert.True(t, DeliveryComplete([]models.OrderItem{
		{Status: enums.OrderItemStatusDelivered},
		{Status: enums.OrderItemStatusSubstituted},
	}))
}

func TestNewOrderNumber(t *testing.T) {
	number, err := NewOrderNumber(decideNow)
	require.NoError(t, err)
	assert.Regexp(t, `^ORD-20260407-[A-Z0-9]{6}$`, number)
}
