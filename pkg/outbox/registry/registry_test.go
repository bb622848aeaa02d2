package registry

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/freshlane/pkg/config"
	"github.com/angelmondragon/freshlane/pkg/db/models"
	"github.com/angelmondragon/freshlane/pkg/enums"
	"github.com/angelmondragon/freshlane/pkg/outbox"
	"github.com/angelmondragon/freshlane/pkg/outbox/payloads"
)

var testTopics = config.PubSubConfig{
	OrdersTopic:       "orders-topic",
	BillingTopic:      "billing-topic",
	NotificationTopic: "notification-topic",
}

func TestResolveDecodesTypedPayload(t *testing.T) {
	reg := newTestRegistry(t)
	orderID := uuid.New()

	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload: envelopeFor(t, payloads.OrderStatusChangedEvent{
			OrderID:        orderID,
			OrderNumber:    "ORD-20260301-AB12CD",
			PreviousStatus: enums.OrderStatusSubmitted,
			Status:         enums.OrderStatusConfirmed,
			ChangedAt:      time.Now().UTC(),
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, "orders-topic", resolved.Descriptor.Topic)
	assert.NotEmpty(t, resolved.Envelope.EventID)
	assert.False(t, resolved.Envelope.OccurredAt.IsZero())

	payload, ok := resolved.Payload.(*payloads.OrderStatusChangedEvent)
	require.True(t, ok, "payload type %T", resolved.Payload)
	assert.Equal(t, orderID, payload.OrderID)
	assert.Equal(t, enums.OrderStatusConfirmed, payload.Status)
}

func TestResolveRoutesByAggregate(t *testing.T) {
	reg := newTestRegistry(t)
	id := uuid.New()

	cases := []struct {
		event     enums.OutboxEventType
		aggregate enums.OutboxAggregateType
		data      any
		topic     string
	}{
		{enums.EventInvoicePaymentPosted, enums.AggregateInvoice, payloads.InvoicePaymentRecordedEvent{InvoiceID: id, TransactionRef: "txn-1", Status: enums.InvoiceStatusPartial}, "billing-topic"},
		{enums.EventOrderItemBackordered, enums.AggregateOrderItem, payloads.OrderItemBackorderedEvent{ItemID: id, SKU: "TOM-ROMA", Quantity: 4}, "orders-topic"},
		{enums.EventInventoryLowStock, enums.AggregateInventory, payloads.InventoryLowStockEvent{ProductID: id}, "notification-topic"},
	}
	for _, tc := range cases {
		t.Run(string(tc.event), func(t *testing.T) {
			resolved, err := reg.Resolve(models.OutboxEvent{
				EventType:     tc.event,
				AggregateType: tc.aggregate,
				AggregateID:   id,
				Payload:       envelopeFor(t, tc.data),
			})
			require.NoError(t, err)
			assert.Equal(t, tc.topic, resolved.Descriptor.Topic)
		})
	}
}

func TestResolveRejectsBadRows(t *testing.T) {
	reg := newTestRegistry(t)

	cases := map[string]models.OutboxEvent{
		"unknown type": {
			EventType:     "cart.abandoned",
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       envelopeFor(t, map[string]string{"reason": "none"}),
		},
		"aggregate mismatch": {
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateInvoice,
			AggregateID:   uuid.New(),
			Payload:       envelopeFor(t, map[string]string{}),
		},
		"nil aggregate id": {
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			Payload:       envelopeFor(t, map[string]string{}),
		},
		"null data": {
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       envelopeFor(t, nil),
		},
		"garbage envelope": {
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`"nope"`),
		},
	}
	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			require.Error(t, err)
			assert.True(t, IsNonRetryable(err), "got %T", err)
		})
	}
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	cfg := testTopics
	cfg.BillingTopic = ""
	_, err := NewEventRegistry(cfg)
	assert.ErrorContains(t, err, "billing topic")
}

func TestTopicsAreDistinctAndSorted(t *testing.T) {
	assert.Equal(t, []string{"billing-topic", "notification-topic", "orders-topic"}, newTestRegistry(t).Topics())
}

func TestIsNonRetryableFollowsWrapping(t *testing.T) {
	err := fmt.Errorf("publish: %w", NewNonRetryableError(fmt.Errorf("too large")))
	assert.True(t, IsNonRetryable(err))
	assert.False(t, IsNonRetryable(fmt.Errorf("transient")))
}

func newTestRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(testTopics)
	require.NoError(t, err)
	return reg
}

func envelopeFor(t *testing.T, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	body, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return body
}
