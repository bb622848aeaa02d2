package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/freshlane/pkg/config"
	"github.com/angelmondragon/freshlane/pkg/db/models"
	"github.com/angelmondragon/freshlane/pkg/enums"
	"github.com/angelmondragon/freshlane/pkg/logger"
	"github.com/angelmondragon/freshlane/pkg/metrics"
	"github.com/angelmondragon/freshlane/pkg/outbox"
	"github.com/angelmondragon/freshlane/pkg/outbox/payloads"
	"github.com/angelmondragon/freshlane/pkg/outbox/registry"
)

var testPubSub = config.PubSubConfig{
	OrdersTopic:       "orders",
	BillingTopic:      "billing",
	NotificationTopic: "notifications",
}

func TestProcessBatchPublishesAndRetries(t *testing.T) {
	first := orderPlacedRow(t, 0)
	second := orderPlacedRow(t, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{errs: []error{errors.New("unavailable"), nil}}
	dlq := &fakeDLQ{}
	reg := prometheus.NewRegistry()

	svc := newTestService(t, repo, dlq, pub, metrics.NewOutboxMetrics(reg))
	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	assert.Equal(t, []uuid.UUID{first.ID}, repo.failed)
	assert.Equal(t, []uuid.UUID{second.ID}, repo.published)
	assert.Empty(t, dlq.entries)

	require.Len(t, pub.messages, 2)
	msg := pub.messages[1]
	assert.Equal(t, second.AggregateID.String(), msg.OrderingKey)
	assert.Equal(t, string(enums.EventOrderPlaced), msg.Attributes["event_type"])
	assert.Equal(t, "order", msg.Attributes["aggregate_type"])
	assert.Equal(t, []string{"orders"}, pub.topics, "publisher is cached per topic")
}

func TestProcessBatchDeadLettersUnknownEvent(t *testing.T) {
	row := orderPlacedRow(t, 0)
	row.AggregateType = enums.AggregateInvoice
	repo := &fakeRepo{events: []models.OutboxEvent{row}}
	dlq := &fakeDLQ{}
	pub := &fakePublisher{}

	svc := newTestService(t, repo, dlq, pub, nil)
	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)

	require.Len(t, dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, dlq.entries[0].ErrorReason)
	assert.Equal(t, row.ID, dlq.entries[0].EventID)
	assert.Equal(t, []uuid.UUID{row.ID}, repo.terminal)
	assert.Empty(t, pub.messages)
}

func TestProcessBatchDeadLettersAfterMaxAttempts(t *testing.T) {
	row := orderPlacedRow(t, 2)
	repo := &fakeRepo{events: []models.OutboxEvent{row}}
	dlq := &fakeDLQ{}
	pub := &fakePublisher{errs: []error{errors.New("deadline exceeded")}}

	svc := newTestService(t, repo, dlq, pub, nil)
	svc.maxAttempts = 3
	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)

	require.Len(t, dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, dlq.entries[0].ErrorReason)
	require.NotNil(t, dlq.entries[0].ErrorMessage)
	assert.Contains(t, *dlq.entries[0].ErrorMessage, "deadline exceeded")
	assert.Empty(t, repo.failed)
}

func TestProcessBatchNonRetryablePublishError(t *testing.T) {
	row := orderPlacedRow(t, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{row}}
	dlq := &fakeDLQ{}
	pub := &fakePublisher{errs: []error{registry.NewNonRetryableError(errors.New("message too large"))}}

	svc := newTestService(t, repo, dlq, pub, nil)
	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, dlq.entries[0].ErrorReason)
}

func TestProcessBatchEmpty(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakeDLQ{}, &fakePublisher{}, nil)
	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestProcessBatchFetchError(t *testing.T) {
	repo := &fakeRepo{fetchErr: errors.New("db down")}
	svc := newTestService(t, repo, &fakeDLQ{}, &fakePublisher{}, nil)
	_, err := svc.processBatch(context.Background())
	require.Error(t, err)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	cfg := &config.Config{PubSub: testPubSub}
	_, err := NewService(ServiceParams{Config: cfg, Logger: testLogger()})
	require.Error(t, err)
}

func TestNextBackoffCaps(t *testing.T) {
	assert.Equal(t, time.Second, nextBackoff(500*time.Millisecond, 500*time.Millisecond, 10*time.Second))
	assert.Equal(t, 10*time.Second, nextBackoff(8*time.Second, time.Second, 10*time.Second))
	assert.Equal(t, 2*time.Second, nextBackoff(0, time.Second, 10*time.Second))
}

func newTestService(t *testing.T, repo *fakeRepo, dlq *fakeDLQ, pub *fakePublisher, m *metrics.OutboxMetrics) *Service {
	t.Helper()
	reg, err := registry.NewEventRegistry(testPubSub)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Config:        &config.Config{PubSub: testPubSub, Outbox: config.OutboxConfig{BatchSize: 10, MaxAttempts: 5}},
		Logger:        testLogger(),
		DB:            fakeDB{},
		PubSub:        fakePubSub{},
		Repository:    repo,
		Registry:      reg,
		DLQRepository: dlq,
		Metrics:       m,
		PublisherFactory: func(topic string) publisher {
			pub.topics = append(pub.topics, topic)
			return pub
		},
		Clock: func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return svc
}

func orderPlacedRow(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	orderID := uuid.New()
	data, err := json.Marshal(payloads.OrderPlacedEvent{
		OrderID:     orderID,
		OrderNumber: "ORD-20260302-0001",
		BuyerID:     uuid.New(),
		VendorID:    uuid.New(),
		TotalAmount: decimal.RequireFromString("125.50"),
		ItemCount:   3,
	})
	require.NoError(t, err)
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       payload,
		AttemptCount:  attempts,
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard})
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

type fakePubSub struct{}

func (fakePubSub) Ping(context.Context) error { return nil }

func (fakePubSub) Publisher(string) *gcppubsub.Publisher { return nil }

type fakeRepo struct {
	events    []models.OutboxEvent
	fetchErr  error
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (r *fakeRepo) FetchUnpublishedForPublish(_ *gorm.DB, limit, _ int) ([]models.OutboxEvent, error) {
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	if len(r.events) > limit {
		return r.events[:limit], nil
	}
	return r.events, nil
}

func (r *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	r.published = append(r.published, id)
	return nil
}

func (r *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	r.failed = append(r.failed, id)
	return nil
}

func (r *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	r.terminal = append(r.terminal, id)
	return nil
}

type fakeDLQ struct {
	entries []models.OutboxDLQ
}

func (d *fakeDLQ) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	d.entries = append(d.entries, entry)
	return nil
}

type fakePublisher struct {
	errs     []error
	messages []*gcppubsub.Message
	topics   []string
}

func (p *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	var err error
	if idx := len(p.messages); idx < len(p.errs) {
		err = p.errs[idx]
	}
	p.messages = append(p.messages, msg)
	return fakeResult{err: err}
}

type fakeResult struct {
	err error
}

func (r fakeResult) Get(context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "server-id", nil
}
