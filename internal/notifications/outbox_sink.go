package notifications

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/freshlane/pkg/db"
	"github.com/angelmondragon/freshlane/pkg/outbox"
)

type emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// OutboxSink writes notifications to outbox_events for the publisher binary.
type OutboxSink struct {
	tx      db.TxRunner
	emitter emitter
}

// NewOutboxSink builds a sink on top of the outbox service.
func NewOutboxSink(tx db.TxRunner, e emitter) (*OutboxSink, error) {
	if tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if e == nil {
		return nil, errors.New("outbox emitter required")
	}
	return &OutboxSink{tx: tx, emitter: e}, nil
}

// Deliver inserts one outbox row per notification.
func (s *OutboxSink) Deliver(ctx context.Context, n Notification) error {
	event := outbox.DomainEvent{
		EventType:     n.Event,
		AggregateType: n.AggregateType,
		AggregateID:   n.AggregateID,
		Actor:         n.Actor,
		Data:          n.Data,
		Version:       1,
		OccurredAt:    n.OccurredAt,
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.emitter.Emit(ctx, tx, event)
	})
}
