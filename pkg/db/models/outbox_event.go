package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/freshlane/pkg/enums"
)

// OutboxEvent is a domain event written in the same transaction as the state
// change it describes. Payload holds the versioned JSON envelope.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:text;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:text;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error"`
	PublishedAt   *time.Time                `gorm:"column:published_at"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }

// Delivered reports whether the publisher has acknowledged the row.
func (e OutboxEvent) Delivered() bool { return e.PublishedAt != nil }

// LogFields describes the row for structured log lines.
func (e OutboxEvent) LogFields() map[string]any {
	fields := map[string]any{
		"outbox_id":      e.ID.String(),
		"event_type":     e.EventType,
		"aggregate_type": e.AggregateType,
		"aggregate_id":   e.AggregateID.String(),
		"attempt_count":  e.AttemptCount,
	}
	if e.LastError != nil {
		fields["last_error"] = *e.LastError
	}
	return fields
}
