package cron

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/freshlane/pkg/db/dbtest"
	"github.com/angelmondragon/freshlane/pkg/db/models"
	"github.com/angelmondragon/freshlane/pkg/enums"
	"github.com/angelmondragon/freshlane/pkg/logger"
	"github.com/angelmondragon/freshlane/pkg/outbox"
)

func insertOutboxRow(t *testing.T, conn *gorm.DB, created time.Time, published *time.Time, attempts int) uuid.UUID {
	t.Helper()
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		CreatedAt:     created,
		PublishedAt:   published,
		AttemptCount:  attempts,
	}
	require.NoError(t, conn.Create(&row).Error)
	return row.ID
}

func TestOutboxRetentionPurgesOldDeliveredAndDeadRows(t *testing.T) {
	client, conn := dbtest.Client(t)
	now := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	old := now.Add(-40 * 24 * time.Hour)
	recent := now.Add(-2 * 24 * time.Hour)

	oldPublished := insertOutboxRow(t, conn, old, &old, 1)
	recentPublished := insertOutboxRow(t, conn, recent, &recent, 1)
	oldDead := insertOutboxRow(t, conn, old, nil, 10)
	oldPending := insertOutboxRow(t, conn, old, nil, 2)

	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:      logger.Nop(),
		DB:          client,
		Repository:  outbox.NewRepository(conn),
		MaxAttempts: 10,
		Clock:       func() time.Time { return now },
	})
	require.NoError(t, err)
	assert.Equal(t, "outbox-retention", job.Name())
	require.NoError(t, job.Run(context.Background()))

	var remaining []uuid.UUID
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Pluck("id", &remaining).Error)
	assert.ElementsMatch(t, []uuid.UUID{recentPublished, oldPending}, remaining)
	assert.NotContains(t, remaining, oldPublished)
	assert.NotContains(t, remaining, oldDead)
}

func TestOutboxRetentionRequiresDependencies(t *testing.T) {
	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: logger.Nop()})
	assert.Error(t, err)
}
