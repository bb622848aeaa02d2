package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/freshlane/internal/orderitems"
	"github.com/angelmondragon/freshlane/pkg/logger"
)

const (
	backorderRecheckName  = "backorder-recheck"
	defaultBackorderBatch = 100
)

type backorderRechecker interface {
	RecheckBackorders(ctx context.Context, orderID *uuid.UUID, limit int) (orderitems.RecheckResult, error)
}

// BackorderRecheckJobParams configure the backorder sweep.
type BackorderRecheckJobParams struct {
	Logger    *logger.Logger
	Tracker   backorderRechecker
	BatchSize int
}

type backorderRecheckJob struct {
	logg    *logger.Logger
	tracker backorderRechecker
	batch   int
}

// NewBackorderRecheckJob retries reservation for backordered items across
// all orders, oldest first.
func NewBackorderRecheckJob(params BackorderRecheckJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Tracker == nil {
		return nil, fmt.Errorf("order item tracker required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBackorderBatch
	}
	return &backorderRecheckJob{logg: params.Logger, tracker: params.Tracker, batch: batch}, nil
}

func (j *backorderRecheckJob) Name() string { return backorderRecheckName }

func (j *backorderRecheckJob) Run(ctx context.Context) error {
	result, err := j.tracker.RecheckBackorders(ctx, nil, j.batch)
	if result.Restored > 0 {
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"checked":  result.Checked,
			"restored": result.Restored,
		}), "backordered items restored")
	}
	return err
}
