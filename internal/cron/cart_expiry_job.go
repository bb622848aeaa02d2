package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/freshlane/internal/cart"
	"github.com/angelmondragon/freshlane/pkg/logger"
)

const (
	cartExpiryName         = "cart-expiry"
	defaultCartExpiryBatch = 500
)

type cartExpirer interface {
	ExpireStale(ctx context.Context, now time.Time, limit int) (cart.ExpiryResult, error)
}

// CartExpiryJobParams configure the stale cart sweep.
type CartExpiryJobParams struct {
	Logger    *logger.Logger
	Carts     cartExpirer
	BatchSize int
	Clock     func() time.Time
}

type cartExpiryJob struct {
	logg  *logger.Logger
	carts cartExpirer
	batch int
	now   func() time.Time
}

// NewCartExpiryJob expires carts past their expiry and abandons idle ones.
func NewCartExpiryJob(params CartExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	job := &cartExpiryJob{
		logg:  params.Logger,
		carts: params.Carts,
		batch: params.BatchSize,
		now:   params.Clock,
	}
	if job.batch <= 0 {
		job.batch = defaultCartExpiryBatch
	}
	if job.now == nil {
		job.now = time.Now
	}
	return job, nil
}

func (j *cartExpiryJob) Name() string { return cartExpiryName }

func (j *cartExpiryJob) Run(ctx context.Context) error {
	result, err := j.carts.ExpireStale(ctx, j.now().UTC(), j.batch)
	if err != nil {
		return err
	}
	if result.Expired > 0 || result.Abandoned > 0 {
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"expired":   result.Expired,
			"abandoned": result.Abandoned,
		}), "stale carts swept")
	}
	return nil
}
