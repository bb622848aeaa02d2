package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyPending is stored under a claimed key until the response is
// recorded.
const IdempotencyPending = "__pending__"

// IdempotencyStore is what the idempotency middleware needs from Redis.
type IdempotencyStore interface {
	IdempotencyKey(scope, id string) string
	// Claim reserves key for hold. When the key is taken it returns the
	// stored value instead: IdempotencyPending while the first request is
	// still running, the recorded response afterwards.
	Claim(ctx context.Context, key string, hold time.Duration) (prior string, claimed bool, err error)
	Complete(ctx context.Context, key, record string, ttl time.Duration) error
	Abandon(ctx context.Context, key string) error
}

var _ IdempotencyStore = (*Client)(nil)

// IdempotencyKey namespaces a client-supplied key within scope.
func (c *Client) IdempotencyKey(scope, id string) string {
	return namespaced("idempotency", scope, id)
}

func (c *Client) Claim(ctx context.Context, key string, hold time.Duration) (string, bool, error) {
	if c.store == nil {
		return "", false, errNotInitialized
	}
	ok, err := c.store.SetNX(ctx, key, IdempotencyPending, hold).Result()
	if err != nil {
		return "", false, fmt.Errorf("claim %s: %w", key, err)
	}
	if ok {
		return "", true, nil
	}
	prior, err := c.store.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; the caller retries.
		return IdempotencyPending, false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return prior, false, nil
}

// Complete replaces the pending marker with the recorded response.
func (c *Client) Complete(ctx context.Context, key, record string, ttl time.Duration) error {
	if c.store == nil {
		return errNotInitialized
	}
	return c.store.Set(ctx, key, record, ttl).Err()
}

// Abandon drops a claim so the client can retry with the same key.
func (c *Client) Abandon(ctx context.Context, key string) error {
	if c.store == nil {
		return errNotInitialized
	}
	return c.store.Del(ctx, key).Err()
}
