package repository

import (
	"context"
	"time"
)

// StateStore abstracts ephemeral counter/key state used by the rate
// limiter. Implementations: Redis (production) or in-memory (local dev,
// tests, single-instance deployments).
type StateStore interface {
	// Incr increments the counter at key, setting ttl on first increment,
	// and returns the new value.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
