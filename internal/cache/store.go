package cache

import (
	"context"
	"time"
)

// Store represents the shared counter cache used for cross-instance rate limiting.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}
