// Package cache defines the byte cache port behind idempotent replays.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque values under arbitrary string keys. A miss is reported
// with ok=false and a nil error. Deleting a missing key is not an error.
// Implementations may drop entries early; callers must treat a miss as
// "not seen" rather than as a failure.
type Cache interface {
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
