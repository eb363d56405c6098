package counter

import (
	"context"
	"time"
)

// Store defines the atomic counter operations required by guardrails.
// All operations are atomic per key; cross-key consistency is not provided.
type Store interface {
	// Incr atomically increments the integer counter at key by delta and
	// returns the new value. When the key is created by this call, it
	// expires after ttl; an existing key keeps its original expiry.
	Incr(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)

	// IncrFloat behaves like Incr for float counters (monetary totals).
	IncrFloat(ctx context.Context, key string, delta float64, ttl time.Duration) (float64, error)

	// Get returns the current integer value at key, or 0 when absent.
	Get(ctx context.Context, key string) (int64, error)

	// GetFloat returns the current float value at key, or 0 when absent.
	GetFloat(ctx context.Context, key string) (float64, error)
}
