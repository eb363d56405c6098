package counter

import (
	"context"
	"sync"
	"time"
)

// entry holds a single counter value with its expiry deadline.
type entry struct {
	intVal    int64
	floatVal  float64
	expiresAt time.Time // zero means no expiry
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore implements Store with process-local state for tests and local
// development. Expired entries are dropped lazily on access, so no cleanup
// goroutine is needed.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry

	// now is swappable in tests to exercise bucket expiry.
	now func() time.Time
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if now != nil {
			ms.now = now
		}
	}
}

// NewMemoryStore creates an in-memory counter store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	ms := &MemoryStore{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(ms)
	}
	return ms
}

func (ms *MemoryStore) Incr(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	e := ms.live(key, ttl)
	e.intVal += delta
	return e.intVal, nil
}

func (ms *MemoryStore) IncrFloat(ctx context.Context, key string, delta float64, ttl time.Duration) (float64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	e := ms.live(key, ttl)
	e.floatVal += delta
	return e.floatVal, nil
}

func (ms *MemoryStore) Get(ctx context.Context, key string) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if e, ok := ms.entries[key]; ok && !e.expired(ms.now()) {
		return e.intVal, nil
	}
	return 0, nil
}

func (ms *MemoryStore) GetFloat(ctx context.Context, key string) (float64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if e, ok := ms.entries[key]; ok && !e.expired(ms.now()) {
		return e.floatVal, nil
	}
	return 0, nil
}

// live returns the entry at key, replacing expired or missing entries with a
// fresh one whose expiry matches the TTL. The expiry of an existing live
// entry is never extended, matching Redis EXPIRE NX semantics.
func (ms *MemoryStore) live(key string, ttl time.Duration) *entry {
	now := ms.now()
	e, ok := ms.entries[key]
	if !ok || e.expired(now) {
		e = &entry{}
		if ttl > 0 {
			e.expiresAt = now.Add(ttl)
		}
		ms.entries[key] = e
	}
	return e
}
