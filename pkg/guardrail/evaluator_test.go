package guardrail_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/briefkit/pkg/counter"
	"github.com/dmitrymomot/briefkit/pkg/guardrail"
)

// unreachableStore simulates a counter backend that is down.
type unreachableStore struct{}

var errDown = errors.New("connection refused")

func (unreachableStore) Incr(context.Context, string, int64, time.Duration) (int64, error) {
	return 0, errDown
}

func (unreachableStore) IncrFloat(context.Context, string, float64, time.Duration) (float64, error) {
	return 0, errDown
}

func (unreachableStore) Get(context.Context, string) (int64, error)        { return 0, errDown }
func (unreachableStore) GetFloat(context.Context, string) (float64, error) { return 0, errDown }

func testConfig() guardrail.Config {
	return guardrail.Config{
		GenerationHourlyLimit: 5,
		GenerationDailyLimit:  20,
		UploadMaxFileBytes:    1024,
		UploadDailyLimit:      3,
		MaxActiveRuns:         2,
		MaxQueuedRuns:         4,
		ConcurrencyTTL:        time.Hour,
		SpendDailyWarn:        5,
		SpendDailyBlock:       10,
		KeyPrefix:             "guardrail",
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestNewEvaluator(t *testing.T) {
	t.Parallel()

	_, err := guardrail.NewEvaluator(nil, testConfig())
	assert.ErrorIs(t, err, guardrail.ErrStoreNil)
}

func TestGenerationGuardrail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("denies at the hourly ceiling, allows one below", func(t *testing.T) {
		t.Parallel()

		eval, err := guardrail.NewEvaluator(counter.NewMemoryStore(), testConfig())
		require.NoError(t, err)

		for i := 0; i < 4; i++ {
			eval.RecordGeneration(ctx, "t1")
		}

		d := eval.Check(ctx, "t1", guardrail.KindGeneration)
		assert.True(t, d.Allowed, "one below the ceiling must pass")

		eval.RecordGeneration(ctx, "t1")

		d = eval.Check(ctx, "t1", guardrail.KindGeneration)
		assert.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "this hour")
		assert.Contains(t, d.Reason, "5")
	})

	t.Run("hour bucket expires and the tenant recovers", func(t *testing.T) {
		t.Parallel()

		clock := &testClock{now: time.Date(2024, 6, 10, 10, 30, 0, 0, time.UTC)}
		store := counter.NewMemoryStore(counter.WithClock(clock.Now))
		eval, err := guardrail.NewEvaluator(store, testConfig(),
			guardrail.WithClock(clock.Now))
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			eval.RecordGeneration(ctx, "t1")
		}
		require.False(t, eval.Check(ctx, "t1", guardrail.KindGeneration).Allowed)

		clock.Advance(time.Hour)

		d := eval.Check(ctx, "t1", guardrail.KindGeneration)
		assert.True(t, d.Allowed)
		assert.Empty(t, d.Reason)
	})

	t.Run("daily ceiling holds across hours", func(t *testing.T) {
		t.Parallel()

		clock := &testClock{now: time.Date(2024, 6, 10, 0, 30, 0, 0, time.UTC)}
		cfg := testConfig()
		cfg.GenerationDailyLimit = 8
		store := counter.NewMemoryStore(counter.WithClock(clock.Now))
		eval, err := guardrail.NewEvaluator(store, cfg, guardrail.WithClock(clock.Now))
		require.NoError(t, err)

		for i := 0; i < 4; i++ {
			eval.RecordGeneration(ctx, "t1")
		}
		clock.Advance(2 * time.Hour)
		for i := 0; i < 4; i++ {
			eval.RecordGeneration(ctx, "t1")
		}

		d := eval.Check(ctx, "t1", guardrail.KindGeneration)
		assert.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "today")
	})

	t.Run("tenants are isolated", func(t *testing.T) {
		t.Parallel()

		eval, err := guardrail.NewEvaluator(counter.NewMemoryStore(), testConfig())
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			eval.RecordGeneration(ctx, "loud")
		}

		assert.False(t, eval.Check(ctx, "loud", guardrail.KindGeneration).Allowed)
		assert.True(t, eval.Check(ctx, "quiet", guardrail.KindGeneration).Allowed)
	})
}

func TestUploadGuardrail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("hard size ceiling", func(t *testing.T) {
		t.Parallel()

		eval, err := guardrail.NewEvaluator(counter.NewMemoryStore(), testConfig())
		require.NoError(t, err)

		d := eval.CheckUpload(ctx, "t1", 2048)
		assert.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "1024")

		assert.True(t, eval.CheckUpload(ctx, "t1", 512).Allowed)
	})

	t.Run("size ceiling holds with the store down", func(t *testing.T) {
		t.Parallel()

		eval, err := guardrail.NewEvaluator(unreachableStore{}, testConfig(),
			guardrail.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
		require.NoError(t, err)

		d := eval.CheckUpload(ctx, "t1", 2048)
		assert.False(t, d.Allowed, "size ceiling needs no counter store")
	})

	t.Run("daily count ceiling", func(t *testing.T) {
		t.Parallel()

		eval, err := guardrail.NewEvaluator(counter.NewMemoryStore(), testConfig())
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			eval.RecordUpload(ctx, "t1")
		}

		d := eval.CheckUpload(ctx, "t1", 10)
		assert.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "3")
	})
}

func TestConcurrencyGuardrail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("active slots", func(t *testing.T) {
		t.Parallel()

		eval, err := guardrail.NewEvaluator(counter.NewMemoryStore(), testConfig())
		require.NoError(t, err)

		eval.AcquireSlot(ctx, "t1")
		assert.True(t, eval.Check(ctx, "t1", guardrail.KindConcurrency).Allowed)

		eval.AcquireSlot(ctx, "t1")
		d := eval.Check(ctx, "t1", guardrail.KindConcurrency)
		assert.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "concurrent")

		eval.ReleaseSlot(ctx, "t1")
		assert.True(t, eval.Check(ctx, "t1", guardrail.KindConcurrency).Allowed)
	})

	t.Run("queued slots", func(t *testing.T) {
		t.Parallel()

		eval, err := guardrail.NewEvaluator(counter.NewMemoryStore(), testConfig())
		require.NoError(t, err)

		for i := 0; i < 4; i++ {
			eval.QueueRun(ctx, "t1")
		}
		d := eval.Check(ctx, "t1", guardrail.KindConcurrency)
		assert.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "queued")

		eval.UnqueueRun(ctx, "t1")
		assert.True(t, eval.Check(ctx, "t1", guardrail.KindConcurrency).Allowed)
	})

	t.Run("stale increment expires instead of locking the tenant out", func(t *testing.T) {
		t.Parallel()

		clock := &testClock{now: time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)}
		store := counter.NewMemoryStore(counter.WithClock(clock.Now))
		eval, err := guardrail.NewEvaluator(store, testConfig(), guardrail.WithClock(clock.Now))
		require.NoError(t, err)

		// Crashed worker: two acquires, no release.
		eval.AcquireSlot(ctx, "t1")
		eval.AcquireSlot(ctx, "t1")
		require.False(t, eval.Check(ctx, "t1", guardrail.KindConcurrency).Allowed)

		clock.Advance(61 * time.Minute)
		assert.True(t, eval.Check(ctx, "t1", guardrail.KindConcurrency).Allowed)
	})

	t.Run("release after expiry self-cleans", func(t *testing.T) {
		t.Parallel()

		clock := &testClock{now: time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)}
		store := counter.NewMemoryStore(counter.WithClock(clock.Now))
		eval, err := guardrail.NewEvaluator(store, testConfig(), guardrail.WithClock(clock.Now))
		require.NoError(t, err)

		eval.AcquireSlot(ctx, "t1")

		// The acquire's increment expires on its own, then the matching
		// release lands late and recreates the key at -1.
		clock.Advance(61 * time.Minute)
		eval.ReleaseSlot(ctx, "t1")

		stats, err := eval.Stats(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, int64(-1), stats.ActiveRuns.Current)

		// The offset carries the concurrency TTL and expires like any slot.
		clock.Advance(61 * time.Minute)
		stats, err = eval.Stats(ctx, "t1")
		require.NoError(t, err)
		assert.Zero(t, stats.ActiveRuns.Current)
	})
}

func TestSpendGuardrail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("blocks past the daily ceiling", func(t *testing.T) {
		t.Parallel()

		eval, err := guardrail.NewEvaluator(counter.NewMemoryStore(), testConfig())
		require.NoError(t, err)

		eval.RecordSpend(ctx, "t1", 9.5)
		assert.True(t, eval.Check(ctx, "t1", guardrail.KindSpend).Allowed)

		eval.RecordSpend(ctx, "t1", 1.0)
		d := eval.Check(ctx, "t1", guardrail.KindSpend)
		assert.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "10.00")
	})

	t.Run("warn threshold logs once on crossing", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		eval, err := guardrail.NewEvaluator(counter.NewMemoryStore(), testConfig(),
			guardrail.WithLogger(logger))
		require.NoError(t, err)

		eval.RecordSpend(ctx, "t1", 4.0)
		assert.NotContains(t, buf.String(), "warn threshold")

		eval.RecordSpend(ctx, "t1", 2.0)
		assert.Equal(t, 1, strings.Count(buf.String(), "warn threshold"))

		// Already past warn: no repeated alert.
		eval.RecordSpend(ctx, "t1", 1.0)
		assert.Equal(t, 1, strings.Count(buf.String(), "warn threshold"))

		eval.RecordSpend(ctx, "t1", 5.0)
		assert.Equal(t, 1, strings.Count(buf.String(), "block threshold"))
	})
}

func TestDegradedMode(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	eval, err := guardrail.NewEvaluator(unreachableStore{}, testConfig(),
		guardrail.WithLogger(logger))
	require.NoError(t, err)

	for _, kind := range []guardrail.Kind{
		guardrail.KindGeneration,
		guardrail.KindUpload,
		guardrail.KindConcurrency,
		guardrail.KindSpend,
	} {
		d := eval.Check(ctx, "t1", kind)
		assert.True(t, d.Allowed, "kind %s must fail open", kind)
	}

	// Records and releases are silent no-ops, but each degraded call leaves
	// exactly one warning in the log.
	eval.RecordGeneration(ctx, "t1")
	eval.AcquireSlot(ctx, "t1")
	eval.ReleaseSlot(ctx, "t1")
	eval.RecordSpend(ctx, "t1", 1.0)

	assert.Contains(t, buf.String(), "failing open")

	// Stats, by contrast, surface the outage to the caller.
	_, err = eval.Stats(ctx, "t1")
	assert.Error(t, err)
}

func TestUnknownKind(t *testing.T) {
	t.Parallel()

	eval, err := guardrail.NewEvaluator(counter.NewMemoryStore(), testConfig())
	require.NoError(t, err)

	d := eval.Check(context.Background(), "t1", guardrail.Kind("teleport"))
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, guardrail.ErrUnknownKind.Error())
	assert.Contains(t, d.Reason, "teleport")
}

func TestStats(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eval, err := guardrail.NewEvaluator(counter.NewMemoryStore(), testConfig())
	require.NoError(t, err)

	eval.RecordGeneration(ctx, "t1")
	eval.RecordGeneration(ctx, "t1")
	eval.RecordUpload(ctx, "t1")
	eval.AcquireSlot(ctx, "t1")
	eval.RecordSpend(ctx, "t1", 2.5)

	stats, err := eval.Stats(ctx, "t1")
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.GenerationsThisHour.Current)
	assert.Equal(t, int64(5), stats.GenerationsThisHour.Limit)
	assert.Equal(t, int64(2), stats.GenerationsToday.Current)
	assert.Equal(t, int64(1), stats.UploadsToday.Current)
	assert.Equal(t, int64(1), stats.ActiveRuns.Current)
	assert.Equal(t, int64(0), stats.QueuedRuns.Current)
	assert.InDelta(t, 2.5, stats.SpendToday, 1e-9)
	assert.InDelta(t, 10.0, stats.SpendLimit, 1e-9)
}
