package guardrail

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/briefkit/pkg/counter"
)

// Evaluator answers "may this tenant start this action" and keeps the usage
// counters behind that answer. It is stateless apart from the injected
// counter store and safe for concurrent use.
type Evaluator struct {
	store  counter.Store
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithLogger sets the logger used for degraded-mode and spend warnings.
func WithLogger(logger *slog.Logger) EvaluatorOption {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the time source used for bucket keys.
func WithClock(now func() time.Time) EvaluatorOption {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEvaluator creates a guardrail evaluator backed by the given counter store.
func NewEvaluator(store counter.Store, cfg Config, opts ...EvaluatorOption) (*Evaluator, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "guardrail"
	}

	e := &Evaluator{
		store:  store,
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Check evaluates the guardrail of the given kind for the tenant. A denial
// is expected control flow, not an error: the window rolls over on its own.
// Upload checks need the file size and go through CheckUpload instead.
func (e *Evaluator) Check(ctx context.Context, tenantID string, kind Kind) Decision {
	switch kind {
	case KindGeneration:
		return e.checkGeneration(ctx, tenantID)
	case KindConcurrency:
		return e.checkConcurrency(ctx, tenantID)
	case KindSpend:
		return e.checkSpend(ctx, tenantID)
	case KindUpload:
		return e.checkUploadCount(ctx, tenantID)
	default:
		return deny(fmt.Sprintf("%s: %q", ErrUnknownKind.Error(), kind))
	}
}

func (e *Evaluator) checkGeneration(ctx context.Context, tenantID string) Decision {
	if hourly, ok := e.count(ctx, e.hourKey(tenantID, KindGeneration)); ok && hourly >= e.cfg.GenerationHourlyLimit {
		return deny(fmt.Sprintf("generation limit of %d briefs this hour reached", e.cfg.GenerationHourlyLimit))
	}
	if daily, ok := e.count(ctx, e.dayKey(tenantID, KindGeneration)); ok && daily >= e.cfg.GenerationDailyLimit {
		return deny(fmt.Sprintf("generation limit of %d briefs today reached", e.cfg.GenerationDailyLimit))
	}
	return allow()
}

// RecordGeneration bumps both generation buckets. Call it only after
// generation actually started, never on a denied or failed claim.
func (e *Evaluator) RecordGeneration(ctx context.Context, tenantID string) {
	e.record(ctx, e.hourKey(tenantID, KindGeneration), time.Hour)
	e.record(ctx, e.dayKey(tenantID, KindGeneration), 24*time.Hour)
}

// CheckUpload enforces the hard per-file size ceiling first, then the daily
// upload count. The size check needs no external dependency, so it holds
// even when the counter store is down.
func (e *Evaluator) CheckUpload(ctx context.Context, tenantID string, sizeBytes int64) Decision {
	if sizeBytes > e.cfg.UploadMaxFileBytes {
		return deny(fmt.Sprintf("file exceeds the %d byte upload limit", e.cfg.UploadMaxFileBytes))
	}
	return e.checkUploadCount(ctx, tenantID)
}

func (e *Evaluator) checkUploadCount(ctx context.Context, tenantID string) Decision {
	if daily, ok := e.count(ctx, e.dayKey(tenantID, KindUpload)); ok && daily >= e.cfg.UploadDailyLimit {
		return deny(fmt.Sprintf("upload limit of %d files today reached", e.cfg.UploadDailyLimit))
	}
	return allow()
}

// RecordUpload bumps the daily upload bucket.
func (e *Evaluator) RecordUpload(ctx context.Context, tenantID string) {
	e.record(ctx, e.dayKey(tenantID, KindUpload), 24*time.Hour)
}

func (e *Evaluator) checkConcurrency(ctx context.Context, tenantID string) Decision {
	if active, ok := e.count(ctx, e.slotKey(tenantID, "active")); ok && active >= e.cfg.MaxActiveRuns {
		return deny(fmt.Sprintf("limit of %d concurrent brief runs reached", e.cfg.MaxActiveRuns))
	}
	if queued, ok := e.count(ctx, e.slotKey(tenantID, "queued")); ok && queued >= e.cfg.MaxQueuedRuns {
		return deny(fmt.Sprintf("limit of %d queued brief runs reached", e.cfg.MaxQueuedRuns))
	}
	return allow()
}

// AcquireSlot marks one active run for the tenant. Callers must pair it with
// ReleaseSlot; the TTL bounds how long a crashed worker's increment lingers.
func (e *Evaluator) AcquireSlot(ctx context.Context, tenantID string) {
	e.record(ctx, e.slotKey(tenantID, "active"), e.cfg.ConcurrencyTTL)
}

// ReleaseSlot releases an active run slot. A release landing after the
// acquire's TTL expired recreates the key at -1; carrying the same TTL makes
// that offset self-clean instead of skewing the count forever.
func (e *Evaluator) ReleaseSlot(ctx context.Context, tenantID string) {
	e.decrement(ctx, e.slotKey(tenantID, "active"), e.cfg.ConcurrencyTTL)
}

// QueueRun marks one queued run for the tenant (used by upstream enqueue
// surfaces, paired with UnqueueRun when the run starts or is discarded).
func (e *Evaluator) QueueRun(ctx context.Context, tenantID string) {
	e.record(ctx, e.slotKey(tenantID, "queued"), e.cfg.ConcurrencyTTL)
}

// UnqueueRun releases a queued run slot.
func (e *Evaluator) UnqueueRun(ctx context.Context, tenantID string) {
	e.decrement(ctx, e.slotKey(tenantID, "queued"), e.cfg.ConcurrencyTTL)
}

func (e *Evaluator) checkSpend(ctx context.Context, tenantID string) Decision {
	key := e.spendKey(tenantID)
	total, err := e.store.GetFloat(ctx, key)
	if err != nil {
		e.warnDegraded(ctx, key, err)
		return allow()
	}
	if total >= e.cfg.SpendDailyBlock {
		return deny(fmt.Sprintf("daily spend limit of %.2f reached, resets at midnight UTC", e.cfg.SpendDailyBlock))
	}
	return allow()
}

// RecordSpend adds to the tenant's running daily total. Crossing the warn
// threshold raises an operator alert; crossing the block threshold makes
// subsequent spend checks deny until the bucket rolls over at midnight UTC.
func (e *Evaluator) RecordSpend(ctx context.Context, tenantID string, amount float64) {
	if amount <= 0 {
		return
	}
	key := e.spendKey(tenantID)
	total, err := e.store.IncrFloat(ctx, key, amount, 24*time.Hour)
	if err != nil {
		e.warnDegraded(ctx, key, err)
		return
	}

	switch {
	case total >= e.cfg.SpendDailyBlock && total-amount < e.cfg.SpendDailyBlock:
		e.logger.WarnContext(ctx, "tenant crossed daily spend block threshold",
			slog.String("tenant_id", tenantID),
			slog.Float64("total", total),
			slog.Float64("block_at", e.cfg.SpendDailyBlock))
	case total >= e.cfg.SpendDailyWarn && total-amount < e.cfg.SpendDailyWarn:
		e.logger.WarnContext(ctx, "tenant crossed daily spend warn threshold",
			slog.String("tenant_id", tenantID),
			slog.Float64("total", total),
			slog.Float64("warn_at", e.cfg.SpendDailyWarn))
	}
}

// Stats returns the tenant's current usage against the configured ceilings.
// Unlike checks, stats are for display and propagate store errors.
func (e *Evaluator) Stats(ctx context.Context, tenantID string) (AbuseStats, error) {
	stats := AbuseStats{
		GenerationsThisHour: UsageStat{Limit: e.cfg.GenerationHourlyLimit},
		GenerationsToday:    UsageStat{Limit: e.cfg.GenerationDailyLimit},
		UploadsToday:        UsageStat{Limit: e.cfg.UploadDailyLimit},
		ActiveRuns:          UsageStat{Limit: e.cfg.MaxActiveRuns},
		QueuedRuns:          UsageStat{Limit: e.cfg.MaxQueuedRuns},
		SpendLimit:          e.cfg.SpendDailyBlock,
	}

	reads := []struct {
		key string
		dst *int64
	}{
		{e.hourKey(tenantID, KindGeneration), &stats.GenerationsThisHour.Current},
		{e.dayKey(tenantID, KindGeneration), &stats.GenerationsToday.Current},
		{e.dayKey(tenantID, KindUpload), &stats.UploadsToday.Current},
		{e.slotKey(tenantID, "active"), &stats.ActiveRuns.Current},
		{e.slotKey(tenantID, "queued"), &stats.QueuedRuns.Current},
	}
	for _, r := range reads {
		val, err := e.store.Get(ctx, r.key)
		if err != nil {
			return AbuseStats{}, err
		}
		*r.dst = val
	}

	spend, err := e.store.GetFloat(ctx, e.spendKey(tenantID))
	if err != nil {
		return AbuseStats{}, err
	}
	stats.SpendToday = spend

	return stats, nil
}

// count reads a counter, failing open: a store error logs one warning and
// reports the value as unknown so the caller allows the action.
func (e *Evaluator) count(ctx context.Context, key string) (int64, bool) {
	val, err := e.store.Get(ctx, key)
	if err != nil {
		e.warnDegraded(ctx, key, err)
		return 0, false
	}
	return val, true
}

// record increments a counter, failing open on store errors.
func (e *Evaluator) record(ctx context.Context, key string, ttl time.Duration) {
	if _, err := e.store.Incr(ctx, key, 1, ttl); err != nil {
		e.warnDegraded(ctx, key, err)
	}
}

func (e *Evaluator) decrement(ctx context.Context, key string, ttl time.Duration) {
	if _, err := e.store.Incr(ctx, key, -1, ttl); err != nil {
		e.warnDegraded(ctx, key, err)
	}
}

func (e *Evaluator) warnDegraded(ctx context.Context, key string, err error) {
	e.logger.WarnContext(ctx, "counter store unreachable, guardrail failing open",
		slog.String("key", key),
		slog.String("error", err.Error()))
}

// Bucket keys are UTC so every worker process agrees on window boundaries.

func (e *Evaluator) hourKey(tenantID string, kind Kind) string {
	return fmt.Sprintf("%s:%s:%s:%s", e.cfg.KeyPrefix, tenantID, kind, e.now().UTC().Format("2006010215"))
}

func (e *Evaluator) dayKey(tenantID string, kind Kind) string {
	return fmt.Sprintf("%s:%s:%s:%s", e.cfg.KeyPrefix, tenantID, kind, e.now().UTC().Format("20060102"))
}

func (e *Evaluator) slotKey(tenantID, slot string) string {
	return fmt.Sprintf("%s:%s:%s:%s", e.cfg.KeyPrefix, tenantID, KindConcurrency, slot)
}

func (e *Evaluator) spendKey(tenantID string) string {
	return fmt.Sprintf("%s:%s:%s:%s", e.cfg.KeyPrefix, tenantID, KindSpend, e.now().UTC().Format("20060102"))
}
