package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/briefkit/pkg/brief"
	"github.com/dmitrymomot/briefkit/pkg/delivery"
	"github.com/dmitrymomot/briefkit/pkg/guardrail"
	"github.com/dmitrymomot/briefkit/pkg/schedule"
)

// DeliveryTracker is the slice of the delivery package the runner needs.
type DeliveryTracker interface {
	Deliver(ctx context.Context, occurrenceID uuid.UUID, recipients []brief.Recipient, content delivery.Content) (delivery.Summary, error)
}

// Runner polls for due occurrences and drives each claimed one through
// generation and delivery.
type Runner struct {
	repo      brief.RunnerRepository
	generator ContentGenerator
	tracker   DeliveryTracker
	calc      *schedule.Calculator
	guard     *guardrail.Evaluator
	workerID  uuid.UUID
	sem       chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	stopMu    sync.Mutex // guards stopping state and WaitGroup adds

	pollInterval time.Duration
	batchSize    int
	staleAfter   time.Duration
	logger       *slog.Logger
	now          func() time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool
}

// NewRunner creates a scheduler driver.
func NewRunner(
	repo brief.RunnerRepository,
	generator ContentGenerator,
	tracker DeliveryTracker,
	calc *schedule.Calculator,
	guard *guardrail.Evaluator,
	opts ...Option,
) (*Runner, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}
	if generator == nil {
		return nil, ErrGeneratorNil
	}
	if tracker == nil {
		return nil, ErrTrackerNil
	}
	if calc == nil {
		return nil, ErrCalculatorNil
	}
	if guard == nil {
		return nil, ErrGuardrailNil
	}

	o := &options{
		pollInterval:      5 * time.Second,
		batchSize:         10,
		staleAfter:        30 * time.Minute,
		maxConcurrentRuns: 4,
		logger:            slog.Default(),
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Runner{
		repo:         repo,
		generator:    generator,
		tracker:      tracker,
		calc:         calc,
		guard:        guard,
		workerID:     uuid.New(),
		sem:          make(chan struct{}, o.maxConcurrentRuns),
		pollInterval: o.pollInterval,
		batchSize:    o.batchSize,
		staleAfter:   o.staleAfter,
		logger:       o.logger,
		now:          o.now,
	}, nil
}

// Start begins polling in the background.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	r.stopping.Store(false)
	go r.loop()

	r.logger.Info("runner started",
		slog.String("worker_id", r.workerID.String()),
		slog.Duration("poll_interval", r.pollInterval),
		slog.Int("max_concurrent", cap(r.sem)))
	return nil
}

// Stop cancels polling and waits for in-flight runs to finish.
func (r *Runner) Stop() error {
	r.mu.Lock()
	if r.cancel == nil {
		r.mu.Unlock()
		return ErrNotStarted
	}

	r.stopMu.Lock()
	r.stopping.Store(true)
	r.stopMu.Unlock()

	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	cancel()

	r.logger.Info("runner stopping, waiting for active runs",
		slog.String("worker_id", r.workerID.String()))
	r.wg.Wait()
	r.logger.Info("runner stopped",
		slog.String("worker_id", r.workerID.String()))
	return nil
}

// Run starts the runner and returns a function suitable for errgroup.
func (r *Runner) Run(ctx context.Context) func() error {
	return func() error {
		if err := r.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return r.Stop()
	}
}

func (r *Runner) loop() {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.pollOnce()
		}
	}
}

// pollOnce sweeps stale claims and dispatches the current batch of due
// occurrences onto the run slots.
func (r *Runner) pollOnce() {
	now := r.now()
	staleBefore := now.Add(-r.staleAfter)

	if recovered, err := r.repo.RecoverStale(r.ctx, staleBefore); err != nil {
		r.logger.ErrorContext(r.ctx, "stale claim sweep failed",
			slog.String("error", err.Error()))
	} else if recovered > 0 {
		r.logger.WarnContext(r.ctx, "recovered stale claims",
			slog.Int("count", recovered))
	}

	due, err := r.repo.DueOccurrences(r.ctx, now, r.batchSize)
	if err != nil {
		r.logger.ErrorContext(r.ctx, "failed to list due occurrences",
			slog.String("error", err.Error()))
		return
	}

	for _, occ := range due {
		select {
		case <-r.ctx.Done():
			return
		case r.sem <- struct{}{}:
		}

		r.stopMu.Lock()
		if r.stopping.Load() {
			r.stopMu.Unlock()
			<-r.sem
			return
		}
		r.wg.Add(1)
		r.stopMu.Unlock()

		go func(occ brief.Occurrence) {
			defer r.wg.Done()
			defer func() { <-r.sem }()
			r.processOccurrence(occ)
		}(occ)
	}
}

// processOccurrence takes one due occurrence through the full run. Losing
// the claim race is silent; every later failure is recorded on the
// occurrence so stale recovery stays a safety net, not the failure path.
func (r *Runner) processOccurrence(occ brief.Occurrence) {
	// Detached from the poll context so graceful shutdown lets in-flight
	// runs finish; staleAfter bounds the run either way.
	ctx, cancel := context.WithTimeout(context.Background(), r.staleAfter)
	defer cancel()

	log := r.logger.With(
		slog.String("worker_id", r.workerID.String()),
		slog.String("occurrence_id", occ.ID.String()),
		slog.String("briefing_id", occ.BriefingID.String()))

	briefing, err := r.repo.GetBriefing(ctx, occ.BriefingID)
	if err != nil {
		log.ErrorContext(ctx, "failed to load briefing", slog.String("error", err.Error()))
		return
	}
	tenantID := briefing.TenantID.String()

	// Guardrails run before the claim so a denied occurrence stays pending
	// and is retried once the tenant's window rolls over.
	for _, kind := range []guardrail.Kind{
		guardrail.KindGeneration,
		guardrail.KindSpend,
		guardrail.KindConcurrency,
	} {
		if d := r.guard.Check(ctx, tenantID, kind); !d.Allowed {
			log.InfoContext(ctx, "occurrence deferred by guardrail", slog.String("reason", d.Reason))
			return
		}
	}

	now := r.now()
	claimed, err := r.repo.TryClaim(ctx, occ.ID, r.workerID, now, now.Add(-r.staleAfter))
	if err != nil {
		log.ErrorContext(ctx, "claim failed", slog.String("error", err.Error()))
		return
	}
	if !claimed {
		return
	}

	r.guard.AcquireSlot(ctx, tenantID)
	defer r.guard.ReleaseSlot(ctx, tenantID)

	if err := r.repo.MarkGenerating(ctx, occ.ID); err != nil {
		log.ErrorContext(ctx, "failed to mark generating", slog.String("error", err.Error()))
		return
	}

	content, err := r.generator.Generate(ctx, briefing)
	if err != nil {
		log.ErrorContext(ctx, "content generation failed", slog.String("error", err.Error()))
		r.markFailed(ctx, log, occ.ID, "content generation failed: "+err.Error())
		r.scheduleNext(ctx, log, briefing, occ.ScheduledAt)
		return
	}

	if err := r.repo.MarkReady(ctx, occ.ID, r.now()); err != nil {
		log.ErrorContext(ctx, "failed to mark ready", slog.String("error", err.Error()))
		return
	}

	// Usage is recorded only for runs that actually generated.
	r.guard.RecordGeneration(ctx, tenantID)
	r.guard.RecordSpend(ctx, tenantID, content.Cost)

	recipients, err := r.repo.RecipientsByBriefing(ctx, occ.BriefingID)
	if err != nil {
		log.ErrorContext(ctx, "failed to load recipients", slog.String("error", err.Error()))
		r.markFailed(ctx, log, occ.ID, "failed to load recipients: "+err.Error())
		r.scheduleNext(ctx, log, briefing, occ.ScheduledAt)
		return
	}

	if err := r.repo.MarkSending(ctx, occ.ID); err != nil {
		log.ErrorContext(ctx, "failed to mark sending", slog.String("error", err.Error()))
		return
	}

	sum, err := r.tracker.Deliver(ctx, occ.ID, recipients, delivery.Content{
		Subject:  content.Subject,
		BodyHTML: content.BodyHTML,
	})
	if err != nil {
		log.ErrorContext(ctx, "delivery run failed", slog.String("error", err.Error()))
		r.markFailed(ctx, log, occ.ID, "delivery failed: "+err.Error())
		r.scheduleNext(ctx, log, briefing, occ.ScheduledAt)
		return
	}

	// A briefing with no recipients still completes its run; there is
	// simply no one to deliver to.
	if sum.Delivered() || len(recipients) == 0 {
		if err := r.repo.MarkSent(ctx, occ.ID, r.now()); err != nil {
			log.ErrorContext(ctx, "failed to mark sent", slog.String("error", err.Error()))
			return
		}
		log.InfoContext(ctx, "brief delivered",
			slog.Int("sent", sum.Sent),
			slog.Int("bounced", sum.Bounced),
			slog.Int("failed", sum.Failed),
			slog.Int("items", content.ItemCount))
	} else {
		r.markFailed(ctx, log, occ.ID, "no recipient received the brief")
	}

	r.scheduleNext(ctx, log, briefing, occ.ScheduledAt)
}

func (r *Runner) markFailed(ctx context.Context, log *slog.Logger, id uuid.UUID, reason string) {
	if err := r.repo.MarkFailed(ctx, id, reason); err != nil {
		log.ErrorContext(ctx, "failed to mark occurrence failed",
			slog.String("error", err.Error()))
	}
}

// scheduleNext creates the briefing's next occurrence. The chain anchors on
// the just-finished occurrence's scheduled instant; a long outage skips the
// backlog by anchoring on now instead.
func (r *Runner) scheduleNext(ctx context.Context, log *slog.Logger, briefing *brief.Briefing, lastScheduled time.Time) {
	from := lastScheduled
	if now := r.now(); now.After(from) {
		from = now
	}
	next := r.calc.Next(briefing.Schedule, from)

	err := r.repo.CreateOccurrence(ctx, &brief.Occurrence{
		ID:          uuid.New(),
		BriefingID:  briefing.ID,
		Status:      brief.OccurrenceStatusPending,
		ScheduledAt: next,
		CreatedAt:   r.now(),
	})
	switch {
	case errors.Is(err, brief.ErrDuplicateOccurrence):
		// Another worker already chained it.
	case err != nil:
		log.ErrorContext(ctx, "failed to schedule next occurrence",
			slog.Time("scheduled_at", next),
			slog.String("error", err.Error()))
	default:
		log.InfoContext(ctx, "next occurrence scheduled", slog.Time("scheduled_at", next))
	}
}

// ForceReschedule creates the next occurrence for a briefing outside the
// normal chain, for example after its schedule was edited. Returns the
// occurrence that now anchors the chain.
func (r *Runner) ForceReschedule(ctx context.Context, briefingID uuid.UUID) (*brief.Occurrence, error) {
	briefing, err := r.repo.GetBriefing(ctx, briefingID)
	if err != nil {
		return nil, err
	}

	next := r.calc.Next(briefing.Schedule, r.now())
	occ := &brief.Occurrence{
		ID:          uuid.New(),
		BriefingID:  briefing.ID,
		Status:      brief.OccurrenceStatusPending,
		ScheduledAt: next,
		CreatedAt:   r.now(),
	}
	if err := r.repo.CreateOccurrence(ctx, occ); err != nil {
		return nil, err
	}
	return occ, nil
}

// WorkerID returns this runner's claim identity.
func (r *Runner) WorkerID() uuid.UUID {
	return r.workerID
}
