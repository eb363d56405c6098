package brief

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ClaimerRepository is the mutual-exclusion primitive between workers.
type ClaimerRepository interface {
	// TryClaim atomically transitions the occurrence to claimed for the
	// given worker. It succeeds only if the occurrence is due
	// (scheduled_at <= now) and either pending or stale-claimed (an owned
	// status with claimed_at before staleBefore). The same update sets
	// claimed_at, claimed_by, and increments send_attempts.
	//
	// A false result is not an error: another worker owns the occurrence
	// or it is not yet due.
	TryClaim(ctx context.Context, occurrenceID, workerID uuid.UUID, now, staleBefore time.Time) (bool, error)

	// RecoverStale resets occurrences stuck in an owned status since
	// before staleBefore back to pending, returning how many were
	// recovered. Safety net for workers that crashed mid-run.
	RecoverStale(ctx context.Context, staleBefore time.Time) (int, error)
}

// TrackerRepository persists per-recipient delivery attempt state.
type TrackerRepository interface {
	// CreateAttempts inserts a pending attempt per recipient, skipping
	// recipients that already have one for this occurrence (idempotent for
	// re-claimed runs).
	CreateAttempts(ctx context.Context, occurrenceID uuid.UUID, recipients []Recipient) error

	// AttemptsByOccurrence returns all attempts for the occurrence.
	AttemptsByOccurrence(ctx context.Context, occurrenceID uuid.UUID) ([]DeliveryAttempt, error)

	// SaveAttempt persists the attempt's status, count, and failure reason.
	SaveAttempt(ctx context.Context, attempt *DeliveryAttempt) error
}

// RunnerRepository is everything the scheduler driver needs from the store.
type RunnerRepository interface {
	ClaimerRepository
	TrackerRepository

	// DueOccurrences returns pending occurrences with scheduled_at <= now,
	// oldest first, at most limit.
	DueOccurrences(ctx context.Context, now time.Time, limit int) ([]Occurrence, error)

	// GetOccurrence returns a single occurrence by id.
	GetOccurrence(ctx context.Context, id uuid.UUID) (*Occurrence, error)

	// CreateOccurrence inserts a new occurrence. ErrDuplicateOccurrence is
	// returned when the briefing already has one at the same instant.
	CreateOccurrence(ctx context.Context, occ *Occurrence) error

	// Status transitions are guarded by the current status so a recovered
	// occurrence can never be moved by its previous, presumed-dead owner.

	MarkGenerating(ctx context.Context, id uuid.UUID) error
	MarkReady(ctx context.Context, id uuid.UUID, generatedAt time.Time) error
	MarkSending(ctx context.Context, id uuid.UUID) error
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error

	// MarkFailed moves an owned occurrence to failed with the reason.
	// Workers call it on any unrecoverable error so stale-claim recovery
	// stays a safety net rather than the primary failure path.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error

	// GetBriefing returns the briefing configuration.
	GetBriefing(ctx context.Context, id uuid.UUID) (*Briefing, error)

	// RecipientsByBriefing returns the briefing's delivery targets.
	RecipientsByBriefing(ctx context.Context, briefingID uuid.UUID) ([]Recipient, error)
}
