package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/briefkit/pkg/brief"
)

const defaultMaxAttempts = 3

// Summary is the per-recipient outcome tally of one delivery run.
type Summary struct {
	Sent    int
	Bounced int
	Failed  int
}

// Delivered reports whether at least one recipient received the brief.
func (s Summary) Delivered() bool {
	return s.Sent > 0
}

// Tracker drives per-recipient delivery for an occurrence and records each
// attempt's outcome through the repository.
type Tracker struct {
	repo        brief.TrackerRepository
	transport   Transport
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithLogger sets the logger used for delivery failures.
func WithLogger(logger *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithMaxAttempts caps how many times one recipient is tried.
func WithMaxAttempts(n int) TrackerOption {
	return func(t *Tracker) {
		if n > 0 {
			t.maxAttempts = n
		}
	}
}

// WithRetryDelay sets the pause between delivery passes.
func WithRetryDelay(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d >= 0 {
			t.retryDelay = d
		}
	}
}

// NewTracker creates a delivery tracker.
func NewTracker(repo brief.TrackerRepository, transport Transport, opts ...TrackerOption) (*Tracker, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}
	if transport == nil {
		return nil, ErrTransportNil
	}

	t := &Tracker{
		repo:        repo,
		transport:   transport,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  time.Second,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Deliver creates one attempt per recipient and runs delivery passes until
// every attempt is terminal. Attempts that already reached a terminal status
// before the call, for example when a recovered occurrence is re-run, are
// left untouched and never re-sent.
//
// Each pass retries every still-pending attempt once. A recipient that keeps
// failing transiently is forced to failed once its attempt count reaches the
// maximum, so the loop always terminates.
func (t *Tracker) Deliver(ctx context.Context, occurrenceID uuid.UUID, recipients []brief.Recipient, content Content) (Summary, error) {
	if err := t.repo.CreateAttempts(ctx, occurrenceID, recipients); err != nil {
		return Summary{}, err
	}

	for pass := 0; pass < t.maxAttempts; pass++ {
		if pass > 0 && t.retryDelay > 0 {
			select {
			case <-ctx.Done():
				return Summary{}, ctx.Err()
			case <-time.After(t.retryDelay):
			}
		}

		attempts, err := t.repo.AttemptsByOccurrence(ctx, occurrenceID)
		if err != nil {
			return Summary{}, err
		}

		pending := 0
		for i := range attempts {
			if attempts[i].Status.Terminal() {
				continue
			}
			if err := ctx.Err(); err != nil {
				return Summary{}, err
			}
			if err := t.attemptOne(ctx, &attempts[i], content); err != nil {
				return Summary{}, err
			}
			if !attempts[i].Status.Terminal() {
				pending++
			}
		}
		if pending == 0 {
			break
		}
	}

	attempts, err := t.repo.AttemptsByOccurrence(ctx, occurrenceID)
	if err != nil {
		return Summary{}, err
	}

	var sum Summary
	for _, a := range attempts {
		switch a.Status {
		case brief.AttemptStatusSent:
			sum.Sent++
		case brief.AttemptStatusBounced:
			sum.Bounced++
		case brief.AttemptStatusFailed:
			sum.Failed++
		}
	}
	return sum, nil
}

// attemptOne tries one hand-off and persists the resulting attempt state.
// A returned error means the repository write failed; transport failures are
// absorbed into the attempt record.
func (t *Tracker) attemptOne(ctx context.Context, attempt *brief.DeliveryAttempt, content Content) error {
	attempt.AttemptCount++

	sendErr := t.transport.Send(ctx, attempt.Address, content)
	switch {
	case sendErr == nil:
		attempt.Status = brief.AttemptStatusSent
		attempt.FailureReason = nil

	case errors.Is(sendErr, ErrInvalidRecipient):
		reason := sendErr.Error()
		attempt.Status = brief.AttemptStatusBounced
		attempt.FailureReason = &reason
		t.logger.WarnContext(ctx, "recipient bounced",
			"occurrence_id", attempt.OccurrenceID,
			"address", attempt.Address,
			"error", sendErr)

	case attempt.AttemptCount >= t.maxAttempts:
		reason := fmt.Sprintf("%s after %d attempts: %s",
			ErrAttemptsExhausted.Error(), attempt.AttemptCount, sendErr.Error())
		attempt.Status = brief.AttemptStatusFailed
		attempt.FailureReason = &reason
		t.logger.ErrorContext(ctx, "delivery attempts exhausted",
			"occurrence_id", attempt.OccurrenceID,
			"address", attempt.Address,
			"attempts", attempt.AttemptCount,
			"error", sendErr)

	default:
		reason := sendErr.Error()
		attempt.FailureReason = &reason
		t.logger.WarnContext(ctx, "delivery attempt failed, will retry",
			"occurrence_id", attempt.OccurrenceID,
			"address", attempt.Address,
			"attempt", attempt.AttemptCount,
			"error", sendErr)
	}

	return t.repo.SaveAttempt(ctx, attempt)
}
