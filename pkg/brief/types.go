package brief

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/briefkit/pkg/schedule"
)

// OccurrenceStatus represents the lifecycle state of a brief run.
type OccurrenceStatus string

const (
	OccurrenceStatusPending    OccurrenceStatus = "pending"
	OccurrenceStatusClaimed    OccurrenceStatus = "claimed"
	OccurrenceStatusGenerating OccurrenceStatus = "generating"
	OccurrenceStatusReady      OccurrenceStatus = "ready"
	OccurrenceStatusSending    OccurrenceStatus = "sending"
	OccurrenceStatusSent       OccurrenceStatus = "sent"
	OccurrenceStatusFailed     OccurrenceStatus = "failed"
)

// Terminal reports whether the occurrence has finished, successfully or not.
func (s OccurrenceStatus) Terminal() bool {
	return s == OccurrenceStatusSent || s == OccurrenceStatusFailed
}

// Owned reports whether a worker currently holds (or held) the occurrence.
// Owned non-terminal statuses are the ones eligible for stale-claim
// recovery; ready is included so a worker dying between generation and
// sending cannot strand the run.
func (s OccurrenceStatus) Owned() bool {
	switch s {
	case OccurrenceStatusClaimed, OccurrenceStatusGenerating, OccurrenceStatusReady, OccurrenceStatusSending:
		return true
	default:
		return false
	}
}

// Briefing is one tenant's recurring brief configuration.
type Briefing struct {
	ID        uuid.UUID     `json:"id"`
	TenantID  uuid.UUID     `json:"tenant_id"`
	Name      string        `json:"name"`
	Schedule  schedule.Spec `json:"schedule"`
	CreatedAt time.Time     `json:"created_at"`
}

// Recipient is one delivery target of a briefing.
type Recipient struct {
	ID         uuid.UUID `json:"id"`
	BriefingID uuid.UUID `json:"briefing_id"`
	Address    string    `json:"address"`
}

// Occurrence is one scheduled instance of delivery for one briefing.
// ScheduledAt is unique per briefing: the same briefing is never scheduled
// twice for the same instant.
type Occurrence struct {
	ID           uuid.UUID        `json:"id"`
	BriefingID   uuid.UUID        `json:"briefing_id"`
	Status       OccurrenceStatus `json:"status"`
	ScheduledAt  time.Time        `json:"scheduled_at"`
	ClaimedAt    *time.Time       `json:"claimed_at,omitempty"`
	ClaimedBy    *uuid.UUID       `json:"claimed_by,omitempty"`
	SendAttempts int              `json:"send_attempts"`
	GeneratedAt  *time.Time       `json:"generated_at,omitempty"`
	SentAt       *time.Time       `json:"sent_at,omitempty"`
	Error        *string          `json:"error,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// AttemptStatus represents the per-recipient delivery state.
type AttemptStatus string

const (
	AttemptStatusPending AttemptStatus = "pending"
	AttemptStatusSent    AttemptStatus = "sent"
	AttemptStatusBounced AttemptStatus = "bounced"
	AttemptStatusFailed  AttemptStatus = "failed"
)

// Terminal reports whether the recipient will receive no further attempts.
func (s AttemptStatus) Terminal() bool {
	return s != AttemptStatusPending
}

// DeliveryAttempt tracks hand-off attempts for one recipient of one
// occurrence. AttemptCount never exceeds the configured maximum: reaching it
// forces a terminal failure regardless of the underlying cause.
type DeliveryAttempt struct {
	ID            uuid.UUID     `json:"id"`
	OccurrenceID  uuid.UUID     `json:"occurrence_id"`
	RecipientID   uuid.UUID     `json:"recipient_id"`
	Address       string        `json:"address"`
	Status        AttemptStatus `json:"status"`
	AttemptCount  int           `json:"attempt_count"`
	FailureReason *string       `json:"failure_reason,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}
