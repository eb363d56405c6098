package brief

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements all brief repository interfaces for tests and
// local development. The package-level mutex gives the same atomicity for
// TryClaim that the conditional UPDATE provides on PostgreSQL.
type MemoryStorage struct {
	mu          sync.Mutex
	briefings   map[uuid.UUID]*Briefing
	recipients  map[uuid.UUID][]Recipient // keyed by briefing id
	occurrences map[uuid.UUID]*Occurrence
	attempts    map[uuid.UUID]*DeliveryAttempt
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		briefings:   make(map[uuid.UUID]*Briefing),
		recipients:  make(map[uuid.UUID][]Recipient),
		occurrences: make(map[uuid.UUID]*Occurrence),
		attempts:    make(map[uuid.UUID]*DeliveryAttempt),
	}
}

// CreateBriefing stores a briefing configuration.
func (ms *MemoryStorage) CreateBriefing(ctx context.Context, b *Briefing) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	cp := *b
	ms.briefings[b.ID] = &cp
	return nil
}

// AddRecipient registers a delivery target for a briefing.
func (ms *MemoryStorage) AddRecipient(ctx context.Context, r Recipient) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.recipients[r.BriefingID] = append(ms.recipients[r.BriefingID], r)
	return nil
}

func (ms *MemoryStorage) GetBriefing(ctx context.Context, id uuid.UUID) (*Briefing, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	b, ok := ms.briefings[id]
	if !ok {
		return nil, ErrBriefingNotFound
	}
	cp := *b
	return &cp, nil
}

func (ms *MemoryStorage) RecipientsByBriefing(ctx context.Context, briefingID uuid.UUID) ([]Recipient, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	return slices.Clone(ms.recipients[briefingID]), nil
}

func (ms *MemoryStorage) CreateOccurrence(ctx context.Context, occ *Occurrence) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, existing := range ms.occurrences {
		if existing.BriefingID == occ.BriefingID && existing.ScheduledAt.Equal(occ.ScheduledAt) {
			return ErrDuplicateOccurrence
		}
	}

	cp := *occ
	ms.occurrences[occ.ID] = &cp
	return nil
}

func (ms *MemoryStorage) GetOccurrence(ctx context.Context, id uuid.UUID) (*Occurrence, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	occ, ok := ms.occurrences[id]
	if !ok {
		return nil, ErrOccurrenceNotFound
	}
	cp := *occ
	return &cp, nil
}

func (ms *MemoryStorage) DueOccurrences(ctx context.Context, now time.Time, limit int) ([]Occurrence, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var due []Occurrence
	for _, occ := range ms.occurrences {
		if occ.Status == OccurrenceStatusPending && !occ.ScheduledAt.After(now) {
			due = append(due, *occ)
		}
	}

	slices.SortFunc(due, func(a, b Occurrence) int {
		return a.ScheduledAt.Compare(b.ScheduledAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// TryClaim implements the atomic claim under the storage mutex: check and
// write happen in one critical section, so exactly one of N concurrent
// callers succeeds for a given occurrence.
func (ms *MemoryStorage) TryClaim(ctx context.Context, occurrenceID, workerID uuid.UUID, now, staleBefore time.Time) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	occ, ok := ms.occurrences[occurrenceID]
	if !ok {
		return false, ErrOccurrenceNotFound
	}

	if occ.ScheduledAt.After(now) {
		return false, nil
	}

	claimable := occ.Status == OccurrenceStatusPending ||
		(occ.Status.Owned() && occ.ClaimedAt != nil && occ.ClaimedAt.Before(staleBefore))
	if !claimable {
		return false, nil
	}

	claimedAt := now
	worker := workerID
	occ.Status = OccurrenceStatusClaimed
	occ.ClaimedAt = &claimedAt
	occ.ClaimedBy = &worker
	occ.SendAttempts++
	return true, nil
}

func (ms *MemoryStorage) RecoverStale(ctx context.Context, staleBefore time.Time) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	recovered := 0
	for _, occ := range ms.occurrences {
		if occ.Status.Owned() && occ.ClaimedAt != nil && occ.ClaimedAt.Before(staleBefore) {
			occ.Status = OccurrenceStatusPending
			occ.ClaimedAt = nil
			occ.ClaimedBy = nil
			recovered++
		}
	}
	return recovered, nil
}

func (ms *MemoryStorage) MarkGenerating(ctx context.Context, id uuid.UUID) error {
	return ms.transition(id, OccurrenceStatusGenerating, OccurrenceStatusClaimed)
}

func (ms *MemoryStorage) MarkReady(ctx context.Context, id uuid.UUID, generatedAt time.Time) error {
	if err := ms.transition(id, OccurrenceStatusReady, OccurrenceStatusGenerating); err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.occurrences[id].GeneratedAt = &generatedAt
	return nil
}

func (ms *MemoryStorage) MarkSending(ctx context.Context, id uuid.UUID) error {
	return ms.transition(id, OccurrenceStatusSending, OccurrenceStatusReady)
}

func (ms *MemoryStorage) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	if err := ms.transition(id, OccurrenceStatusSent, OccurrenceStatusSending); err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.occurrences[id].SentAt = &sentAt
	return nil
}

func (ms *MemoryStorage) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	occ, ok := ms.occurrences[id]
	if !ok {
		return ErrOccurrenceNotFound
	}
	if !occ.Status.Owned() {
		return ErrInvalidTransition
	}

	occ.Status = OccurrenceStatusFailed
	occ.Error = &reason
	return nil
}

// transition moves an occurrence to next only when it currently has the
// expected status.
func (ms *MemoryStorage) transition(id uuid.UUID, next, expected OccurrenceStatus) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	occ, ok := ms.occurrences[id]
	if !ok {
		return ErrOccurrenceNotFound
	}
	if occ.Status != expected {
		return ErrInvalidTransition
	}

	occ.Status = next
	return nil
}

func (ms *MemoryStorage) CreateAttempts(ctx context.Context, occurrenceID uuid.UUID, recipients []Recipient) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, r := range recipients {
		if ms.attemptExists(occurrenceID, r.ID) {
			continue
		}
		attempt := &DeliveryAttempt{
			ID:           uuid.New(),
			OccurrenceID: occurrenceID,
			RecipientID:  r.ID,
			Address:      r.Address,
			Status:       AttemptStatusPending,
			CreatedAt:    time.Now(),
		}
		ms.attempts[attempt.ID] = attempt
	}
	return nil
}

func (ms *MemoryStorage) AttemptsByOccurrence(ctx context.Context, occurrenceID uuid.UUID) ([]DeliveryAttempt, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var out []DeliveryAttempt
	for _, a := range ms.attempts {
		if a.OccurrenceID == occurrenceID {
			out = append(out, *a)
		}
	}
	slices.SortFunc(out, func(a, b DeliveryAttempt) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

func (ms *MemoryStorage) SaveAttempt(ctx context.Context, attempt *DeliveryAttempt) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	stored, ok := ms.attempts[attempt.ID]
	if !ok {
		return ErrAttemptNotFound
	}

	stored.Status = attempt.Status
	stored.AttemptCount = attempt.AttemptCount
	stored.FailureReason = attempt.FailureReason
	return nil
}

func (ms *MemoryStorage) attemptExists(occurrenceID, recipientID uuid.UUID) bool {
	for _, a := range ms.attempts {
		if a.OccurrenceID == occurrenceID && a.RecipientID == recipientID {
			return true
		}
	}
	return false
}
