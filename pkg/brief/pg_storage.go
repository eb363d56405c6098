package brief

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Storage implements the brief repositories on PostgreSQL. The claim
// protocol relies on the database executing the conditional UPDATE
// atomically: no explicit locking, no read-then-write.
type Storage struct {
	pool *pgxpool.Pool
}

// NewStorage creates a PostgreSQL-backed storage. Schema is managed through
// the goose migrations shipped in migrations/.
func NewStorage(pool *pgxpool.Pool) (*Storage, error) {
	if pool == nil {
		return nil, ErrPoolNil
	}
	return &Storage{pool: pool}, nil
}

const occurrenceColumns = `id, briefing_id, status, scheduled_at, claimed_at, claimed_by,
	send_attempts, generated_at, sent_at, error, created_at`

func scanOccurrence(row pgx.Row) (*Occurrence, error) {
	var occ Occurrence
	err := row.Scan(&occ.ID, &occ.BriefingID, &occ.Status, &occ.ScheduledAt, &occ.ClaimedAt,
		&occ.ClaimedBy, &occ.SendAttempts, &occ.GeneratedAt, &occ.SentAt, &occ.Error, &occ.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOccurrenceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &occ, nil
}

func (s *Storage) CreateBriefing(ctx context.Context, b *Briefing) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO briefings (id, tenant_id, name, timezone, cadence, preferred_hour, preferred_minute, preferred_weekday, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.ID, b.TenantID, b.Name,
		b.Schedule.Timezone, b.Schedule.Cadence, b.Schedule.Hour, b.Schedule.Minute, int(b.Schedule.Weekday),
		b.CreatedAt)
	return err
}

func (s *Storage) GetBriefing(ctx context.Context, id uuid.UUID) (*Briefing, error) {
	var (
		b       Briefing
		weekday int
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, timezone, cadence, preferred_hour, preferred_minute, preferred_weekday, created_at
		FROM briefings WHERE id = $1`, id).
		Scan(&b.ID, &b.TenantID, &b.Name,
			&b.Schedule.Timezone, &b.Schedule.Cadence, &b.Schedule.Hour, &b.Schedule.Minute, &weekday,
			&b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBriefingNotFound
	}
	if err != nil {
		return nil, err
	}
	b.Schedule.Weekday = time.Weekday(weekday)
	return &b, nil
}

func (s *Storage) AddRecipient(ctx context.Context, r Recipient) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO brief_recipients (id, briefing_id, address)
		VALUES ($1, $2, $3)`,
		r.ID, r.BriefingID, r.Address)
	return err
}

func (s *Storage) RecipientsByBriefing(ctx context.Context, briefingID uuid.UUID) ([]Recipient, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, briefing_id, address
		FROM brief_recipients WHERE briefing_id = $1
		ORDER BY address`, briefingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Recipient
	for rows.Next() {
		var r Recipient
		if err := rows.Scan(&r.ID, &r.BriefingID, &r.Address); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Storage) CreateOccurrence(ctx context.Context, occ *Occurrence) error {
	// The unique index on (briefing_id, scheduled_at) enforces the
	// one-occurrence-per-instant invariant; a conflict surfaces as a
	// typed error the caller may treat as benign.
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO brief_occurrences (id, briefing_id, status, scheduled_at, send_attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (briefing_id, scheduled_at) DO NOTHING`,
		occ.ID, occ.BriefingID, occ.Status, occ.ScheduledAt, occ.SendAttempts, occ.CreatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateOccurrence
	}
	return nil
}

func (s *Storage) GetOccurrence(ctx context.Context, id uuid.UUID) (*Occurrence, error) {
	return scanOccurrence(s.pool.QueryRow(ctx,
		`SELECT `+occurrenceColumns+` FROM brief_occurrences WHERE id = $1`, id))
}

func (s *Storage) DueOccurrences(ctx context.Context, now time.Time, limit int) ([]Occurrence, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+occurrenceColumns+`
		FROM brief_occurrences
		WHERE status = $1 AND scheduled_at <= $2
		ORDER BY scheduled_at
		LIMIT $3`,
		OccurrenceStatusPending, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Occurrence
	for rows.Next() {
		occ, err := scanOccurrence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *occ)
	}
	return out, rows.Err()
}

// TryClaim is the single atomic compare-and-set the whole claim protocol
// rests on: the WHERE predicate and the SET execute as one statement, so
// concurrent callers cannot both see the row as claimable.
func (s *Storage) TryClaim(ctx context.Context, occurrenceID, workerID uuid.UUID, now, staleBefore time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE brief_occurrences
		SET status = $2, claimed_at = $3, claimed_by = $4, send_attempts = send_attempts + 1
		WHERE id = $1
		  AND scheduled_at <= $3
		  AND (status = $5
		       OR (status = ANY($6) AND claimed_at < $7))`,
		occurrenceID, OccurrenceStatusClaimed, now, workerID,
		OccurrenceStatusPending, ownedStatuses(), staleBefore)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Storage) RecoverStale(ctx context.Context, staleBefore time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE brief_occurrences
		SET status = $1, claimed_at = NULL, claimed_by = NULL
		WHERE status = ANY($2) AND claimed_at < $3`,
		OccurrenceStatusPending, ownedStatuses(), staleBefore)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Storage) MarkGenerating(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, OccurrenceStatusGenerating, OccurrenceStatusClaimed)
}

func (s *Storage) MarkReady(ctx context.Context, id uuid.UUID, generatedAt time.Time) error {
	return s.guardedUpdate(ctx, `
		UPDATE brief_occurrences SET status = $2, generated_at = $3
		WHERE id = $1 AND status = $4`,
		id, OccurrenceStatusReady, generatedAt, OccurrenceStatusGenerating)
}

func (s *Storage) MarkSending(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, OccurrenceStatusSending, OccurrenceStatusReady)
}

func (s *Storage) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	return s.guardedUpdate(ctx, `
		UPDATE brief_occurrences SET status = $2, sent_at = $3
		WHERE id = $1 AND status = $4`,
		id, OccurrenceStatusSent, sentAt, OccurrenceStatusSending)
}

func (s *Storage) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return s.guardedUpdate(ctx, `
		UPDATE brief_occurrences SET status = $2, error = $3
		WHERE id = $1 AND status = ANY($4)`,
		id, OccurrenceStatusFailed, reason, ownedStatuses())
}

func (s *Storage) transition(ctx context.Context, id uuid.UUID, next, expected OccurrenceStatus) error {
	return s.guardedUpdate(ctx, `
		UPDATE brief_occurrences SET status = $2
		WHERE id = $1 AND status = $3`,
		id, next, expected)
}

// guardedUpdate runs a status-conditioned update and maps an unmatched row
// to ErrInvalidTransition, distinguishing it from a missing occurrence.
func (s *Storage) guardedUpdate(ctx context.Context, sql string, id uuid.UUID, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, append([]any{id}, args...)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM brief_occurrences WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrOccurrenceNotFound
	}
	return ErrInvalidTransition
}

func (s *Storage) CreateAttempts(ctx context.Context, occurrenceID uuid.UUID, recipients []Recipient) error {
	if len(recipients) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range recipients {
		batch.Queue(`
			INSERT INTO brief_delivery_attempts (id, occurrence_id, recipient_id, address, status, attempt_count, created_at)
			VALUES ($1, $2, $3, $4, $5, 0, $6)
			ON CONFLICT (occurrence_id, recipient_id) DO NOTHING`,
			uuid.New(), occurrenceID, r.ID, r.Address, AttemptStatusPending, time.Now())
	}
	return s.pool.SendBatch(ctx, batch).Close()
}

func (s *Storage) AttemptsByOccurrence(ctx context.Context, occurrenceID uuid.UUID) ([]DeliveryAttempt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, occurrence_id, recipient_id, address, status, attempt_count, failure_reason, created_at
		FROM brief_delivery_attempts
		WHERE occurrence_id = $1
		ORDER BY created_at, address`, occurrenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DeliveryAttempt
	for rows.Next() {
		var a DeliveryAttempt
		if err := rows.Scan(&a.ID, &a.OccurrenceID, &a.RecipientID, &a.Address,
			&a.Status, &a.AttemptCount, &a.FailureReason, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Storage) SaveAttempt(ctx context.Context, attempt *DeliveryAttempt) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE brief_delivery_attempts
		SET status = $2, attempt_count = $3, failure_reason = $4
		WHERE id = $1`,
		attempt.ID, attempt.Status, attempt.AttemptCount, attempt.FailureReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAttemptNotFound
	}
	return nil
}

// ownedStatuses returns the statuses a worker can hold an occurrence in, as
// text for ANY() predicates.
func ownedStatuses() []string {
	return []string{
		string(OccurrenceStatusClaimed),
		string(OccurrenceStatusGenerating),
		string(OccurrenceStatusReady),
		string(OccurrenceStatusSending),
	}
}
