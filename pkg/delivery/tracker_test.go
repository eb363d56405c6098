package delivery_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/briefkit/pkg/brief"
	"github.com/dmitrymomot/briefkit/pkg/delivery"
)

// fakeTransport scripts per-address behavior and counts calls.
type fakeTransport struct {
	calls map[string]int
	send  func(address string, call int) error
}

func newFakeTransport(send func(address string, call int) error) *fakeTransport {
	if send == nil {
		send = func(string, int) error { return nil }
	}
	return &fakeTransport{calls: make(map[string]int), send: send}
}

func (f *fakeTransport) Send(_ context.Context, address string, _ delivery.Content) error {
	f.calls[address]++
	return f.send(address, f.calls[address])
}

func seedRecipients(n int) []brief.Recipient {
	briefingID := uuid.New()
	out := make([]brief.Recipient, n)
	for i := range out {
		out[i] = brief.Recipient{
			ID:         uuid.New(),
			BriefingID: briefingID,
			Address:    fmt.Sprintf("user%d@example.com", i),
		}
	}
	return out
}

func TestTrackerDeliver(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	content := delivery.Content{Subject: "Morning brief", BodyHTML: "<p>hello</p>"}

	t.Run("all recipients delivered on the first pass", func(t *testing.T) {
		t.Parallel()

		repo := brief.NewMemoryStorage()
		transport := newFakeTransport(nil)
		tracker, err := delivery.NewTracker(repo, transport, delivery.WithRetryDelay(0))
		require.NoError(t, err)

		occurrenceID := uuid.New()
		recipients := seedRecipients(3)

		sum, err := tracker.Deliver(ctx, occurrenceID, recipients, content)
		require.NoError(t, err)
		assert.Equal(t, delivery.Summary{Sent: 3}, sum)
		assert.True(t, sum.Delivered())

		for _, r := range recipients {
			assert.Equal(t, 1, transport.calls[r.Address])
		}

		attempts, err := repo.AttemptsByOccurrence(ctx, occurrenceID)
		require.NoError(t, err)
		require.Len(t, attempts, 3)
		for _, a := range attempts {
			assert.Equal(t, brief.AttemptStatusSent, a.Status)
			assert.Equal(t, 1, a.AttemptCount)
			assert.Nil(t, a.FailureReason)
		}
	})

	t.Run("invalid recipient bounces without retries", func(t *testing.T) {
		t.Parallel()

		repo := brief.NewMemoryStorage()
		transport := newFakeTransport(func(address string, _ int) error {
			if address == "user0@example.com" {
				return fmt.Errorf("%w: suppressed", delivery.ErrInvalidRecipient)
			}
			return nil
		})
		tracker, err := delivery.NewTracker(repo, transport, delivery.WithRetryDelay(0))
		require.NoError(t, err)

		occurrenceID := uuid.New()
		sum, err := tracker.Deliver(ctx, occurrenceID, seedRecipients(2), content)
		require.NoError(t, err)
		assert.Equal(t, delivery.Summary{Sent: 1, Bounced: 1}, sum)

		assert.Equal(t, 1, transport.calls["user0@example.com"], "bounces are terminal, no retry")

		attempts, err := repo.AttemptsByOccurrence(ctx, occurrenceID)
		require.NoError(t, err)
		for _, a := range attempts {
			if a.Address == "user0@example.com" {
				assert.Equal(t, brief.AttemptStatusBounced, a.Status)
				require.NotNil(t, a.FailureReason)
				assert.Contains(t, *a.FailureReason, "suppressed")
			}
		}
	})

	t.Run("transient failure is retried to success", func(t *testing.T) {
		t.Parallel()

		repo := brief.NewMemoryStorage()
		transport := newFakeTransport(func(address string, call int) error {
			if call == 1 {
				return errors.New("connection reset")
			}
			return nil
		})
		tracker, err := delivery.NewTracker(repo, transport, delivery.WithRetryDelay(0))
		require.NoError(t, err)

		occurrenceID := uuid.New()
		sum, err := tracker.Deliver(ctx, occurrenceID, seedRecipients(1), content)
		require.NoError(t, err)
		assert.Equal(t, delivery.Summary{Sent: 1}, sum)

		attempts, err := repo.AttemptsByOccurrence(ctx, occurrenceID)
		require.NoError(t, err)
		require.Len(t, attempts, 1)
		assert.Equal(t, brief.AttemptStatusSent, attempts[0].Status)
		assert.Equal(t, 2, attempts[0].AttemptCount)
		assert.Nil(t, attempts[0].FailureReason, "success clears the last failure reason")
	})

	t.Run("persistent transient failure exhausts attempts", func(t *testing.T) {
		t.Parallel()

		repo := brief.NewMemoryStorage()
		transport := newFakeTransport(func(string, int) error {
			return errors.New("upstream timeout")
		})
		tracker, err := delivery.NewTracker(repo, transport,
			delivery.WithRetryDelay(0), delivery.WithMaxAttempts(3))
		require.NoError(t, err)

		occurrenceID := uuid.New()
		sum, err := tracker.Deliver(ctx, occurrenceID, seedRecipients(1), content)
		require.NoError(t, err)
		assert.Equal(t, delivery.Summary{Failed: 1}, sum)
		assert.False(t, sum.Delivered())

		assert.Equal(t, 3, transport.calls["user0@example.com"])

		attempts, err := repo.AttemptsByOccurrence(ctx, occurrenceID)
		require.NoError(t, err)
		require.Len(t, attempts, 1)
		assert.Equal(t, brief.AttemptStatusFailed, attempts[0].Status)
		assert.Equal(t, 3, attempts[0].AttemptCount)
		require.NotNil(t, attempts[0].FailureReason)
		assert.Contains(t, *attempts[0].FailureReason, "after 3 attempts")
		assert.Contains(t, *attempts[0].FailureReason, "upstream timeout")
	})

	t.Run("re-running delivery skips terminal attempts", func(t *testing.T) {
		t.Parallel()

		repo := brief.NewMemoryStorage()
		transport := newFakeTransport(func(address string, _ int) error {
			if address == "user1@example.com" {
				return errors.New("greylisted")
			}
			return nil
		})
		tracker, err := delivery.NewTracker(repo, transport,
			delivery.WithRetryDelay(0), delivery.WithMaxAttempts(2))
		require.NoError(t, err)

		occurrenceID := uuid.New()
		recipients := seedRecipients(2)

		sum, err := tracker.Deliver(ctx, occurrenceID, recipients, content)
		require.NoError(t, err)
		assert.Equal(t, delivery.Summary{Sent: 1, Failed: 1}, sum)

		// A second run, as after stale-claim recovery, touches nothing:
		// both attempts are already terminal.
		sum, err = tracker.Deliver(ctx, occurrenceID, recipients, content)
		require.NoError(t, err)
		assert.Equal(t, delivery.Summary{Sent: 1, Failed: 1}, sum)
		assert.Equal(t, 1, transport.calls["user0@example.com"])
		assert.Equal(t, 2, transport.calls["user1@example.com"])
	})

	t.Run("cancelled context stops the run", func(t *testing.T) {
		t.Parallel()

		repo := brief.NewMemoryStorage()
		tracker, err := delivery.NewTracker(repo, newFakeTransport(nil), delivery.WithRetryDelay(0))
		require.NoError(t, err)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err = tracker.Deliver(cancelled, uuid.New(), seedRecipients(1), content)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNewTracker(t *testing.T) {
	t.Parallel()

	t.Run("nil repository", func(t *testing.T) {
		t.Parallel()
		_, err := delivery.NewTracker(nil, newFakeTransport(nil))
		assert.ErrorIs(t, err, delivery.ErrRepositoryNil)
	})

	t.Run("nil transport", func(t *testing.T) {
		t.Parallel()
		_, err := delivery.NewTracker(brief.NewMemoryStorage(), nil)
		assert.ErrorIs(t, err, delivery.ErrTransportNil)
	})

	t.Run("retry delay option", func(t *testing.T) {
		t.Parallel()

		repo := brief.NewMemoryStorage()
		transport := newFakeTransport(func(_ string, call int) error {
			if call == 1 {
				return errors.New("flaky")
			}
			return nil
		})
		tracker, err := delivery.NewTracker(repo, transport,
			delivery.WithRetryDelay(10*time.Millisecond))
		require.NoError(t, err)

		start := time.Now()
		sum, err := tracker.Deliver(context.Background(), uuid.New(), seedRecipients(1),
			delivery.Content{Subject: "s", BodyHTML: "b"})
		require.NoError(t, err)
		assert.Equal(t, delivery.Summary{Sent: 1}, sum)
		assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	})
}
