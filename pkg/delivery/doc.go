// Package delivery hands generated brief content to recipients and tracks
// the per-recipient outcome.
//
// A Transport performs one hand-off to one address. The Postmark transport
// is the production implementation; the dev transport writes briefs to disk
// for local work. Transports report permanently undeliverable addresses with
// ErrInvalidRecipient so the tracker can mark them bounced instead of
// retrying.
//
// The Tracker owns the attempt lifecycle: it creates one pending attempt per
// recipient, runs delivery passes until every attempt reaches a terminal
// status, and caps retries at the configured maximum. Attempts already in a
// terminal status are never re-sent, which makes re-running delivery for a
// recovered occurrence safe.
package delivery
