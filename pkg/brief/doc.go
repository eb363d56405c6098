// Package brief holds the scheduler's persistent entities (briefings, their
// scheduled occurrences, and per-recipient delivery attempts) and the
// repository interfaces the runner, claim protocol, and delivery tracker
// operate through.
//
// The central piece is the claim protocol: TryClaim is a single atomic
// conditional update that transitions exactly one eligible occurrence from
// pending (or stale-claimed) to claimed for the calling worker. Because the
// predicate and the write execute as one atomic operation on the durable
// store, at most one of N concurrent callers observes success. This is the
// sole enforcement of "one worker per occurrence"; there is no in-process
// locking to conflate it with.
//
// Occurrence lifecycle:
//
//	pending → claimed → generating → ready → sending → sent
//
// with failed reachable from any owned status, and a stale
// claim (claimed_at older than the staleness threshold without reaching a
// terminal status) recoverable back to pending by any later poll cycle.
//
// Two backends implement the repositories: Storage on PostgreSQL (pgx),
// where the conditional UPDATE provides the claim atomicity, and
// MemoryStorage for tests and local development.
package brief
