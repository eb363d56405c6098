// Package counter provides an atomic counter capability with per-key expiry,
// backing the guardrail evaluator's time-bucketed usage counters.
//
// The Store interface is intentionally small: increment-and-read with a TTL
// that is only applied when the key is created, so a bucket expires a fixed
// duration after its first use. Counters are advisory (simple increments,
// not linearizable compare-and-set), which is acceptable for soft cost
// controls and keeps every backend trivial.
//
// Two implementations ship with the package:
//
//   - RedisStore: production backend on go-redis, shared across workers
//   - MemoryStore: process-local backend for tests and local development
//
// The store is always injected into its consumers, never a package-level
// client, so tests can substitute an in-memory or failing fake.
package counter
