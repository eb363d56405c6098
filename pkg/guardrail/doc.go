// Package guardrail enforces per-tenant usage limits protecting against
// abuse and runaway cost: brief generation rate, upload rate, run
// concurrency, and daily spend.
//
// Guardrails are soft controls, deliberately distinct from the claim
// protocol's correctness-critical locking. Counters live in an injected
// counter.Store keyed by (tenant, kind, time bucket) with a TTL matching the
// bucket width, so stale buckets self-clean and a crashed worker can never
// lock a tenant out permanently.
//
// When the counter store is unreachable every check allows and every record
// is a no-op: availability of the core service is prioritized over strict
// cost protection. Each degraded call is logged once at warning level.
//
// # Usage
//
//	eval, err := guardrail.NewEvaluator(store, cfg)
//	if err != nil { ... }
//
//	if d := eval.Check(ctx, tenantID, guardrail.KindGeneration); !d.Allowed {
//	    // skip, the window rolls over on its own
//	}
//	eval.RecordGeneration(ctx, tenantID)
package guardrail
