// Package runner is the scheduler driver: it polls for due brief
// occurrences, claims them, and takes each claimed run through content
// generation and delivery.
//
// Multiple runner processes can poll the same store concurrently. The claim
// in the storage layer guarantees a given occurrence is processed by exactly
// one runner; a lost claim race is silent and the loser simply moves on.
// Every cycle also sweeps occurrences whose owner went quiet back to
// pending, so a crashed runner delays a brief rather than losing it.
//
// Guardrails are consulted before claiming: a denied occurrence is left
// pending and retried on a later cycle once the tenant's window rolls over.
// After a successful send the runner schedules the briefing's next
// occurrence, which keeps each briefing's chain of runs alive without a
// separate cron surface.
package runner
