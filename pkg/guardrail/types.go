package guardrail

// Kind identifies a guardrail policy.
type Kind string

const (
	KindGeneration  Kind = "generation"
	KindUpload      Kind = "upload"
	KindConcurrency Kind = "concurrency"
	KindSpend       Kind = "spend"
)

// Decision is the explicit result of a guardrail check. A denial carries a
// user-visible reason naming the ceiling that was reached.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// UsageStat pairs a current count with its ceiling for display.
type UsageStat struct {
	Current int64 `json:"current"`
	Limit   int64 `json:"limit"`
}

// AbuseStats is the per-tenant snapshot exposed to account tooling.
type AbuseStats struct {
	GenerationsThisHour UsageStat `json:"generations_this_hour"`
	GenerationsToday    UsageStat `json:"generations_today"`
	UploadsToday        UsageStat `json:"uploads_today"`
	ActiveRuns          UsageStat `json:"active_runs"`
	QueuedRuns          UsageStat `json:"queued_runs"`
	SpendToday          float64   `json:"spend_today"`
	SpendLimit          float64   `json:"spend_limit"`
}
