package guardrail

import "time"

// Config holds the per-tenant ceilings. Defaults are deliberately
// conservative; raise them per deployment through the environment.
type Config struct {
	GenerationHourlyLimit int64 `env:"GUARDRAIL_GENERATION_HOURLY_LIMIT" envDefault:"10"` // briefs generated per tenant per hour
	GenerationDailyLimit  int64 `env:"GUARDRAIL_GENERATION_DAILY_LIMIT" envDefault:"50"`  // briefs generated per tenant per day

	UploadMaxFileBytes int64 `env:"GUARDRAIL_UPLOAD_MAX_FILE_BYTES" envDefault:"10485760"` // hard per-file ceiling, enforced without the counter store
	UploadDailyLimit   int64 `env:"GUARDRAIL_UPLOAD_DAILY_LIMIT" envDefault:"100"`         // uploads per tenant per day

	MaxActiveRuns  int64         `env:"GUARDRAIL_MAX_ACTIVE_RUNS" envDefault:"2"`  // concurrent brief runs per tenant
	MaxQueuedRuns  int64         `env:"GUARDRAIL_MAX_QUEUED_RUNS" envDefault:"10"` // queued brief runs per tenant
	ConcurrencyTTL time.Duration `env:"GUARDRAIL_CONCURRENCY_TTL" envDefault:"1h"` // bounds stale increments left by crashed workers

	SpendDailyWarn  float64 `env:"GUARDRAIL_SPEND_DAILY_WARN" envDefault:"5"`   // spend total that triggers an operator alert
	SpendDailyBlock float64 `env:"GUARDRAIL_SPEND_DAILY_BLOCK" envDefault:"10"` // spend total that blocks generation until midnight UTC

	KeyPrefix string `env:"GUARDRAIL_KEY_PREFIX" envDefault:"guardrail"` // counter key namespace
}
