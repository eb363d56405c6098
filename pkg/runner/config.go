package runner

import "time"

// Config holds the runner's polling and claim settings.
type Config struct {
	PollInterval      time.Duration `env:"RUNNER_POLL_INTERVAL" envDefault:"5s"`
	BatchSize         int           `env:"RUNNER_BATCH_SIZE" envDefault:"10"`
	StaleAfter        time.Duration `env:"RUNNER_STALE_AFTER" envDefault:"30m"`
	MaxConcurrentRuns int           `env:"RUNNER_MAX_CONCURRENT_RUNS" envDefault:"4"`
}
