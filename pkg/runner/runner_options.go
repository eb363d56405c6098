package runner

import (
	"log/slog"
	"time"
)

// Option is a functional option for configuring a runner.
type Option func(*options)

type options struct {
	pollInterval      time.Duration
	batchSize         int
	staleAfter        time.Duration
	maxConcurrentRuns int
	logger            *slog.Logger
	now               func() time.Time
}

// WithConfig applies the env-loaded config in one go. Zero fields keep their
// defaults.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		if cfg.PollInterval > 0 {
			o.pollInterval = cfg.PollInterval
		}
		if cfg.BatchSize > 0 {
			o.batchSize = cfg.BatchSize
		}
		if cfg.StaleAfter > 0 {
			o.staleAfter = cfg.StaleAfter
		}
		if cfg.MaxConcurrentRuns > 0 {
			o.maxConcurrentRuns = cfg.MaxConcurrentRuns
		}
	}
}

// WithPollInterval sets how often the runner checks for due occurrences.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithBatchSize sets how many due occurrences one poll cycle picks up.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithStaleAfter sets how long a claim may sit untouched before another
// runner may steal it.
func WithStaleAfter(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.staleAfter = d
		}
	}
}

// WithMaxConcurrentRuns sets how many occurrences one runner processes at a
// time.
func WithMaxConcurrentRuns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConcurrentRuns = n
		}
	}
}

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the runner's time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
