package schedule

import (
	"fmt"
	"time"
)

// Cadence represents how often a brief recurs.
type Cadence string

const (
	CadenceDaily  Cadence = "daily"
	CadenceWeekly Cadence = "weekly"
)

// Valid checks if the cadence is a known value.
func (c Cadence) Valid() bool {
	return c == CadenceDaily || c == CadenceWeekly
}

// Spec describes a tenant's recurring delivery preference. It is immutable
// during a scheduling computation; mutations happen only through explicit
// configuration updates upstream.
type Spec struct {
	Timezone string       `json:"timezone"` // IANA zone identifier, e.g. "Europe/Berlin"
	Cadence  Cadence      `json:"cadence"`
	Hour     int          `json:"hour"`    // 0-23, local wall clock
	Minute   int          `json:"minute"`  // 0-59
	Weekday  time.Weekday `json:"weekday"` // weekly cadence only
}

// Validate checks the spec against the allowed ranges. The timezone is not
// validated here: unknown zones degrade to UTC at calculation time instead
// of blocking configuration updates.
func (s Spec) Validate() error {
	if !s.Cadence.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCadence, s.Cadence)
	}
	if s.Hour < 0 || s.Hour > 23 {
		return fmt.Errorf("%w: hour %d out of range 0-23", ErrInvalidTimeOfDay, s.Hour)
	}
	if s.Minute < 0 || s.Minute > 59 {
		return fmt.Errorf("%w: minute %d out of range 0-59", ErrInvalidTimeOfDay, s.Minute)
	}
	if s.Cadence == CadenceWeekly && (s.Weekday < time.Sunday || s.Weekday > time.Saturday) {
		return fmt.Errorf("%w: %d", ErrInvalidWeekday, s.Weekday)
	}
	return nil
}

// String returns a human-readable description of the spec.
func (s Spec) String() string {
	switch s.Cadence {
	case CadenceWeekly:
		return fmt.Sprintf("weekly on %s at %02d:%02d (%s)", s.Weekday, s.Hour, s.Minute, s.Timezone)
	default:
		return fmt.Sprintf("daily at %02d:%02d (%s)", s.Hour, s.Minute, s.Timezone)
	}
}
