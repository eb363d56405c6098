package schedule

import "errors"

var (
	// ErrInvalidCadence is returned when the cadence is not daily or weekly
	ErrInvalidCadence = errors.New("cadence must be daily or weekly")

	// ErrInvalidTimeOfDay is returned when hour or minute is out of range
	ErrInvalidTimeOfDay = errors.New("invalid preferred time of day")

	// ErrInvalidWeekday is returned when the weekday is outside Sunday-Saturday
	ErrInvalidWeekday = errors.New("invalid preferred weekday")
)
