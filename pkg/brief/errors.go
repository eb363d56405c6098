package brief

import "errors"

var (
	// ErrBriefingNotFound is returned when the briefing does not exist
	ErrBriefingNotFound = errors.New("briefing not found")

	// ErrOccurrenceNotFound is returned when the occurrence does not exist
	ErrOccurrenceNotFound = errors.New("occurrence not found")

	// ErrAttemptNotFound is returned when the delivery attempt does not exist
	ErrAttemptNotFound = errors.New("delivery attempt not found")

	// ErrDuplicateOccurrence is returned when the briefing already has an
	// occurrence scheduled for the same instant
	ErrDuplicateOccurrence = errors.New("occurrence already scheduled for this instant")

	// ErrInvalidTransition is returned when a status update does not match
	// the occurrence's current state
	ErrInvalidTransition = errors.New("invalid occurrence status transition")

	// ErrPoolNil is returned when a nil connection pool is provided
	ErrPoolNil = errors.New("connection pool cannot be nil")
)
