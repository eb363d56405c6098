package guardrail

import "errors"

var (
	// ErrStoreNil is returned when a nil counter store is provided
	ErrStoreNil = errors.New("counter store cannot be nil")

	// ErrUnknownKind names the denial reason for a check of an unknown guardrail kind
	ErrUnknownKind = errors.New("unknown guardrail kind")
)
