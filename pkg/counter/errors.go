package counter

import "errors"

var (
	// ErrClientNil is returned when a nil redis client is provided
	ErrClientNil = errors.New("redis client cannot be nil")

	// ErrStoreUnavailable is returned when the counter backend cannot be reached
	ErrStoreUnavailable = errors.New("counter store unavailable")
)
