package delivery

import "context"

// Content is one rendered brief ready for hand-off.
type Content struct {
	Subject  string
	BodyHTML string
}

// Transport performs one delivery to one address.
//
// Implementations return nil on success, an error wrapping
// ErrInvalidRecipient when the address is permanently undeliverable, and any
// other error for transient failures the caller may retry.
type Transport interface {
	Send(ctx context.Context, address string, content Content) error
}
