package delivery

import "errors"

var (
	ErrInvalidConfig     = errors.New("delivery.errors.invalid_config")
	ErrSendFailed        = errors.New("delivery.errors.send_failed")
	ErrInvalidRecipient  = errors.New("delivery.errors.invalid_recipient")
	ErrTransportNil      = errors.New("delivery.errors.transport_nil")
	ErrRepositoryNil     = errors.New("delivery.errors.repository_nil")
	ErrAttemptsExhausted = errors.New("delivery.errors.attempts_exhausted")
)
