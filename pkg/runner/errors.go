package runner

import "errors"

var (
	ErrRepositoryNil  = errors.New("runner.errors.repository_nil")
	ErrGeneratorNil   = errors.New("runner.errors.generator_nil")
	ErrTrackerNil     = errors.New("runner.errors.tracker_nil")
	ErrCalculatorNil  = errors.New("runner.errors.calculator_nil")
	ErrGuardrailNil   = errors.New("runner.errors.guardrail_nil")
	ErrAlreadyStarted = errors.New("runner.errors.already_started")
	ErrNotStarted     = errors.New("runner.errors.not_started")
)
