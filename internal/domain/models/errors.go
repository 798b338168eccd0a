package models

import "errors"

// Error taxonomy for the decision pipeline. Expected outcomes are values,
// not panics; callers branch with errors.Is.
var (
	// ErrValidation marks a malformed incoming signal.
	ErrValidation = errors.New("signal validation failed")

	// ErrLookupFailure marks an unreachable cache or backing store.
	// Callers degrade rather than abort.
	ErrLookupFailure = errors.New("lookup failure")

	// ErrBreakerOpen marks trading blocked by a risk breaker. Not a fault.
	ErrBreakerOpen = errors.New("circuit breaker open")

	// ErrExecutionFailure marks a single failed execution attempt.
	ErrExecutionFailure = errors.New("execution failed")

	// ErrRetryExhausted marks a terminal order failure after all retries.
	ErrRetryExhausted = errors.New("retry budget exhausted")
)
