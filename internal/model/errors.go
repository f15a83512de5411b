package model

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is to check for them.
var (
	// ErrValidation marks configuration-time failures: empty input, malformed thresholds.
	ErrValidation = errors.New("validation error")

	// ErrInvalidStateTransition marks a lifecycle request the job's state does not allow.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrJobNotTerminal is returned when the review partition is requested too early.
	ErrJobNotTerminal = errors.New("job not terminal")

	ErrJobNotFound = errors.New("job not found")

	ErrCatalogVersionNotFound = errors.New("catalog version not found")

	// ErrClosed is returned for new work once the controller is shutting down.
	ErrClosed = errors.New("controller closed")
)

// ValidationError describes which input was rejected and why
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Reason)
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InvalidStateTransitionError reports the rejected operation and the state it was requested in
type InvalidStateTransitionError struct {
	JobID string
	From  JobState
	Op    string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("job %s: cannot %s from state %s", e.JobID, e.Op, e.From)
}

func (e *InvalidStateTransitionError) Unwrap() error { return ErrInvalidStateTransition }
