package tomo

import (
	"errors"
	"fmt"
)

// Sentinel causes for dropped arrivals and failed realizations.
var (
	// ErrFieldUnavailable reports a missing or unreadable travel-time field.
	// Arrivals whose field cannot be resolved are dropped, not fatal.
	ErrFieldUnavailable = errors.New("traveltime field unavailable")

	// ErrNoArrivals reports that filtering and sampling left no usable
	// arrivals for a realization.
	ErrNoArrivals = errors.New("no usable arrivals")
)

// ConfigurationError reports an invalid parameter. It is fatal and surfaced
// before any computation starts.
type ConfigurationError struct {
	Param  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Param, e.Reason)
}

// RealizationError wraps a failure inside one realization. The realization
// is excluded from aggregation; the iteration continues as long as at least
// one realization succeeds.
type RealizationError struct {
	Iteration   int
	Realization int
	Phase       Phase
	Err         error
}

func (e *RealizationError) Error() string {
	return fmt.Sprintf("iteration %d %s-phase realization %d: %v",
		e.Iteration, e.Phase, e.Realization, e.Err)
}

func (e *RealizationError) Unwrap() error { return e.Err }

// IterationError reports an iteration in which no realization succeeded.
// It aborts the run; models persisted by earlier iterations remain valid
// checkpoints.
type IterationError struct {
	Iteration int
	Phase     Phase
	Attempted int
	Err       error // representative realization failure, may be nil
}

func (e *IterationError) Error() string {
	msg := fmt.Sprintf("iteration %d %s-phase: 0 of %d realizations succeeded",
		e.Iteration, e.Phase, e.Attempted)
	if e.Err != nil {
		msg += fmt.Sprintf(" (last: %v)", e.Err)
	}
	return msg
}

func (e *IterationError) Unwrap() error { return e.Err }
