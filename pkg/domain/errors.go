package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound matches every *NotFoundError.
	ErrNotFound = errors.New("not found")
	// ErrSchema matches every *SchemaError.
	ErrSchema = errors.New("malformed verdict")
	// ErrEvaluatorUnavailable matches every *EvaluatorUnavailableError.
	ErrEvaluatorUnavailable = errors.New("evaluator unavailable")
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrScenarioNotFound is returned when a scenario cannot be found in a library.
var ErrScenarioNotFound = errors.New("scenario not found")

// ErrScenarioRetired is returned when the scenario version a session started on is no
// longer available from the library.
var ErrScenarioRetired = errors.New("scenario version retired")

// ErrSessionEnded is returned when a turn is submitted to a session that already ended.
var ErrSessionEnded = errors.New("session already ended")

// ErrTurnInFlight is returned when a turn is submitted while another one is still pending.
var ErrTurnInFlight = errors.New("a turn is already in flight for this session")

// ValidationError reports malformed author input (empty text, self-loop, unknown field).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports a reference to an unknown phase or condition.
type NotFoundError struct {
	Kind string // "phase" or "condition"
	ID   int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// SchemaError reports a verdict the engine refuses to apply.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("malformed verdict: %s", e.Reason)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// EvaluatorUnavailableError reports that the external evaluator call failed or timed out.
type EvaluatorUnavailableError struct {
	Cause error
}

func (e *EvaluatorUnavailableError) Error() string {
	if e.Cause == nil {
		return ErrEvaluatorUnavailable.Error()
	}
	return fmt.Sprintf("evaluator unavailable: %v", e.Cause)
}

func (e *EvaluatorUnavailableError) Is(target error) bool { return target == ErrEvaluatorUnavailable }

func (e *EvaluatorUnavailableError) Unwrap() error { return e.Cause }

// IsRetryable reports whether the caller may submit the same turn again.
// Schema and evaluator failures never mutate the session, so a retry is safe.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSchema) || errors.Is(err, ErrEvaluatorUnavailable) || errors.Is(err, ErrTurnInFlight)
}
