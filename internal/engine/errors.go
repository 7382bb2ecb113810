package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/filibuster/internal/ir"
)

// RuntimeError represents an error detected during engine execution.
//
// Runtime errors include:
//   - Lifecycle misuse: event outside an iteration, nested BeginIteration
//   - Exhaustion: BeginIteration after the exploration reached its fixpoint
//   - Decision timeout or stopped engine: fatal configuration errors that
//     must not be retried, since a retry would desynchronize execution index
//     occurrence counters from what the engine recorded
//   - Invalid event: malformed instrumentation input
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode `json:"code"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// Iteration identifies the affected iteration, when known.
	Iteration int `json:"iteration,omitempty"`

	// ExecutionIndex identifies the affected call, when known.
	ExecutionIndex string `json:"execution_index,omitempty"`
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeNoActiveIteration indicates an event or EndIteration outside an iteration.
	ErrCodeNoActiveIteration RuntimeErrorCode = "NO_ACTIVE_ITERATION"

	// ErrCodeIterationActive indicates BeginIteration while one is running.
	ErrCodeIterationActive RuntimeErrorCode = "ITERATION_ACTIVE"

	// ErrCodeExhausted indicates no iteration remains to run.
	ErrCodeExhausted RuntimeErrorCode = "EXHAUSTED"

	// ErrCodeDecisionTimeout indicates the engine did not answer in time.
	ErrCodeDecisionTimeout RuntimeErrorCode = "DECISION_TIMEOUT"

	// ErrCodeEngineStopped indicates the event loop is not running.
	ErrCodeEngineStopped RuntimeErrorCode = "ENGINE_STOPPED"

	// ErrCodeInvalidEvent indicates a malformed instrumentation event.
	ErrCodeInvalidEvent RuntimeErrorCode = "INVALID_EVENT"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Iteration > 0 && e.ExecutionIndex != "" {
		return fmt.Sprintf("%s: %s (iteration=%d, execution_index=%s)", e.Code, e.Message, e.Iteration, e.ExecutionIndex)
	}
	if e.Iteration > 0 {
		return fmt.Sprintf("%s: %s (iteration=%d)", e.Code, e.Message, e.Iteration)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// HasCode reports whether err is or wraps a RuntimeError with the given code.
func HasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsTimeoutError returns true if the error is a decision timeout.
func IsTimeoutError(err error) bool {
	return HasCode(err, ErrCodeDecisionTimeout)
}

// IsExhaustedError returns true if the exploration has no iteration left.
func IsExhaustedError(err error) bool {
	return HasCode(err, ErrCodeExhausted)
}

// IsStoppedError returns true if the engine loop is not running.
func IsStoppedError(err error) bool {
	return HasCode(err, ErrCodeEngineStopped)
}

// IsFatalError reports whether err must abort the whole exploration rather
// than a single iteration.
func IsFatalError(err error) bool {
	return IsTimeoutError(err) || IsStoppedError(err)
}

func newTimeoutError(d time.Duration) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeDecisionTimeout,
		Message: fmt.Sprintf("no fault decision within %s", d),
	}
}

func newStoppedError() *RuntimeError {
	return &RuntimeError{Code: ErrCodeEngineStopped, Message: "engine is not running"}
}

// FaultNotInjectedError reports an iteration that scheduled faults but
// reached none of their execution indexes. It is a scheduling failure,
// distinct from an assertion failure in the test itself.
type FaultNotInjectedError struct {
	Iteration int
	Scheduled []ir.ScheduledFault
}

// Error implements the error interface.
func (e *FaultNotInjectedError) Error() string {
	return fmt.Sprintf("iteration %d: %d fault(s) scheduled but none injected", e.Iteration, len(e.Scheduled))
}

// IsFaultNotInjectedError returns true if the error is a FaultNotInjectedError.
func IsFaultNotInjectedError(err error) bool {
	var fe *FaultNotInjectedError
	return errors.As(err, &fe)
}
