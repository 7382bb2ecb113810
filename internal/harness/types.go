package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/filibuster/internal/ir"
)

// Observation is an injected fault that surfaced to the test as an error.
type Observation struct {
	Iteration      int          `json:"iteration"`
	Kind           ir.FaultKind `json:"kind"`
	Service        string       `json:"service"`
	Method         string       `json:"method"`
	ExecutionIndex string       `json:"execution_index"`
	Fault          ir.Fault     `json:"fault"`
}

// Failure is an iteration whose test failed for a reason not attributable
// to an injected fault.
type Failure struct {
	Iteration int                 `json:"iteration"`
	Faults    []ir.ScheduledFault `json:"faults"`
	Err       error               `json:"-"`
}

// IterationReport is the harness's view of one iteration.
type IterationReport struct {
	Number   int                 `json:"number"`
	Outcome  ir.Outcome          `json:"outcome"`
	Faults   []ir.ScheduledFault `json:"faults"`
	Injected int                 `json:"injected"`
	Events   int                 `json:"events"`
	Observed *Observation        `json:"observed,omitempty"`
	Failure  string              `json:"failure,omitempty"`
}

// Result is the outcome of an exploration.
type Result struct {
	ExplorationID string            `json:"exploration_id"`
	Iterations    []IterationReport `json:"iterations"`
	Observed      []Observation     `json:"observed"`
	Failures      []Failure         `json:"-"`
	// NotInjected lists iterations that scheduled faults but injected none.
	NotInjected []int `json:"not_injected,omitempty"`

	// sites labels execution indexes by "service method" for reports.
	sites map[string]string
}

func newResult() *Result {
	return &Result{
		Iterations: []IterationReport{},
		Observed:   []Observation{},
		sites:      make(map[string]string),
	}
}

// Pass reports whether every iteration passed or observed its fault.
func (r *Result) Pass() bool {
	return len(r.Failures) == 0 && len(r.NotInjected) == 0
}

// Err returns a *FailureError describing every failed iteration, or nil.
func (r *Result) Err() error {
	if r.Pass() {
		return nil
	}
	return &FailureError{Failures: r.Failures, NotInjected: r.NotInjected}
}

// Iteration returns the report for iteration n.
func (r *Result) Iteration(n int) (IterationReport, bool) {
	for _, it := range r.Iterations {
		if it.Number == n {
			return it, true
		}
	}
	return IterationReport{}, false
}

// Counterexample returns the fault assignment of iteration n, for Replay.
func (r *Result) Counterexample(n int) (ir.Counterexample, bool) {
	it, ok := r.Iteration(n)
	if !ok || len(it.Faults) == 0 {
		return ir.Counterexample{}, false
	}
	return ir.Counterexample{ExplorationID: r.ExplorationID, Iteration: n, Faults: it.Faults}, true
}

// Site returns the "service method" label of an execution index seen during
// the exploration.
func (r *Result) Site(executionIndex string) string {
	if s, ok := r.sites[executionIndex]; ok {
		return s
	}
	return executionIndex
}

// FailureError aggregates the unexpected failures of an exploration.
type FailureError struct {
	Failures    []Failure
	NotInjected []int
}

// Error implements the error interface.
func (e *FailureError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%d iteration(s) failed", len(e.Failures))
	if len(e.NotInjected) > 0 {
		fmt.Fprintf(&buf, ", %d did not inject their faults", len(e.NotInjected))
	}
	for _, f := range e.Failures {
		fmt.Fprintf(&buf, "\n  iteration %d", f.Iteration)
		for _, sf := range f.Faults {
			fmt.Fprintf(&buf, " [%s]", sf.Fault)
		}
		fmt.Fprintf(&buf, ": %v", f.Err)
	}
	for _, n := range e.NotInjected {
		fmt.Fprintf(&buf, "\n  iteration %d: fault not injected", n)
	}
	return buf.String()
}

// Unwrap returns the individual failure errors.
func (e *FailureError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
