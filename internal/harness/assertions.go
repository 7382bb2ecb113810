package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/filibuster/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes the iteration reports to help debug the failure.
type AssertionError struct {
	Type       string // Assertion type for categorization
	Expected   string // Human-readable expected outcome
	Actual     string // Human-readable actual outcome
	Iterations []IterationReport
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Iterations) > 0 {
		fmt.Fprintf(&buf, "\nIterations:\n")
		for _, it := range e.Iterations {
			fmt.Fprintf(&buf, "  [%d] %s", it.Number, it.Outcome)
			for _, sf := range it.Faults {
				fmt.Fprintf(&buf, " %s", sf.Fault)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

// FaultExpectation selects observed faults. Empty fields match anything.
type FaultExpectation struct {
	Kind    ir.FaultKind `yaml:"kind,omitempty"`
	Service string       `yaml:"service,omitempty"`
	Method  string       `yaml:"method,omitempty"`
	// Exception matches the exception name of exception faults.
	Exception string `yaml:"exception,omitempty"`
}

func (f FaultExpectation) matches(o Observation) bool {
	if f.Kind != "" && f.Kind != o.Kind {
		return false
	}
	if f.Service != "" && f.Service != o.Service {
		return false
	}
	if f.Method != "" && f.Method != o.Method {
		return false
	}
	if f.Exception != "" && (o.Fault.Exception == nil || o.Fault.Exception.Name != f.Exception) {
		return false
	}
	return true
}

func (f FaultExpectation) String() string {
	var parts []string
	if f.Kind != "" {
		parts = append(parts, "kind="+string(f.Kind))
	}
	if f.Service != "" {
		parts = append(parts, "service="+f.Service)
	}
	if f.Method != "" {
		parts = append(parts, "method="+f.Method)
	}
	if f.Exception != "" {
		parts = append(parts, "exception="+f.Exception)
	}
	if len(parts) == 0 {
		return "any fault"
	}
	return strings.Join(parts, " ")
}

// AssertFaultObserved checks that at least one iteration surfaced a fault
// matching want.
func AssertFaultObserved(r *Result, want FaultExpectation) error {
	for _, o := range r.Observed {
		if want.matches(o) {
			return nil
		}
	}
	return &AssertionError{
		Type:       "fault_observed",
		Expected:   want.String(),
		Actual:     fmt.Sprintf("%d observed fault(s), none matching", len(r.Observed)),
		Iterations: r.Iterations,
	}
}

// AssertNoFailures checks that no iteration failed unexpectedly and every
// scheduled fault was injected.
func AssertNoFailures(r *Result) error {
	if err := r.Err(); err != nil {
		return &AssertionError{
			Type:       "no_failures",
			Expected:   "no failed iterations",
			Actual:     err.Error(),
			Iterations: r.Iterations,
		}
	}
	return nil
}

// AssertIterationCount checks the number of iterations run.
func AssertIterationCount(r *Result, n int) error {
	if len(r.Iterations) != n {
		return &AssertionError{
			Type:       "iteration_count",
			Expected:   fmt.Sprintf("%d iterations", n),
			Actual:     fmt.Sprintf("%d iterations", len(r.Iterations)),
			Iterations: r.Iterations,
		}
	}
	return nil
}

// Assertion is a declarative check on a Result.
type Assertion struct {
	// Type is fault_observed, no_failures or iteration_count.
	Type  string           `yaml:"type"`
	Fault FaultExpectation `yaml:"fault,omitempty"`
	Count int              `yaml:"count,omitempty"`
}

// EvaluateAssertions runs every assertion and returns the failure messages.
// Empty if all assertions pass.
func EvaluateAssertions(r *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case "fault_observed":
			err = AssertFaultObserved(r, a.Fault)
		case "no_failures":
			err = AssertNoFailures(r)
		case "iteration_count":
			err = AssertIterationCount(r, a.Count)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}
