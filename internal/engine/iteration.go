package engine

import (
	"github.com/roach88/filibuster/internal/analysis"
	"github.com/roach88/filibuster/internal/ir"
)

// Iteration describes an iteration that has just begun.
type Iteration struct {
	Number        int    `json:"number"`
	ExplorationID string `json:"exploration_id"`
	// Faults is the assignment this iteration runs under; empty for the baseline.
	Faults []ir.ScheduledFault `json:"faults"`
}

// Baseline reports whether the iteration runs without scheduled faults.
func (it Iteration) Baseline() bool {
	return len(it.Faults) == 0
}

// IterationResult is the harness's classification of a finished run,
// passed to EndIteration.
type IterationResult struct {
	Outcome ir.Outcome `json:"outcome"`
	// Failure describes an unexpected failure; empty otherwise.
	Failure string `json:"failure,omitempty"`
}

// Summary is the archived view of a finished iteration.
type Summary struct {
	Number    int                 `json:"number"`
	Outcome   ir.Outcome          `json:"outcome"`
	Failure   string              `json:"failure,omitempty"`
	Faults    []ir.ScheduledFault `json:"faults"`
	Scheduled int                 `json:"scheduled"`
	Injected  int                 `json:"injected"`
	Events    int                 `json:"events"`
	// Proposed counts new, unexplored proposals this iteration contributed.
	Proposed int `json:"proposed"`
	// Exhausted is set on the summary of the last iteration.
	Exhausted bool `json:"exhausted"`
	// Record is the iteration's TestExecutionRecord.
	Record *Record `json:"-"`
}

// IterationRecord converts the summary to its store representation.
func (s Summary) IterationRecord(explorationID string) ir.IterationRecord {
	return ir.IterationRecord{
		ExplorationID: explorationID,
		Number:        s.Number,
		Outcome:       s.Outcome,
		Faults:        s.Faults,
		Scheduled:     s.Scheduled,
		Injected:      s.Injected,
		Events:        s.Events,
		Proposed:      s.Proposed,
		Failure:       s.Failure,
	}
}

// iteration is the loop-owned state of the running iteration.
type iteration struct {
	number int

	// proposal is the fault assignment (plus payload context) being run.
	proposal *Record

	// observed accumulates the TestExecutionRecord: the proposal's faults
	// plus every payload seen.
	observed *Record

	// order lists execution indexes in first-observed generated_id order.
	order []string
	sites map[string]analysis.Site

	injected map[string]bool
	events   []ir.Event
}

func newIteration(number int, proposal *Record) *iteration {
	observed := NewRecord()
	for k, f := range proposal.Faults {
		observed.Schedule(k, f)
	}
	return &iteration{
		number:   number,
		proposal: proposal,
		observed: observed,
		sites:    make(map[string]analysis.Site),
		injected: make(map[string]bool),
	}
}

// observe records an invocation under its canonical execution index.
func (it *iteration) observe(key string, ev ir.Event) {
	if _, seen := it.sites[key]; !seen {
		it.order = append(it.order, key)
		it.sites[key] = analysis.SiteOf(ev)
	}
	if ev.Payload != nil {
		it.observed.SetPayload(key, *ev.Payload)
	}
}
