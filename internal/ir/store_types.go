package ir

import (
	"encoding/json"
	"fmt"
	"os"
)

// Outcome classifies how one iteration of the test ended.
type Outcome string

const (
	// OutcomePassed means the test returned without error.
	OutcomePassed Outcome = "passed"
	// OutcomeFaultObserved means the test failed only because of an injected fault.
	OutcomeFaultObserved Outcome = "fault_observed"
	// OutcomeFailed means the test failed for a reason not attributable to a fault.
	OutcomeFailed Outcome = "failed"
	// OutcomeFaultNotInjected means faults were scheduled but none was reached.
	OutcomeFaultNotInjected Outcome = "fault_not_injected"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomePassed, OutcomeFaultObserved, OutcomeFailed, OutcomeFaultNotInjected:
		return true
	}
	return false
}

// ScheduledFault pairs a fault with the execution index it targets.
type ScheduledFault struct {
	ExecutionIndex string `json:"execution_index"`
	Fault          Fault  `json:"fault"`
}

// Counterexample is a fixed fault assignment that reproduces one iteration.
type Counterexample struct {
	ExplorationID string           `json:"exploration_id,omitempty"`
	Iteration     int              `json:"iteration,omitempty"`
	Faults        []ScheduledFault `json:"faults"`
}

// Validate checks every scheduled fault.
func (c Counterexample) Validate() error {
	seen := make(map[string]bool, len(c.Faults))
	for i, sf := range c.Faults {
		if sf.ExecutionIndex == "" {
			return fmt.Errorf("faults[%d]: execution_index is required", i)
		}
		if seen[sf.ExecutionIndex] {
			return fmt.Errorf("faults[%d]: duplicate execution_index", i)
		}
		seen[sf.ExecutionIndex] = true
		if err := sf.Fault.Validate(); err != nil {
			return fmt.Errorf("faults[%d]: %w", i, err)
		}
	}
	return nil
}

// LoadCounterexample reads a counterexample JSON file.
func LoadCounterexample(path string) (Counterexample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Counterexample{}, fmt.Errorf("failed to read counterexample: %w", err)
	}
	var cx Counterexample
	if err := json.Unmarshal(data, &cx); err != nil {
		return Counterexample{}, fmt.Errorf("failed to parse counterexample: %w", err)
	}
	if err := cx.Validate(); err != nil {
		return Counterexample{}, fmt.Errorf("invalid counterexample: %w", err)
	}
	return cx, nil
}

// NOTE: The records below are store-layer views. Events are ordered by
// GeneratedID, the engine's logical clock, never by wall time.

// ExplorationRecord describes one exploration run.
type ExplorationRecord struct {
	ID            string `json:"id"`
	Config        string `json:"config"` // canonical JSON of the analysis config
	EngineVersion string `json:"engine_version"`
	Replay        bool   `json:"replay"`
}

// IterationRecord is the archived summary of one iteration.
type IterationRecord struct {
	ExplorationID string           `json:"exploration_id"`
	Number        int              `json:"number"`
	Outcome       Outcome          `json:"outcome"`
	Faults        []ScheduledFault `json:"faults"`
	Scheduled     int              `json:"scheduled"`
	Injected      int              `json:"injected"`
	Events        int              `json:"events"`
	Proposed      int              `json:"proposed"`
	Failure       string           `json:"failure,omitempty"`
}

// EventRecord is one instrumentation event as persisted.
type EventRecord struct {
	ExplorationID string `json:"exploration_id"`
	Iteration     int    `json:"iteration"`
	Event         Event  `json:"event"`
}
