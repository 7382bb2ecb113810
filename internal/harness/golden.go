package harness

import (
	"sort"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/filibuster/internal/ir"
)

// Snapshot renders a Result without exploration IDs or execution index
// digests, so it is stable across runs and readable in review. Execution
// indexes are replaced by their "service method" site labels.
func Snapshot(name string, r *Result) ([]byte, error) {
	iterations := make([]any, len(r.Iterations))
	for i, it := range r.Iterations {
		faults := make([]any, 0, len(it.Faults))
		labels := make([]map[string]any, 0, len(it.Faults))
		for _, sf := range it.Faults {
			labels = append(labels, map[string]any{
				"site":  r.Site(sf.ExecutionIndex),
				"fault": sf.Fault.String(),
			})
		}
		sort.Slice(labels, func(a, b int) bool {
			return labels[a]["site"].(string) < labels[b]["site"].(string)
		})
		for _, l := range labels {
			faults = append(faults, l)
		}

		m := map[string]any{
			"number":   it.Number,
			"outcome":  string(it.Outcome),
			"faults":   faults,
			"injected": it.Injected,
			"events":   it.Events,
		}
		if it.Observed != nil {
			m["observed"] = map[string]any{
				"service": it.Observed.Service,
				"method":  it.Observed.Method,
				"fault":   it.Observed.Fault.String(),
			}
		}
		if it.Failure != "" {
			m["failure"] = it.Failure
		}
		iterations[i] = m
	}

	return ir.MarshalCanonical(map[string]any{
		"name":       name,
		"iterations": iterations,
	})
}

// AssertGolden compares the result's snapshot against a golden file.
// The golden file is stored in testdata/golden/{name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, r *Result) error {
	t.Helper()

	data, err := Snapshot(name, r)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
