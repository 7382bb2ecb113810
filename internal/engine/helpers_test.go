package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/filibuster/internal/analysis"
	"github.com/roach88/filibuster/internal/ir"
	"github.com/roach88/filibuster/internal/testutil"
)

// callSite is one call a simulated test makes.
type callSite struct {
	service string
	method  string
	payload string // empty means no payload
}

// executionIndex returns the index the call gets when made directly from
// the test root.
func (c callSite) executionIndex() string {
	return testutil.Index(testutil.Call{Origin: "test", Service: c.service, Method: c.method})
}

func (c callSite) event() ir.Event {
	ev := ir.Event{
		Type:           ir.InstrumentationInvocation,
		ExecutionIndex: c.executionIndex(),
		VClock:         map[string]int64{"test": 1},
		RequestID:      "req-" + c.service,
		Service:        c.service,
		Method:         c.method,
		CallType:       ir.CallTypeHTTP,
	}
	if c.payload != "" {
		p := ir.StringPayload(c.payload)
		ev.Payload = &p
	}
	return ev
}

// startEngine builds an engine with a fixed exploration ID and runs its
// loop until the test ends.
func startEngine(t *testing.T, cfg *analysis.Config, opts ...EngineOption) *Engine {
	t.Helper()
	if cfg != nil {
		require.NoError(t, cfg.Validate())
	}
	opts = append([]EngineOption{WithIDGenerator(NewFixedGenerator("exploration-1"))}, opts...)
	e, err := New(cfg, opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = e.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return e
}

// byzantineRule applies a single byzantine value to one service.
func byzantineRule(service string) analysis.Rule {
	return analysis.Rule{
		Name:      "byz-" + service,
		Services:  "^" + service + "$",
		Byzantine: []string{"x"},
	}
}

// testFunc simulates the code under test for one iteration.
type testFunc func(it Iteration) []callSite

// iterationRun is what explore observed for one iteration.
type iterationRun struct {
	iteration  Iteration
	summary    Summary
	directives map[string]ir.Directive // by service
	endErr     error
}

// explore drives the engine to exhaustion, submitting the calls fn returns.
func explore(t *testing.T, e *Engine, fn testFunc) []iterationRun {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var runs []iterationRun
	for i := 0; i < 100; i++ {
		it, err := e.BeginIteration(ctx)
		if IsExhaustedError(err) {
			return runs
		}
		require.NoError(t, err)

		run := iterationRun{iteration: it, directives: make(map[string]ir.Directive)}
		for _, c := range fn(it) {
			d, err := e.Submit(ctx, c.event())
			require.NoError(t, err)
			run.directives[c.service] = d
		}

		run.summary, run.endErr = e.EndIteration(ctx, IterationResult{Outcome: ir.OutcomePassed})
		runs = append(runs, run)
	}
	t.Fatalf("exploration did not terminate")
	return nil
}

func sites(names ...string) testFunc {
	return func(Iteration) []callSite {
		out := make([]callSite, len(names))
		for i, n := range names {
			out[i] = callSite{service: n, method: "Get"}
		}
		return out
	}
}

func faultSets(runs []iterationRun) []string {
	var out []string
	for _, r := range runs {
		var s string
		for _, sf := range r.iteration.Faults {
			s += fmt.Sprintf("%s;", sf.Fault)
		}
		out = append(out, fmt.Sprintf("%d:%d:%s", r.iteration.Number, len(r.iteration.Faults), s))
	}
	return out
}
