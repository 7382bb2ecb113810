package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/filibuster/internal/analysis"
	"github.com/roach88/filibuster/internal/engine"
	"github.com/roach88/filibuster/internal/instrument"
	"github.com/roach88/filibuster/internal/ir"
)

// TestFunc is the code under test. Outgoing calls must use ctx so the
// instrumentation finds the scope and coordinator.
type TestFunc func(ctx context.Context) error

// Driver is the engine an exploration runs against: *engine.Engine in
// process or *instrument.RemoteCoordinator over HTTP.
type Driver interface {
	instrument.Coordinator
	BeginIteration(ctx context.Context) (engine.Iteration, error)
	EndIteration(ctx context.Context, result engine.IterationResult) (engine.Summary, error)
}

// Option configures an exploration.
type Option func(*options)

type options struct {
	node string
}

// WithNode names the root node of the test's call tree. Defaults to "test".
func WithNode(name string) Option {
	return func(o *options) {
		o.node = name
	}
}

// Explore runs fn once per iteration until the driver reports exhaustion.
//
// The returned error is fatal: a decision timeout, a stopped engine or a
// failed iteration control call. Unexpected test failures are reported in
// the Result, see Result.Err.
func Explore(ctx context.Context, d Driver, fn TestFunc, opts ...Option) (*Result, error) {
	o := options{node: "test"}
	for _, opt := range opts {
		opt(&o)
	}

	res := newResult()
	coord := &labeler{next: d, sites: res.sites}

	for {
		it, err := d.BeginIteration(ctx)
		if engine.IsExhaustedError(err) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("begin iteration: %w", err)
		}
		if res.ExplorationID == "" {
			res.ExplorationID = it.ExplorationID
		}

		runCtx := instrument.WithScope(ctx, instrument.NewScope(o.node))
		runCtx = instrument.WithCoordinator(runCtx, coord)
		testErr := runTest(runCtx, fn)

		if engine.IsFatalError(testErr) {
			return res, fmt.Errorf("iteration %d: %w", it.Number, testErr)
		}

		outcome, obs := classify(it.Number, testErr)
		result := engine.IterationResult{Outcome: outcome}
		if outcome == ir.OutcomeFailed {
			result.Failure = testErr.Error()
		}

		summary, err := d.EndIteration(ctx, result)
		if err != nil && !engine.IsFaultNotInjectedError(err) {
			return res, fmt.Errorf("end iteration %d: %w", it.Number, err)
		}

		res.record(it, summary, obs, testErr)
		slog.Info("iteration classified",
			"iteration", it.Number,
			"outcome", summary.Outcome,
			"scheduled", len(it.Faults),
			"injected", summary.Injected,
		)

		if summary.Exhausted {
			break
		}
	}
	return res, nil
}

// record appends one iteration to the result.
func (r *Result) record(it engine.Iteration, s engine.Summary, obs *Observation, testErr error) {
	rep := IterationReport{
		Number:   it.Number,
		Outcome:  s.Outcome,
		Faults:   it.Faults,
		Injected: s.Injected,
		Events:   s.Events,
		Observed: obs,
	}
	// A test error is a failure even when the engine reports the outcome
	// as fault_not_injected.
	if testErr != nil && obs == nil {
		rep.Failure = testErr.Error()
		r.Failures = append(r.Failures, Failure{Iteration: it.Number, Faults: it.Faults, Err: testErr})
	}
	if s.Outcome == ir.OutcomeFaultNotInjected {
		r.NotInjected = append(r.NotInjected, it.Number)
	}
	if obs != nil {
		r.Observed = append(r.Observed, *obs)
	}
	r.Iterations = append(r.Iterations, rep)
}

// Run starts an engine for cfg, explores fn against it and stops the
// engine. Engine options such as engine.WithStore are passed through.
func Run(ctx context.Context, cfg *analysis.Config, fn TestFunc, opts ...engine.EngineOption) (*Result, error) {
	eng, err := engine.New(cfg, opts...)
	if err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := eng.Run(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("engine loop failed", "error", err)
		}
	}()
	defer func() {
		eng.Stop()
		cancel()
		wg.Wait()
	}()

	return Explore(ctx, eng, fn)
}

// Replay runs exactly one iteration with the counterexample's faults.
func Replay(ctx context.Context, cfg *analysis.Config, cx ir.Counterexample, fn TestFunc, opts ...engine.EngineOption) (*Result, error) {
	opts = append(opts, engine.WithCounterexample(cx))
	return Run(ctx, cfg, fn, opts...)
}

// runTest calls fn, converting a panic into an error.
func runTest(ctx context.Context, fn TestFunc) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx)
}

// classify maps a test error to an outcome.
func classify(iteration int, err error) (ir.Outcome, *Observation) {
	if err == nil {
		return ir.OutcomePassed, nil
	}
	if fe, ok := instrument.AsFaultError(err); ok {
		return ir.OutcomeFaultObserved, &Observation{
			Iteration:      iteration,
			Kind:           fe.Fault.Kind,
			Service:        fe.Service,
			Method:         fe.Method,
			ExecutionIndex: fe.ExecutionIndex,
			Fault:          fe.Fault,
		}
	}
	return ir.OutcomeFailed, nil
}

// labeler records the call site of every invocation so reports can name
// execution indexes.
type labeler struct {
	next  instrument.Coordinator
	mu    sync.Mutex
	sites map[string]string
}

func (l *labeler) Submit(ctx context.Context, ev ir.Event) (ir.Directive, error) {
	d, err := l.next.Submit(ctx, ev)
	if ev.Type == ir.InstrumentationInvocation && err == nil {
		l.mu.Lock()
		l.sites[d.ExecutionIndex] = ev.Service + " " + ev.Method
		l.mu.Unlock()
	}
	return d, err
}
