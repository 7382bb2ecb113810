package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/filibuster/internal/analysis"
	"github.com/roach88/filibuster/internal/dei"
	"github.com/roach88/filibuster/internal/ir"
	"github.com/roach88/filibuster/internal/store"
)

// DefaultDecisionTimeout bounds how long Submit waits for a fault decision.
const DefaultDecisionTimeout = 5 * time.Second

// Engine is the single-writer fault-injection event loop.
//
// CRITICAL: All mutations happen in the single-writer Run loop goroutine.
// External callers use Submit, BeginIteration and EndIteration, which
// enqueue a request and block on its reply.
//
// Thread-safety model:
//   - Submit(), BeginIteration(), EndIteration(): safe from any goroutine
//   - State(), Iterations(), Events(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
type Engine struct {
	cfg     *analysis.Config
	store   *store.Store
	clock   *Clock
	queue   *requestQueue
	ids     IDGenerator
	timeout time.Duration
	done    chan struct{}

	explorationID  string
	counterexample *ir.Counterexample

	// Loop-owned.
	explorer *explorer
	budget   *IterationBudget
	current  *iteration
	next     *Record
	started  bool

	// mu guards the fields below for readers outside the loop.
	mu        sync.RWMutex
	state     State
	summaries []Summary
	archive   map[int][]ir.Event
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithStore persists every event and finished iteration.
func WithStore(s *store.Store) EngineOption {
	return func(e *Engine) {
		e.store = s
	}
}

// WithDecisionTimeout sets how long Submit waits for a decision.
// Default: 5s (DefaultDecisionTimeout).
func WithDecisionTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithCounterexample switches the engine to replay mode: exactly one
// iteration runs, under the given fault assignment, and no search happens.
func WithCounterexample(cx ir.Counterexample) EngineOption {
	return func(e *Engine) {
		e.counterexample = &cx
	}
}

// WithExplorationID fixes the exploration ID instead of generating one.
func WithExplorationID(id string) EngineOption {
	return func(e *Engine) {
		e.explorationID = id
	}
}

// WithIDGenerator sets the generator used for the exploration ID.
func WithIDGenerator(g IDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithClock sets the logical clock, e.g. to continue numbering after
// events already in a store.
func WithClock(c *Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// New creates an Engine for one exploration. A nil cfg means the default
// configuration (no rules, so only the baseline runs).
//
// Counterexample execution indexes are canonicalized; New fails if one is
// invalid.
func New(cfg *analysis.Config, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		cfg = analysis.Default()
	}

	e := &Engine{
		cfg:     cfg,
		clock:   NewClock(),
		queue:   newRequestQueue(),
		ids:     UUIDv7Generator{},
		timeout: DefaultDecisionTimeout,
		done:    make(chan struct{}),
		state:   StateIdle,
		archive: make(map[int][]ir.Event),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.explorationID == "" {
		e.explorationID = e.ids.Generate()
	}

	e.explorer = newExplorer(cfg)
	e.budget = NewIterationBudget(cfg.MaxIterations)

	first := NewRecord()
	if e.counterexample != nil {
		if err := e.counterexample.Validate(); err != nil {
			return nil, fmt.Errorf("invalid counterexample: %w", err)
		}
		for _, sf := range e.counterexample.Faults {
			key, err := canonicalIndex(sf.ExecutionIndex)
			if err != nil {
				return nil, fmt.Errorf("invalid counterexample: %w", err)
			}
			first.Schedule(key, sf.Fault)
		}
		e.budget = NewIterationBudget(1)
	}
	e.next = first

	return e, nil
}

// canonicalIndex re-serializes an execution index so equal indexes compare
// equal as strings. Malformed trailing entries are truncated.
func canonicalIndex(s string) (string, error) {
	idx, err := dei.ParseString(s)
	if err != nil {
		return "", err
	}
	if idx.Len() == 0 {
		return "", fmt.Errorf("execution_index %q is empty", s)
	}
	return idx.Key(), nil
}

// ExplorationID returns the identifier of this exploration.
func (e *Engine) ExplorationID() string {
	return e.explorationID
}

// Config returns the analysis configuration.
func (e *Engine) Config() *analysis.Config {
	return e.cfg
}

// Replay reports whether the engine replays a counterexample.
func (e *Engine) Replay() bool {
	return e.counterexample != nil
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Status is a point-in-time view of the engine for monitoring.
type Status struct {
	ExplorationID string `json:"exploration_id"`
	State         State  `json:"state"`
	Iterations    int    `json:"iterations"`
	MaxIterations int    `json:"max_iterations"`
	Replay        bool   `json:"replay"`
}

// Status returns the current status.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Status{
		ExplorationID: e.explorationID,
		State:         e.state,
		Iterations:    len(e.summaries),
		MaxIterations: e.cfg.MaxIterations,
		Replay:        e.counterexample != nil,
	}
}

// Iterations returns the summaries of every finished iteration.
func (e *Engine) Iterations() []Summary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Summary, len(e.summaries))
	copy(out, e.summaries)
	return out
}

// Events returns the events recorded during a finished iteration, in
// generated_id order.
func (e *Engine) Events(number int) []ir.Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	evs := e.archive[number]
	out := make([]ir.Event, len(evs))
	copy(out, evs)
	return out
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Submit sends an instrumentation event and waits for the engine's
// directive. For invocation events a directive carrying a fault is a
// command. Other event types always receive a no-fault directive.
//
// Waiting is bounded by the decision timeout. A timeout or a stopped
// engine is a fatal RuntimeError; callers must not retry.
func (e *Engine) Submit(ctx context.Context, ev ir.Event) (ir.Directive, error) {
	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	r, err := e.call(ctx, request{kind: requestEvent, event: ev}, timer.C)
	if err != nil && IsTimeoutError(err) {
		slog.Error("fault decision timed out",
			"execution_index", ev.ExecutionIndex,
			"service", ev.Service,
			"method", ev.Method,
			"timeout", e.timeout,
		)
	}
	return r.directive, err
}

// BeginIteration opens the next iteration under the selected fault
// assignment. Returns an EXHAUSTED RuntimeError once exploration is over.
func (e *Engine) BeginIteration(ctx context.Context) (Iteration, error) {
	r, err := e.call(ctx, request{kind: requestBegin}, nil)
	return r.iteration, err
}

// EndIteration archives the current iteration and selects the next
// proposal. Every event submitted before the call has been recorded when it
// returns.
//
// If fail_if_fault_not_injected is set and the iteration scheduled faults
// but injected none, the summary's outcome is fault_not_injected and a
// *FaultNotInjectedError is returned alongside it.
func (e *Engine) EndIteration(ctx context.Context, result IterationResult) (Summary, error) {
	r, err := e.call(ctx, request{kind: requestEnd, result: result}, nil)
	return r.summary, err
}

func (e *Engine) call(ctx context.Context, req request, timeout <-chan time.Time) (reply, error) {
	req.reply = make(chan reply, 1)
	if !e.queue.Enqueue(req) {
		return reply{}, newStoppedError()
	}

	select {
	case r := <-req.reply:
		return r, r.err
	case <-timeout:
		return reply{}, newTimeoutError(e.timeout)
	case <-e.done:
		// The loop may have answered just before exiting.
		select {
		case r := <-req.reply:
			return r, r.err
		default:
		}
		return reply{}, newStoppedError()
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
}

// Run starts the single-writer event loop.
// Blocks until context is cancelled or Stop() is called.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// ERROR HANDLING: A request that fails is answered with its error, logged
// with full event context, and processing continues.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting",
		"exploration_id", e.explorationID,
		"replay", e.counterexample != nil,
		"max_iterations", e.cfg.MaxIterations,
	)
	defer close(e.done)

	for {
		req, ok := e.queue.TryDequeue()
		if ok {
			req.reply <- e.process(ctx, req)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			e.queue.Close()
			e.drain()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes when the queue is closed
			if e.queue.Drained() {
				slog.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// drain answers requests left in a closed queue.
func (e *Engine) drain() {
	for {
		req, ok := e.queue.TryDequeue()
		if !ok {
			return
		}
		req.reply <- reply{err: newStoppedError()}
	}
}

// Stop gracefully shuts down the engine.
// Requests already queued are still processed before Run returns.
func (e *Engine) Stop() {
	e.queue.Close()
}

// process routes a request to its handler.
// CRITICAL: Called only from Run() goroutine - single-writer guarantee.
func (e *Engine) process(ctx context.Context, req request) reply {
	switch req.kind {
	case requestEvent:
		d, err := e.processEvent(ctx, req.event)
		if err != nil {
			logEventError(req.event, err)
		}
		return reply{directive: d, err: err}

	case requestBegin:
		it, err := e.begin(ctx)
		return reply{iteration: it, err: err}

	case requestEnd:
		s, err := e.end(ctx, req.result)
		return reply{summary: s, err: err}

	default:
		return reply{err: fmt.Errorf("unknown request kind: %d", req.kind)}
	}
}

// processEvent records an event in the current iteration and decides the
// directive for invocations.
func (e *Engine) processEvent(ctx context.Context, ev ir.Event) (ir.Directive, error) {
	ev.GeneratedID = e.clock.Next()

	if err := ev.Validate(); err != nil {
		return ir.Directive{}, &RuntimeError{Code: ErrCodeInvalidEvent, Message: err.Error(), ExecutionIndex: ev.ExecutionIndex}
	}
	key, err := canonicalIndex(ev.ExecutionIndex)
	if err != nil {
		return ir.Directive{}, &RuntimeError{Code: ErrCodeInvalidEvent, Message: err.Error(), ExecutionIndex: ev.ExecutionIndex}
	}

	it := e.current
	if it == nil {
		return ir.Directive{}, &RuntimeError{
			Code:           ErrCodeNoActiveIteration,
			Message:        "event received outside an iteration",
			ExecutionIndex: key,
		}
	}
	if e.State() == StateRunningIteration {
		e.setState(StateAwaitingEvents)
	}

	ev.ExecutionIndex = key
	directive := ir.NoFault(key)

	if ev.Type == ir.InstrumentationInvocation {
		it.observe(key, ev)

		if f, ok := it.proposal.FaultAt(key); ok {
			directive = ir.Inject(key, f)
			it.injected[key] = true
			slog.Info("fault injected",
				"iteration", it.number,
				"execution_index", key,
				"service", ev.Service,
				"method", ev.Method,
				"fault", f.String(),
			)
		}
	}

	it.events = append(it.events, ev)

	slog.Debug("event recorded",
		"iteration", it.number,
		"event", ev.Type,
		"execution_index", key,
		"generated_id", ev.GeneratedID,
		"request_id", ev.RequestID,
	)

	e.persistEvent(ctx, it.number, ev)
	return directive, nil
}

// begin opens the next iteration.
func (e *Engine) begin(ctx context.Context) (Iteration, error) {
	switch state := e.State(); {
	case state == StateExhausted:
		return Iteration{}, &RuntimeError{Code: ErrCodeExhausted, Message: "exploration reached its fixpoint"}
	case state.Active():
		return Iteration{}, &RuntimeError{
			Code:      ErrCodeIterationActive,
			Message:   "an iteration is already running",
			Iteration: e.current.number,
		}
	}

	if !e.started {
		e.persistExploration(ctx)
		e.started = true
	}

	proposal := e.next
	e.next = nil
	e.explorer.markExplored(proposal)
	e.budget.Spend()

	number := e.budget.Used()
	e.current = newIteration(number, proposal)
	e.setState(StateRunningIteration)

	it := Iteration{
		Number:        number,
		ExplorationID: e.explorationID,
		Faults:        proposal.ScheduledFaults(),
	}

	slog.Info("iteration started",
		"exploration_id", e.explorationID,
		"iteration", number,
		"scheduled", len(it.Faults),
	)
	return it, nil
}

// end archives the current iteration, enumerates its neighbors and selects
// the next proposal.
func (e *Engine) end(ctx context.Context, result IterationResult) (Summary, error) {
	it := e.current
	if it == nil {
		return Summary{}, &RuntimeError{Code: ErrCodeNoActiveIteration, Message: "no iteration to end"}
	}
	e.setState(StateDecidingNextIteration)

	outcome := result.Outcome
	if !outcome.Valid() {
		outcome = ir.OutcomePassed
	}

	var notInjected error
	scheduled := len(it.proposal.Faults)
	injected := len(it.injected)
	if e.cfg.FailIfFaultNotInjected && scheduled > 0 && injected == 0 {
		outcome = ir.OutcomeFaultNotInjected
		notInjected = &FaultNotInjectedError{Iteration: it.number, Scheduled: it.proposal.ScheduledFaults()}
		slog.Warn("fault not injected",
			"iteration", it.number,
			"scheduled", scheduled,
		)
	}

	// With suppress_combinations only the baseline contributes proposals,
	// so every proposal carries exactly one fault.
	proposed := 0
	if e.counterexample == nil && (!e.cfg.SuppressCombinations || scheduled == 0) {
		proposed = e.explorer.propose(it)
	}

	summary := Summary{
		Number:    it.number,
		Outcome:   outcome,
		Failure:   result.Failure,
		Faults:    it.proposal.ScheduledFaults(),
		Scheduled: scheduled,
		Injected:  injected,
		Events:    len(it.events),
		Proposed:  proposed,
		Record:    it.observed,
	}

	e.current = nil
	next, ok := e.selectNext()
	if ok {
		e.next = next
	} else {
		summary.Exhausted = true
	}

	e.mu.Lock()
	e.summaries = append(e.summaries, summary)
	e.archive[it.number] = it.events
	if summary.Exhausted {
		e.state = StateExhausted
	}
	e.mu.Unlock()

	e.persistIteration(ctx, summary)

	slog.Info("iteration finished",
		"iteration", it.number,
		"outcome", outcome,
		"injected", injected,
		"proposed", proposed,
		"pending", e.explorer.Pending(),
	)
	if summary.Exhausted {
		slog.Info("exploration exhausted",
			"exploration_id", e.explorationID,
			"iterations", e.budget.Used(),
			"explored", e.explorer.Explored(),
		)
	}

	return summary, notInjected
}

// selectNext returns the next proposal to run, or false when the budget is
// spent or the frontier holds nothing unexplored.
func (e *Engine) selectNext() (*Record, bool) {
	if e.budget.Exhausted() {
		return nil, false
	}
	return e.explorer.next()
}

func (e *Engine) persistExploration(ctx context.Context) {
	if e.store == nil {
		return
	}
	cfgJSON, err := json.Marshal(e.cfg)
	if err != nil {
		slog.Error("marshal analysis config failed", "error", err)
		cfgJSON = []byte("{}")
	}
	rec := ir.ExplorationRecord{
		ID:            e.explorationID,
		Config:        string(cfgJSON),
		EngineVersion: ir.EngineVersion,
		Replay:        e.counterexample != nil,
	}
	if err := e.store.WriteExploration(ctx, rec); err != nil {
		slog.Error("exploration write failed", "exploration_id", e.explorationID, "error", err)
	}
}

func (e *Engine) persistEvent(ctx context.Context, iteration int, ev ir.Event) {
	if e.store == nil {
		return
	}
	rec := ir.EventRecord{ExplorationID: e.explorationID, Iteration: iteration, Event: ev}
	if err := e.store.WriteEvent(ctx, rec); err != nil {
		slog.Error("event write failed",
			"iteration", iteration,
			"generated_id", ev.GeneratedID,
			"execution_index", ev.ExecutionIndex,
			"error", err,
		)
	}
}

func (e *Engine) persistIteration(ctx context.Context, s Summary) {
	if e.store == nil {
		return
	}
	if err := e.store.WriteIteration(ctx, s.IterationRecord(e.explorationID)); err != nil {
		slog.Error("iteration write failed", "iteration", s.Number, "error", err)
	}
}

// logEventError logs an event processing failure with full context.
func logEventError(ev ir.Event, err error) {
	slog.Error("event processing failed",
		"error", err,
		"event", ev.Type,
		"execution_index", ev.ExecutionIndex,
		"request_id", ev.RequestID,
		"service", ev.Service,
		"method", ev.Method,
	)
}
