package harness

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filibuster/internal/analysis"
	"github.com/roach88/filibuster/internal/engine"
	"github.com/roach88/filibuster/internal/instrument"
	"github.com/roach88/filibuster/internal/ir"
	"github.com/roach88/filibuster/internal/server"
	"github.com/roach88/filibuster/internal/store"
)

func checkoutConfig(t *testing.T) *analysis.Config {
	t.Helper()
	cfg := &analysis.Config{Rules: []analysis.Rule{
		{Name: "cart-down", Services: "^cart$", Exceptions: []ir.Exception{{Name: "ConnectionError"}}},
		{Name: "users-slow", Services: "^users$", Exceptions: []ir.Exception{{Name: "Timeout"}}},
	}}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRun_Checkout(t *testing.T) {
	cartURL, usersURL := services(t)

	res, err := Run(context.Background(), checkoutConfig(t), checkout(cartURL, usersURL),
		engine.WithExplorationID("checkout-1"))
	require.NoError(t, err)

	assert.Equal(t, "checkout-1", res.ExplorationID)
	assert.True(t, res.Pass())
	assert.NoError(t, res.Err())
	assert.NoError(t, AssertIterationCount(res, 4))
	assert.NoError(t, AssertNoFailures(res))
	assert.NoError(t, AssertFaultObserved(res, FaultExpectation{Service: "cart", Exception: "ConnectionError"}))
	assert.NoError(t, AssertFaultObserved(res, FaultExpectation{Kind: ir.FaultException, Service: "users", Method: "GET /me"}))

	require.NoError(t, AssertGolden(t, "checkout", res))
}

func TestRun_SuppressCombinations(t *testing.T) {
	cartURL, usersURL := services(t)
	cfg := checkoutConfig(t)
	cfg.SuppressCombinations = true

	res, err := Run(context.Background(), cfg, checkout(cartURL, usersURL))
	require.NoError(t, err)
	assert.NoError(t, AssertIterationCount(res, 3))
}

func TestRun_UnexpectedFailureContinues(t *testing.T) {
	cartURL, usersURL := services(t)
	cfg := &analysis.Config{Rules: []analysis.Rule{
		{Name: "users-garbage", Services: "^users$", Byzantine: []string{"garbage"}},
		{Name: "cart-down", Services: "^cart$", Exceptions: []ir.Exception{{Name: "ConnectionError"}}},
	}}
	require.NoError(t, cfg.Validate())

	var runs atomic.Int64
	res, err := Run(context.Background(), cfg, counting(checkout(cartURL, usersURL), &runs))
	require.NoError(t, err)

	// baseline, {cart}, {users}, {users, cart}: the failure does not stop exploration.
	assert.Equal(t, int64(4), runs.Load())
	require.Len(t, res.Failures, 1)
	assert.False(t, res.Pass())

	failed := res.Failures[0]
	assert.Equal(t, 3, failed.Iteration)
	it, ok := res.Iteration(3)
	require.True(t, ok)
	assert.Equal(t, ir.OutcomeFailed, it.Outcome)
	assert.Contains(t, it.Failure, "garbage")

	err = res.Err()
	var fe *FailureError
	require.ErrorAs(t, err, &fe)
	assert.Len(t, fe.Failures, 1)
	assert.Contains(t, err.Error(), "iteration 3")

	var ae *AssertionError
	require.ErrorAs(t, AssertNoFailures(res), &ae)
	assert.Equal(t, "no_failures", ae.Type)

	t.Run("replay reproduces the failure", func(t *testing.T) {
		cx, ok := res.Counterexample(3)
		require.True(t, ok)

		var replays atomic.Int64
		rep, err := Replay(context.Background(), cfg, cx, counting(checkout(cartURL, usersURL), &replays))
		require.NoError(t, err)

		assert.Equal(t, int64(1), replays.Load())
		require.Len(t, rep.Iterations, 1)
		assert.Equal(t, ir.OutcomeFailed, rep.Iterations[0].Outcome)
		assert.Equal(t, 1, rep.Iterations[0].Injected)
	})
}

func TestRun_PanicIsFailure(t *testing.T) {
	res, err := Run(context.Background(), nil, func(context.Context) error {
		panic("boom")
	})
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	assert.EqualError(t, res.Failures[0].Err, "panic: boom")
}

func TestRun_FaultNotInjected(t *testing.T) {
	cartURL, _ := services(t)
	cfg := &analysis.Config{
		FailIfFaultNotInjected: true,
		Rules:                  []analysis.Rule{{Name: "cart-down", Exceptions: []ir.Exception{{Name: "ConnectionError"}}}},
	}
	require.NoError(t, cfg.Validate())

	cart := instrument.NewClient("cart", nil)
	var runs atomic.Int64
	res, err := Run(context.Background(), cfg, func(ctx context.Context) error {
		if runs.Add(1) > 1 {
			return nil // later runs take a path without the call
		}
		return call(ctx, cart, cartURL+"/items")
	})
	require.NoError(t, err)

	assert.Equal(t, []int{2}, res.NotInjected)
	assert.Empty(t, res.Failures)
	assert.False(t, res.Pass())
	it, _ := res.Iteration(2)
	assert.Equal(t, ir.OutcomeFaultNotInjected, it.Outcome)
}

func TestRun_PersistsToStore(t *testing.T) {
	cartURL, usersURL := services(t)
	st, err := store.Open(t.TempDir() + "/harness.db")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	res, err := Run(context.Background(), checkoutConfig(t), checkout(cartURL, usersURL),
		engine.WithStore(st), engine.WithExplorationID("x-1"))
	require.NoError(t, err)

	its, err := st.ReadIterations(context.Background(), "x-1")
	require.NoError(t, err)
	require.Len(t, its, len(res.Iterations))
	for i, it := range its {
		assert.Equal(t, res.Iterations[i].Outcome, it.Outcome)
	}
}

func TestExplore_RemoteDriver(t *testing.T) {
	cartURL, usersURL := services(t)

	eng, err := engine.New(checkoutConfig(t))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = eng.Run(ctx); close(done) }()
	t.Cleanup(func() { cancel(); <-done })

	srv, err := server.New(eng)
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	res, err := Explore(context.Background(), instrument.NewRemoteCoordinator(ts.URL), checkout(cartURL, usersURL))
	require.NoError(t, err)
	assert.NoError(t, AssertIterationCount(res, 4))
	assert.True(t, res.Pass())
}

// stalled answers iterations but times out every decision.
type stalled struct{ begun int }

func (s *stalled) Submit(context.Context, ir.Event) (ir.Directive, error) {
	return ir.Directive{}, &engine.RuntimeError{Code: engine.ErrCodeDecisionTimeout, Message: "timed out"}
}

func (s *stalled) BeginIteration(context.Context) (engine.Iteration, error) {
	s.begun++
	return engine.Iteration{Number: s.begun}, nil
}

func (s *stalled) EndIteration(context.Context, engine.IterationResult) (engine.Summary, error) {
	return engine.Summary{}, errors.New("unexpected end")
}

func TestExplore_FatalErrorAborts(t *testing.T) {
	cartURL, usersURL := services(t)
	d := &stalled{}

	_, err := Explore(context.Background(), d, checkout(cartURL, usersURL))
	require.Error(t, err)
	assert.True(t, engine.IsTimeoutError(err))
	assert.Equal(t, 1, d.begun)
}

func TestClassify(t *testing.T) {
	outcome, obs := classify(1, nil)
	assert.Equal(t, ir.OutcomePassed, outcome)
	assert.Nil(t, obs)

	outcome, obs = classify(1, errors.New("boom"))
	assert.Equal(t, ir.OutcomeFailed, outcome)
	assert.Nil(t, obs)

	fe := &instrument.FaultError{Fault: ir.ExceptionFault("E", ir.ExceptionMetadata{}), Service: "cart", Method: "GET /"}
	outcome, obs = classify(3, errors.Join(errors.New("wrapped"), fe))
	assert.Equal(t, ir.OutcomeFaultObserved, outcome)
	require.NotNil(t, obs)
	assert.Equal(t, 3, obs.Iteration)
	assert.Equal(t, ir.FaultException, obs.Kind)
	assert.Equal(t, "cart", obs.Service)
}
