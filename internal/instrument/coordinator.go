package instrument

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/roach88/filibuster/internal/engine"
	"github.com/roach88/filibuster/internal/ir"
)

// Coordinator decides the directive for each instrumentation event.
// *engine.Engine implements it in process; RemoteCoordinator over HTTP.
type Coordinator interface {
	Submit(ctx context.Context, ev ir.Event) (ir.Directive, error)
}

// Routes served by the HTTP coordinator.
const (
	PathEvents         = "/filibuster/events"
	PathBeginIteration = "/filibuster/iterations/begin"
	PathEndIteration   = "/filibuster/iterations/end"
	PathState          = "/filibuster/state"
	PathHealth         = "/health"
)

// DefaultRemoteTimeout bounds every coordinator round trip.
const DefaultRemoteTimeout = 10 * time.Second

// RemoteCoordinator talks to an engine served by the HTTP coordinator.
//
// Engine errors come back as *engine.RuntimeError, so the engine's
// IsXxxError helpers work unchanged. An unreachable coordinator is a fatal
// ENGINE_STOPPED error and a timed-out request is DECISION_TIMEOUT.
type RemoteCoordinator struct {
	baseURL string
	client  *http.Client
}

// RemoteOption configures a RemoteCoordinator.
type RemoteOption func(*RemoteCoordinator)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *RemoteCoordinator) {
		r.client = c
	}
}

// WithRemoteTimeout sets the per-request timeout.
func WithRemoteTimeout(d time.Duration) RemoteOption {
	return func(r *RemoteCoordinator) {
		r.client.Timeout = d
	}
}

// NewRemoteCoordinator returns a client for the coordinator at baseURL.
func NewRemoteCoordinator(baseURL string, opts ...RemoteOption) *RemoteCoordinator {
	r := &RemoteCoordinator{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultRemoteTimeout},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit sends an event and returns the engine's directive.
func (r *RemoteCoordinator) Submit(ctx context.Context, ev ir.Event) (ir.Directive, error) {
	var d ir.Directive
	err := r.do(ctx, http.MethodPost, PathEvents, ev, &d)
	return d, err
}

// BeginIteration opens the next iteration.
func (r *RemoteCoordinator) BeginIteration(ctx context.Context) (engine.Iteration, error) {
	var it engine.Iteration
	err := r.do(ctx, http.MethodPost, PathBeginIteration, struct{}{}, &it)
	return it, err
}

// EndIteration closes the current iteration. A fault_not_injected outcome
// is returned with a *engine.FaultNotInjectedError, as the engine does.
func (r *RemoteCoordinator) EndIteration(ctx context.Context, result engine.IterationResult) (engine.Summary, error) {
	var s engine.Summary
	if err := r.do(ctx, http.MethodPost, PathEndIteration, result, &s); err != nil {
		return s, err
	}
	if s.Outcome == ir.OutcomeFaultNotInjected {
		return s, &engine.FaultNotInjectedError{Iteration: s.Number, Scheduled: s.Faults}
	}
	return s, nil
}

// Status returns the engine status.
func (r *RemoteCoordinator) Status(ctx context.Context) (engine.Status, error) {
	var st engine.Status
	err := r.do(ctx, http.MethodGet, PathState, nil, &st)
	return st, err
}

func (r *RemoteCoordinator) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return &engine.RuntimeError{Code: engine.ErrCodeDecisionTimeout, Message: err.Error()}
		}
		return &engine.RuntimeError{Code: engine.ErrCodeEngineStopped, Message: "coordinator unreachable: " + err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var re engine.RuntimeError
		if err := json.Unmarshal(data, &re); err == nil && re.Code != "" {
			return &re
		}
		return fmt.Errorf("coordinator returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
