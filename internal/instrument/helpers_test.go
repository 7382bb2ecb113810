package instrument

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/roach88/filibuster/internal/ir"
)

// recorder is a Coordinator that records events and answers invocations
// with decide.
type recorder struct {
	mu     sync.Mutex
	events []ir.Event
	decide func(ir.Event) (ir.Directive, error)
}

func (r *recorder) Submit(_ context.Context, ev ir.Event) (ir.Directive, error) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	if ev.Type == ir.InstrumentationInvocation && r.decide != nil {
		return r.decide(ev)
	}
	return ir.NoFault(ev.ExecutionIndex), nil
}

func (r *recorder) Events() []ir.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ir.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) ofType(t ir.InstrumentationType) []ir.Event {
	var out []ir.Event
	for _, ev := range r.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func injectAll(f ir.Fault) func(ir.Event) (ir.Directive, error) {
	return func(ev ir.Event) (ir.Directive, error) {
		return ir.Inject(ev.ExecutionIndex, f), nil
	}
}

// upstream is a test server that records the requests it serves.
type upstream struct {
	*httptest.Server
	mu       sync.Mutex
	bodies   []string
	headers  []http.Header
	response string
}

func newUpstream(t *testing.T, response string) *upstream {
	t.Helper()
	u := &upstream{response: response}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		u.mu.Lock()
		u.bodies = append(u.bodies, string(b))
		u.headers = append(u.headers, r.Header.Clone())
		u.mu.Unlock()
		_, _ = io.WriteString(w, u.response)
	}))
	t.Cleanup(u.Close)
	return u
}

func (u *upstream) hits() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.bodies)
}

func rootContext(c Coordinator) context.Context {
	ctx := WithScope(context.Background(), NewScope("test"))
	return WithCoordinator(ctx, c)
}
