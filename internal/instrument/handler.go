package instrument

import (
	"log/slog"
	"net/http"

	"github.com/roach88/filibuster/internal/ir"
)

// Handler instruments the server side of service.
//
// For a request carrying an execution index it reports request_received
// and serves next under a child Scope, so calls the handler makes are
// nested below the caller's index. Uninstrumented requests pass through.
func Handler(service string, c Coordinator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, idx, ok := readPropagated(r.Header)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		ev := ir.Event{
			Type:           ir.InstrumentationRequestReceived,
			ExecutionIndex: p.index,
			VClock:         p.clock.ToMap(),
			OriginVClock:   p.origin.ToMap(),
			RequestID:      p.requestID,
			Origin:         service,
			Service:        service,
			Method:         r.Method + " " + r.URL.Path,
			CallType:       ir.CallTypeHTTP,
		}
		if _, err := c.Submit(ctx, ev); err != nil {
			slog.Error("failed to report request_received",
				"execution_index", p.index,
				"service", service,
				"request_id", p.requestID,
				"error", err,
			)
		}

		ctx = WithScope(ctx, newChildScope(service, idx, p))
		ctx = WithCoordinator(ctx, c)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
