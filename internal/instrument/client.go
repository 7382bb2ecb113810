package instrument

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/filibuster/internal/dei"
	"github.com/roach88/filibuster/internal/ir"
)

// Transport is an http.RoundTripper that reports every outgoing call to a
// Coordinator and applies the directive it returns.
//
// A request whose context carries no Scope, or no Coordinator when the
// Transport has none of its own, is not instrumented and passes through.
type Transport struct {
	// Base performs real requests. Defaults to http.DefaultTransport.
	Base http.RoundTripper

	// Coordinator overrides the coordinator carried by the request context.
	Coordinator Coordinator

	// Service names the target service. Defaults to the request host name.
	Service string
}

// NewClient returns an http.Client instrumented for calls to service.
func NewClient(service string, c Coordinator) *http.Client {
	return &http.Client{Transport: &Transport{Service: service, Coordinator: c}}
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) coordinator(req *http.Request) (Coordinator, bool) {
	if t.Coordinator != nil {
		return t.Coordinator, true
	}
	return CoordinatorFrom(req.Context())
}

func (t *Transport) service(req *http.Request) string {
	if t.Service != "" {
		return t.Service
	}
	return req.URL.Hostname()
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	scope, ok := ScopeFrom(ctx)
	if !ok {
		return t.base().RoundTrip(req)
	}
	coord, ok := t.coordinator(req)
	if !ok {
		return t.base().RoundTrip(req)
	}

	// RoundTrip must not modify the caller's request.
	req = req.Clone(ctx)
	body, err := readRequestBody(req)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}

	service := t.service(req)
	method := req.Method + " " + req.URL.Path
	cs := dei.NewCallsite(scope.Node(), service, method, string(body))
	c := scope.enter(cs)

	ev := ir.Event{
		Type:           ir.InstrumentationInvocation,
		ExecutionIndex: c.index,
		VClock:         c.clock.ToMap(),
		OriginVClock:   c.origin.ToMap(),
		RequestID:      uuid.NewString(),
		Origin:         scope.Node(),
		Service:        service,
		Method:         method,
		CallType:       ir.CallTypeHTTP,
		Payload:        payloadOf(req.Header.Get("Content-Type"), body),
	}

	directive, err := coord.Submit(ctx, ev)
	if err != nil {
		// Fatal: the call must not proceed without a decision.
		return nil, fmt.Errorf("fault decision for %s %s: %w", service, method, err)
	}

	propagated{index: c.index, clock: c.clock, origin: c.origin, requestID: ev.RequestID}.write(req.Header)

	resp, callErr := t.apply(req, ev, directive)
	t.complete(req, ev, directive, callErr)
	return resp, callErr
}

// apply performs the call as the directive commands.
func (t *Transport) apply(req *http.Request, ev ir.Event, d ir.Directive) (*http.Response, error) {
	if !d.HasFault() {
		return t.base().RoundTrip(req)
	}

	f := *d.Fault
	slog.Debug("applying fault",
		"execution_index", ev.ExecutionIndex,
		"service", ev.Service,
		"method", ev.Method,
		"fault", f.String(),
	)

	switch f.Kind {
	case ir.FaultException:
		return nil, &FaultError{Fault: f, Service: ev.Service, Method: ev.Method, ExecutionIndex: ev.ExecutionIndex}

	case ir.FaultByzantine:
		return byzantineResponse(req, f), nil

	case ir.FaultTransformer:
		if ev.Payload == nil {
			return nil, fmt.Errorf("%w: transformer on a call without payload", ErrUnsupported)
		}
		mutated, err := f.Transformer.Apply(*ev.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
		}
		b, err := mutated.Bytes()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
		}
		setRequestBody(req, b)
		return t.base().RoundTrip(req)
	}
	return nil, fmt.Errorf("%w: fault kind %q", ErrUnsupported, f.Kind)
}

// byzantineResponse substitutes the fault's value for the real response.
func byzantineResponse(req *http.Request, f ir.Fault) *http.Response {
	value := f.Byzantine.Value
	h := make(http.Header)
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set(HeaderFault, string(ir.FaultByzantine))
	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(strings.NewReader(value)),
		ContentLength: int64(len(value)),
		Request:       req,
	}
}

// complete reports invocation_complete. Failures are logged, not returned:
// the call already happened and its result belongs to the caller.
func (t *Transport) complete(req *http.Request, inv ir.Event, d ir.Directive, callErr error) {
	coord, _ := t.coordinator(req)
	ev := ir.Event{
		Type:           ir.InstrumentationInvocationComplete,
		ExecutionIndex: inv.ExecutionIndex,
		VClock:         inv.VClock,
		OriginVClock:   inv.OriginVClock,
		RequestID:      inv.RequestID,
		Origin:         inv.Origin,
		Service:        inv.Service,
		Method:         inv.Method,
		CallType:       inv.CallType,
		Fault:          d.Fault,
	}
	if fe, ok := AsFaultError(callErr); ok {
		ev.Exception = fe.Exception()
	} else if callErr != nil {
		ev.Exception = &ir.Exception{Name: "transport_error", Metadata: ir.ExceptionMetadata{Description: callErr.Error()}}
	}

	if _, err := coord.Submit(req.Context(), ev); err != nil {
		slog.Error("failed to report invocation_complete",
			"execution_index", inv.ExecutionIndex,
			"service", inv.Service,
			"method", inv.Method,
			"error", err,
		)
	}
}
