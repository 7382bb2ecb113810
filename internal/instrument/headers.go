package instrument

import (
	"net/http"

	"github.com/roach88/filibuster/internal/dei"
	"github.com/roach88/filibuster/internal/vclock"
)

// Header names used to propagate causal context between services.
const (
	HeaderExecutionIndex = "X-Filibuster-Execution-Index"
	HeaderVClock         = "X-Filibuster-VClock"
	HeaderOriginVClock   = "X-Filibuster-Origin-VClock"
	HeaderRequestID      = "X-Filibuster-Request-Id"

	// HeaderFault marks a response synthesized by a byzantine fault.
	HeaderFault = "X-Filibuster-Fault"
)

// propagated is the causal context carried by one request.
type propagated struct {
	index     string
	clock     vclock.VectorClock
	origin    vclock.VectorClock
	requestID string
}

func (p propagated) write(h http.Header) {
	h.Set(HeaderExecutionIndex, p.index)
	h.Set(HeaderVClock, p.clock.Serialize())
	h.Set(HeaderOriginVClock, p.origin.Serialize())
	h.Set(HeaderRequestID, p.requestID)
}

// readPropagated extracts the causal context from request headers. ok is
// false when the request is not instrumented. A malformed index is
// truncated to its valid prefix; malformed clocks read as empty.
func readPropagated(h http.Header) (p propagated, idx *dei.Index, ok bool) {
	raw := h.Get(HeaderExecutionIndex)
	if raw == "" {
		return propagated{}, nil, false
	}
	idx, err := dei.ParseString(raw)
	if err != nil {
		return propagated{}, nil, false
	}

	p.index = idx.Key()
	p.requestID = h.Get(HeaderRequestID)
	if p.clock, err = vclock.Parse(h.Get(HeaderVClock)); err != nil {
		p.clock = vclock.New()
	}
	if p.origin, err = vclock.Parse(h.Get(HeaderOriginVClock)); err != nil {
		p.origin = vclock.New()
	}
	return p, idx, true
}
