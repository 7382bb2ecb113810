// Package vclock implements the per-request vector clock attached to
// instrumentation events.
//
// The clock is a causal fingerprint only: clocks are compared by structural
// equality, never by happens-before ordering, and are never merged.
package vclock

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/roach88/filibuster/internal/ir"
)

// VectorClock maps node names to non-negative counters. Unseen names read
// as zero. A nil VectorClock is a valid empty clock for reads.
type VectorClock map[string]int64

// New returns an empty clock.
func New() VectorClock {
	return VectorClock{}
}

// Increment bumps the counter for node by one.
func (vc VectorClock) Increment(node string) {
	vc[node]++
}

// Get returns the counter for node, zero when unseen.
func (vc VectorClock) Get(node string) int64 {
	return vc[node]
}

// Clone returns an independent copy.
func (vc VectorClock) Clone() VectorClock {
	out := make(VectorClock, len(vc))
	maps.Copy(out, vc)
	return out
}

// ToMap returns a plain map copy.
func (vc VectorClock) ToMap() map[string]int64 {
	return map[string]int64(vc.Clone())
}

// Equal compares clocks structurally. Explicit zero entries equal absent
// entries, since both read as zero.
func (vc VectorClock) Equal(o VectorClock) bool {
	for k, v := range vc {
		if o[k] != v {
			return false
		}
	}
	for k, v := range o {
		if vc[k] != v {
			return false
		}
	}
	return true
}

// Serialize returns the canonical JSON object of node -> count.
func (vc VectorClock) Serialize() string {
	b, _ := ir.MarshalCanonical(ir.CounterMap(vc))
	return string(b)
}

// String implements fmt.Stringer.
func (vc VectorClock) String() string {
	return vc.Serialize()
}

// Parse reads a serialized clock. Empty input yields an empty clock.
// Negative counters are rejected.
func Parse(s string) (VectorClock, error) {
	if s == "" {
		return New(), nil
	}
	var m map[string]int64
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("parse vector clock: %w", err)
	}
	vc := make(VectorClock, len(m))
	for k, v := range m {
		if v < 0 {
			return nil, fmt.Errorf("parse vector clock: negative counter for %q", k)
		}
		vc[k] = v
	}
	return vc, nil
}
