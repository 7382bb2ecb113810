package instrument

import (
	"context"
	"sync"

	"github.com/roach88/filibuster/internal/dei"
	"github.com/roach88/filibuster/internal/vclock"
)

type ctxKey int

const (
	scopeKey ctxKey = iota
	coordinatorKey
)

// Scope is the causal context of one node in the call tree.
//
// Sibling calls made from the same Scope may run concurrently, so every
// mutation of the index and the clock happens under mu. A call's frame is
// pushed and popped under the same lock; the index keeps its occurrence
// history, so repeating a call site yields the next count.
type Scope struct {
	mu     sync.Mutex
	node   string
	index  *dei.Index
	clock  vclock.VectorClock
	origin vclock.VectorClock
}

// NewScope returns the root scope of a test, named after the node making
// the first calls.
func NewScope(node string) *Scope {
	return &Scope{
		node:   node,
		index:  dei.New(),
		clock:  vclock.New(),
		origin: vclock.New(),
	}
}

// newChildScope is the scope of a handler serving a propagated request.
func newChildScope(node string, idx *dei.Index, p propagated) *Scope {
	return &Scope{
		node:   node,
		index:  idx,
		clock:  p.clock.Clone(),
		origin: p.clock.Clone(),
	}
}

// Node returns the node name.
func (s *Scope) Node() string {
	return s.node
}

// Index returns a copy of the scope's execution index.
func (s *Scope) Index() *dei.Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Clone()
}

// Clock returns a copy of the scope's vector clock.
func (s *Scope) Clock() vclock.VectorClock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Clone()
}

// call is the causal context assigned to one outgoing call.
type call struct {
	index  string
	clock  vclock.VectorClock
	origin vclock.VectorClock
}

// enter assigns the execution index and clock for a call from this scope.
func (s *Scope) enter(cs dei.Callsite) call {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clock.Increment(s.node)
	s.index.Push(cs)
	c := call{
		index:  s.index.Serialize(),
		clock:  s.clock.Clone(),
		origin: s.origin.Clone(),
	}
	s.index.MustPop()
	return c
}

// WithScope returns a context carrying s.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey, s)
}

// ScopeFrom returns the scope carried by ctx.
func ScopeFrom(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(scopeKey).(*Scope)
	return s, ok && s != nil
}

// WithCoordinator returns a context carrying c.
func WithCoordinator(ctx context.Context, c Coordinator) context.Context {
	return context.WithValue(ctx, coordinatorKey, c)
}

// CoordinatorFrom returns the coordinator carried by ctx.
func CoordinatorFrom(ctx context.Context) (Coordinator, bool) {
	c, ok := ctx.Value(coordinatorKey).(Coordinator)
	return c, ok && c != nil
}
