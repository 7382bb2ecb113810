package instrument

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filibuster/internal/dei"
)

func TestScope_RepeatedCallsiteCounts(t *testing.T) {
	s := NewScope("test")
	cs := dei.NewCallsite("test", "cart", "GET /items")

	first := s.enter(cs)
	second := s.enter(cs)

	a := dei.MustParse(first.index).Frames()
	b := dei.MustParse(second.index).Frames()
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].Chain, b[0].Chain)
	assert.Equal(t, int64(1), a[0].Count)
	assert.Equal(t, int64(2), b[0].Count)

	assert.Equal(t, int64(1), first.clock.Get("test"))
	assert.Equal(t, int64(2), second.clock.Get("test"))
	assert.Equal(t, 0, s.Index().Len(), "frames are popped after each call")
}

func TestScope_ConcurrentSiblings(t *testing.T) {
	s := NewScope("test")
	cs := dei.NewCallsite("test", "cart", "GET /items")

	const n = 20
	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := s.enter(cs)
			mu.Lock()
			seen[c.index] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n, "every sibling gets a distinct occurrence")
	assert.Equal(t, int64(n), s.Clock().Get("test"))
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	_, ok := ScopeFrom(ctx)
	assert.False(t, ok)
	_, ok = CoordinatorFrom(ctx)
	assert.False(t, ok)

	s := NewScope("node")
	ctx = WithCoordinator(WithScope(ctx, s), &recorder{})

	got, ok := ScopeFrom(ctx)
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, "node", got.Node())

	_, ok = CoordinatorFrom(ctx)
	assert.True(t, ok)
}
