package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filibuster/internal/ir"
)

func TestRequestQueue_FIFO(t *testing.T) {
	q := newRequestQueue()
	for _, idx := range []string{"1", "2", "3"} {
		require.True(t, q.Enqueue(request{kind: requestEvent, event: ir.Event{ExecutionIndex: idx}}))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"1", "2", "3"} {
		r, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, r.event.ExecutionIndex)
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestRequestQueue_SignalCoalesces(t *testing.T) {
	q := newRequestQueue()
	q.Enqueue(request{kind: requestBegin})
	q.Enqueue(request{kind: requestEnd})

	select {
	case <-q.Wait():
	default:
		t.Fatal("expected a pending signal")
	}
	select {
	case <-q.Wait():
		t.Fatal("signals should coalesce")
	default:
	}
}

func TestRequestQueue_Close(t *testing.T) {
	q := newRequestQueue()
	require.True(t, q.Enqueue(request{kind: requestBegin}))

	q.Close()
	q.Close() // idempotent

	assert.False(t, q.Enqueue(request{kind: requestEnd}))
	assert.False(t, q.Drained(), "closed but not empty")

	_, ok := q.TryDequeue()
	require.True(t, ok)
	assert.True(t, q.Drained())

	_, open := <-q.Wait()
	assert.False(t, open)
}
