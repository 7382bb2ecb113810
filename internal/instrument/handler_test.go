package instrument

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filibuster/internal/dei"
	"github.com/roach88/filibuster/internal/ir"
)

func TestHandler_PassThroughWithoutHeaders(t *testing.T) {
	rec := &recorder{}
	var hadScope bool
	h := Handler("cart", rec, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadScope = ScopeFrom(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items", nil))

	assert.False(t, hadScope)
	assert.Empty(t, rec.Events())
}

func TestHandler_InstallsChildScope(t *testing.T) {
	idx := dei.New()
	idx.Push(dei.NewCallsite("test", "cart", "GET /items"))

	rec := &recorder{}
	var scope *Scope
	h := Handler("cart", rec, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, _ = ScopeFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	req.Header.Set(HeaderExecutionIndex, idx.Serialize())
	req.Header.Set(HeaderVClock, `{"test":3}`)
	req.Header.Set(HeaderRequestID, "req-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, scope)
	assert.Equal(t, "cart", scope.Node())
	assert.True(t, scope.Index().Equal(idx))
	assert.Equal(t, int64(3), scope.Clock().Get("test"))

	events := rec.Events()
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, ir.InstrumentationRequestReceived, ev.Type)
	assert.Equal(t, idx.Serialize(), ev.ExecutionIndex)
	assert.Equal(t, "req-1", ev.RequestID)
	assert.Equal(t, "GET /items", ev.Method)
	assert.Equal(t, map[string]int64{"test": 3}, ev.VClock)
}

func TestHandler_TruncatesMalformedIndex(t *testing.T) {
	idx := dei.New()
	idx.Push(dei.NewCallsite("test", "cart", "GET /items"))
	valid := idx.Serialize()
	malformed := valid[:len(valid)-1] + `,["broken"]]`

	rec := &recorder{}
	h := Handler("cart", rec, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	req.Header.Set(HeaderExecutionIndex, malformed)
	req.Header.Set(HeaderVClock, "not json")
	h.ServeHTTP(httptest.NewRecorder(), req)

	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, valid, events[0].ExecutionIndex)
	assert.Empty(t, events[0].VClock)
}
