package testutil

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filibuster/internal/dei"
)

func TestStaticID(t *testing.T) {
	assert.Equal(t, "exploration-7", StaticID("exploration-7").Generate())
	assert.Equal(t, "exploration-7", StaticID("exploration-7").Generate())
	assert.Equal(t, DefaultExplorationID, StaticID("").Generate())
}

func TestStaticID_ThreadSafe(t *testing.T) {
	gen := StaticID("shared")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Equal(t, "shared", gen.Generate())
			}
		}()
	}
	wg.Wait()
}

func TestIndex(t *testing.T) {
	outer := Call{"test", "cart", "GET /items"}
	inner := Call{"cart", "inventory", "GET /stock"}

	idx, err := dei.ParseString(Index(outer, inner))
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, Index(outer), idx.Parent().Serialize())

	top, ok := idx.Top()
	require.True(t, ok)
	assert.Equal(t, int64(1), top.Count)

	assert.Equal(t, "[]", Index())
}

func TestUpstream(t *testing.T) {
	url := Upstream(t, "ok")

	resp, err := http.Post(url+"/anything", "text/plain", strings.NewReader("ignored"))
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(b))
}
