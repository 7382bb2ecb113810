package harness

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/roach88/filibuster/internal/instrument"
	"github.com/roach88/filibuster/internal/testutil"
)

// services starts plain upstream servers that answer "ok".
func services(t *testing.T) (cartURL, usersURL string) {
	t.Helper()
	return testutil.Upstream(t, "ok"), testutil.Upstream(t, "ok")
}

func call(ctx context.Context, c *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if string(b) != "ok" {
		return fmt.Errorf("unexpected response %q", b)
	}
	return nil
}

// checkout calls cart then users, stopping at the first error.
func checkout(cartURL, usersURL string) TestFunc {
	cart := instrument.NewClient("cart", nil)
	users := instrument.NewClient("users", nil)
	return func(ctx context.Context) error {
		if err := call(ctx, cart, cartURL+"/items"); err != nil {
			return err
		}
		return call(ctx, users, usersURL+"/me")
	}
}

// counting wraps fn and counts its runs.
func counting(fn TestFunc, n *atomic.Int64) TestFunc {
	return func(ctx context.Context) error {
		n.Add(1)
		return fn(ctx)
	}
}
