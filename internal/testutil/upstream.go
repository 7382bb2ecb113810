package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// Upstream starts a server that answers every request with 200 and body.
// It is closed when the test ends.
func Upstream(t testing.TB, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}
