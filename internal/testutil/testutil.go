// Package testutil provides shared helpers for tests that drive the
// /debug/ routes.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// LoopbackAddr is the RemoteAddr tsweb's debug access check admits.
const LoopbackAddr = "127.0.0.1:12345"

// DebugRequest builds a request that appears to come from loopback.
func DebugRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.RemoteAddr = LoopbackAddr
	return req
}

// ServeDebug runs a loopback GET for target through h and returns the
// recorded response.
func ServeDebug(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, DebugRequest(http.MethodGet, target, nil))
	return rec
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}
