package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func requestIDFor(t *testing.T, headers map[string]string) string {
	t.Helper()
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp.Header().Get(requestIDHeader)
}

func TestRequestIDKeepsUpstreamID(t *testing.T) {
	assert.Equal(t, "edge-1234abcd", requestIDFor(t, map[string]string{requestIDHeader: "edge-1234abcd"}))
}

func TestRequestIDFallsBackToTraceparent(t *testing.T) {
	got := requestIDFor(t, map[string]string{
		requestIDHeader:   "bad id with spaces",
		traceparentHeader: "00-4BF92F3577B34DA6A3CE929D0E0E4736-00f067aa0ba902b7-01",
	})
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", got)
}

func TestRequestIDGeneratesWhenNothingUsable(t *testing.T) {
	got := requestIDFor(t, map[string]string{
		traceparentHeader: "00-00000000000000000000000000000000-00f067aa0ba902b7-01",
	})
	_, err := uuid.Parse(got)
	assert.NoError(t, err)
}
