package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	requestIDHeader   = "X-Request-Id"
	traceparentHeader = "Traceparent"
)

var upstreamIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{8,64}$`)

// RequestID tags every request with an id that is echoed back and carried in
// log context. An upstream proxy id wins, then the W3C trace id, then a fresh uuid.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := inboundRequestID(r)
			w.Header().Set(requestIDHeader, id)
			if logg == nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(logg.WithRequestID(r.Context(), id)))
		})
	}
}

func inboundRequestID(r *http.Request) string {
	if id := r.Header.Get(requestIDHeader); upstreamIDPattern.MatchString(id) {
		return id
	}
	if trace, ok := traceIDFrom(r.Header.Get(traceparentHeader)); ok {
		return trace
	}
	return uuid.NewString()
}

// traceIDFrom pulls the trace-id field out of "00-<32 hex>-<16 hex>-<2 hex>".
func traceIDFrom(header string) (string, bool) {
	parts := strings.Split(strings.TrimSpace(header), "-")
	if len(parts) != 4 || len(parts[1]) != 32 {
		return "", false
	}
	trace := strings.ToLower(parts[1])
	if strings.Trim(trace, "0") == "" {
		return "", false
	}
	for _, c := range trace {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", false
		}
	}
	return trace, true
}
