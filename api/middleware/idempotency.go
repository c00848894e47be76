package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

const (
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour

	// inFlightTTL bounds how long a crashed request can block its key.
	inFlightTTL       = time.Minute
	inFlightMarker    = "in_flight"
	maxIdempotentBody = 1 << 20
	idempotencyHeader = "Idempotency-Key"
)

// replayedHeaders are copied into the stored record. Location matters because
// most storefront form posts answer with a redirect.
var replayedHeaders = []string{"Content-Type", "Location"}

type idempotencyRule struct {
	method string
	match  func(pattern string) bool
	ttl    time.Duration
	// required rejects requests without a key. Browser form posts cannot set
	// headers, so most rules only dedupe when a key is sent.
	required bool
}

var idempotencyRules = []idempotencyRule{
	{method: http.MethodPost, match: exactly("/dashboard"), ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, match: under("/ajax-add-review/"), ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, match: under("/checkout/"), ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, match: exactly("/save-checkout-info"), ttl: criticalIdempotencyTTL},
	{method: http.MethodPost, match: under("/api/create-checkout-session/"), ttl: criticalIdempotencyTTL, required: true},
}

type idempotencyRecord struct {
	Status      int               `json:"status"`
	Body        string            `json:"body"`
	Headers     map[string]string `json:"headers,omitempty"`
	RequestHash string            `json:"request_hash"`
}

type idempotencyGuard struct {
	store pkgredis.IdempotencyStore
	ttl   time.Duration
	logg  *logger.Logger
}

// Idempotency replays the first completed response for an Idempotency-Key on
// the routes in idempotencyRules. A positive ttl replaces the default window;
// critical routes keep theirs. 5xx responses are not recorded.
func Idempotency(store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	g := &idempotencyGuard{store: store, ttl: ttl, logg: logg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule, ok := routeRule(r.Method, routePattern(r))
			if !ok || g.store == nil {
				next.ServeHTTP(w, r)
				return
			}
			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" {
				if rule.required {
					g.fail(w, r, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			g.serve(w, r, next, rule, clientKey)
		})
	}
}

func (g *idempotencyGuard) serve(w http.ResponseWriter, r *http.Request, next http.Handler, rule idempotencyRule, clientKey string) {
	ctx := r.Context()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotentBody+1))
	if err != nil {
		g.fail(w, r, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
		return
	}
	if len(body) > maxIdempotentBody {
		g.fail(w, r, pkgerrors.New(pkgerrors.CodeValidation, "request body too large"))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	hash := hashBody(body)
	key := g.store.IdempotencyKey(requestScope(r), clientKey)

	claimed, err := g.store.SetNX(ctx, key, inFlightMarker, inFlightTTL)
	if err != nil {
		g.fail(w, r, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
		return
	}
	if !claimed {
		g.replay(w, r, key, hash)
		return
	}

	capture := &responseCapture{ResponseWriter: w}
	next.ServeHTTP(capture, r)

	status := capture.statusOrOK()
	if status >= http.StatusInternalServerError {
		// Let the client retry with the same key.
		if err := g.store.Del(ctx, key); err != nil {
			g.logError(ctx, "idempotency.release.failed", err)
		}
		return
	}
	record := idempotencyRecord{
		Status:      status,
		Body:        base64.StdEncoding.EncodeToString(capture.body.Bytes()),
		Headers:     pickHeaders(capture.Header()),
		RequestHash: hash,
	}
	payload, err := json.Marshal(record)
	if err != nil {
		g.logError(ctx, "idempotency.encode.failed", err)
		return
	}
	if err := g.store.Set(ctx, key, string(payload), g.ttlFor(rule)); err != nil {
		g.logError(ctx, "idempotency.persist.failed", err)
	}
}

func (g *idempotencyGuard) replay(w http.ResponseWriter, r *http.Request, key, hash string) {
	stored, err := g.store.Get(r.Context(), key)
	switch {
	case errors.Is(err, redis.Nil):
		// The first request finished with a 5xx between our SetNX and Get.
		g.fail(w, r, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key failed, retry"))
		return
	case err != nil:
		g.fail(w, r, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency record"))
		return
	case stored == inFlightMarker:
		g.fail(w, r, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is still in progress"))
		return
	}

	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		g.fail(w, r, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	if record.RequestHash != hash {
		g.fail(w, r, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	}
	for name, value := range record.Headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(record.Status)
	if decoded, err := base64.StdEncoding.DecodeString(record.Body); err == nil {
		_, _ = w.Write(decoded)
	}
}

func (g *idempotencyGuard) ttlFor(rule idempotencyRule) time.Duration {
	if g.ttl > 0 && rule.ttl == defaultIdempotencyTTL {
		return g.ttl
	}
	return rule.ttl
}

func (g *idempotencyGuard) fail(w http.ResponseWriter, r *http.Request, err error) {
	responses.WriteError(r.Context(), g.logg, w, err)
}

func (g *idempotencyGuard) logError(ctx context.Context, msg string, err error) {
	if g.logg == nil {
		return
	}
	g.logg.Error(ctx, msg, err)
}

// requestScope ties a key to its caller and target so two shoppers sending the
// same key never collide.
func requestScope(r *http.Request) string {
	return strings.Join([]string{
		UserIDFromContext(r.Context()).String(),
		CartSessionFromContext(r.Context()),
		r.Method,
		r.URL.Path,
	}, "|")
}

func pickHeaders(h http.Header) map[string]string {
	out := map[string]string{}
	for _, name := range replayedHeaders {
		if v := h.Get(name); v != "" {
			out[name] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func routeRule(method, pattern string) (idempotencyRule, bool) {
	for _, rule := range idempotencyRules {
		if rule.method == method && pattern != "" && rule.match(pattern) {
			return rule, true
		}
	}
	return idempotencyRule{}, false
}

func exactly(path string) func(string) bool {
	return func(pattern string) bool { return pattern == path }
}

func under(prefix string) func(string) bool {
	return func(pattern string) bool { return strings.HasPrefix(pattern, prefix) }
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
