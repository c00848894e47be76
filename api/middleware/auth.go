package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Auth requires a valid access token from the Authorization header or the
// configured cookie. Browser navigations without one are redirected to
// signInURL with a next parameter; other clients get a 401.
func Auth(cfg config.JWTConfig, signInURL string, logg *logger.Logger) func(http.Handler) http.Handler {
	tokens := newTokenSource(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := tokens.authenticate(r)
			if err != nil {
				if signInURL != "" && responses.WantsHTML(r) {
					http.Redirect(w, r, signInLocation(signInURL, r), http.StatusFound)
					return
				}
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r, claims, logg)))
		})
	}
}

// OptionalAuth attaches the shopper when a valid token is present. Anonymous
// requests and invalid tokens pass through unchanged.
func OptionalAuth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	tokens := newTokenSource(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims, err := tokens.authenticate(r); err == nil {
				r = r.WithContext(withClaims(r, claims, logg))
			}
			next.ServeHTTP(w, r)
		})
	}
}

type tokenSource struct {
	verifier *pkgAuth.Verifier
	cookie   string
	// setupErr is returned for every request when the verifier cannot be built.
	setupErr error
}

func newTokenSource(cfg config.JWTConfig) *tokenSource {
	v, err := pkgAuth.NewVerifier(cfg)
	if err != nil {
		return &tokenSource{setupErr: pkgerrors.Wrap(pkgerrors.CodeInternal, err, "auth misconfigured")}
	}
	return &tokenSource{verifier: v, cookie: cfg.CookieName}
}

func (t *tokenSource) authenticate(r *http.Request) (*pkgAuth.AccessTokenClaims, error) {
	if t.setupErr != nil {
		return nil, t.setupErr
	}
	raw := t.rawToken(r)
	if raw == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := t.verifier.Verify(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	return claims, nil
}

// rawToken prefers the Authorization header over the cookie.
func (t *tokenSource) rawToken(r *http.Request) string {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
			return strings.TrimSpace(header[7:])
		}
		return header
	}
	if t.cookie == "" {
		return ""
	}
	if c, err := r.Cookie(t.cookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

func withClaims(r *http.Request, claims *pkgAuth.AccessTokenClaims, logg *logger.Logger) context.Context {
	ctx := WithUserID(r.Context(), claims.UserID)
	if logg != nil {
		ctx = logg.WithUserID(ctx, claims.UserID.String())
	}
	return ctx
}

func signInLocation(signInURL string, r *http.Request) string {
	target, err := url.Parse(signInURL)
	if err != nil {
		return signInURL
	}
	q := target.Query()
	q.Set("next", r.URL.RequestURI())
	target.RawQuery = q.Encode()
	return target.String()
}
