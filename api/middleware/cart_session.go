package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	CartCookieName    = "sf_cart"
	CartSessionHeader = "X-Cart-Session"

	maxCartSessionLen = 128
)

// CartSession resolves the shopper's cart token from the sf_cart cookie or the
// X-Cart-Session header, issuing a fresh one when neither carries a usable value.
// The token is echoed back in both places so API clients can persist it.
func CartSession(cookieMaxAge int, secure bool, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, issued := resolveCartSession(r)
			if issued {
				http.SetCookie(w, &http.Cookie{
					Name:     CartCookieName,
					Value:    session,
					Path:     "/",
					MaxAge:   cookieMaxAge,
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			w.Header().Set(CartSessionHeader, session)

			ctx := WithCartSession(r.Context(), session)
			if logg != nil {
				ctx = logg.WithCartSession(ctx, session)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveCartSession(r *http.Request) (string, bool) {
	if v := strings.TrimSpace(r.Header.Get(CartSessionHeader)); validCartSession(v) {
		return v, false
	}
	if c, err := r.Cookie(CartCookieName); err == nil {
		if v := strings.TrimSpace(c.Value); validCartSession(v) {
			return v, false
		}
	}
	return uuid.NewString(), true
}

func validCartSession(v string) bool {
	if v == "" || len(v) > maxCartSessionLen {
		return false
	}
	for _, c := range v {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
