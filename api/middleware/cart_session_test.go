package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func captureSession(target *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*target = CartSessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestCartSessionIssuesCookieWhenAbsent(t *testing.T) {
	var session string
	handler := CartSession(3600, false, nil)(captureSession(&session))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/cart", nil))

	if session == "" {
		t.Fatal("expected a session token")
	}
	cookies := resp.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != CartCookieName || cookies[0].Value != session {
		t.Fatalf("expected sf_cart cookie with %s, got %+v", session, cookies)
	}
	if !cookies[0].HttpOnly {
		t.Fatal("expected HttpOnly cookie")
	}
	if resp.Header().Get(CartSessionHeader) != session {
		t.Fatalf("expected session echoed in header")
	}
}

func TestCartSessionReusesCookie(t *testing.T) {
	var session string
	handler := CartSession(3600, false, nil)(captureSession(&session))

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.AddCookie(&http.Cookie{Name: CartCookieName, Value: "existing-session"})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if session != "existing-session" {
		t.Fatalf("expected cookie session, got %s", session)
	}
	if len(resp.Result().Cookies()) != 0 {
		t.Fatal("cookie must not be reissued")
	}
}

func TestCartSessionHeaderWinsOverCookie(t *testing.T) {
	var session string
	handler := CartSession(3600, false, nil)(captureSession(&session))

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set(CartSessionHeader, "api_client_1")
	req.AddCookie(&http.Cookie{Name: CartCookieName, Value: "browser"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if session != "api_client_1" {
		t.Fatalf("expected header session, got %s", session)
	}
}

func TestCartSessionReplacesMalformedToken(t *testing.T) {
	var session string
	handler := CartSession(3600, false, nil)(captureSession(&session))

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set(CartSessionHeader, "bad token*")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if session == "bad token*" || session == "" {
		t.Fatalf("expected a fresh token, got %q", session)
	}
	if len(resp.Result().Cookies()) != 1 {
		t.Fatal("expected a new cookie")
	}
}
