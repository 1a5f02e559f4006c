package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/msomdec/merchtrax/internal/handler"
	"github.com/msomdec/merchtrax/internal/service"
	"github.com/msomdec/merchtrax/internal/timer/timertest"
)

func loginToken(t *testing.T, auth *service.AuthService, email, name string) string {
	t.Helper()
	ctx := context.Background()
	if _, err := auth.Register(ctx, email, name, "password123", "password123"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, _, err := auth.Login(ctx, email, "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return token
}

func TestRequireAuth_ValidJWT(t *testing.T) {
	auth := newTestAuthService(t)
	token := loginToken(t, auth, "valid@example.com", "Valid User")

	var gotUser string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user := handler.UserFromContext(r.Context()); user != nil {
			gotUser = user.DisplayName
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: token})
	w := httptest.NewRecorder()

	handler.RequireAuth(auth, inner).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gotUser != "Valid User" {
		t.Fatalf("expected user 'Valid User', got %q", gotUser)
	}
}

func TestRequireAuth_MissingCookie(t *testing.T) {
	auth := newTestAuthService(t)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("inner handler should not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()

	handler.RequireAuth(auth, inner).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequireAuth_TamperedToken(t *testing.T) {
	auth := newTestAuthService(t)
	token := loginToken(t, auth, "tamper@example.com", "Tamper")
	// Flip the first signature character; the last one carries padding bits.
	i := strings.LastIndex(token, ".") + 1
	flipped := byte('A')
	if token[i] == 'A' {
		flipped = 'B'
	}
	tampered := token[:i] + string(flipped) + token[i+1:]

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("inner handler should not be called")
	})

	for _, value := range []string{"invalid.jwt.token", tampered} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.AddCookie(&http.Cookie{Name: "auth_token", Value: value})
		w := httptest.NewRecorder()

		handler.RequireAuth(auth, inner).ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("token %q: expected 401, got %d", value, w.Code)
		}
	}
}

func TestRequirePage_RedirectsToLogin(t *testing.T) {
	auth := newTestAuthService(t)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("inner handler should not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/visits", nil)
	w := httptest.NewRecorder()

	handler.RequirePage(auth, inner).ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Fatalf("expected redirect to /login, got %q", loc)
	}
}

func TestOptionalAuth(t *testing.T) {
	auth := newTestAuthService(t)
	token := loginToken(t, auth, "opt@example.com", "Optional")

	var gotUser string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = ""
		if user := handler.UserFromContext(r.Context()); user != nil {
			gotUser = user.DisplayName
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: token})
	w := httptest.NewRecorder()
	handler.OptionalAuth(auth, inner).ServeHTTP(w, req)
	if w.Code != http.StatusOK || gotUser != "Optional" {
		t.Fatalf("with token: expected 200 and user 'Optional', got %d %q", w.Code, gotUser)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	w = httptest.NewRecorder()
	handler.OptionalAuth(auth, inner).ServeHTTP(w, req)
	if w.Code != http.StatusOK || gotUser != "" {
		t.Fatalf("without token: expected 200 and no user, got %d %q", w.Code, gotUser)
	}
}

func TestRateLimit_PerClientAddress(t *testing.T) {
	clock := timertest.NewManualClock(epoch)
	tb := service.NewTokenBucket(1, 2, clock)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := handler.RateLimit(tb, inner)

	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 2; i++ {
		if code := call("10.0.0.1:5000"); code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, code)
		}
	}
	if code := call("10.0.0.1:5001"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once the bucket is empty, got %d", code)
	}
	if code := call("10.0.0.2:5000"); code != http.StatusOK {
		t.Fatalf("other clients must not share the bucket, got %d", code)
	}

	clock.Advance(time.Second)
	if code := call("10.0.0.1:5000"); code != http.StatusOK {
		t.Fatalf("expected a token after refill, got %d", code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	handler.SecurityHeaders(inner).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy", "Referrer-Policy"} {
		if w.Header().Get(h) == "" {
			t.Errorf("expected %s header", h)
		}
	}
}
