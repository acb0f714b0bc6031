package services

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newAuthRouter(t *testing.T) *chi.Mux {
	t.Helper()

	repo := newTestRepo(t)
	authService := NewAuthService(repo, "test-jwt-secret")
	endpoints := NewAuthEndpoints(authService)

	r := chi.NewRouter()
	endpoints.RegisterRoutes(r)
	return r
}

func TestAuthRoutesProtectLogoutAndMe(t *testing.T) {
	router := newAuthRouter(t)

	// Without credentials the protected routes are rejected by the middleware.
	for _, tc := range []struct {
		method string
		path   string
	}{
		{"GET", "/auth/me"},
		{"POST", "/auth/logout"},
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without credentials: got %d, expected 401", tc.method, tc.path, rec.Code)
		}
	}
}

func TestAuthRoutesSignupThenMe(t *testing.T) {
	router := newAuthRouter(t)

	signup := httptest.NewRequest("POST", "/auth/signup", strings.NewReader(`{"email":"new@example.com","password":"secret123","full_name":"New User"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, signup)
	if rec.Code != http.StatusOK {
		t.Fatalf("signup failed with status %d: %s", rec.Code, rec.Body.String())
	}

	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("signup set no auth cookies")
	}

	// The signup cookies satisfy the middleware on the protected route.
	me := httptest.NewRequest("GET", "/auth/me", nil)
	for _, c := range cookies {
		me.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, me)
	if rec.Code != http.StatusOK {
		t.Errorf("/auth/me with signup cookies: got %d, expected 200", rec.Code)
	}
}
