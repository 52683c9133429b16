package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/younes-bami/hrcut-app/internal/apperr"
	"github.com/younes-bami/hrcut-app/internal/auth"
)

type fakeVerifier struct {
	ids   map[string]auth.Identity
	calls int
}

func (v *fakeVerifier) Verify(_ context.Context, token string) (auth.Identity, error) {
	v.calls++
	id, ok := v.ids[token]
	if !ok {
		return auth.Identity{}, errors.New("auth service said no: upstream 502 at 10.1.2.3")
	}
	return id, nil
}

func testPolicy(opts PolicyOpts) *Policy {
	p := NewPolicy(opts)
	p.Set(http.MethodPost, "/customers/login", Requirement{Public: true})
	p.Set(http.MethodGet, "/customers/:username", Requirement{Scopes: []string{"customers:read"}})
	p.Set(http.MethodGet, "/admin", Requirement{Permissions: []string{"admin"}})
	return p
}

func runGate(t *testing.T, v auth.Verifier, p *Policy, method, path, authz string) (*auth.Identity, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, "/", nil)
	if authz != "" {
		req.Header.Set(echo.HeaderAuthorization, authz)
	}
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath(path)

	var seen *auth.Identity
	next := func(c echo.Context) error {
		if id, ok := auth.IdentityFrom(c.Request().Context()); ok {
			seen = &id
		} else {
			seen = &auth.Identity{}
		}
		return nil
	}
	err := Gate(v, p, nil)(next)(c)
	return seen, err
}

func TestGate(t *testing.T) {
	v := &fakeVerifier{ids: map[string]auth.Identity{
		"reader": {SubjectID: "u1", Scopes: []string{"customers:read"}},
		"nobody": {SubjectID: "u2"},
		"admin":  {SubjectID: "u3", Permissions: []string{"admin"}},
	}}
	p := testPolicy(PolicyOpts{EnforceScopes: true, EnforcePermissions: true})

	tests := []struct {
		name     string
		method   string
		path     string
		authz    string
		wantKind apperr.Kind
		wantMsg  string
		wantSub  string
	}{
		{name: "public route skips auth", method: http.MethodPost, path: "/customers/login"},
		{name: "missing header", method: http.MethodGet, path: "/customers/me", wantKind: apperr.KindUnauthorized, wantMsg: "Token not found"},
		{name: "wrong scheme", method: http.MethodGet, path: "/customers/me", authz: "Basic abc", wantKind: apperr.KindUnauthorized, wantMsg: "Token not found"},
		{name: "empty bearer", method: http.MethodGet, path: "/customers/me", authz: "Bearer ", wantKind: apperr.KindUnauthorized, wantMsg: "Token not found"},
		{name: "invalid token", method: http.MethodGet, path: "/customers/me", authz: "Bearer forged", wantKind: apperr.KindUnauthorized, wantMsg: "Invalid token"},
		{name: "unlisted route only needs auth", method: http.MethodGet, path: "/customers/me", authz: "Bearer nobody", wantSub: "u2"},
		{name: "scope missing", method: http.MethodGet, path: "/customers/:username", authz: "Bearer nobody", wantKind: apperr.KindForbidden, wantMsg: "Insufficient permissions"},
		{name: "scope present", method: http.MethodGet, path: "/customers/:username", authz: "bearer reader", wantSub: "u1"},
		{name: "permission missing", method: http.MethodGet, path: "/admin", authz: "Bearer reader", wantKind: apperr.KindForbidden, wantMsg: "Insufficient permissions"},
		{name: "permission present", method: http.MethodGet, path: "/admin", authz: "Bearer admin", wantSub: "u3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen, err := runGate(t, v, p, tt.method, tt.path, tt.authz)
			if tt.wantMsg != "" {
				var ae *apperr.Error
				if !errors.As(err, &ae) || ae.Kind != tt.wantKind || ae.Message != tt.wantMsg {
					t.Fatalf("expected %s %q, got %v", tt.wantKind, tt.wantMsg, err)
				}
				if ae.Component != "AuthGuard" {
					t.Fatalf("expected AuthGuard component, got %q", ae.Component)
				}
				if seen != nil {
					t.Fatal("handler must not run on rejection")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if seen == nil {
				t.Fatal("expected handler to run")
			}
			if seen.SubjectID != tt.wantSub {
				t.Fatalf("expected subject %q in context, got %q", tt.wantSub, seen.SubjectID)
			}
		})
	}
}

func TestGateDoesNotLeakVerifierError(t *testing.T) {
	_, err := runGate(t, &fakeVerifier{}, testPolicy(PolicyOpts{}), http.MethodGet, "/customers/me", "Bearer x")
	if err == nil || err.(*apperr.Error).Message != "Invalid token" || err.(*apperr.Error).Err != nil {
		t.Fatalf("expected bare Invalid token error, got %#v", err)
	}
}

func TestGateEnforcementSwitches(t *testing.T) {
	v := &fakeVerifier{ids: map[string]auth.Identity{"nobody": {SubjectID: "u2"}}}

	_, err := runGate(t, v, testPolicy(PolicyOpts{}), http.MethodGet, "/customers/:username", "Bearer nobody")
	if err != nil {
		t.Fatalf("scopes not enforced, expected admission, got %v", err)
	}

	p := testPolicy(PolicyOpts{EnforceScopes: true, DefaultScopes: []string{"customers"}})
	_, err = runGate(t, v, p, http.MethodGet, "/customers/me", "Bearer nobody")
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected default scope to apply, got %v", err)
	}

	_, err = runGate(t, v, p, http.MethodPost, "/customers/login", "")
	if err != nil {
		t.Fatalf("defaults must not apply to public routes, got %v", err)
	}
}

func TestPolicyHeadFallsBackToGet(t *testing.T) {
	p := NewPolicy(PolicyOpts{})
	p.Set(http.MethodGet, "/healthz", Requirement{Public: true})
	if !p.For(http.MethodHead, "/healthz").Public {
		t.Fatal("expected HEAD to use GET requirement")
	}
}

func TestRateLimitWithoutRedisAllows(t *testing.T) {
	e := echo.New()
	mw := RateLimitMiddleware(RateLimitConfig{RPS: 1})
	for i := 0; i < 3; i++ {
		c := e.NewContext(httptest.NewRequest(http.MethodPost, "/customers/login", nil), httptest.NewRecorder())
		if err := mw(func(echo.Context) error { return nil })(c); err != nil {
			t.Fatalf("request %d: expected pass-through, got %v", i, err)
		}
	}
}

func TestRateLimitFixedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clock := time.Date(2025, 3, 1, 10, 0, 0, 250*int(time.Millisecond), time.UTC)
	mw := RateLimitMiddleware(RateLimitConfig{
		Redis:          rdb,
		RPS:            2,
		KeyPrefix:      "rl:login:",
		RetryAfterHint: true,
		Now:            func() time.Time { return clock },
	})

	e := echo.New()
	call := func(ip string) (*httptest.ResponseRecorder, error) {
		req := httptest.NewRequest(http.MethodPost, "/customers/login", nil)
		req.Header.Set(echo.HeaderXRealIP, ip)
		rec := httptest.NewRecorder()
		err := mw(func(echo.Context) error { return nil })(e.NewContext(req, rec))
		return rec, err
	}

	for i := 0; i < 2; i++ {
		if _, err := call("10.0.0.1"); err != nil {
			t.Fatalf("request %d: expected pass, got %v", i+1, err)
		}
	}

	rec, err := call("10.0.0.1")
	if !apperr.Is(err, apperr.KindRateLimited) {
		t.Fatalf("request 3: expected rate limited, got %v", err)
	}
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Component != "RateLimiter" {
		t.Fatalf("expected RateLimiter component, got %+v", err)
	}
	if got := rec.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("Retry-After = %q, want 1", got)
	}

	// other clients have their own counter
	if _, err := call("10.0.0.2"); err != nil {
		t.Fatalf("second client: expected pass, got %v", err)
	}

	clock = clock.Add(time.Second)
	if _, err := call("10.0.0.1"); err != nil {
		t.Fatalf("next window: expected pass, got %v", err)
	}
}
