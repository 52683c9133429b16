package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/younes-bami/hrcut-app/internal/auth"
	"github.com/younes-bami/hrcut-app/internal/config"
	"github.com/younes-bami/hrcut-app/internal/model"
	"github.com/younes-bami/hrcut-app/internal/repository"
	"github.com/younes-bami/hrcut-app/internal/service/customers"
)

const testSecret = "test-secret"

type testEnv struct {
	srv    *Server
	repo   *repository.MemoryCustomersRepository
	tokens *auth.Tokens
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	var cfg config.Config
	cfg.Auth.EnforceScopes = true

	tokens, err := auth.NewTokens(auth.TokenOpts{Secret: []byte(testSecret), TTL: 10 * time.Minute})
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	repo := repository.NewMemoryCustomersRepository()
	logins := repository.NewMemoryAuthEventsRepository()
	svc := customers.New(repo, auth.NewBcryptHasher(4), tokens, nil, logins, nil,
		customers.Options{LoginScopes: []string{ScopeRead, ScopeWrite}})

	srv := NewServer(Deps{
		Config:    cfg,
		Customers: svc,
		Verifier:  auth.NewLocalVerifier(tokens),
		Logins:    logins,
	})
	return &testEnv{srv: srv, repo: repo, tokens: tokens}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload string
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		payload = string(b)
	}
	req := httptest.NewRequest(method, path, strings.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectEnvelope(t *testing.T, rec *httptest.ResponseRecorder, status int, message, component string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	env := decode[errorEnvelope](t, rec)
	if env.StatusCode != status || env.Timestamp == "" || env.Path == "" {
		t.Fatalf("incomplete envelope: %+v", env)
	}
	if message != "" && env.Message != message {
		t.Fatalf("expected message %q, got %q", message, env.Message)
	}
	if component != "" && env.Component != component {
		t.Fatalf("expected component %q, got %q", component, env.Component)
	}
}

var johnDoe = map[string]string{
	"username":    "john_doe",
	"firstName":   "John",
	"lastName":    "Doe",
	"email":       "john@example.com",
	"phoneNumber": "+212600000000",
	"password":    "p@ss",
}

func (e *testEnv) register(t *testing.T, body map[string]string) model.Customer {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/customers/register", "", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	return decode[model.Customer](t, rec)
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/customers/login", "", map[string]string{"username": username, "password": password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	return decode[map[string]string](t, rec)["access_token"]
}

func TestRegisterThenDuplicate(t *testing.T) {
	env := newTestEnv(t)

	created := env.register(t, johnDoe)

	stored, err := env.repo.GetByUsername(context.Background(), "john_doe")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if stored.ID != created.ID || stored.PasswordHash == "" || stored.PasswordHash == "p@ss" {
		t.Fatalf("expected hashed password on stored record, got %q", stored.PasswordHash)
	}

	rec := env.do(t, http.MethodPost, "/customers/register", "", johnDoe)
	expectEnvelope(t, rec, http.StatusConflict, "Email already exists", "CustomerService")
}

func TestRegisterResponseHidesHash(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/customers/register", "", johnDoe)
	if strings.Contains(rec.Body.String(), "passwordHash") || strings.Contains(rec.Body.String(), "$2a$") {
		t.Fatalf("response leaks password hash: %s", rec.Body.String())
	}
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]string{
		"username":    "jane",
		"firstName":   "Jane",
		"lastName":    "Doe",
		"email":       "not-an-email",
		"phoneNumber": "+33612345678",
	}
	rec := env.do(t, http.MethodPost, "/customers", "", body)
	expectEnvelope(t, rec, http.StatusBadRequest, "", "CustomerController")
	msg := decode[errorEnvelope](t, rec).Message
	if !strings.Contains(msg, "email") || !strings.Contains(msg, "phoneNumber") {
		t.Fatalf("expected field names in message, got %q", msg)
	}

	rec = env.do(t, http.MethodPost, "/customers", "", nil)
	expectEnvelope(t, rec, http.StatusBadRequest, "", "CustomerController")
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, johnDoe)

	rec := env.do(t, http.MethodPost, "/customers/login", "", map[string]string{"username": "john_doe", "password": "nope"})
	expectEnvelope(t, rec, http.StatusUnauthorized, "Invalid credentials", "CustomerService")
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	created := env.register(t, johnDoe)
	token := env.login(t, "john_doe", "p@ss")

	rec := env.do(t, http.MethodGet, "/customers/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode[model.Customer](t, rec); got.ID != created.ID {
		t.Fatalf("expected own record, got %+v", got)
	}

	expectEnvelope(t, env.do(t, http.MethodGet, "/customers/me", "", nil), http.StatusUnauthorized, "Token not found", "AuthGuard")
}

func TestMeWithExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	created := env.register(t, johnDoe)

	past := time.Now().Add(-time.Hour)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      created.ID,
		"username": "john_doe",
		"iat":      past.Unix(),
		"exp":      past.Add(10 * time.Minute).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/customers/me", expired, nil)
	expectEnvelope(t, rec, http.StatusUnauthorized, "Invalid token", "AuthGuard")
}

func TestMeWithoutBackingRecord(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.tokens.Issue("01ghost", "ghost", nil, nil)

	rec := env.do(t, http.MethodGet, "/customers/me", token, nil)
	expectEnvelope(t, rec, http.StatusNotFound, "Customer not found", "CustomerService")
}

func TestGetByUsernameScopes(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, johnDoe)
	token := env.login(t, "john_doe", "p@ss")

	rec := env.do(t, http.MethodGet, "/customers/john_doe", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	expectEnvelope(t, env.do(t, http.MethodGet, "/customers/nobody", token, nil), http.StatusNotFound, "", "")

	noScopes, _ := env.tokens.Issue("01x", "x", nil, nil)
	expectEnvelope(t, env.do(t, http.MethodGet, "/customers/john_doe", noScopes, nil),
		http.StatusForbidden, "Insufficient permissions", "AuthGuard")
}

func TestUpdateByOtherUserIsForbidden(t *testing.T) {
	env := newTestEnv(t)
	john := env.register(t, johnDoe)
	env.register(t, map[string]string{
		"username":    "jane",
		"firstName":   "Jane",
		"lastName":    "Doe",
		"email":       "jane@example.com",
		"phoneNumber": "0612345678",
		"password":    "secret",
	})
	janeToken := env.login(t, "jane", "secret")

	rec := env.do(t, http.MethodPut, "/customers/"+john.ID, janeToken, map[string]string{"bio": "pwned"})
	expectEnvelope(t, rec, http.StatusForbidden, "", "CustomerService")

	stored, _ := env.repo.GetByID(context.Background(), john.ID)
	if stored.Bio != "" || !stored.UpdatedAt.Equal(john.UpdatedAt) {
		t.Fatalf("record changed by another user: %+v", stored)
	}
}

func TestUpdateOwnRecord(t *testing.T) {
	env := newTestEnv(t)
	john := env.register(t, johnDoe)
	token := env.login(t, "john_doe", "p@ss")

	rec := env.do(t, http.MethodPut, "/customers/"+john.ID, token, map[string]string{"bio": "hello", "location": "Rabat"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	got := decode[model.Customer](t, rec)
	if got.Bio != "hello" || got.Location != "Rabat" || got.Email != john.Email {
		t.Fatalf("unexpected patched record: %+v", got)
	}
}

func TestLoginsHistory(t *testing.T) {
	env := newTestEnv(t)
	john := env.register(t, johnDoe)
	env.do(t, http.MethodPost, "/customers/login", "", map[string]string{"username": "john_doe", "password": "bad"})
	token := env.login(t, "john_doe", "p@ss")

	rec := env.do(t, http.MethodGet, "/customers/me/logins?limit=10", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	page := decode[struct {
		Count   int                  `json:"count"`
		Results []model.LoginAttempt `json:"results"`
	}](t, rec)
	if page.Count != 2 || page.Results[0].Outcome != model.LoginSucceeded || page.Results[0].SubjectID != john.ID {
		t.Fatalf("unexpected login history: %+v", page)
	}
}

func TestHealthzIsPublic(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(t, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestUnknownRouteWithTokenIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.tokens.Issue("01x", "x", nil, nil)
	expectEnvelope(t, env.do(t, http.MethodGet, "/nope", token, nil), http.StatusNotFound, "", "Router")
}

// newRemoteTestEnv serves with tokens validated by a stand-in auth service that
// maps every token to the account auth-42.
func newRemoteTestEnv(t *testing.T) *testEnv {
	t.Helper()
	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/validate-token" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"sub":"auth-42","username":"john_doe","scope":"profile"}`))
	}))
	t.Cleanup(authSrv.Close)

	var cfg config.Config
	cfg.Auth.Mode = config.AuthModeRemote
	repo := repository.NewMemoryCustomersRepository()
	logins := repository.NewMemoryAuthEventsRepository()
	svc := customers.New(repo, auth.NewBcryptHasher(4), nil, nil, logins, nil, customers.Options{})

	srv := NewServer(Deps{
		Config:    cfg,
		Customers: svc,
		Verifier:  auth.NewRemoteVerifier(auth.RemoteOpts{BaseURL: authSrv.URL}),
		Logins:    logins,
	})
	return &testEnv{srv: srv, repo: repo}
}

func TestRemoteIdentityResolvesLinkedCustomer(t *testing.T) {
	env := newRemoteTestEnv(t)

	body := map[string]string{
		"authUserId":  "auth-42",
		"username":    "john_doe",
		"firstName":   "John",
		"lastName":    "Doe",
		"email":       "john@example.com",
		"phoneNumber": "+212600000000",
	}
	rec := env.do(t, http.MethodPost, "/customers", "", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	john := decode[model.Customer](t, rec)

	other := map[string]string{
		"username":    "salma.b",
		"firstName":   "Salma",
		"lastName":    "Bennani",
		"email":       "salma@example.com",
		"phoneNumber": "+212661234567",
	}
	rec = env.do(t, http.MethodPost, "/customers", "", other)
	salma := decode[model.Customer](t, rec)

	rec = env.do(t, http.MethodGet, "/customers/me", "opaque-token", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if me := decode[model.Customer](t, rec); me.ID != john.ID {
		t.Fatalf("me resolved to %+v", me)
	}

	rec = env.do(t, http.MethodPut, "/customers/"+john.ID, "opaque-token", map[string]string{"bio": "hello"})
	if rec.Code != http.StatusOK {
		t.Fatalf("own update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPut, "/customers/"+salma.ID, "opaque-token", map[string]string{"bio": "hello"})
	expectEnvelope(t, rec, http.StatusForbidden, "You can only modify your own profile", "CustomerService")

	rec = env.do(t, http.MethodGet, "/customers/me/logins", "opaque-token", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logins: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLoginRateLimitEnvelope(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	var cfg config.Config
	cfg.RateLimit.LoginRPS = 1
	repo := repository.NewMemoryCustomersRepository()
	svc := customers.New(repo, auth.NewBcryptHasher(4), nil, nil, nil, nil, customers.Options{})
	env := &testEnv{
		srv:  NewServer(Deps{Config: cfg, Customers: svc, Verifier: auth.NewLocalVerifier(nil), Redis: rdb}),
		repo: repo,
	}

	// three calls span at most one window boundary, so two share a window
	var limited *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		rec := env.do(t, http.MethodPost, "/customers/login", "", map[string]string{"username": "ghost", "password": "x"})
		if rec.Code == http.StatusTooManyRequests {
			limited = rec
		}
	}
	if limited == nil {
		t.Fatal("expected a 429 within three calls at 1 rps")
	}
	expectEnvelope(t, limited, http.StatusTooManyRequests, "Too many requests", "RateLimiter")
	if limited.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}
}
