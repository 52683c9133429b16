package http

import (
	"net/http"

	echo "github.com/labstack/echo/v4"

	"github.com/younes-bami/hrcut-app/internal/http/middleware"
)

const (
	ScopeRead  = "customers:read"
	ScopeWrite = "customers:write"
)

type route struct {
	method  string
	path    string
	handler echo.HandlerFunc
	mw      []echo.MiddlewareFunc
	need    middleware.Requirement
}

var public = middleware.Requirement{Public: true}

func (s *Server) routes(d Deps) []route {
	loginLimit := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          d.Redis,
		RPS:            d.Config.RateLimit.LoginRPS,
		KeyPrefix:      "rl:login:",
		RetryAfterHint: true,
		Log:            s.log,
	})

	return []route{
		{method: http.MethodGet, path: "/healthz", handler: healthHandler, need: public},
		{method: http.MethodGet, path: "/metrics", handler: metricsHandler(), need: public},

		{method: http.MethodPost, path: "/customers", handler: createCustomerHandler(d.Customers), need: public},
		{method: http.MethodPost, path: "/customers/register", handler: registerCustomerHandler(d.Customers), need: public},
		{method: http.MethodPost, path: "/customers/login", handler: loginHandler(d.Customers), mw: []echo.MiddlewareFunc{loginLimit}, need: public},

		// static segments win over :username in echo's router
		{method: http.MethodGet, path: "/customers/me", handler: meHandler(d.Customers)},
		{method: http.MethodGet, path: "/customers/me/logins", handler: listLoginsHandler(d.Customers, d.Logins)},
		{method: http.MethodGet, path: "/customers/:username", handler: getByUsernameHandler(d.Customers),
			need: middleware.Requirement{Scopes: []string{ScopeRead}}},
		{method: http.MethodPut, path: "/customers/:id", handler: updateCustomerHandler(d.Customers),
			need: middleware.Requirement{Scopes: []string{ScopeWrite}}},
	}
}

func healthHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }
