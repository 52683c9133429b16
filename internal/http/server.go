package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/younes-bami/hrcut-app/internal/auth"
	"github.com/younes-bami/hrcut-app/internal/config"
	"github.com/younes-bami/hrcut-app/internal/http/middleware"
	"github.com/younes-bami/hrcut-app/internal/metrics"
	"github.com/younes-bami/hrcut-app/internal/repository"
	"github.com/younes-bami/hrcut-app/internal/service/customers"
	"github.com/younes-bami/hrcut-app/internal/validation"
)

// Deps are the collaborators the HTTP surface needs. Redis may be nil.
type Deps struct {
	Config    config.Config
	Customers *customers.Service
	Verifier  auth.Verifier
	Logins    repository.AuthEventsRepository
	Redis     *redis.Client
	Log       *zap.Logger
}

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

func NewServer(d Deps) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	s := &Server{log: d.Log.Named("http")}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(log.OFF)
	e.Server.ReadTimeout = d.Config.HTTP.ReadTimeout
	e.Server.WriteTimeout = d.Config.HTTP.WriteTimeout
	e.Validator = validation.New(component)
	e.HTTPErrorHandler = errorHandler(s.log)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	policy := middleware.NewPolicy(middleware.PolicyOpts{
		DefaultScopes:      d.Config.Auth.RequiredScopes,
		DefaultPermissions: d.Config.Auth.RequiredPermissions,
		EnforceScopes:      d.Config.Auth.EnforceScopes,
		EnforcePermissions: d.Config.Auth.EnforcePermissions,
	})
	table := s.routes(d)
	for _, r := range table {
		policy.Set(r.method, r.path, r.need)
	}

	e.Use(
		echoMid.Recover(),
		echoMid.RequestIDWithConfig(echoMid.RequestIDConfig{Generator: uuid.NewString}),
		accessLog(s.log),
		middleware.Gate(d.Verifier, policy, d.Log),
	)
	for _, r := range table {
		e.Add(r.method, r.path, r.handler, r.mw...)
	}

	s.e = e
	return s
}

func accessLog(l *zap.Logger) echo.MiddlewareFunc {
	return echoMid.RequestLoggerWithConfig(echoMid.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogValuesFunc: func(_ echo.Context, v echoMid.RequestLoggerValues) error {
			l.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
				zap.String("ip", v.RemoteIP))
			return nil
		},
	})
}

func metricsHandler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

// ServeHTTP lets tests and embedding code drive the router directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.e.ServeHTTP(w, r) }

// Start blocks until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	s.log.Info("listening", zap.String("addr", addr))
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
