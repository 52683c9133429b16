package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/younes-bami/hrcut-app/internal/apperr"
)

// errorEnvelope is the only error shape clients ever see.
type errorEnvelope struct {
	StatusCode int    `json:"statusCode"`
	Timestamp  string `json:"timestamp"`
	Path       string `json:"path"`
	Message    string `json:"message"`
	Component  string `json:"component"`
}

func statusOf(k apperr.Kind) int {
	switch k {
	case apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func errorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		env := errorEnvelope{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Path:      c.Request().URL.Path,
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			env.StatusCode = he.Code
			env.Message = fmt.Sprint(he.Message)
			env.Component = "Router"
			if he.Code >= http.StatusInternalServerError {
				log.Error("router error", zap.String("path", env.Path), zap.Error(err))
				env.Message = "Internal server error"
			}
		} else {
			e := apperr.WithComponent(err, "Router").(*apperr.Error)
			env.StatusCode = statusOf(e.Kind)
			env.Message = e.Message
			env.Component = e.Component
			if e.Kind == apperr.KindInternal {
				log.Error("internal error",
					zap.String("path", env.Path),
					zap.String("component", e.Component),
					zap.Error(e.Err))
			}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(env.StatusCode)
		} else {
			err = c.JSON(env.StatusCode, env)
		}
		if err != nil {
			log.Warn("write error response failed", zap.Error(err))
		}
	}
}
