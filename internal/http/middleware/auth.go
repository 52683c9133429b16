package middleware

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/younes-bami/hrcut-app/internal/apperr"
	"github.com/younes-bami/hrcut-app/internal/auth"
	"github.com/younes-bami/hrcut-app/internal/metrics"
)

const gateComponent = "AuthGuard"

const (
	msgTokenNotFound = "Token not found"
	msgInvalidToken  = "Invalid token"
	msgInsufficient  = "Insufficient permissions"
)

// Gate authenticates every non-public route: bearer extraction, verification
// (local or delegated), then the scope/permission check from the policy. The
// resolved identity is stored in the request context.
func Gate(verifier auth.Verifier, policy *Policy, log *zap.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("gate")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			route := c.Path()
			need := policy.For(req.Method, route)

			log.Debug("request received", zap.String("method", req.Method), zap.String("route", route))
			if need.Public {
				metrics.GateDecisions.WithLabelValues("public").Inc()
				return next(c)
			}

			token, ok := bearerToken(req)
			if !ok {
				metrics.GateDecisions.WithLabelValues("no_token").Inc()
				log.Warn("rejected: no bearer token", zap.String("route", route), zap.String("ip", c.RealIP()))
				return apperr.Unauthorized(gateComponent, msgTokenNotFound)
			}

			log.Debug("validating token", zap.String("route", route))
			id, err := verifier.Verify(req.Context(), token)
			if err != nil {
				metrics.GateDecisions.WithLabelValues("invalid_token").Inc()
				log.Warn("rejected: token validation failed",
					zap.String("route", route),
					zap.String("ip", c.RealIP()),
					zap.Error(err))
				return apperr.Unauthorized(gateComponent, msgInvalidToken)
			}
			log.Debug("token valid", zap.String("subject", id.SubjectID), zap.String("route", route))

			if !id.HasAllScopes(need.Scopes) || !id.HasAllPermissions(need.Permissions) {
				metrics.GateDecisions.WithLabelValues("forbidden").Inc()
				log.Warn("rejected: insufficient permissions",
					zap.String("subject", id.SubjectID),
					zap.String("route", route),
					zap.Strings("required_scopes", need.Scopes),
					zap.Strings("required_permissions", need.Permissions))
				return apperr.Forbidden(gateComponent, msgInsufficient)
			}

			metrics.GateDecisions.WithLabelValues("admitted").Inc()
			log.Debug("admitted", zap.String("subject", id.SubjectID), zap.String("route", route))
			c.SetRequest(req.WithContext(auth.WithIdentity(req.Context(), id)))
			return next(c)
		}
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get(echo.HeaderAuthorization))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
