package http

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v4"

	"github.com/younes-bami/hrcut-app/internal/apperr"
	"github.com/younes-bami/hrcut-app/internal/auth"
	"github.com/younes-bami/hrcut-app/internal/model"
	"github.com/younes-bami/hrcut-app/internal/repository"
	"github.com/younes-bami/hrcut-app/internal/service/customers"
)

// listLoginsHandler lists the caller's login attempts. Attempts are recorded
// against the customer id, so the token subject is resolved first.
func listLoginsHandler(svc *customers.Service, events repository.AuthEventsRepository) echo.HandlerFunc {
	return withIdentity(func(c echo.Context, id auth.Identity) error {
		me, err := svc.ResolveCaller(c.Request().Context(), id.SubjectID)
		if err != nil {
			return err
		}

		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		rows, err := events.ListBySubject(c.Request().Context(), me.ID, limit, offset)
		if err != nil {
			return apperr.Internal("LoginAudit", err)
		}
		if rows == nil {
			rows = []model.LoginAttempt{}
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(rows),
			"results": rows,
		})
	})
}
