package http

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"

	"github.com/younes-bami/hrcut-app/internal/apperr"
	"github.com/younes-bami/hrcut-app/internal/auth"
	"github.com/younes-bami/hrcut-app/internal/model"
	"github.com/younes-bami/hrcut-app/internal/service/customers"
)

const component = "CustomerController"

// identityHandler is a handler that needs the authenticated caller.
type identityHandler func(c echo.Context, id auth.Identity) error

// withIdentity hands the gate's identity to h as an argument.
func withIdentity(h identityHandler) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := auth.IdentityFrom(c.Request().Context())
		if !ok {
			return apperr.Unauthorized(component, "Token not found")
		}
		return h(c, id)
	}
}

func bindValid(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperr.InvalidInput(component, "Invalid request body")
	}
	return c.Validate(dst)
}

func createCustomerHandler(svc *customers.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var in model.CreateCustomerInput
		if err := bindValid(c, &in); err != nil {
			return err
		}
		cu, err := svc.Create(c.Request().Context(), in)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, cu)
	}
}

func registerCustomerHandler(svc *customers.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var in model.RegisterCustomerInput
		if err := bindValid(c, &in); err != nil {
			return err
		}
		cu, err := svc.Register(c.Request().Context(), in)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, cu)
	}
}

func loginHandler(svc *customers.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var in model.LoginInput
		if err := bindValid(c, &in); err != nil {
			return err
		}
		token, err := svc.Login(c.Request().Context(), in, c.RealIP())
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]string{"access_token": token})
	}
}

func meHandler(svc *customers.Service) echo.HandlerFunc {
	return withIdentity(func(c echo.Context, id auth.Identity) error {
		cu, err := svc.ResolveCaller(c.Request().Context(), id.SubjectID)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, cu)
	})
}

func getByUsernameHandler(svc *customers.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		username := strings.TrimSpace(c.Param("username"))
		if username == "" {
			return apperr.InvalidInput(component, "username is required")
		}
		cu, err := svc.FindByUsername(c.Request().Context(), username)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, cu)
	}
}

func updateCustomerHandler(svc *customers.Service) echo.HandlerFunc {
	return withIdentity(func(c echo.Context, id auth.Identity) error {
		var patch model.UpdateCustomerInput
		if err := bindValid(c, &patch); err != nil {
			return err
		}
		cu, err := svc.Update(c.Request().Context(), c.Param("id"), id.SubjectID, patch)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, cu)
	})
}
