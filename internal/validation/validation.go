package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/younes-bami/hrcut-app/internal/apperr"
	"github.com/younes-bami/hrcut-app/internal/util"
)

// Validator checks DTOs against their `validate` tags and reports failures as
// apperr.InvalidInput attributed to component. It satisfies echo.Validator.
type Validator struct {
	v         *validator.Validate
	component string
}

func New(component string) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("ma_phone", func(fl validator.FieldLevel) bool {
		return util.IsMoroccanPhone(fl.Field().String())
	})
	return &Validator{v: v, component: component}
}

func (rv *Validator) Validate(i any) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.InvalidInput(rv.component, "Invalid request body")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return apperr.InvalidInput(rv.component, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email"
	case "ma_phone":
		return fe.Field() + " must be a Moroccan phone number (+212XXXXXXXXX or 0XXXXXXXXX)"
	case "url":
		return fe.Field() + " must be a valid URL"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}
