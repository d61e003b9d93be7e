// Package validate checks request input with go-playground/validator and
// turns failures into apperror validation errors keyed by JSON field name.
//
// Struct tags carry the rules:
//
//	type SignupInput struct {
//	    Username string `json:"username" validate:"required,min=3,max=150"`
//	}
//
// A failure comes back as apperror.Invalid(map[string]string{"username": "..."}),
// which handlers render as {"errors": {"username": "..."}}.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/sakif/taskflow/internal/apperror"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// get returns the shared validator. validator.Validate caches struct metadata,
// so one instance for the whole process is what the library expects.
func get() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		// Report fields by their json tag so messages match the request body.
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
		instance = v
	})
	return instance
}

// Struct validates s. It returns nil, an *apperror.AppError wrapping
// apperror.ErrValidation, or a plain error if s is not a struct.
func Struct(s any) error {
	err := get().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		// Keep the first failure per field; later tags restate the problem.
		if _, seen := fields[fe.Field()]; !seen {
			fields[fe.Field()] = message(fe)
		}
	}
	return apperror.Invalid(fields)
}

// message renders one failed rule as a sentence.
func message(fe validator.FieldError) string {
	field := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "enter a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
