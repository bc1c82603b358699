package api

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &requestValidator{validate: v}
}

// Check validates v and returns per-field messages keyed by the JSON field name.
// A nil map means v is valid.
func (rv *requestValidator) Check(v any) map[string]string {
	err := rv.validate.Struct(v)
	if err == nil {
		return nil
	}

	fields := make(map[string]string)
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		fields["_"] = err.Error()
		return fields
	}

	for _, e := range validationErrors {
		field := e.Field()
		switch e.Tag() {
		case "required":
			fields[field] = field + " is required"
		case "gt":
			fields[field] = field + " must be greater than " + e.Param()
		case "datetime":
			fields[field] = field + " must match " + e.Param()
		case "oneof":
			fields[field] = field + " must be one of " + e.Param()
		default:
			fields[field] = field + " is invalid"
		}
	}
	return fields
}
