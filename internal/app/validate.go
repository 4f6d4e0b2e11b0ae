package app

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	// Report fields by their JSON names.
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

type fieldViolation struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// validateBody checks struct tags and turns violations into a 422
// DomainError listing each offending field.
func validateBody(body any) error {
	err := validate.Struct(body)
	if err == nil {
		return nil
	}
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return err
	}
	var violations validator.ValidationErrors
	if !errors.As(err, &violations) {
		return err
	}
	details := make([]fieldViolation, 0, len(violations))
	for _, violation := range violations {
		details = append(details, fieldViolation{
			Field: violation.Field(),
			Rule:  violation.Tag(),
			Param: violation.Param(),
		})
	}
	return validationError("request body is invalid", details)
}
