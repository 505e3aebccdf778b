// Package schema wraps go-playground/validator behind the result types
// the rest of the system consumes. Controllers bind and validate request
// bodies through it; services validate their own inputs with it.
package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError is a single field-level validation failure.
type ValidationError struct {
	// Field is the name of the field that failed validation, using the
	// json tag name when one is present.
	Field string `json:"field"`

	// Message describes why the validation failed.
	Message string `json:"message"`

	// Value is the invalid value that caused the error (optional).
	Value interface{} `json:"value,omitempty"`
}

// ValidationResult is the complete outcome of validating one value.
type ValidationResult struct {
	// Valid is true if validation passed.
	Valid bool `json:"valid"`

	// Errors contains all failures found (empty if Valid is true).
	Errors []ValidationError `json:"errors,omitempty"`
}

// Validator validates struct values against their validate tags.
type Validator struct {
	validate *validator.Validate
}

// New returns a ready validator. Field names in results follow the json
// tag, so validation errors line up with the wire format.
func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return &Validator{validate: v}
}

// Validate checks value against its validate tags and reports every
// failing field. A non-struct value yields a single document-level
// error.
func (v *Validator) Validate(value interface{}) *ValidationResult {
	err := v.validate.Struct(value)
	if err == nil {
		return &ValidationResult{Valid: true}
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "document",
				Message: fmt.Sprintf("value is not validatable: %v", err),
			}},
		}
	}

	var fieldErrs validator.ValidationErrors
	result := &ValidationResult{}
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			result.Errors = append(result.Errors, ValidationError{
				Field:   fe.Field(),
				Message: describe(fe),
				Value:   fe.Value(),
			})
		}
	}
	return result
}

// describe turns a field error into a human-readable message.
func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters long", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters long", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation rule %q", fe.Tag())
	}
}
