package schema

import (
	"fmt"

	"github.com/labstack/echo/v4"
)

// BindError carries a failed validation result out of Bind. The HTTP
// layer's error handler turns it into a structured 400 response with
// per-field errors.
type BindError struct {
	Result *ValidationResult
}

func (e *BindError) Error() string {
	if len(e.Result.Errors) == 1 {
		return fmt.Sprintf("validation failed: %s: %s",
			e.Result.Errors[0].Field, e.Result.Errors[0].Message)
	}
	return fmt.Sprintf("validation failed: %d invalid fields", len(e.Result.Errors))
}

var defaultValidator = New()

// Bind decodes the request body into dst and validates it. A body that
// does not decode or does not validate comes back as a *BindError.
func Bind(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return &BindError{Result: &ValidationResult{
			Errors: []ValidationError{{
				Field:   "document",
				Message: fmt.Sprintf("invalid request body: %v", err),
			}},
		}}
	}
	if result := defaultValidator.Validate(dst); !result.Valid {
		return &BindError{Result: result}
	}
	return nil
}
