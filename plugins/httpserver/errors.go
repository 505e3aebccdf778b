package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tascaenzo/trinacria/schema"
)

// HTTPError is the structured error body every endpoint returns.
type HTTPError struct {
	Code        int                      `json:"code"`
	Message     string                   `json:"message"`
	Details     string                   `json:"details,omitempty"`
	FieldErrors []schema.ValidationError `json:"field_errors,omitempty"`
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

// NewHTTPError creates a structured HTTP error.
func NewHTTPError(code int, message, details string) *HTTPError {
	return &HTTPError{Code: code, Message: message, Details: details}
}

// BadRequestError returns a 400 error.
func BadRequestError(message, details string) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, message, details)
}

// NotFoundError returns a 404 error for a named resource.
func NotFoundError(resource, id string) *HTTPError {
	return &HTTPError{
		Code:    http.StatusNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Details: id,
	}
}

// UnauthorizedError returns a 401 error.
func UnauthorizedError(message string) *HTTPError {
	return NewHTTPError(http.StatusUnauthorized, message, "")
}

// ConflictError returns a 409 error.
func ConflictError(message, details string) *HTTPError {
	return NewHTTPError(http.StatusConflict, message, details)
}

// InternalError returns a 500 error.
func InternalError(message, details string) *HTTPError {
	return NewHTTPError(http.StatusInternalServerError, message, details)
}

// errorHandler converts errors into structured JSON responses. Schema
// bind errors become 400s with field-level details; unrecognized errors
// become 500s with details hidden outside debug mode.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var httpErr *HTTPError
	switch e := err.(type) {
	case *HTTPError:
		httpErr = e
	case *schema.BindError:
		httpErr = &HTTPError{
			Code:        http.StatusBadRequest,
			Message:     "Validation failed",
			FieldErrors: e.Result.Errors,
		}
	case *echo.HTTPError:
		httpErr = &HTTPError{
			Code:    e.Code,
			Message: http.StatusText(e.Code),
			Details: fmt.Sprintf("%v", e.Message),
		}
	default:
		httpErr = &HTTPError{
			Code:    http.StatusInternalServerError,
			Message: "Internal server error",
			Details: err.Error(),
		}
	}

	if httpErr.Code == http.StatusInternalServerError && !c.Echo().Debug {
		httpErr.Details = "An internal error occurred. Please try again later."
	}

	if err := c.JSON(httpErr.Code, httpErr); err != nil {
		c.Logger().Error(err)
	}
}
