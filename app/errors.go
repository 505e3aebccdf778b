package app

import (
	"errors"
	"fmt"
	"strings"
)

// ErrApplicationState signals an operation that is not legal in the
// application's current lifecycle state.
var ErrApplicationState = errors.New("operation not allowed in current application state")

// StateError reports which operation was attempted in which state, with
// an optional hint for the caller.
type StateError struct {
	Op    string
	State State
	Hint  string
}

func (e *StateError) Error() string {
	msg := fmt.Sprintf("cannot %s: application is %s", e.Op, e.State)
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	return msg
}

// Unwrap lets errors.Is match ErrApplicationState.
func (e *StateError) Unwrap() error { return ErrApplicationState }

// StartError reports which startup stage failed. The application is in
// the failed state afterwards and cannot be restarted.
type StartError struct {
	Stage string
	Err   error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("application start failed during %s: %v", e.Stage, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// RegistrationError reports a failed runtime module registration. The
// registration was rolled back before this error was returned; Cause is
// the original failure and RollbackErrs collects anything that went
// wrong while compensating. Rollback failures never hide the cause.
type RegistrationError struct {
	Module       string
	Cause        error
	RollbackErrs []error
}

func (e *RegistrationError) Error() string {
	msg := fmt.Sprintf("register module %s: %v", e.Module, e.Cause)
	if len(e.RollbackErrs) > 0 {
		parts := make([]string, 0, len(e.RollbackErrs))
		for _, err := range e.RollbackErrs {
			parts = append(parts, err.Error())
		}
		msg += fmt.Sprintf(" (rollback errors: %s)", strings.Join(parts, "; "))
	}
	return msg
}

func (e *RegistrationError) Unwrap() error { return e.Cause }

// UnregistrationError reports a runtime unregistration whose teardown
// succeeded but whose plugin notification did not. The module is gone
// from the application regardless.
type UnregistrationError struct {
	Module string
	Errs   []error
}

func (e *UnregistrationError) Error() string {
	return fmt.Sprintf("unregister module %s: %v", e.Module, errors.Join(e.Errs...))
}

func (e *UnregistrationError) Unwrap() error { return errors.Join(e.Errs...) }

// ShutdownError aggregates everything that failed while shutting down.
// Shutdown always runs to completion; this error is reported after the
// application returned to idle.
type ShutdownError struct {
	Errs []error
}

func (e *ShutdownError) Error() string {
	return fmt.Sprintf("application shutdown: %v", errors.Join(e.Errs...))
}

func (e *ShutdownError) Unwrap() error { return errors.Join(e.Errs...) }
