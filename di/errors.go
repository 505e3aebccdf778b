package di

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidState signals an operation that is not legal in the
	// container's current lifecycle state, such as registering a
	// provider after initialization began.
	ErrInvalidState = errors.New("operation not allowed in current state")

	// ErrDuplicateProvider signals a second registration for a token
	// that already has a local provider.
	ErrDuplicateProvider = errors.New("token already registered")

	// ErrNotInitialized signals a resolve before the container entered
	// initialization.
	ErrNotInitialized = errors.New("container not initialized")

	// ErrProviderNotFound signals a token with no registration anywhere
	// in the container chain.
	ErrProviderNotFound = errors.New("no provider registered for token")

	// ErrCircularDependency signals a dependency cycle discovered during
	// instantiation. Cycles are fatal, never retried.
	ErrCircularDependency = errors.New("circular dependency")

	// ErrInvalidProvider signals a malformed provider: unknown kind,
	// missing build function, or a value provider declaring
	// dependencies.
	ErrInvalidProvider = errors.New("invalid provider")
)

// CircularDependencyError reports the resolution path that closed a
// cycle. Path holds token names in resolution order; the final element
// is the token that was already being resolved.
type CircularDependencyError struct {
	Path []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency: %s", strings.Join(e.Path, " -> "))
}

// Unwrap lets errors.Is match ErrCircularDependency.
func (e *CircularDependencyError) Unwrap() error { return ErrCircularDependency }
