package module

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateModule signals a second, distinct definition built
	// under a name the registry already tracks. Module identity is the
	// name; rebuilding the same definition is a memoized no-op instead.
	ErrDuplicateModule = errors.New("module name already registered")

	// ErrModuleNotFound signals an unregister for a module the registry
	// does not track.
	ErrModuleNotFound = errors.New("module not registered")

	// ErrModuleInUse signals an unregister for a module that another
	// still-registered module imports.
	ErrModuleInUse = errors.New("module still imported by another module")
)

// DependencyError reports a provider whose declared dependency token is
// not visible from its module's scope: not registered locally, not
// exported by a direct import, and not present in the root.
type DependencyError struct {
	Module   string
	Provider string
	Token    string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("module %s: provider %s depends on %s, which is not visible in scope",
		e.Module, e.Provider, e.Token)
}

// ExportError reports an export list entry with no matching local
// provider. Re-exporting an imported token is invalid.
type ExportError struct {
	Module string
	Token  string
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("module %s: export %s has no local provider", e.Module, e.Token)
}

// TokenConflictError reports an exported token that the root scope
// already holds, either as a global provider or as another module's
// export.
type TokenConflictError struct {
	Module string
	Token  string
}

func (e *TokenConflictError) Error() string {
	return fmt.Sprintf("module %s: exported token %s is already present in the root scope",
		e.Module, e.Token)
}
