package app

import (
	"context"

	"github.com/tascaenzo/trinacria/module"
)

// Plugin is an external extension the application notifies at lifecycle
// points. Only the name is required; the optional hook interfaces below
// are discovered by type assertion, so a plugin implements exactly the
// callbacks it cares about.
//
// Hooks receive the application's public read/query surface through
// *Context and may perform asynchronous work; the application awaits
// each hook before moving on. Registration order decides hook order:
// forward on the way up (register, init, module registered), reverse on
// the way down (module unregistered during rollback, destroy).
type Plugin interface {
	Name() string
}

// RegisterHook runs before any module is built, during Start. It is the
// pre-build extension point: a plugin may still contribute global
// providers and queue modules here.
type RegisterHook interface {
	OnRegister(ctx context.Context, app *Context) error
}

// InitHook runs after the full registry initialized, as the last step of
// Start.
type InitHook interface {
	OnInit(ctx context.Context, app *Context) error
}

// ModuleRegisteredHook runs after a module was built and initialized at
// runtime. An error fails the registration and triggers its rollback.
type ModuleRegisteredHook interface {
	OnModuleRegistered(ctx context.Context, app *Context, def *module.Definition) error
}

// ModuleUnregisteredHook runs after a module left the application: on
// explicit unregistration and, in reverse notification order, while a
// failed runtime registration is rolled back.
type ModuleUnregisteredHook interface {
	OnModuleUnregistered(ctx context.Context, app *Context, def *module.Definition) error
}

// DestroyHook runs during Shutdown, before the registry is destroyed.
type DestroyHook interface {
	OnDestroy(ctx context.Context, app *Context) error
}
