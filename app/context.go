package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tascaenzo/trinacria/di"
	"github.com/tascaenzo/trinacria/module"
)

// Context is the application surface handed to plugins and, through
// them, to controllers and jobs: resolution, capability discovery, graph
// queries, and the runtime module operations. It stays valid for the
// application's whole lifetime.
type Context struct {
	app *App
}

// Resolve returns the instance for key from the root scope: a global
// provider or an exported token of some registered module.
func (c *Context) Resolve(ctx context.Context, key *di.Key) (any, error) {
	r := c.app.activeRegistry()
	if r == nil {
		return nil, fmt.Errorf("resolve %s: %w", key, ErrApplicationState)
	}
	return r.Root().Resolve(ctx, key)
}

// ProvidersByCapability returns every provider tagged with the
// capability, in registration order.
func (c *Context) ProvidersByCapability(cap *di.Key) []*di.Provider {
	r := c.app.activeRegistry()
	if r == nil {
		return nil
	}
	return r.ProvidersByCapability(cap)
}

// ResolveByCapability resolves every provider tagged with the
// capability in its own scope, in registration order. Plugins use it to
// collect the units modules contributed for them (controllers, jobs)
// without those tokens being exported.
func (c *Context) ResolveByCapability(ctx context.Context, cap *di.Key) ([]any, error) {
	r := c.app.activeRegistry()
	if r == nil {
		return nil, fmt.Errorf("resolve capability %s: %w", cap, ErrApplicationState)
	}
	return r.ResolveByCapability(ctx, cap)
}

// IsModuleRegistered reports whether a module with the given name is
// part of the application.
func (c *Context) IsModuleRegistered(name string) bool {
	r := c.app.activeRegistry()
	return r != nil && r.IsRegistered(name)
}

// Modules returns the registered module names in registration order.
func (c *Context) Modules() []string {
	r := c.app.activeRegistry()
	if r == nil {
		return nil
	}
	return r.Modules()
}

// HasToken reports whether the token resolves from the root scope.
func (c *Context) HasToken(key *di.Key) bool {
	r := c.app.activeRegistry()
	return r != nil && r.HasToken(key)
}

// Graph returns a snapshot of the module graph.
func (c *Context) Graph() *module.Graph {
	r := c.app.activeRegistry()
	if r == nil {
		return &module.Graph{}
	}
	return r.Graph()
}

// RegisterGlobalProvider registers a provider on the root scope. Legal
// while the application is idle and during a plugin's OnRegister hook,
// before any module is built.
func (c *Context) RegisterGlobalProvider(p *di.Provider) error {
	return c.app.RegisterGlobalProvider(p)
}

// RegisterModule adds a module: queued while idle or during OnRegister,
// built transactionally while started.
func (c *Context) RegisterModule(ctx context.Context, def *module.Definition) error {
	return c.app.RegisterModule(ctx, def)
}

// UnregisterModule removes a runtime-registered module.
func (c *Context) UnregisterModule(ctx context.Context, def *module.Definition) error {
	return c.app.UnregisterModule(ctx, def)
}

// Shutdown stops the application.
func (c *Context) Shutdown(ctx context.Context) error {
	return c.app.Shutdown(ctx)
}

// Logger returns the application logger. Never nil.
func (c *Context) Logger() *zap.Logger {
	return c.app.logger
}

// Resolve is the typed companion of Context.Resolve.
func Resolve[T any](ctx context.Context, app *Context, tok di.Token[T]) (T, error) {
	v, err := app.Resolve(ctx, tok.Key())
	if err != nil {
		var zero T
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("resolve %s: instance type %T does not match token", tok, v)
	}
	return t, nil
}
