// Package app is the application orchestrator: it owns a module
// registry and a list of plugins, drives the phased startup/shutdown
// state machine, and performs transactional runtime module registration
// with rollback.
package app

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/tascaenzo/trinacria/di"
	"github.com/tascaenzo/trinacria/module"
)

// LoggerToken resolves to the application logger. It is registered as a
// global provider during Start, so any module can inject it.
var LoggerToken = di.NewToken[*zap.Logger]("app.logger")

// State is the application lifecycle phase.
type State uint8

const (
	// StateIdle accepts configuration: plugins, global providers,
	// module definitions.
	StateIdle State = iota
	// StateStarting is in effect while Start runs.
	StateStarting
	// StateStarted accepts runtime module operations and Shutdown.
	StateStarted
	// StateFailed is terminal. A failed application cannot be
	// restarted; create a new instance.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateStarted:
		return "started"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// App assembles modules and plugins into a running application.
//
// Configure it while idle (Use, RegisterGlobalProvider, RegisterModule),
// then Start it. While started, modules can be registered and
// unregistered at runtime; a failed runtime registration is rolled back
// completely. Shutdown returns the application to idle so it can be
// started again; a failed Start leaves it permanently failed.
type App struct {
	mu       sync.Mutex
	state    State
	inHooks  bool // plugin OnRegister phase: contributions still allowed
	logger   *zap.Logger
	registry *module.Registry
	plugins  []Plugin
	modules  []*module.Definition
	globals  []*di.Provider
	ctx      *Context
}

// Option customizes an application at construction time.
type Option func(*App)

// WithLogger sets the application logger. The default is a nop logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// New returns an idle application.
func New(opts ...Option) *App {
	a := &App{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	a.ctx = &Context{app: a}
	return a
}

// Context returns the application's public read/query surface. The same
// Context is handed to every plugin hook.
func (a *App) Context() *Context { return a.ctx }

// State returns the current lifecycle phase.
func (a *App) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *App) activeRegistry() *module.Registry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registry
}

// Use adds a plugin. Plugins are notified in the order they were added.
// Legal only while idle.
func (a *App) Use(p Plugin) error {
	if p == nil || p.Name() == "" {
		return fmt.Errorf("use: plugin must have a name")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateIdle {
		return &StateError{Op: "add plugin " + p.Name(), State: a.state}
	}
	for _, existing := range a.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("use: plugin %s already added", p.Name())
		}
	}
	a.plugins = append(a.plugins, p)
	return nil
}

// RegisterGlobalProvider registers a provider on the root scope, outside
// any module. Legal while idle and during a plugin's OnRegister hook.
func (a *App) RegisterGlobalProvider(p *di.Provider) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case a.state == StateIdle:
		for _, queued := range a.globals {
			if queued.Key() == p.Key() {
				return fmt.Errorf("register global: %w: %s", di.ErrDuplicateProvider, p.Key())
			}
		}
		a.globals = append(a.globals, p)
		return nil
	case a.state == StateStarting && a.inHooks:
		return a.registry.RegisterGlobal(p)
	default:
		return &StateError{Op: "register global provider", State: a.state}
	}
}

// RegisterModule adds a module to the application. While idle (and
// during plugin OnRegister hooks) the definition is queued and built by
// Start. While started it is registered at runtime: built, initialized
// and announced to plugins transactionally: on any failure everything
// is rolled back and the application is left exactly as before the call.
func (a *App) RegisterModule(ctx context.Context, def *module.Definition) error {
	if def == nil {
		return fmt.Errorf("register module: nil definition")
	}
	a.mu.Lock()
	switch {
	case a.state == StateIdle, a.state == StateStarting && a.inHooks:
		defer a.mu.Unlock()
		for _, queued := range a.modules {
			if queued.Name() == def.Name() {
				return fmt.Errorf("register module: %w: %s", module.ErrDuplicateModule, def.Name())
			}
		}
		a.modules = append(a.modules, def)
		return nil
	case a.state == StateStarted:
		a.mu.Unlock()
		return a.registerModuleRuntime(ctx, def)
	default:
		defer a.mu.Unlock()
		return &StateError{Op: "register module " + def.Name(), State: a.state}
	}
}

// Start runs the startup sequence: plugin register hooks, module graph
// build, registry initialization, plugin init hooks. Success moves the
// application to started; any failure moves it to failed permanently.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	switch a.state {
	case StateFailed:
		a.mu.Unlock()
		return &StateError{Op: "start", State: StateFailed, Hint: "create a new application instance"}
	case StateStarting, StateStarted:
		a.mu.Unlock()
		return &StateError{Op: "start", State: a.state}
	}
	a.state = StateStarting
	a.registry = module.NewRegistry()
	registry := a.registry
	globals := append([]*di.Provider(nil), a.globals...)
	plugins := append([]Plugin(nil), a.plugins...)
	a.mu.Unlock()

	fail := func(stage string, err error) error {
		a.mu.Lock()
		a.state = StateFailed
		a.mu.Unlock()
		a.logger.Error("application start failed",
			zap.String("stage", stage), zap.Error(err))
		return &StartError{Stage: stage, Err: err}
	}

	registry.RegisterGlobal(di.Value(LoggerToken, a.logger, di.External())) //nolint:errcheck // fresh registry, token unique
	for _, p := range globals {
		if err := registry.RegisterGlobal(p); err != nil {
			return fail("global provider registration", err)
		}
	}

	a.setInHooks(true)
	for _, p := range plugins {
		h, ok := p.(RegisterHook)
		if !ok {
			continue
		}
		if err := h.OnRegister(ctx, a.ctx); err != nil {
			a.setInHooks(false)
			return fail("plugin register", fmt.Errorf("plugin %s: %w", p.Name(), err))
		}
	}
	a.setInHooks(false)

	a.mu.Lock()
	modules := append([]*module.Definition(nil), a.modules...)
	a.mu.Unlock()
	for _, def := range modules {
		if _, err := registry.Build(def); err != nil {
			return fail("module build", err)
		}
	}

	if err := registry.Init(ctx); err != nil {
		return fail("registry init", err)
	}

	for _, p := range plugins {
		h, ok := p.(InitHook)
		if !ok {
			continue
		}
		if err := h.OnInit(ctx, a.ctx); err != nil {
			return fail("plugin init", fmt.Errorf("plugin %s: %w", p.Name(), err))
		}
	}

	a.mu.Lock()
	a.state = StateStarted
	a.mu.Unlock()
	a.logger.Info("application started",
		zap.Int("modules", len(modules)), zap.Int("plugins", len(plugins)))
	return nil
}

func (a *App) setInHooks(v bool) {
	a.mu.Lock()
	a.inHooks = v
	a.mu.Unlock()
}

// registerModuleRuntime is the transactional runtime path. The module
// and any imports it pulled in are built and initialized, then plugins
// are notified in order. On any failure every notified plugin gets the
// unregistered hook in reverse order, every module the call added is
// unregistered again, and the tracked list is restored.
func (a *App) registerModuleRuntime(ctx context.Context, def *module.Definition) error {
	a.mu.Lock()
	registry := a.registry
	plugins := append([]Plugin(nil), a.plugins...)
	if registry.IsRegistered(def.Name()) {
		a.mu.Unlock()
		return fmt.Errorf("register module: %w: %s", module.ErrDuplicateModule, def.Name())
	}
	before := make(map[string]bool)
	for _, name := range registry.Modules() {
		before[name] = true
	}
	a.modules = append(a.modules, def)
	a.mu.Unlock()

	var cause error
	if _, err := registry.Build(def); err != nil {
		cause = err
	}
	if cause == nil {
		if err := registry.Init(ctx); err != nil {
			cause = err
		}
	}

	var notified []Plugin
	if cause == nil {
		for _, p := range plugins {
			h, ok := p.(ModuleRegisteredHook)
			if !ok {
				continue
			}
			if err := h.OnModuleRegistered(ctx, a.ctx, def); err != nil {
				cause = fmt.Errorf("plugin %s: %w", p.Name(), err)
				break
			}
			notified = append(notified, p)
		}
	}

	if cause == nil {
		a.logger.Info("module registered", zap.String("module", def.Name()))
		return nil
	}

	rollbackErrs := a.rollbackRegistration(ctx, def, notified, before)
	a.mu.Lock()
	a.modules = removeDefinition(a.modules, def)
	a.mu.Unlock()
	a.logger.Warn("module registration rolled back",
		zap.String("module", def.Name()), zap.Error(cause),
		zap.Int("rollback_errors", len(rollbackErrs)))
	return &RegistrationError{Module: def.Name(), Cause: cause, RollbackErrs: rollbackErrs}
}

// rollbackRegistration compensates a failed runtime registration:
// reverse-order plugin notification, then unregistration of every module
// the attempt added. All failures are collected; rollback never stops
// halfway.
func (a *App) rollbackRegistration(ctx context.Context, def *module.Definition, notified []Plugin, before map[string]bool) []error {
	var errs []error
	for i := len(notified) - 1; i >= 0; i-- {
		h, ok := notified[i].(ModuleUnregisteredHook)
		if !ok {
			continue
		}
		if err := h.OnModuleUnregistered(ctx, a.ctx, def); err != nil {
			errs = append(errs, fmt.Errorf("plugin %s: %w", notified[i].Name(), err))
		}
	}

	a.mu.Lock()
	registry := a.registry
	a.mu.Unlock()

	// Unregister in reverse build order so the new module goes before
	// any imports the attempt pulled in.
	added := registry.Modules()
	defs := definitionClosure(def)
	for i := len(added) - 1; i >= 0; i-- {
		name := added[i]
		if before[name] {
			continue
		}
		d, ok := defs[name]
		if !ok {
			continue
		}
		if err := registry.Unregister(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// UnregisterModule removes a runtime-registered module: registry
// teardown first, then reverse-order plugin notification. Notification
// failures are aggregated and raised, but the module stays removed.
func (a *App) UnregisterModule(ctx context.Context, def *module.Definition) error {
	if def == nil {
		return fmt.Errorf("unregister module: nil definition")
	}
	a.mu.Lock()
	if a.state != StateStarted {
		defer a.mu.Unlock()
		return &StateError{Op: "unregister module " + def.Name(), State: a.state}
	}
	registry := a.registry
	plugins := append([]Plugin(nil), a.plugins...)
	a.mu.Unlock()

	if err := registry.Unregister(ctx, def); err != nil {
		return err
	}
	a.mu.Lock()
	a.modules = removeDefinition(a.modules, def)
	a.mu.Unlock()
	a.logger.Info("module unregistered", zap.String("module", def.Name()))

	var errs []error
	for i := len(plugins) - 1; i >= 0; i-- {
		h, ok := plugins[i].(ModuleUnregisteredHook)
		if !ok {
			continue
		}
		if err := h.OnModuleUnregistered(ctx, a.ctx, def); err != nil {
			errs = append(errs, fmt.Errorf("plugin %s: %w", plugins[i].Name(), err))
		}
	}
	if len(errs) > 0 {
		return &UnregistrationError{Module: def.Name(), Errs: errs}
	}
	return nil
}

// Shutdown stops a started application: reverse-order plugin destroy
// hooks, then registry teardown. Failures are collected so every step
// still runs; the application always returns to idle and can be started
// again. Calling Shutdown in any other state is a no-op.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if a.state != StateStarted {
		a.mu.Unlock()
		return nil
	}
	registry := a.registry
	plugins := append([]Plugin(nil), a.plugins...)
	a.mu.Unlock()

	var errs []error
	for i := len(plugins) - 1; i >= 0; i-- {
		h, ok := plugins[i].(DestroyHook)
		if !ok {
			continue
		}
		if err := h.OnDestroy(ctx, a.ctx); err != nil {
			errs = append(errs, fmt.Errorf("plugin %s: %w", plugins[i].Name(), err))
		}
	}

	if err := registry.Destroy(ctx); err != nil {
		errs = append(errs, err)
	}

	a.mu.Lock()
	a.state = StateIdle
	a.registry = nil
	a.mu.Unlock()

	if len(errs) > 0 {
		a.logger.Warn("application shutdown finished with errors", zap.Int("errors", len(errs)))
		return &ShutdownError{Errs: errs}
	}
	a.logger.Info("application stopped")
	return nil
}

// definitionClosure maps every definition reachable from def (itself
// included) by name.
func definitionClosure(def *module.Definition) map[string]*module.Definition {
	out := make(map[string]*module.Definition)
	var walk func(d *module.Definition)
	walk = func(d *module.Definition) {
		if _, ok := out[d.Name()]; ok {
			return
		}
		out[d.Name()] = d
		for _, imp := range d.Imports() {
			walk(imp)
		}
	}
	walk(def)
	return out
}

func removeDefinition(defs []*module.Definition, def *module.Definition) []*module.Definition {
	for i, d := range defs {
		if d == def {
			return append(defs[:i], defs[i+1:]...)
		}
	}
	return defs
}
