package module

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tascaenzo/trinacria/di"
)

type entry struct {
	def       *Definition
	container *di.Container
	exports   []*di.Key
}

// capEntry pairs a tagged provider with the container that owns it, so
// discovered providers can be resolved in their own scope even when
// their token is not exported.
type capEntry struct {
	provider  *di.Provider
	container *di.Container
}

// Registry builds module definitions into a tree of scoped containers
// rooted at one shared root container. It enforces visibility rules at
// build time, publishes exports into the root scope, and indexes tagged
// providers for capability discovery.
//
// A registry is owned by one application instance; its bookkeeping is
// guarded for the same reasons a container's is, but one logical flow
// drives it at a time.
type Registry struct {
	mu      sync.Mutex
	root    *di.Container
	entries map[string]*entry
	order   []string
	globals []*di.Provider
	caps    map[*di.Key][]capEntry
}

// NewRegistry returns an empty registry with a fresh root container.
func NewRegistry() *Registry {
	return &Registry{
		root:    di.NewContainer(),
		entries: make(map[string]*entry),
		caps:    make(map[*di.Key][]capEntry),
	}
}

// Root returns the root container. Exported tokens and global providers
// resolve through it.
func (r *Registry) Root() *di.Container { return r.root }

// RegisterGlobal registers a provider directly on the root container,
// outside any module. Legal only before the registry initializes.
func (r *Registry) RegisterGlobal(p *di.Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.root.Register(p); err != nil {
		return fmt.Errorf("register global: %w", err)
	}
	r.globals = append(r.globals, p)
	if cap := p.Capability(); cap != nil {
		r.caps[cap] = append(r.caps[cap], capEntry{provider: p, container: r.root})
	}
	return nil
}

// Build constructs the container tree for def and everything it imports.
// Building is memoized by module name: building the same definition again
// returns the existing container, while a distinct definition under an
// already-built name fails with ErrDuplicateModule.
//
// All graph errors (invisible dependencies, invalid exports, token
// conflicts) are detected here, before any instantiation. A failed build
// leaves the registry without the failing module; imports that were
// completely built before the failure stay registered.
func (r *Registry) Build(def *Definition) (*di.Container, error) {
	if def == nil {
		return nil, errors.New("build: nil module definition")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.build(def)
}

func (r *Registry) build(def *Definition) (*di.Container, error) {
	if e, ok := r.entries[def.name]; ok {
		if e.def == def {
			return e.container, nil
		}
		return nil, fmt.Errorf("build: %w: %s", ErrDuplicateModule, def.name)
	}

	for _, imp := range def.imports {
		if _, err := r.build(imp); err != nil {
			return nil, err
		}
	}

	c := r.root.NewChild()
	local := make(map[*di.Key]bool, len(def.providers))
	var tagged []*di.Provider
	for _, p := range def.providers {
		if err := c.Register(p); err != nil {
			return nil, fmt.Errorf("module %s: %w", def.name, err)
		}
		local[p.Key()] = true
		if p.Capability() != nil {
			tagged = append(tagged, p)
		}
	}

	if err := r.checkVisibility(def, local); err != nil {
		return nil, err
	}

	exports, err := r.publishExports(def, c, local)
	if err != nil {
		return nil, err
	}

	r.entries[def.name] = &entry{def: def, container: c, exports: exports}
	r.order = append(r.order, def.name)
	for _, p := range tagged {
		r.caps[p.Capability()] = append(r.caps[p.Capability()], capEntry{provider: p, container: c})
	}
	return c, nil
}

// checkVisibility verifies every dependency token of every local provider
// is in scope: registered locally, exported by a direct import, or
// already present in the root.
func (r *Registry) checkVisibility(def *Definition, local map[*di.Key]bool) error {
	imported := make(map[*di.Key]bool)
	for _, imp := range def.imports {
		for _, tok := range imp.exports {
			imported[tok.Key()] = true
		}
	}
	for _, p := range def.providers {
		for _, dep := range p.Dependencies() {
			key := dep.Key()
			if local[key] || imported[key] || r.root.Has(key) {
				continue
			}
			return &DependencyError{
				Module:   def.name,
				Provider: p.Key().String(),
				Token:    dep.String(),
			}
		}
	}
	return nil
}

// publishExports copies each exported token into the root scope as a
// lazy delegating registration. The owning module's container keeps the
// single instance and its lifecycle hooks; the root registration only
// forwards resolution. On any failure the delegates adopted so far are
// retracted again.
func (r *Registry) publishExports(def *Definition, c *di.Container, local map[*di.Key]bool) ([]*di.Key, error) {
	adopted := make([]*di.Key, 0, len(def.exports))
	retract := func() {
		for _, key := range adopted {
			_ = r.root.Unregister(key)
		}
	}
	for _, tok := range def.exports {
		key := tok.Key()
		if !local[key] {
			retract()
			return nil, &ExportError{Module: def.name, Token: tok.String()}
		}
		if r.root.Has(key) {
			retract()
			return nil, &TokenConflictError{Module: def.name, Token: tok.String()}
		}
		if err := r.root.Adopt(di.Delegate(key, c)); err != nil {
			retract()
			return nil, fmt.Errorf("module %s: export %s: %w", def.name, tok, err)
		}
		adopted = append(adopted, key)
	}
	return adopted, nil
}

// Init initializes the root container, then every module container in
// build order. Container initialization is idempotent, so Init may be
// called again after a runtime Build to bring only the new containers
// up. The first failure aborts the remaining initialization.
func (r *Registry) Init(ctx context.Context) error {
	r.mu.Lock()
	containers := make([]*di.Container, 0, len(r.order)+1)
	containers = append(containers, r.root)
	for _, name := range r.order {
		containers = append(containers, r.entries[name].container)
	}
	r.mu.Unlock()

	for _, c := range containers {
		if err := c.Initialize(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ProvidersByCapability returns every registered provider tagged with the
// capability, in registration order. The result is empty when the tag
// was never used; the slice is a copy the caller may keep.
func (r *Registry) ProvidersByCapability(cap *di.Key) []*di.Provider {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*di.Provider, 0, len(r.caps[cap]))
	for _, e := range r.caps[cap] {
		out = append(out, e.provider)
	}
	return out
}

// ResolveByCapability resolves every provider tagged with the capability
// in its owning container, in registration order. This is the discovery
// surface plugins consume: a controller or job inside a module stays
// reachable here even when its token is not exported to the root.
func (r *Registry) ResolveByCapability(ctx context.Context, cap *di.Key) ([]any, error) {
	r.mu.Lock()
	entries := append([]capEntry(nil), r.caps[cap]...)
	r.mu.Unlock()

	out := make([]any, 0, len(entries))
	for _, e := range entries {
		v, err := e.container.Resolve(ctx, e.provider.Key())
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Modules returns the registered module names in build order.
func (r *Registry) Modules() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// IsRegistered reports whether a module with the given name is built.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[name]
	return ok
}

// Container returns the scoped container built for the named module.
func (r *Registry) Container(name string) (*di.Container, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.container, true
}

// HasToken reports whether the token resolves from the root scope, i.e.
// it is a global registration or an export of some registered module.
func (r *Registry) HasToken(key *di.Key) bool {
	return r.root.Has(key)
}

// Unregister removes a built module: destroys its container, retracts
// its exported registrations from the root, and drops its capability
// index entries. It fails up front when another registered module still
// imports this one. Teardown failures are collected, not short-circuited;
// the module is removed from tracking regardless.
func (r *Registry) Unregister(ctx context.Context, def *Definition) error {
	if def == nil {
		return errors.New("unregister: nil module definition")
	}
	r.mu.Lock()
	e, ok := r.entries[def.name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("unregister: %w: %s", ErrModuleNotFound, def.name)
	}
	for _, other := range r.entries {
		if other == e {
			continue
		}
		for _, imp := range other.def.imports {
			if imp.name == def.name {
				r.mu.Unlock()
				return fmt.Errorf("unregister %s: %w: imported by %s",
					def.name, ErrModuleInUse, other.def.name)
			}
		}
	}
	r.mu.Unlock()

	var errs []error
	if err := e.container.Destroy(ctx); err != nil {
		errs = append(errs, err)
	}

	r.mu.Lock()
	for _, key := range e.exports {
		if err := r.root.Unregister(key); err != nil {
			errs = append(errs, err)
		}
	}
	owned := make(map[*di.Provider]bool, len(e.def.providers))
	for _, p := range e.def.providers {
		owned[p] = true
	}
	for cap, entries := range r.caps {
		kept := entries[:0]
		for _, ce := range entries {
			if !owned[ce.provider] {
				kept = append(kept, ce)
			}
		}
		if len(kept) == 0 {
			delete(r.caps, cap)
		} else {
			r.caps[cap] = kept
		}
	}
	delete(r.entries, def.name)
	for i, name := range r.order {
		if name == def.name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	if len(errs) > 0 {
		return fmt.Errorf("unregister module %s: %w", def.name, errors.Join(errs...))
	}
	return nil
}

// Destroy tears down every module container in reverse build order, then
// the root container. Failures are collected so every container still
// gets destroyed.
func (r *Registry) Destroy(ctx context.Context) error {
	r.mu.Lock()
	containers := make([]*di.Container, 0, len(r.order)+1)
	for i := len(r.order) - 1; i >= 0; i-- {
		containers = append(containers, r.entries[r.order[i]].container)
	}
	containers = append(containers, r.root)
	r.mu.Unlock()

	var errs []error
	for _, c := range containers {
		if err := c.Destroy(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("registry destroy: %w", errors.Join(errs...))
	}
	return nil
}
