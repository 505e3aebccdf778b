package di

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// State is a container's lifecycle phase.
type State uint8

const (
	// StateRegistering accepts provider registrations; resolution is not
	// yet legal.
	StateRegistering State = iota
	// StateInitializing is in effect while eager providers instantiate;
	// resolution is legal so providers can reach their siblings.
	StateInitializing
	// StateInitialized accepts resolution only.
	StateInitialized
	// StateDestroyed is terminal.
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateRegistering:
		return "registering"
	case StateInitializing:
		return "initializing"
	case StateInitialized:
		return "initialized"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

type inflight struct {
	done chan struct{}
	err  error
}

// Container resolves tokens to singleton instances. Each container holds
// its own registrations and instance cache and falls back to its parent
// for tokens it does not know; the parent may outlive its children.
//
// The mutex only guards the container's bookkeeping. Factories, hooks and
// other user code always run with the lock released, so a factory may
// resolve through the same container chain it is being built by. One
// logical flow drives a container at a time; concurrent Initialize calls
// are coalesced onto the in-flight run.
type Container struct {
	parent *Container

	mu        sync.Mutex
	state     State
	providers map[*Key]*Provider
	order     []*Key
	cache     map[*Key]any
	created   []*Key
	resolving map[*Key]bool
	path      []*Key
	init      *inflight
}

// NewContainer returns an empty root container in the registering state.
func NewContainer() *Container {
	return &Container{
		providers: make(map[*Key]*Provider),
		cache:     make(map[*Key]any),
		resolving: make(map[*Key]bool),
	}
}

// NewChild returns a new registering container that resolves through c
// whatever it does not hold locally.
func (c *Container) NewChild() *Container {
	child := NewContainer()
	child.parent = c
	return child
}

// State returns the current lifecycle phase.
func (c *Container) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Register adds a provider to the local scope. It fails once
// initialization has begun and when the provider's token is already
// registered locally.
func (c *Container) Register(p *Provider) error {
	if err := validateProvider(p); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRegistering {
		return fmt.Errorf("register %s: %w: container is %s", p.key, ErrInvalidState, c.state)
	}
	if _, ok := c.providers[p.key]; ok {
		return fmt.Errorf("register: %w: %s", ErrDuplicateProvider, p.key)
	}
	c.providers[p.key] = p
	c.order = append(c.order, p.key)
	return nil
}

// Adopt registers a lazy provider on a container that may already be
// initialized. Regular registration closes once initialization begins;
// adoption is the narrow late path the module registry uses to publish a
// runtime-registered module's exports into the root scope. Eager
// providers cannot be adopted, since nothing would ever instantiate them
// eagerly.
func (c *Container) Adopt(p *Provider) error {
	if err := validateProvider(p); err != nil {
		return err
	}
	if p.eager {
		return fmt.Errorf("adopt %s: %w: eager provider", p.key, ErrInvalidProvider)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDestroyed {
		return fmt.Errorf("adopt %s: %w: container is destroyed", p.key, ErrInvalidState)
	}
	if _, ok := c.providers[p.key]; ok {
		return fmt.Errorf("adopt: %w: %s", ErrDuplicateProvider, p.key)
	}
	c.providers[p.key] = p
	c.order = append(c.order, p.key)
	return nil
}

// Unregister removes the local registration for key together with any
// cached instance and creation-log entry, without running destroy hooks.
// The module registry uses it to retract a removed module's exports from
// the root scope.
func (c *Container) Unregister(key *Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDestroyed {
		return fmt.Errorf("unregister %s: %w: container is destroyed", key, ErrInvalidState)
	}
	if _, ok := c.providers[key]; !ok {
		return fmt.Errorf("unregister: %w: %s", ErrProviderNotFound, key)
	}
	delete(c.providers, key)
	delete(c.cache, key)
	c.order = removeKey(c.order, key)
	c.created = removeKey(c.created, key)
	return nil
}

// Has reports whether key is registered locally or anywhere up the parent
// chain.
func (c *Container) Has(key *Key) bool {
	c.mu.Lock()
	_, ok := c.providers[key]
	parent := c.parent
	c.mu.Unlock()
	if ok {
		return true
	}
	if parent != nil {
		return parent.Has(key)
	}
	return false
}

// Providers returns the local providers in registration order.
func (c *Container) Providers() []*Provider {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Provider, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.providers[key])
	}
	return out
}

// Initialize instantiates every eager local provider in registration
// order, resolving dependencies first. The container becomes initialized
// only when all of them succeed; on failure it returns to the registering
// state and the call may be retried after the cause is fixed. Concurrent
// calls join the in-flight run and receive its result.
func (c *Container) Initialize(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateInitialized:
		c.mu.Unlock()
		return nil
	case StateDestroyed:
		c.mu.Unlock()
		return fmt.Errorf("initialize: %w: container is destroyed", ErrInvalidState)
	}
	if fl := c.init; fl != nil {
		c.mu.Unlock()
		<-fl.done
		return fl.err
	}
	fl := &inflight{done: make(chan struct{})}
	c.init = fl
	c.state = StateInitializing
	eager := make([]*Key, 0, len(c.order))
	for _, key := range c.order {
		if c.providers[key].eager {
			eager = append(eager, key)
		}
	}
	c.mu.Unlock()

	var err error
	for _, key := range eager {
		if _, rerr := c.Resolve(ctx, key); rerr != nil {
			err = rerr
			break
		}
	}

	c.mu.Lock()
	if err != nil {
		c.state = StateRegistering
	} else {
		c.state = StateInitialized
	}
	fl.err = err
	c.init = nil
	c.mu.Unlock()
	close(fl.done)
	return err
}

// Resolve returns the instance for key, creating it on first use.
// Lookup order: local cache, local provider (instantiated lazily when
// needed), then the parent chain. Every call returns the same instance
// for the same key on the same container.
func (c *Container) Resolve(ctx context.Context, key *Key) (any, error) {
	c.mu.Lock()
	switch c.state {
	case StateRegistering:
		c.mu.Unlock()
		return nil, fmt.Errorf("resolve %s: %w", key, ErrNotInitialized)
	case StateDestroyed:
		c.mu.Unlock()
		return nil, fmt.Errorf("resolve %s: %w: container is destroyed", key, ErrInvalidState)
	}
	if v, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return v, nil
	}
	p, ok := c.providers[key]
	if !ok {
		parent := c.parent
		c.mu.Unlock()
		if parent != nil {
			return parent.Resolve(ctx, key)
		}
		return nil, fmt.Errorf("resolve: %w: %s", ErrProviderNotFound, key)
	}
	if c.resolving[key] {
		err := &CircularDependencyError{Path: c.pathNames(key)}
		c.mu.Unlock()
		return nil, err
	}
	c.resolving[key] = true
	c.path = append(c.path, key)
	c.mu.Unlock()

	inst, err := c.instantiate(ctx, p)

	c.mu.Lock()
	delete(c.resolving, key)
	c.popPath(key)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.cache[key] = inst
	c.created = append(c.created, key)
	c.mu.Unlock()
	return inst, nil
}

// instantiate resolves p's dependencies, builds the instance, and runs
// its post-construction hook when the container owns it. Runs unlocked.
func (c *Container) instantiate(ctx context.Context, p *Provider) (any, error) {
	deps := Deps{}
	if n := len(p.deps); n > 0 {
		deps.values = make(map[*Key]any, n)
		for _, dep := range p.deps {
			v, err := c.Resolve(ctx, dep.Key())
			if err != nil {
				return nil, fmt.Errorf("resolve %s: dependency %s: %w", p.key, dep, err)
			}
			deps.values[dep.Key()] = v
		}
	}

	var inst any
	switch p.kind {
	case KindValue:
		inst = p.value
	case KindFactory, KindClass:
		v, err := p.build(ctx, deps)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p.key, err)
		}
		inst = v
	default:
		return nil, fmt.Errorf("resolve %s: %w: %s", p.key, ErrInvalidProvider, p.kind)
	}

	if p.lifecycle == LifecycleOwned {
		if in, ok := inst.(Initializer); ok {
			if err := in.Init(ctx); err != nil {
				return nil, fmt.Errorf("init %s: %w", p.key, err)
			}
		}
	}
	return inst, nil
}

// Destroy runs the Destroy hook of every owned instance in reverse
// creation order, skipping external lifecycles. Hook failures are
// collected, never short-circuited: every remaining hook still runs, the
// container always ends up destroyed with its cache and creation log
// cleared, and the collected failures come back as one joined error.
func (c *Container) Destroy(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateDestroyed {
		c.mu.Unlock()
		return nil
	}
	created := c.created
	cache := c.cache
	providers := c.providers
	c.state = StateDestroyed
	c.cache = make(map[*Key]any)
	c.created = nil
	c.resolving = make(map[*Key]bool)
	c.path = nil
	c.mu.Unlock()

	var errs []error
	for i := len(created) - 1; i >= 0; i-- {
		key := created[i]
		if p := providers[key]; p != nil && p.lifecycle == LifecycleExternal {
			continue
		}
		d, ok := cache[key].(Destroyer)
		if !ok {
			continue
		}
		if err := d.Destroy(ctx); err != nil {
			errs = append(errs, fmt.Errorf("destroy %s: %w", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("container destroy: %w", errors.Join(errs...))
	}
	return nil
}

// ResolveAs resolves tok on c and asserts the instance to the token's
// type.
func ResolveAs[T any](ctx context.Context, c *Container, tok Token[T]) (T, error) {
	v, err := c.Resolve(ctx, tok.Key())
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

func validateProvider(p *Provider) error {
	switch {
	case p == nil || p.key == nil:
		return fmt.Errorf("%w: missing token", ErrInvalidProvider)
	case p.kind == KindValue && len(p.deps) > 0:
		return fmt.Errorf("%w: value provider %s declares dependencies", ErrInvalidProvider, p.key)
	case p.kind == KindFactory || p.kind == KindClass:
		if p.build == nil {
			return fmt.Errorf("%w: %s has no build function", ErrInvalidProvider, p)
		}
	case p.kind != KindValue:
		return fmt.Errorf("%w: %s", ErrInvalidProvider, p)
	}
	return nil
}

func (c *Container) pathNames(last *Key) []string {
	names := make([]string, 0, len(c.path)+1)
	for _, k := range c.path {
		names = append(names, k.String())
	}
	return append(names, last.String())
}

func (c *Container) popPath(key *Key) {
	for i := len(c.path) - 1; i >= 0; i-- {
		if c.path[i] == key {
			c.path = append(c.path[:i], c.path[i+1:]...)
			return
		}
	}
}

func removeKey(keys []*Key, key *Key) []*Key {
	for i, k := range keys {
		if k == key {
			return append(keys[:i], keys[i+1:]...)
		}
	}
	return keys
}
