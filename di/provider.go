package di

import (
	"context"
	"fmt"
)

// Kind discriminates the three provider recipes.
type Kind uint8

const (
	// KindValue binds a token to a precomputed instance.
	KindValue Kind = iota + 1
	// KindFactory binds a token to a function that builds the instance
	// from resolved dependencies and may fail or perform I/O.
	KindFactory
	// KindClass binds a token to a plain constructor that cannot fail.
	KindClass
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindFactory:
		return "factory"
	case KindClass:
		return "class"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Lifecycle declares who owns an instance's setup and teardown.
type Lifecycle uint8

const (
	// LifecycleOwned instances get their Init and Destroy hooks run by
	// the container that created them.
	LifecycleOwned Lifecycle = iota
	// LifecycleExternal instances are managed by code outside the
	// container (a shared client, a listener owned by a plugin); the
	// container caches them but never runs their hooks.
	LifecycleExternal
)

func (l Lifecycle) String() string {
	if l == LifecycleExternal {
		return "external"
	}
	return "owned"
}

// Provider is an immutable recipe binding a token to a way of producing
// its instance. Build one with Value, Factory or Class and register it on
// a container, directly or through a module definition.
type Provider struct {
	key        *Key
	kind       Kind
	value      any
	build      func(ctx context.Context, deps Deps) (any, error)
	deps       []AnyToken
	capability *Key
	eager      bool
	lifecycle  Lifecycle
}

// Key returns the token identity the provider is bound to.
func (p *Provider) Key() *Key { return p.key }

// Kind returns the provider's recipe kind.
func (p *Provider) Kind() Kind { return p.kind }

// Dependencies returns the declared dependency tokens in declaration
// order. Callers must not mutate the returned slice.
func (p *Provider) Dependencies() []AnyToken { return p.deps }

// Capability returns the capability tag key, or nil when untagged.
func (p *Provider) Capability() *Key { return p.capability }

// Eager reports whether the provider is instantiated during container
// initialization rather than on first resolve.
func (p *Provider) Eager() bool { return p.eager }

// Lifecycle returns who owns the instance's setup and teardown.
func (p *Provider) Lifecycle() Lifecycle { return p.lifecycle }

func (p *Provider) String() string {
	return fmt.Sprintf("%s provider %s", p.kind, p.key)
}

// Option customizes a provider at construction time.
type Option func(*Provider)

// WithDeps declares the tokens the provider needs resolved before it can
// build its instance. The factory or constructor receives their values
// through Deps in this order.
func WithDeps(deps ...AnyToken) Option {
	return func(p *Provider) { p.deps = deps }
}

// WithCapability tags the provider with a capability for discovery.
func WithCapability[T any](c Capability[T]) Option {
	return func(p *Provider) { p.capability = c.key }
}

// Lazy defers instantiation to the first resolve instead of container
// initialization.
func Lazy() Option {
	return func(p *Provider) { p.eager = false }
}

// External marks the instance as owned outside the container: its Init
// and Destroy hooks, if any, are never run by the container.
func External() Option {
	return func(p *Provider) { p.lifecycle = LifecycleExternal }
}

// Value binds tok to a precomputed instance. Value providers take no
// dependencies; registering one that declares any fails.
func Value[T any](tok Token[T], v T, opts ...Option) *Provider {
	p := &Provider{
		key:   tok.key,
		kind:  KindValue,
		value: v,
		eager: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Factory binds tok to a function building the instance from resolved
// dependencies. The function may perform I/O and return an error; the
// container aborts resolution on failure.
func Factory[T any](tok Token[T], fn func(ctx context.Context, deps Deps) (T, error), opts ...Option) *Provider {
	p := &Provider{
		key:   tok.key,
		kind:  KindFactory,
		eager: true,
	}
	if fn != nil {
		p.build = func(ctx context.Context, deps Deps) (any, error) {
			return fn(ctx, deps)
		}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Class binds tok to a plain constructor. Constructors cannot fail by
// contract; anything that can fail belongs in a Factory.
func Class[T any](tok Token[T], ctor func(deps Deps) T, opts ...Option) *Provider {
	p := &Provider{
		key:   tok.key,
		kind:  KindClass,
		eager: true,
	}
	if ctor != nil {
		p.build = func(_ context.Context, deps Deps) (any, error) {
			return ctor(deps), nil
		}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Delegate binds key to whatever source resolves for it. Delegating
// providers are lazy and external: source keeps the single instance and
// runs its lifecycle hooks. The module registry uses them to surface a
// module's exported tokens in the root scope without duplicating the
// instance.
func Delegate(key *Key, source *Container) *Provider {
	return &Provider{
		key:  key,
		kind: KindFactory,
		build: func(ctx context.Context, _ Deps) (any, error) {
			return source.Resolve(ctx, key)
		},
		eager:     false,
		lifecycle: LifecycleExternal,
	}
}

// Deps carries the resolved values of a provider's declared dependencies
// into its factory or constructor.
type Deps struct {
	values map[*Key]any
}

// Use extracts the resolved value for tok from deps. The token must be
// one of the provider's declared dependencies; asking for anything else
// is a programming error and panics.
func Use[T any](deps Deps, tok Token[T]) T {
	v, ok := deps.values[tok.key]
	if !ok {
		panic(fmt.Sprintf("di: %s is not a declared dependency", tok))
	}
	return v.(T)
}

// Initializer is implemented by instances that need post-construction
// setup. The container calls Init once, right after creating the
// instance, and treats an error as a failed instantiation.
type Initializer interface {
	Init(ctx context.Context) error
}

// Destroyer is implemented by instances that need teardown. The container
// calls Destroy during its own destruction, in reverse creation order.
type Destroyer interface {
	Destroy(ctx context.Context) error
}
