package module

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tascaenzo/trinacria/di"
)

type store struct{ dsn string }

type service struct{ store *store }

func storeModule(tok di.Token[*store], exported bool) *Definition {
	cfg := Config{
		Name:      "store",
		Providers: []*di.Provider{di.Value(tok, &store{dsn: "memory://"})},
	}
	if exported {
		cfg.Exports = []di.AnyToken{tok}
	}
	return MustNew(cfg)
}

func TestRegistryBuild_MemoizedByName(t *testing.T) {
	tok := di.NewToken[*store]("store")
	def := storeModule(tok, true)
	r := NewRegistry()

	first, err := r.Build(def)
	require.NoError(t, err)
	second, err := r.Build(def)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, []string{"store"}, r.Modules())
}

func TestRegistryBuild_DuplicateName(t *testing.T) {
	tok := di.NewToken[*store]("store")
	r := NewRegistry()

	_, err := r.Build(storeModule(tok, false))
	require.NoError(t, err)

	other := di.NewToken[*store]("other-store")
	_, err = r.Build(storeModule(other, false))
	assert.ErrorIs(t, err, ErrDuplicateModule)
}

func TestRegistryBuild_ExportVisibleThroughRoot(t *testing.T) {
	storeTok := di.NewToken[*store]("store")
	svcTok := di.NewToken[*service]("service")

	storeDef := storeModule(storeTok, true)
	svcDef := MustNew(Config{
		Name:    "service",
		Imports: []*Definition{storeDef},
		Providers: []*di.Provider{
			di.Class(svcTok, func(deps di.Deps) *service {
				return &service{store: di.Use(deps, storeTok)}
			}, di.WithDeps(storeTok)),
		},
		Exports: []di.AnyToken{svcTok},
	})

	r := NewRegistry()
	_, err := r.Build(svcDef)
	require.NoError(t, err)
	require.NoError(t, r.Init(context.Background()))

	svc, err := di.ResolveAs(context.Background(), r.Root(), svcTok)
	require.NoError(t, err)
	assert.NotNil(t, svc.store)

	// The exported instance is the module's own singleton, not a copy.
	storeC, ok := r.Container("store")
	require.True(t, ok)
	fromModule, err := di.ResolveAs(context.Background(), storeC, storeTok)
	require.NoError(t, err)
	fromRoot, err := di.ResolveAs(context.Background(), r.Root(), storeTok)
	require.NoError(t, err)
	assert.Same(t, fromModule, fromRoot)
}

func TestRegistryBuild_UnexportedProviderIsIsolated(t *testing.T) {
	storeTok := di.NewToken[*store]("store")
	r := NewRegistry()

	_, err := r.Build(storeModule(storeTok, false))
	require.NoError(t, err)
	require.NoError(t, r.Init(context.Background()))

	_, err = r.Root().Resolve(context.Background(), storeTok.Key())
	assert.ErrorIs(t, err, di.ErrProviderNotFound)
	assert.False(t, r.HasToken(storeTok.Key()))
}

func TestRegistryBuild_SiblingCannotSeeUnexportedToken(t *testing.T) {
	storeTok := di.NewToken[*store]("store")
	svcTok := di.NewToken[*service]("service")

	storeDef := storeModule(storeTok, false)
	svcDef := MustNew(Config{
		Name:    "service",
		Imports: []*Definition{storeDef},
		Providers: []*di.Provider{
			di.Class(svcTok, func(deps di.Deps) *service {
				return &service{store: di.Use(deps, storeTok)}
			}, di.WithDeps(storeTok)),
		},
	})

	r := NewRegistry()
	_, err := r.Build(svcDef)

	var depErr *DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, "service", depErr.Module)
	assert.Equal(t, "store", depErr.Token)
}

func TestRegistryBuild_ExportCollision(t *testing.T) {
	tok := di.NewToken[*store]("store")

	first := MustNew(Config{
		Name:      "first",
		Providers: []*di.Provider{di.Value(tok, &store{})},
		Exports:   []di.AnyToken{tok},
	})
	second := MustNew(Config{
		Name:      "second",
		Providers: []*di.Provider{di.Value(tok, &store{})},
		Exports:   []di.AnyToken{tok},
	})

	r := NewRegistry()
	_, err := r.Build(first)
	require.NoError(t, err)

	_, err = r.Build(second)
	var conflict *TokenConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "second", conflict.Module)
	assert.False(t, r.IsRegistered("second"))
}

func TestRegistryBuild_ExportWithoutLocalProvider(t *testing.T) {
	local := di.NewToken[*store]("local")
	foreign := di.NewToken[*store]("foreign")

	def := MustNew(Config{
		Name:      "broken",
		Providers: []*di.Provider{di.Value(local, &store{})},
		Exports:   []di.AnyToken{foreign},
	})

	r := NewRegistry()
	_, err := r.Build(def)

	var exportErr *ExportError
	require.ErrorAs(t, err, &exportErr)
	assert.Equal(t, "foreign", exportErr.Token)
	assert.False(t, r.IsRegistered("broken"))
}

func TestRegistryBuild_DependencyVisibleThroughGlobal(t *testing.T) {
	cfgTok := di.NewToken[string]("dsn")
	storeTok := di.NewToken[*store]("store")

	r := NewRegistry()
	require.NoError(t, r.RegisterGlobal(di.Value(cfgTok, "memory://")))

	def := MustNew(Config{
		Name: "store",
		Providers: []*di.Provider{
			di.Class(storeTok, func(deps di.Deps) *store {
				return &store{dsn: di.Use(deps, cfgTok)}
			}, di.WithDeps(cfgTok)),
		},
	})
	_, err := r.Build(def)
	require.NoError(t, err)
	require.NoError(t, r.Init(context.Background()))

	c, ok := r.Container("store")
	require.True(t, ok)
	got, err := di.ResolveAs(context.Background(), c, storeTok)
	require.NoError(t, err)
	assert.Equal(t, "memory://", got.dsn)
}

func TestRegistryProvidersByCapability(t *testing.T) {
	capability := di.NewCapability[*store]("storage")
	a := di.NewToken[*store]("a")
	b := di.NewToken[*store]("b")
	plain := di.NewToken[*store]("plain")

	def := MustNew(Config{
		Name: "stores",
		Providers: []*di.Provider{
			di.Value(a, &store{}, di.WithCapability(capability)),
			di.Value(plain, &store{}),
			di.Value(b, &store{}, di.WithCapability(capability)),
		},
	})

	r := NewRegistry()
	_, err := r.Build(def)
	require.NoError(t, err)

	tagged := r.ProvidersByCapability(capability.Key())
	require.Len(t, tagged, 2)
	assert.Equal(t, a.Key(), tagged[0].Key())
	assert.Equal(t, b.Key(), tagged[1].Key())

	unknown := di.NewCapability[*store]("unknown")
	assert.Empty(t, r.ProvidersByCapability(unknown.Key()))
}

func TestRegistryUnregister(t *testing.T) {
	storeTok := di.NewToken[*store]("store")
	svcTok := di.NewToken[*service]("service")
	capability := di.NewCapability[*service]("svc")

	storeDef := storeModule(storeTok, true)
	svcDef := MustNew(Config{
		Name:    "service",
		Imports: []*Definition{storeDef},
		Providers: []*di.Provider{
			di.Class(svcTok, func(deps di.Deps) *service {
				return &service{store: di.Use(deps, storeTok)}
			}, di.WithDeps(storeTok), di.WithCapability(capability)),
		},
		Exports: []di.AnyToken{svcTok},
	})

	r := NewRegistry()
	_, err := r.Build(svcDef)
	require.NoError(t, err)
	require.NoError(t, r.Init(context.Background()))

	// Still imported by service: refused.
	err = r.Unregister(context.Background(), storeDef)
	assert.ErrorIs(t, err, ErrModuleInUse)

	require.NoError(t, r.Unregister(context.Background(), svcDef))
	assert.False(t, r.IsRegistered("service"))
	assert.False(t, r.HasToken(svcTok.Key()))
	assert.Empty(t, r.ProvidersByCapability(capability.Key()))
	assert.True(t, r.HasToken(storeTok.Key()))

	// With the importer gone the store module can go too.
	require.NoError(t, r.Unregister(context.Background(), storeDef))
	assert.False(t, r.HasToken(storeTok.Key()))
	assert.Empty(t, r.Modules())
}

func TestRegistryUnregister_NotRegistered(t *testing.T) {
	r := NewRegistry()
	def := storeModule(di.NewToken[*store]("store"), false)

	err := r.Unregister(context.Background(), def)
	assert.ErrorIs(t, err, ErrModuleNotFound)
}

func TestRegistryInit_FailureAborts(t *testing.T) {
	bad := di.NewToken[*store]("bad")
	never := di.NewToken[*store]("never")
	built := 0

	def := MustNew(Config{
		Name: "broken",
		Providers: []*di.Provider{
			di.Factory(bad, func(ctx context.Context, deps di.Deps) (*store, error) {
				return nil, errors.New("dsn unreachable")
			}),
			di.Factory(never, func(ctx context.Context, deps di.Deps) (*store, error) {
				built++
				return &store{}, nil
			}),
		},
	})

	r := NewRegistry()
	_, err := r.Build(def)
	require.NoError(t, err)

	err = r.Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dsn unreachable")
	assert.Zero(t, built)
}

func TestRegistryGraph(t *testing.T) {
	storeTok := di.NewToken[*store]("store")
	svcTok := di.NewToken[*service]("service")

	storeDef := storeModule(storeTok, true)
	svcDef := MustNew(Config{
		Name:    "service",
		Imports: []*Definition{storeDef},
		Providers: []*di.Provider{
			di.Class(svcTok, func(deps di.Deps) *service {
				return &service{store: di.Use(deps, storeTok)}
			}, di.WithDeps(storeTok), di.Lazy()),
		},
		Exports: []di.AnyToken{svcTok},
	})

	r := NewRegistry()
	require.NoError(t, r.RegisterGlobal(di.Value(di.NewToken[string]("dsn"), "memory://")))
	_, err := r.Build(svcDef)
	require.NoError(t, err)

	g := r.Graph()
	require.Len(t, g.Modules, 2)
	assert.Equal(t, "store", g.Modules[0].Name)
	assert.Equal(t, "service", g.Modules[1].Name)
	assert.Equal(t, []string{"store"}, g.Modules[1].Imports)
	assert.Equal(t, []string{"service"}, g.Modules[1].Exports)

	require.Len(t, g.Modules[1].Providers, 1)
	node := g.Modules[1].Providers[0]
	assert.Equal(t, "service", node.Token)
	assert.Equal(t, "class", node.Kind)
	assert.False(t, node.Eager)
	assert.Equal(t, []string{"store"}, node.Dependencies)

	require.Len(t, g.Globals, 1)
	assert.Equal(t, "dsn", g.Globals[0].Token)
}

func TestRegistryResolveByCapability_UnexportedProviders(t *testing.T) {
	handlerCap := di.NewCapability[*store]("handler")

	// Two modules each tag a local, unexported provider.
	tokA := di.NewToken[*store]("a.store")
	tokB := di.NewToken[*store]("b.store")
	defA := MustNew(Config{
		Name:      "a",
		Providers: []*di.Provider{di.Value(tokA, &store{dsn: "a://"}, di.WithCapability(handlerCap))},
	})
	defB := MustNew(Config{
		Name:      "b",
		Providers: []*di.Provider{di.Value(tokB, &store{dsn: "b://"}, di.WithCapability(handlerCap))},
	})

	r := NewRegistry()
	_, err := r.Build(defA)
	require.NoError(t, err)
	_, err = r.Build(defB)
	require.NoError(t, err)
	require.NoError(t, r.Init(context.Background()))

	// The tokens are invisible from the root, yet the capability reaches
	// the instances in their owning scopes.
	assert.False(t, r.Root().Has(tokA.Key()))
	assert.False(t, r.Root().Has(tokB.Key()))

	instances, err := r.ResolveByCapability(context.Background(), handlerCap.Key())
	require.NoError(t, err)
	require.Len(t, instances, 2)

	dsns := []string{instances[0].(*store).dsn, instances[1].(*store).dsn}
	assert.ElementsMatch(t, []string{"a://", "b://"}, dsns)
}
