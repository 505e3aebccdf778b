package di

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type service struct {
	name string
}

// tracked records its teardown in a shared log.
type tracked struct {
	name string
	log  *[]string
	fail bool
}

func (s *tracked) Destroy(ctx context.Context) error {
	*s.log = append(*s.log, s.name)
	if s.fail {
		return fmt.Errorf("%s teardown failed", s.name)
	}
	return nil
}

// hooked counts post-construction hook runs.
type hooked struct {
	initCount int
	fail      bool
}

func (h *hooked) Init(ctx context.Context) error {
	h.initCount++
	if h.fail {
		return errors.New("setup failed")
	}
	return nil
}

func TestContainerResolve_SingletonPerContainer(t *testing.T) {
	tok := NewToken[*service]("svc")
	c := NewContainer()

	calls := 0
	require.NoError(t, c.Register(Factory(tok, func(ctx context.Context, deps Deps) (*service, error) {
		calls++
		return &service{name: "svc"}, nil
	})))
	require.NoError(t, c.Initialize(context.Background()))

	first, err := ResolveAs(context.Background(), c, tok)
	require.NoError(t, err)
	second, err := ResolveAs(context.Background(), c, tok)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestContainerResolve_ParentDelegation(t *testing.T) {
	tok := NewToken[string]("shared")

	parent := NewContainer()
	require.NoError(t, parent.Register(Value(tok, "from-parent")))
	require.NoError(t, parent.Initialize(context.Background()))

	child := parent.NewChild()
	require.NoError(t, child.Initialize(context.Background()))

	got, err := ResolveAs(context.Background(), child, tok)
	require.NoError(t, err)
	assert.Equal(t, "from-parent", got)
}

func TestContainerResolve_ParentUnregisterBeforeChildInit(t *testing.T) {
	tok := NewToken[string]("shared")

	parent := NewContainer()
	require.NoError(t, parent.Register(Value(tok, "from-parent")))
	require.NoError(t, parent.Unregister(tok.Key()))
	require.NoError(t, parent.Initialize(context.Background()))

	child := parent.NewChild()
	require.NoError(t, child.Initialize(context.Background()))

	_, err := child.Resolve(context.Background(), tok.Key())
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestContainerResolve_NotFound(t *testing.T) {
	c := NewContainer()
	require.NoError(t, c.Initialize(context.Background()))

	_, err := c.Resolve(context.Background(), NewToken[int]("missing").Key())
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestContainerResolve_BeforeInitialize(t *testing.T) {
	tok := NewToken[string]("early")
	c := NewContainer()
	require.NoError(t, c.Register(Value(tok, "x")))

	_, err := c.Resolve(context.Background(), tok.Key())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestContainerRegister_AfterInitialize(t *testing.T) {
	c := NewContainer()
	require.NoError(t, c.Initialize(context.Background()))

	err := c.Register(Value(NewToken[string]("late"), "x"))
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestContainerRegister_Duplicate(t *testing.T) {
	tok := NewToken[string]("dup")
	c := NewContainer()
	require.NoError(t, c.Register(Value(tok, "one")))

	err := c.Register(Value(tok, "two"))
	assert.ErrorIs(t, err, ErrDuplicateProvider)
}

func TestContainerRegister_InvalidProvider(t *testing.T) {
	c := NewContainer()

	err := c.Register(&Provider{})
	assert.ErrorIs(t, err, ErrInvalidProvider)

	tok := NewToken[string]("val")
	dep := NewToken[int]("dep")
	err = c.Register(Value(tok, "x", WithDeps(dep)))
	assert.ErrorIs(t, err, ErrInvalidProvider)
}

func TestContainerInitialize_CircularDependency(t *testing.T) {
	tokA := NewToken[string]("a")
	tokB := NewToken[string]("b")

	c := NewContainer()
	require.NoError(t, c.Register(Factory(tokA, func(ctx context.Context, deps Deps) (string, error) {
		return Use(deps, tokB) + "a", nil
	}, WithDeps(tokB))))
	require.NoError(t, c.Register(Factory(tokB, func(ctx context.Context, deps Deps) (string, error) {
		return Use(deps, tokA) + "b", nil
	}, WithDeps(tokA))))

	err := c.Initialize(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircularDependency)

	var cycle *CircularDependencyError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"a", "b", "a"}, cycle.Path)
}

func TestContainerInitialize_EagerInRegistrationOrder(t *testing.T) {
	tokA := NewToken[string]("a")
	tokB := NewToken[string]("b")
	tokC := NewToken[string]("c")

	var built []string
	record := func(name string, deps ...AnyToken) *Provider {
		var tok Token[string]
		switch name {
		case "a":
			tok = tokA
		case "b":
			tok = tokB
		default:
			tok = tokC
		}
		return Factory(tok, func(ctx context.Context, _ Deps) (string, error) {
			built = append(built, name)
			return name, nil
		}, WithDeps(deps...))
	}

	c := NewContainer()
	// b is registered first but depends on a, so a must be built before it.
	require.NoError(t, c.Register(record("b", tokA)))
	require.NoError(t, c.Register(record("a")))
	require.NoError(t, c.Register(record("c")))
	require.NoError(t, c.Initialize(context.Background()))

	assert.Equal(t, []string{"a", "b", "c"}, built)
}

func TestContainerInitialize_LazyProvider(t *testing.T) {
	tok := NewToken[*service]("lazy")
	c := NewContainer()

	calls := 0
	require.NoError(t, c.Register(Factory(tok, func(ctx context.Context, deps Deps) (*service, error) {
		calls++
		return &service{}, nil
	}, Lazy())))
	require.NoError(t, c.Initialize(context.Background()))
	assert.Equal(t, 0, calls)

	_, err := c.Resolve(context.Background(), tok.Key())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestContainerInitialize_FailureIsRetryable(t *testing.T) {
	tok := NewToken[string]("flaky")
	c := NewContainer()

	attempts := 0
	require.NoError(t, c.Register(Factory(tok, func(ctx context.Context, deps Deps) (string, error) {
		attempts++
		if attempts == 1 {
			return "", errors.New("not ready")
		}
		return "ready", nil
	})))

	err := c.Initialize(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateRegistering, c.State())

	_, err = c.Resolve(context.Background(), tok.Key())
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, c.Initialize(context.Background()))
	assert.Equal(t, StateInitialized, c.State())

	got, err := ResolveAs(context.Background(), c, tok)
	require.NoError(t, err)
	assert.Equal(t, "ready", got)
}

func TestContainerInitialize_ConcurrentCallsCoalesce(t *testing.T) {
	tok := NewToken[*service]("slow")
	c := NewContainer()

	var mu sync.Mutex
	calls := 0
	require.NoError(t, c.Register(Factory(tok, func(ctx context.Context, deps Deps) (*service, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return &service{}, nil
	})))

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.Initialize(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, calls)
}

func TestContainerDestroy_ReverseCreationOrder(t *testing.T) {
	tokA := NewToken[*tracked]("a")
	tokB := NewToken[*tracked]("b")
	tokC := NewToken[*tracked]("c")

	var log []string
	c := NewContainer()
	require.NoError(t, c.Register(Factory(tokA, func(ctx context.Context, deps Deps) (*tracked, error) {
		return &tracked{name: "a", log: &log}, nil
	})))
	require.NoError(t, c.Register(Factory(tokB, func(ctx context.Context, deps Deps) (*tracked, error) {
		return &tracked{name: "b", log: &log}, nil
	}, WithDeps(tokA))))
	require.NoError(t, c.Register(Factory(tokC, func(ctx context.Context, deps Deps) (*tracked, error) {
		return &tracked{name: "c", log: &log}, nil
	}, WithDeps(tokA))))
	require.NoError(t, c.Initialize(context.Background()))

	require.NoError(t, c.Destroy(context.Background()))
	assert.Equal(t, []string{"c", "b", "a"}, log)
	assert.Equal(t, StateDestroyed, c.State())
}

func TestContainerDestroy_SkipsExternalInstances(t *testing.T) {
	tokOwned := NewToken[*tracked]("owned")
	tokExt := NewToken[*tracked]("external")

	var log []string
	c := NewContainer()
	require.NoError(t, c.Register(Factory(tokOwned, func(ctx context.Context, deps Deps) (*tracked, error) {
		return &tracked{name: "owned", log: &log}, nil
	})))
	require.NoError(t, c.Register(Factory(tokExt, func(ctx context.Context, deps Deps) (*tracked, error) {
		return &tracked{name: "external", log: &log}, nil
	}, External())))
	require.NoError(t, c.Initialize(context.Background()))

	require.NoError(t, c.Destroy(context.Background()))
	assert.Equal(t, []string{"owned"}, log)
}

func TestContainerDestroy_CollectsAllFailures(t *testing.T) {
	tokA := NewToken[*tracked]("a")
	tokB := NewToken[*tracked]("b")
	tokC := NewToken[*tracked]("c")

	var log []string
	c := NewContainer()
	require.NoError(t, c.Register(Factory(tokA, func(ctx context.Context, deps Deps) (*tracked, error) {
		return &tracked{name: "a", log: &log, fail: true}, nil
	})))
	require.NoError(t, c.Register(Factory(tokB, func(ctx context.Context, deps Deps) (*tracked, error) {
		return &tracked{name: "b", log: &log}, nil
	})))
	require.NoError(t, c.Register(Factory(tokC, func(ctx context.Context, deps Deps) (*tracked, error) {
		return &tracked{name: "c", log: &log, fail: true}, nil
	})))
	require.NoError(t, c.Initialize(context.Background()))

	err := c.Destroy(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a teardown failed")
	assert.Contains(t, err.Error(), "c teardown failed")
	// Every hook ran despite the failures.
	assert.Equal(t, []string{"c", "b", "a"}, log)
	assert.Equal(t, StateDestroyed, c.State())

	// A destroyed container is done for good.
	assert.NoError(t, c.Destroy(context.Background()))
	_, err = c.Resolve(context.Background(), tokA.Key())
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestContainerInstance_InitHook(t *testing.T) {
	tok := NewToken[*hooked]("hooked")
	c := NewContainer()
	require.NoError(t, c.Register(Factory(tok, func(ctx context.Context, deps Deps) (*hooked, error) {
		return &hooked{}, nil
	})))
	require.NoError(t, c.Initialize(context.Background()))

	h, err := ResolveAs(context.Background(), c, tok)
	require.NoError(t, err)
	assert.Equal(t, 1, h.initCount)
}

func TestContainerInstance_InitHookFailure(t *testing.T) {
	tok := NewToken[*hooked]("broken")
	c := NewContainer()

	calls := 0
	require.NoError(t, c.Register(Factory(tok, func(ctx context.Context, deps Deps) (*hooked, error) {
		calls++
		return &hooked{fail: true}, nil
	}, Lazy())))
	require.NoError(t, c.Initialize(context.Background()))

	_, err := c.Resolve(context.Background(), tok.Key())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup failed")

	// The failed instance was not cached; the next resolve rebuilds.
	_, err = c.Resolve(context.Background(), tok.Key())
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestContainerInstance_ExternalSkipsInitHook(t *testing.T) {
	tok := NewToken[*hooked]("external")
	c := NewContainer()
	require.NoError(t, c.Register(Factory(tok, func(ctx context.Context, deps Deps) (*hooked, error) {
		return &hooked{}, nil
	}, External())))
	require.NoError(t, c.Initialize(context.Background()))

	h, err := ResolveAs(context.Background(), c, tok)
	require.NoError(t, err)
	assert.Equal(t, 0, h.initCount)
}

func TestContainerUnregister(t *testing.T) {
	tok := NewToken[string]("gone")
	c := NewContainer()
	require.NoError(t, c.Register(Value(tok, "x")))
	require.NoError(t, c.Initialize(context.Background()))

	_, err := c.Resolve(context.Background(), tok.Key())
	require.NoError(t, err)

	require.NoError(t, c.Unregister(tok.Key()))
	_, err = c.Resolve(context.Background(), tok.Key())
	assert.ErrorIs(t, err, ErrProviderNotFound)
	assert.False(t, c.Has(tok.Key()))

	err = c.Unregister(tok.Key())
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestContainerHas_WalksParentChain(t *testing.T) {
	tok := NewToken[string]("up")
	parent := NewContainer()
	require.NoError(t, parent.Register(Value(tok, "x")))

	child := parent.NewChild()
	assert.True(t, child.Has(tok.Key()))
	assert.False(t, child.Has(NewToken[string]("nowhere").Key()))
}
