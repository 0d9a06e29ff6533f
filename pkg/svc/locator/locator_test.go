package locator

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Svenny/voxen-sub000/internal/uid"
	"github.com/Svenny/voxen-sub000/internal/voxerr"
)

var (
	uidA = uid.FromU64Pair(1, 0xA)
	uidB = uid.FromU64Pair(1, 0xB)
	uidC = uid.FromU64Pair(1, 0xC)
)

// depService returns a Factory that records its construction in order,
// requesting every UID in deps first and storing whatever they resolve to.
func depService(name string, order *[]string, mu *sync.Mutex, deps ...uid.UID) Factory {
	return func(ctx *Context) (any, error) {
		for _, d := range deps {
			if _, err := ctx.Request(d); err != nil {
				return nil, err
			}
		}
		mu.Lock()
		*order = append(*order, name)
		mu.Unlock()
		return name, nil
	}
}

func TestRequestBuildsDependenciesInOrder(t *testing.T) {
	loc := New()

	var mu sync.Mutex
	var order []string

	must(t, loc.Register(uidC, depService("C", &order, &mu)))
	must(t, loc.Register(uidB, depService("B", &order, &mu, uidC)))
	must(t, loc.Register(uidA, depService("A", &order, &mu, uidB, uidC)))

	inst, err := loc.Request(uidA)
	if err != nil {
		t.Fatalf("Request(A): %v", err)
	}
	if inst.(string) != "A" {
		t.Fatalf("expected instance A, got %v", inst)
	}

	if len(order) != 3 || order[0] != "C" || order[1] != "B" || order[2] != "A" {
		t.Fatalf("expected creation order [C B A], got %v", order)
	}

	if loc.Find(uidB) == nil || loc.Find(uidC) == nil {
		t.Fatal("expected B and C to be findable after A was built")
	}
}

func TestFactoryFailureLeavesDependentsUnconstructed(t *testing.T) {
	loc := New()

	var mu sync.Mutex
	var order []string

	must(t, loc.Register(uidC, depService("C", &order, &mu)))
	must(t, loc.Register(uidB, func(ctx *Context) (any, error) {
		if _, err := ctx.Request(uidC); err != nil {
			return nil, err
		}
		return nil, errors.New("B startup failed")
	}))
	must(t, loc.Register(uidA, depService("A", &order, &mu, uidB)))

	_, err := loc.Request(uidA)
	if err == nil {
		t.Fatal("expected A's request to fail because B's factory failed")
	}

	if loc.Find(uidC) == nil {
		t.Fatal("C completed before B failed, it should still be alive")
	}
	if loc.Find(uidB) != nil {
		t.Fatal("B's factory failed, it should not be findable")
	}
	if loc.Find(uidA) != nil {
		t.Fatal("A was never built, it should not be findable")
	}
	if len(order) != 1 || order[0] != "C" {
		t.Fatalf("expected only C to have completed, got %v", order)
	}
}

func TestDoubleRegistrationFails(t *testing.T) {
	loc := New()
	must(t, loc.Register(uidA, depService("A", &[]string{}, &sync.Mutex{})))

	err := loc.Register(uidA, depService("A2", &[]string{}, &sync.Mutex{}))
	if !errors.Is(err, voxerr.Sentinel(voxerr.AlreadyRegistered)) {
		t.Fatalf("expected AlreadyRegistered, got %v", err)
	}
}

func TestUnresolvedDependencyFails(t *testing.T) {
	loc := New()
	var mu sync.Mutex
	var order []string
	must(t, loc.Register(uidA, depService("A", &order, &mu, uidB)))

	_, err := loc.Request(uidA)
	if !errors.Is(err, voxerr.Sentinel(voxerr.UnresolvedDependency)) {
		t.Fatalf("expected UnresolvedDependency, got %v", err)
	}
}

func TestCircularDependencyDetected(t *testing.T) {
	loc := New()
	var mu sync.Mutex
	var order []string

	must(t, loc.Register(uidA, depService("A", &order, &mu, uidB)))
	must(t, loc.Register(uidB, depService("B", &order, &mu, uidA)))

	_, err := loc.Request(uidA)
	if !errors.Is(err, voxerr.Sentinel(voxerr.CircularDependency)) {
		t.Fatalf("expected CircularDependency requesting A, got %v", err)
	}

	// The other entry point into the same cycle must also report it, even
	// though both services are now cached as Failed.
	_, err = loc.Request(uidB)
	if !errors.Is(err, voxerr.Sentinel(voxerr.CircularDependency)) {
		t.Fatalf("expected CircularDependency requesting B, got %v", err)
	}
}

func TestRecursiveRegistrationFromFactory(t *testing.T) {
	loc := New()
	var mu sync.Mutex
	var order []string

	must(t, loc.Register(uidA, func(ctx *Context) (any, error) {
		if err := loc.Register(uidB, depService("B", &order, &mu)); err != nil {
			return nil, err
		}
		if _, err := ctx.Request(uidB); err != nil {
			return nil, err
		}
		mu.Lock()
		order = append(order, "A")
		mu.Unlock()
		return "A", nil
	}))

	_, err := loc.Request(uidA)
	if err != nil {
		t.Fatalf("Request(A): %v", err)
	}
	if len(order) != 2 || order[0] != "B" || order[1] != "A" {
		t.Fatalf("expected [B A], got %v", order)
	}
}

func TestCrossGoroutineRequestBlocksUntilCreated(t *testing.T) {
	loc := New()

	startedFactory := make(chan struct{})
	releaseFactory := make(chan struct{})

	must(t, loc.Register(uidA, func(ctx *Context) (any, error) {
		close(startedFactory)
		<-releaseFactory
		return "A", nil
	}))

	go func() {
		_, _ = loc.Request(uidA)
	}()

	<-startedFactory

	resultCh := make(chan any, 1)
	go func() {
		inst, _ := loc.Request(uidA)
		resultCh <- inst
	}()

	select {
	case <-resultCh:
		t.Fatal("second Request returned before the factory finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(releaseFactory)

	select {
	case inst := <-resultCh:
		if inst.(string) != "A" {
			t.Fatalf("expected A, got %v", inst)
		}
	case <-time.After(time.Second):
		t.Fatal("second Request never woke up after factory completed")
	}
}

func TestCloseTearsDownInReverseOrder(t *testing.T) {
	loc := New()

	var mu sync.Mutex
	var closeOrder []string

	must(t, loc.Register(uidC, func(ctx *Context) (any, error) {
		return &closingService{name: "C", order: &closeOrder, mu: &mu}, nil
	}))
	must(t, loc.Register(uidB, func(ctx *Context) (any, error) {
		if _, err := ctx.Request(uidC); err != nil {
			return nil, err
		}
		return &closingService{name: "B", order: &closeOrder, mu: &mu}, nil
	}))
	must(t, loc.Register(uidA, func(ctx *Context) (any, error) {
		if _, err := ctx.Request(uidB); err != nil {
			return nil, err
		}
		return &closingService{name: "A", order: &closeOrder, mu: &mu, loc: loc, dep: uidB}, nil
	}))

	if _, err := loc.Request(uidA); err != nil {
		t.Fatalf("Request(A): %v", err)
	}

	if err := loc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if len(closeOrder) != 3 || closeOrder[0] != "A" || closeOrder[1] != "B" || closeOrder[2] != "C" {
		t.Fatalf("expected close order [A B C], got %v", closeOrder)
	}
}

type closingService struct {
	name  string
	order *[]string
	mu    *sync.Mutex
	loc   *Locator
	dep   uid.UID
}

func (c *closingService) Close() error {
	if c.loc != nil {
		// A service's Close may still Find a dependency that has not been
		// torn down yet.
		if c.loc.Find(c.dep) == nil {
			return errors.New("dependency already gone during Close")
		}
	}
	c.mu.Lock()
	*c.order = append(*c.order, c.name)
	c.mu.Unlock()
	return nil
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
