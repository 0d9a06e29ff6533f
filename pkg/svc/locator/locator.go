// Package locator implements the Service Locator: a thread-safe registry of
// lazily constructed, UID-addressed services with dependency cycle
// detection and reverse-creation-order shutdown.
//
// © 2025 voxen-sub000 authors. MIT License.
package locator

import (
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Svenny/voxen-sub000/internal/uid"
	"github.com/Svenny/voxen-sub000/internal/voxerr"
)

// State is a service's lifecycle stage within the locator.
type State int

const (
	RegisteredNotCreated State = iota
	Creating
	Created
	Failed
)

func (s State) String() string {
	switch s {
	case RegisteredNotCreated:
		return "RegisteredNotCreated"
	case Creating:
		return "Creating"
	case Created:
		return "Created"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Closer is implemented by service instances needing ordered teardown.
// Locator.Close calls Close on every created service in the reverse of its
// creation order, so a service's Close can still Find its dependencies.
type Closer interface {
	Close() error
}

// Factory builds one service instance. It receives a Context scoped to this
// construction so it can request its own dependencies; nested requests made
// through that Context (not through a fresh Locator.Request call) extend the
// same cycle-detection chain.
//
// Unlike the original's exception-propagation, a Factory that gets an error
// back from ctx.Request must explicitly return it (or a wrapping error) to
// fail its own construction - Go has no stack unwinding to do this for you.
type Factory func(ctx *Context) (any, error)

type serviceEntry struct {
	state   State
	factory Factory
	instance any
	err     error
}

// Locator is the registry itself. All registration/creation transitions
// are serialized through a single mutex + condition variable, matching the
// original's "creating thread blocks everyone else who wants the same
// service" behavior exactly: find/register never blocks (they just check or
// set a state), but Request for a service another goroutine is already
// constructing waits on the cond var until that construction finishes.
type Locator struct {
	mu   sync.Mutex
	cond *sync.Cond

	services map[uid.UID]*serviceEntry
	// order records UIDs in the order they reached Created, so Close can
	// tear down in reverse.
	order []uid.UID

	logger *zap.Logger
}

// Option configures a Locator.
type Option func(*Locator)

// WithLogger overrides the locator's logger (default: a no-op logger).
func WithLogger(l *zap.Logger) Option {
	return func(loc *Locator) { loc.logger = l }
}

// New constructs an empty Locator.
func New(opts ...Option) *Locator {
	loc := &Locator{
		services: make(map[uid.UID]*serviceEntry),
		logger:   zap.NewNop(),
	}
	loc.cond = sync.NewCond(&loc.mu)
	for _, opt := range opts {
		opt(loc)
	}
	return loc
}

// Register records factory as the way to build the service identified by
// id. Returns voxerr.AlreadyRegistered if id already has a factory.
func (l *Locator) Register(id uid.UID, factory Factory) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.services[id]; exists {
		return voxerr.New(voxerr.AlreadyRegistered, "Locator.Register")
	}
	l.services[id] = &serviceEntry{state: RegisteredNotCreated, factory: factory}
	return nil
}

// Find returns the service instance for id if it has already been created,
// or nil otherwise (including "never registered" and "registered but not
// yet requested").
func (l *Locator) Find(id uid.UID) any {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.services[id]
	if !ok || e.state != Created {
		return nil
	}
	return e.instance
}

// Request returns the service instance for id, building it (and any of its
// unbuilt dependencies, transitively) on first request. Safe to call
// concurrently: a second caller requesting a service already under
// construction blocks until that construction finishes.
func (l *Locator) Request(id uid.UID) (any, error) {
	return l.request(id, nil)
}

// Context is passed to a running Factory, scoping its nested Request calls
// to the same creation chain as its own construction, for cycle detection.
type Context struct {
	loc   *Locator
	chain []uid.UID
}

// Request resolves a dependency from within a running factory.
func (c *Context) Request(id uid.UID) (any, error) {
	return c.loc.request(id, c.chain)
}

func (l *Locator) request(id uid.UID, chain []uid.UID) (any, error) {
	l.mu.Lock()

	for {
		e, ok := l.services[id]
		if !ok {
			l.mu.Unlock()
			return nil, voxerr.New(voxerr.UnresolvedDependency, "Locator.Request")
		}

		switch e.state {
		case Created:
			inst := e.instance
			l.mu.Unlock()
			return inst, nil

		case Failed:
			err := e.err
			l.mu.Unlock()
			return nil, err

		case Creating:
			for _, c := range chain {
				if c == id {
					l.mu.Unlock()
					return nil, voxerr.New(voxerr.CircularDependency, "Locator.Request")
				}
			}
			l.cond.Wait()
			continue

		case RegisteredNotCreated:
			e.state = Creating
			l.mu.Unlock()

			childChain := make([]uid.UID, len(chain), len(chain)+1)
			copy(childChain, chain)
			childChain = append(childChain, id)

			inst, err := l.runFactory(e.factory, childChain)

			l.mu.Lock()
			if err != nil {
				e.state = Failed
				e.err = err
			} else {
				e.state = Created
				e.instance = inst
				l.order = append(l.order, id)
			}
			l.cond.Broadcast()
			l.mu.Unlock()

			return inst, err
		}
	}
}

func (l *Locator) runFactory(factory Factory, chain []uid.UID) (inst any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = voxerr.Wrap(voxerr.Failed, "Locator factory", panicError{r})
		}
	}()
	return factory(&Context{loc: l, chain: chain})
}

type panicError struct{ v any }

func (p panicError) Error() string {
	if e, ok := p.v.(error); ok {
		return e.Error()
	}
	if s, ok := p.v.(string); ok {
		return s
	}
	return "service factory panicked"
}

// Close tears down every created service in the reverse of its creation
// order, joining every service's Close error (for services implementing
// Closer) into one. A service's Close may still Find its dependencies:
// Close removes no entry from the registry, so every service stays
// findable during and after the pass.
func (l *Locator) Close() error {
	l.mu.Lock()
	order := l.order
	l.order = nil
	l.mu.Unlock()

	var errs error
	for i := len(order) - 1; i >= 0; i-- {
		l.mu.Lock()
		e := l.services[order[i]]
		l.mu.Unlock()

		if c, ok := e.instance.(Closer); ok {
			errs = multierr.Append(errs, c.Close())
		}
	}
	return errs
}
