package task

import (
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Svenny/voxen-sub000/internal/envconfig"
	"github.com/Svenny/voxen-sub000/internal/taskcounter"
	"github.com/Svenny/voxen-sub000/internal/taskqueue"
)

// Config controls Service construction. Zero-value fields fall back to
// environment-overridable defaults, mirroring the patchConfig() defaulting
// pass in the original task_service.cpp.
type Config struct {
	// NumWorkers is the number of worker goroutines (and matching task
	// queues, one per worker). Defaults to runtime.NumCPU()-2 (at least 1),
	// overridable via VOXEN_TASK_WORKERS, if unset/non-positive.
	NumWorkers int
	// RingSize is the per-worker queue capacity. Defaults to
	// taskqueue.DefaultRingSize.
	RingSize uint32
}

func (c Config) withDefaults() Config {
	if c.NumWorkers <= 0 {
		c.NumWorkers = envconfig.Int("VOXEN_TASK_WORKERS", max(runtime.NumCPU()-2, 1))
	}
	if c.RingSize == 0 {
		c.RingSize = taskqueue.DefaultRingSize
	}
	return c
}

// Option configures optional Service behavior.
type Option func(*Service)

// WithLogger sets the logger used for queue-overflow warnings and recovered
// task panics. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// Service is the Task System's scheduler: a counter tracker, a set of
// bounded MPMC queues (one per worker), and the worker goroutines draining
// them. It mirrors TaskService in the original engine.
type Service struct {
	tracker *taskcounter.Tracker
	queues  *taskqueue.Set[Header]
	logger  *zap.Logger

	rr atomic.Uint64
	wg sync.WaitGroup

	workerErrs []error

	closeOnce sync.Once
	closeErr  error
}

// New starts a Service with cfg.NumWorkers worker goroutines, each draining
// its own queue.
func New(cfg Config, opts ...Option) (*Service, error) {
	cfg = cfg.withDefaults()

	s := &Service{
		tracker: taskcounter.New(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.queues = taskqueue.NewSet[Header](cfg.NumWorkers, cfg.RingSize, s.logger)
	s.workerErrs = make([]error, cfg.NumWorkers)

	s.wg.Add(cfg.NumWorkers)
	for i := 0; i < cfg.NumWorkers; i++ {
		go func(id int) {
			defer s.wg.Done()
			s.workerErrs[id] = s.runWorker(id)
		}(i)
	}

	return s, nil
}

// NewBuilder starts a Builder for a new root-level task tree (no parent),
// submitted to this service.
func (s *Service) NewBuilder() *Builder {
	return &Builder{svc: s}
}

// NumWorkers reports the number of worker goroutines draining this service.
func (s *Service) NumWorkers() int { return s.queues.NumQueues() }

// enqueueTask assigns h a completion counter and pushes it to one of the
// service's queues, round-robin. Returns the assigned counter.
func (s *Service) enqueueTask(h *Header) uint64 {
	counter := s.tracker.Allocate()
	h.counter = counter

	queueID := int(s.rr.Add(1)-1) % s.queues.NumQueues()
	s.queues.Push(queueID, h)

	return counter
}

// Close requests every worker to stop, waits for them to exit, releases the
// implicit reference held by any task still sitting unexecuted in a queue,
// and joins every worker's shutdown outcome into a single error (nil unless
// a worker hit an internal scheduling bug - task functor panics are already
// recovered and surfaced through Handle.Err, not through Close). Safe to
// call more than once.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		s.queues.RequestStopAll()
		s.wg.Wait()

		s.queues.DrainRemaining(func(h *Header) {
			h.releaseRef(s.tracker)
		})

		s.closeErr = multierr.Combine(s.workerErrs...)
	})
	return s.closeErr
}
