package task

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// drainInterval is how many tasks a worker executes between full rescans of
// its local waiting list, mirroring the periodic drain heuristic in the
// original task_service_slave.cpp: checking every popped-but-blocked task's
// dependencies on every iteration would be wasteful, so the worker instead
// batches the rescan.
const drainInterval = 50

// waitingPollInterval bounds how long a worker blocks on its own queue while
// it is holding back tasks whose dependencies are satisfied by *other*
// workers: PopOrWait would otherwise park the worker indefinitely even
// though one of its own waiting tasks may already be runnable.
const waitingPollInterval = time.Millisecond

// runWorker is one worker goroutine's body: pop tasks from its queue,
// execute those whose dependencies are satisfied, and hold the rest in a
// local waiting list until a dependency trim frees them up. Returns non-nil
// only if the worker hit an internal scheduling bug (recovered panic in the
// scheduling loop itself, as opposed to a task functor panic, which is
// recovered per-task and surfaced through Handle.Err instead).
func (s *Service) runWorker(id int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task worker %d: internal panic: %v", id, r)
			s.logger.Error("task worker crashed", zap.Int("worker", id), zap.Any("panic", r))
		}
	}()

	var waiting []*Header
	executed := 0

	for {
		h := popReady(&waiting, s.tracker)
		if h == nil {
			if len(waiting) == 0 {
				h = s.queues.PopOrWait(id)
				if h == nil {
					// Stopped: release refs on anything left waiting and exit.
					for _, w := range waiting {
						w.releaseRef(s.tracker)
					}
					return nil
				}
			} else {
				// Some locally held tasks are blocked on counters that
				// complete on another worker; don't block indefinitely on
				// our own (possibly empty) queue, or we'd never notice them
				// becoming ready. Poll our queue with a short timeout
				// instead.
				h = s.queues.TryPop(id)
				if h == nil {
					if s.queues.Stopped(id) {
						for _, w := range waiting {
							w.releaseRef(s.tracker)
						}
						return nil
					}
					time.Sleep(waitingPollInterval)
					continue
				}
			}
		}

		if !dependenciesReady(h, s.tracker) {
			waiting = append(waiting, h)
			continue
		}

		s.execute(h)

		executed++
		if executed >= drainInterval {
			var ready []*Header
			waiting, ready = rescanWaiting(waiting, s.tracker)
			for _, r := range ready {
				s.execute(r)
			}
			executed = 0
		}
	}
}

// dependenciesReady trims h's wait-set against already-completed counters
// and reports whether none remain.
func dependenciesReady(h *Header, tracker completerTrim) bool {
	if len(h.waitCounters) == 0 {
		return true
	}
	n := tracker.TrimComplete(h.waitCounters)
	h.waitCounters = h.waitCounters[:n]
	return n == 0
}

// completerTrim is the tracker surface the slave loop needs beyond
// completer, again interfaced here to avoid an import cycle.
type completerTrim interface {
	completer
	TrimComplete(counters []uint64) int
}

// popReady removes and returns the first ready header from waiting, if any.
func popReady(waiting *[]*Header, tracker completerTrim) *Header {
	w := *waiting
	for i, h := range w {
		if dependenciesReady(h, tracker) {
			w[i] = w[len(w)-1]
			*waiting = w[:len(w)-1]
			return h
		}
	}
	return nil
}

// rescanWaiting re-checks every header's dependencies, splitting waiting
// into the subset still blocked and the subset now ready to execute. The
// original applies the same "drain flushes ready work right away" rule
// rather than leaving newly-ready tasks parked until the next pop.
func rescanWaiting(waiting []*Header, tracker completerTrim) (still, ready []*Header) {
	still = waiting[:0]
	for _, h := range waiting {
		if dependenciesReady(h, tracker) {
			ready = append(ready, h)
			continue
		}
		still = append(still, h)
	}
	return still, ready
}

// execute runs h.fn, recovering and storing any panic, then completes the
// task (unless it spawned continuations still pending) and releases the
// queue's implicit reference.
func (s *Service) execute(h *Header) {
	ctx := &Context{svc: s, self: h}

	func() {
		defer func() {
			if r := recover(); r != nil {
				h.panicVal = r
			}
		}()
		h.fn(ctx)
	}()

	if !h.hasContinuations() {
		completeHeader(h, s.tracker)
	}
	h.releaseRef(s.tracker)
}
