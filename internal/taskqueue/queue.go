// Package taskqueue implements the Task Queue Set: N bounded MPMC ring
// buffers, one per worker, with lock-free CAS push/pop and condition-variable
// based blocking for workers that run dry.
//
// Go has no direct futex primitive (the original engine parks on
// os::Futex::waitInfinite/wakeAll); this is rendered with a sync.Cond guarded
// by a small mutex per queue, woken only when the wait flag was actually
// observed set - the same "only wake if someone is listening" discipline the
// original applies to avoid needless syscalls, here avoiding needless lock
// acquisitions on the hot push path instead.
//
// © 2025 voxen-sub000 authors. MIT License.
package taskqueue

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultRingSize is the per-queue capacity used when callers don't need a
// custom size. Must be a power of two (masking, not modulo, indexes slots).
const DefaultRingSize = 1024

// MinRingSize is the smallest ring size New accepts.
const MinRingSize = 256

const (
	indexBits   = 31
	produceMask = uint64(1)<<indexBits - 1
	waitFlagBit = uint64(1) << indexBits
)

// packedIndex mirrors the original's bitfield-packed ProduceConsumeIndex:
// produce count in the low 31 bits of the low word, wait-flag in bit 31 of
// the low word; consume count in the low 31 bits of the high word, stop-flag
// in bit 31 of the high word. A single atomic.Uint64 carries all four.
type packedIndex = uint64

func pack(produce uint32, wait bool, consume uint32, stop bool) packedIndex {
	lo := uint64(produce) & produceMask
	if wait {
		lo |= waitFlagBit
	}
	hi := uint64(consume) & produceMask
	if stop {
		hi |= waitFlagBit
	}
	return lo | (hi << 32)
}

func unpack(p packedIndex) (produce uint32, wait bool, consume uint32, stop bool) {
	lo := p & 0xFFFFFFFF
	hi := p >> 32
	produce = uint32(lo & produceMask)
	wait = lo&waitFlagBit != 0
	consume = uint32(hi & produceMask)
	stop = hi&waitFlagBit != 0
	return
}

// Queue is a single bounded MPMC ring buffer of *T slots.
type Queue[T any] struct {
	size  uint32
	mask  uint32
	slots []atomic.Pointer[T]
	index atomic.Uint64

	wakeMu sync.Mutex
	wakeCv *sync.Cond

	logger        *zap.Logger
	lastWarn      time.Time
	lastWarnMu    sync.Mutex
	overflowSleep time.Duration
}

func newQueue[T any](size uint32, logger *zap.Logger) *Queue[T] {
	q := &Queue[T]{
		size:          size,
		mask:          size - 1,
		slots:         make([]atomic.Pointer[T], size),
		logger:        logger,
		overflowSleep: 100 * time.Microsecond,
	}
	q.wakeCv = sync.NewCond(&q.wakeMu)
	return q
}

// Set is a fixed collection of Queue[T], one per worker.
type Set[T any] struct {
	queues []*Queue[T]
	logger *zap.Logger
}

// NewSet builds a Set with numQueues ring buffers of ringSize capacity each.
// ringSize must be a power of two >= MinRingSize; it is clamped/rounded up
// otherwise.
func NewSet[T any](numQueues int, ringSize uint32, logger *zap.Logger) *Set[T] {
	if ringSize < MinRingSize {
		ringSize = MinRingSize
	}
	if ringSize&(ringSize-1) != 0 {
		// Round up to next power of two.
		v := uint32(1)
		for v < ringSize {
			v <<= 1
		}
		ringSize = v
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Set[T]{
		queues: make([]*Queue[T], numQueues),
		logger: logger,
	}
	for i := range s.queues {
		s.queues[i] = newQueue[T](ringSize, logger)
	}
	return s
}

// NumQueues returns the number of queues in the set.
func (s *Set[T]) NumQueues() int { return len(s.queues) }

// Stopped reports whether RequestStopAll has already been called, without
// popping anything. Lets a caller distinguish "queue momentarily empty" from
// "queue shut down" when polling with TryPop instead of PopOrWait.
func (s *Set[T]) Stopped(queueID int) bool {
	_, _, _, stop := unpack(s.queues[queueID].index.Load())
	return stop
}

// Depth returns an approximate (racy-by-design, diagnostics only) number of
// pending items in the given queue.
func (s *Set[T]) Depth(queue int) int {
	idx := s.queues[queue].index.Load()
	produce, _, consume, _ := unpack(idx)
	return int(produce - consume)
}

func (q *Queue[T]) warnOverflow(queueID int) {
	q.lastWarnMu.Lock()
	now := time.Now()
	shouldWarn := q.lastWarn.IsZero() || now.Sub(q.lastWarn) > 5*time.Second
	if shouldWarn {
		q.lastWarn = now
	}
	q.lastWarnMu.Unlock()

	if shouldWarn && q.logger != nil {
		q.logger.Warn("task queue overflow; workers overwhelmed",
			zap.Int("queue", queueID))
	}
	time.Sleep(q.overflowSleep)
}

// Push enqueues handle onto the given queue, blocking (with a throttled
// overflow warning) while the ring is full. Panics if handle is nil - the
// original asserts on a null task handle at the same call site.
func (s *Set[T]) Push(queueID int, handle *T) {
	if handle == nil {
		panic("taskqueue: Push called with nil handle")
	}

	q := s.queues[queueID]
	idx := q.index.Load()

	for {
		produce, _, consume, stop := unpack(idx)

		if consume+q.size == produce {
			q.warnOverflow(queueID)
			idx = q.index.Load()
			continue
		}

		slot := &q.slots[produce&q.mask]
		wasWaiting := false
		if _, wait, _, _ := unpack(idx); wait {
			wasWaiting = true
		}

		if slot.Load() != nil {
			// Stale reader hasn't cleared this slot yet; reload and retry.
			idx = q.index.Load()
			continue
		}

		next := pack(produce+1, false, consume, stop)
		if !q.index.CompareAndSwap(idx, next) {
			idx = q.index.Load()
			continue
		}

		slot.Store(handle)
		if wasWaiting {
			q.wakeMu.Lock()
			q.wakeCv.Broadcast()
			q.wakeMu.Unlock()
		}
		return
	}
}

// TryPop returns the oldest queued item, or nil if the queue is empty or
// stopped.
func (s *Set[T]) TryPop(queueID int) *T {
	return s.queues[queueID].pop(false)
}

// PopOrWait returns the oldest queued item, blocking until one is available
// or the queue is stopped (in which case it returns nil).
func (s *Set[T]) PopOrWait(queueID int) *T {
	return s.queues[queueID].pop(true)
}

func (q *Queue[T]) pop(wait bool) *T {
	idx := q.index.Load()

	for {
		produce, waitFlag, consume, stop := unpack(idx)

		if stop {
			return nil
		}

		if produce == consume {
			if !wait {
				return nil
			}

			next := pack(produce, true, consume, stop)
			if !q.index.CompareAndSwap(idx, next) {
				idx = q.index.Load()
				continue
			}

			q.wakeMu.Lock()
			for {
				cur := q.index.Load()
				p2, w2, c2, s2 := unpack(cur)
				if s2 || p2 != c2 {
					break
				}
				_ = w2
				q.wakeCv.Wait()
			}
			q.wakeMu.Unlock()

			idx = q.index.Load()
			continue
		}

		slot := &q.slots[consume&q.mask]
		if slot.Load() == nil {
			idx = q.index.Load()
			continue
		}

		next := pack(produce, waitFlag, consume+1, false)
		if !q.index.CompareAndSwap(idx, next) {
			idx = q.index.Load()
			continue
		}

		return slot.Swap(nil)
	}
}

// RequestStopAll marks every queue in the set as stopped and wakes any
// blocked poppers. Stop is final: once set, Push/Pop behavior for that queue
// never returns to normal operation.
func (s *Set[T]) RequestStopAll() {
	for _, q := range s.queues {
		idx := q.index.Load()
		for {
			produce, wait, consume, _ := unpack(idx)
			next := pack(produce, false, consume, true)
			if q.index.CompareAndSwap(idx, next) {
				if wait {
					q.wakeMu.Lock()
					q.wakeCv.Broadcast()
					q.wakeMu.Unlock()
				}
				break
			}
			idx = q.index.Load()
		}
	}
}

// DrainRemaining pops and discards every still-queued item across all
// queues, ignoring the stop flag. Intended for orderly shutdown after
// RequestStopAll, mirroring the original TaskQueueSet destructor's
// best-effort drain of leftover handles.
func (s *Set[T]) DrainRemaining(release func(*T)) {
	for _, q := range s.queues {
		for {
			h := q.drainOne()
			if h == nil {
				break
			}
			if release != nil {
				release(h)
			}
		}
	}
}

// drainOne pops one item ignoring the stop flag, or returns nil if empty.
func (q *Queue[T]) drainOne() *T {
	idx := q.index.Load()
	for {
		produce, waitFlag, consume, stop := unpack(idx)
		if produce == consume {
			return nil
		}

		slot := &q.slots[consume&q.mask]
		if slot.Load() == nil {
			idx = q.index.Load()
			continue
		}

		next := pack(produce, waitFlag, consume+1, stop)
		if !q.index.CompareAndSwap(idx, next) {
			idx = q.index.Load()
			continue
		}

		return slot.Swap(nil)
	}
}
