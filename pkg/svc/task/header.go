// Package task implements the Task System: functor/continuation tasks with
// dependency wait-sets, refcounted handles, and a pool of worker goroutines
// pulling from a Task Queue Set.
//
// © 2025 voxen-sub000 authors. MIT License.
package task

import (
	"sync"
	"sync/atomic"
)

// Atomic control word layout, ported directly from the original engine's
// TaskHeader::atomic_word bitfield (see task_handle_private.hpp):
//
//	bits [15:0]   refcount (starts at 1, for the header pointer itself)
//	bit  16       futex/cond-wait flag (someone is blocked in Wait())
//	bit  17       finished flag
//	bits [19:18]  unused, must stay zero
//	bits [31:20]  continuation count (pending tasks parented to this one)
const (
	wordRefCountMask     = uint32(1)<<16 - 1
	wordWaitingBit       = uint32(1) << 16
	wordFinishedBit      = uint32(1) << 17
	wordContinuationMask = uint32(0xFFF) << 20
	wordContinuationAdd  = uint32(1) << 20
	wordContinuationRef  = wordContinuationAdd | 1
)

// Func is a task's unit of work. Panics are recovered by the worker loop and
// surfaced through the task handle (see service_test.go / OQ-2 in DESIGN.md)
// instead of being silently swallowed.
type Func func(ctx *Context)

// Header holds every piece of control state for one task: its functor, its
// wait-set, its parent link, and the atomic word tracking refcount/
// completion/continuations. Headers are plain heap objects (see DESIGN.md for
// why this rework does not route them through the arena/genring allocator
// the teacher's cache package uses).
type Header struct {
	atomicWord atomic.Uint32

	fn Func

	// waitCounters lists counters that must all complete before fn may run.
	// Trimmed in place as counters complete; len() reaching zero means ready.
	waitCounters []uint64

	// counter is this task's own completion counter, assigned at submission.
	counter uint64

	parent *Header // non-nil if this task is a continuation

	// panicVal stores a recovered panic value, if fn panicked.
	panicVal any

	// asyncErr stores the error a coroutine task's CoroutineFunc returned, if
	// this header was submitted via Builder.EnqueueCoroutineTask. See
	// coroutine.go.
	asyncErr error

	doneMu sync.Mutex
	doneCv *sync.Cond
}

func newHeader(fn Func, waitCounters []uint64, parent *Header) *Header {
	h := &Header{
		atomicWord:   atomic.Uint32{},
		fn:           fn,
		waitCounters: waitCounters,
		parent:       parent,
	}
	h.atomicWord.Store(1)
	h.doneCv = sync.NewCond(&h.doneMu)

	if parent != nil {
		parent.atomicWord.Add(wordContinuationRef)
	}

	return h
}

// hasContinuations reports whether any continuation tasks are still pending
// completion against this header.
func (h *Header) hasContinuations() bool {
	return h.atomicWord.Load()&wordContinuationMask != 0
}

// finished reports whether this task (and all its continuations) completed.
func (h *Header) finished() bool {
	return h.atomicWord.Load()&wordFinishedBit != 0
}

// addRef increments the handle refcount.
func (h *Header) addRef() {
	h.atomicWord.Add(1)
}

// releaseRef decrements the handle refcount. Refcounting here exists purely
// for bookkeeping parity with the original (which uses it to decide when a
// header may be returned to its allocator); this rework relies on the Go
// garbage collector for header lifetime instead, so a ref reaching zero has
// no further effect. Completion and continuation propagation are entirely
// driven by completeHeader, not by refcount.
func (h *Header) releaseRef(_ completer) {
	h.atomicWord.Add(^uint32(0))
}

// completer is the minimal surface Header needs from the counter tracker,
// kept as an interface here to avoid an import cycle with internal/taskcounter.
type completer interface {
	Complete(counter uint64)
}

// completeHeader marks header finished, completes its counter, wakes any
// waiters, and - if header is a continuation - decrements its parent's
// continuation count, recursively completing the parent too if this was its
// last pending continuation. Mirrors doComplete()/ParentTaskHandle::
// onTaskComplete in the original: the counter is marked complete only after
// the finished flag is raised, and waiters are only woken after that.
func completeHeader(h *Header, tracker completer) {
	needWake := h.atomicWord.Or(wordFinishedBit)&wordWaitingBit != 0

	tracker.Complete(h.counter)

	if needWake {
		h.doneMu.Lock()
		h.doneCv.Broadcast()
		h.doneMu.Unlock()
	}

	if h.parent != nil {
		p := h.parent
		h.parent = nil

		left := p.atomicWord.Add(^(wordContinuationAdd - 1))
		if left&wordContinuationMask == 0 {
			completeHeader(p, tracker)
		}
	}
}
