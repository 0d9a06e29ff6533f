package task

// trimThreshold is the wait-set size at which Builder eagerly asks the
// counter tracker to drop already-completed dependencies before they are
// copied onto a new task header, mirroring TRIM_THRESHOLD in the original
// task_builder.cpp (there 32, to bound the cost of the linear drop-scan
// against the benefit of a smaller header).
const trimThreshold = 32

// Builder accumulates a wait-set and produces tasks against one TaskService.
// A Builder obtained from a running task's Context (see Context.NewBuilder)
// parents every task it creates to that running task, making them
// continuations; a Builder obtained directly from Service.NewBuilder creates
// independent root tasks.
type Builder struct {
	svc          *Service
	parent       *Header
	waitCounters []uint64
}

// AddWait adds a dependency on counter. A zero counter is the "already
// satisfied" sentinel (Service counters are allocated starting above zero,
// see internal/taskcounter) and is silently dropped rather than stored.
func (b *Builder) AddWait(counter uint64) *Builder {
	if counter != 0 {
		b.waitCounters = append(b.waitCounters, counter)
	}
	return b
}

// AddWaitAll adds dependencies on every counter in counters.
func (b *Builder) AddWaitAll(counters []uint64) *Builder {
	for _, c := range counters {
		b.AddWait(c)
	}
	return b
}

func (b *Builder) trimmedWaitCounters() []uint64 {
	if len(b.waitCounters) == 0 {
		return nil
	}
	if len(b.waitCounters) >= trimThreshold {
		n := b.svc.tracker.TrimComplete(b.waitCounters)
		b.waitCounters = b.waitCounters[:n]
	}
	if len(b.waitCounters) == 0 {
		return nil
	}
	out := make([]uint64, len(b.waitCounters))
	copy(out, b.waitCounters)
	return out
}

// EnqueueTask submits fn for execution once every added wait counter has
// completed. No handle is returned; the task's single implicit reference is
// transferred straight into the worker queue.
func (b *Builder) EnqueueTask(fn Func) uint64 {
	h := newHeader(fn, b.trimmedWaitCounters(), b.parent)
	return b.svc.enqueueTask(h)
}

// EnqueueTaskWithHandle submits fn like EnqueueTask but returns a Handle the
// caller can Wait() on. This adds a second reference before handing the
// first off to the queue, so caller and queue each own an independent ref.
func (b *Builder) EnqueueTaskWithHandle(fn Func) Handle {
	h := newHeader(fn, b.trimmedWaitCounters(), b.parent)
	h.addRef()
	b.svc.enqueueTask(h)
	return Handle{h: h}
}

// EnqueueSyncPoint submits a no-op task that completes once every added wait
// counter has completed, and returns a handle to it. Useful as a join point
// over a batch of otherwise-unrelated tasks.
func (b *Builder) EnqueueSyncPoint() Handle {
	return b.EnqueueTaskWithHandle(func(*Context) {})
}

// NewBuilder starts a Builder for continuations of the task currently
// executing in ctx.
func (c *Context) NewBuilder() *Builder {
	return &Builder{svc: c.svc, parent: c.self}
}
