package task

import "time"

// coroutinePollInterval bounds how often a suspended coroutine task's
// resumption task re-checks its completion channel, mirroring slave.go's
// waitingPollInterval: a short, fixed backoff rather than a busy spin.
const coroutinePollInterval = time.Millisecond

// CoroutineFunc is the unit of asynchronous work a coroutine task wraps. It
// runs on its own goroutine, separate from the worker pool, and reports
// completion by returning.
type CoroutineFunc func() error

// EnqueueCoroutineTask submits fn as a coroutine task: the original engine's
// TaskHeader carries a discriminant selecting between a plain functor and a
// suspended coroutine, resumed by re-submitting it to the scheduler. Go has
// no native coroutine/suspend primitive equivalent to a C++20 coroutine, so
// this renders the same idea as a functor that spawns fn on its own
// goroutine and returns immediately (freeing the worker), plus a chain of
// short-lived "resumption" tasks - continuations of the coroutine task -
// that poll fn's completion channel and either finish (if fn has returned)
// or re-submit themselves after a short backoff (if not). Completion
// cascades up the continuation chain exactly like any other continuation,
// so Handle.Wait/Finished/Err on the returned Handle behave identically to
// a plain task: the handle only reports finished once fn has actually
// returned, never merely suspended.
func (b *Builder) EnqueueCoroutineTask(fn CoroutineFunc) Handle {
	resume := make(chan error, 1)

	h := newHeader(nil, b.trimmedWaitCounters(), b.parent)
	h.fn = func(ctx *Context) {
		go func() { resume <- fn() }()
		ctx.NewBuilder().EnqueueTask(resumeCoroutine(h, resume))
	}
	h.addRef()

	b.svc.enqueueTask(h)
	return Handle{h: h}
}

// resumeCoroutine builds the resumption Func for a coroutine task's header h
// waiting on resume. It is re-submitted (as a fresh continuation, under a
// fresh header) by itself until resume has a value ready.
func resumeCoroutine(h *Header, resume chan error) Func {
	return func(ctx *Context) {
		select {
		case err := <-resume:
			h.asyncErr = err
		default:
			time.Sleep(coroutinePollInterval)
			ctx.NewBuilder().EnqueueTask(resumeCoroutine(h, resume))
		}
	}
}
