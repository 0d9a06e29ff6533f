package task

import (
	"context"

	"github.com/Svenny/voxen-sub000/internal/voxerr"
)

// Handle is a shared, refcounted reference to a submitted task. It supports a
// non-blocking Finished query, a blocking Wait, and read access to the
// underlying completion counter.
type Handle struct {
	h *Header
}

// Finished reports whether the task (and all its continuations) completed.
func (t Handle) Finished() bool {
	return t.h.finished()
}

// Counter returns the completion counter assigned to this task at submission.
func (t Handle) Counter() uint64 { return t.h.counter }

// Wait blocks until the task finishes or ctx is done. The task itself is
// never cancelled by ctx - per §5, tasks are not cancellable once submitted -
// only the caller's wait is bounded. Returns ctx.Err() on a timed-out/
// cancelled wait, or nil once the task has actually finished.
func (t Handle) Wait(ctx context.Context) error {
	if t.h.finished() {
		return nil
	}

	t.h.atomicWord.Or(wordWaitingBit)

	done := make(chan struct{})
	go func() {
		t.h.doneMu.Lock()
		for !t.h.finished() {
			t.h.doneCv.Wait()
		}
		t.h.doneMu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns a non-nil *voxerr.Error wrapping voxerr.TaskPanicked if the
// task's functor panicked (see OQ-2 in DESIGN.md), or the raw error a
// coroutine task's CoroutineFunc returned (see coroutine.go), if any. Must
// only be called after Finished() is true; returns nil for a task that is
// still running or that completed normally.
func (t Handle) Err() error {
	if !t.h.finished() {
		return nil
	}
	if t.h.panicVal != nil {
		return voxerr.Wrap(voxerr.TaskPanicked, "Task.Err", panicError{t.h.panicVal})
	}
	return t.h.asyncErr
}

type panicError struct{ v any }

func (p panicError) Error() string { return formatPanic(p.v) }

func formatPanic(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	if s, ok := v.(string); ok {
		return s
	}
	return "task panicked"
}

