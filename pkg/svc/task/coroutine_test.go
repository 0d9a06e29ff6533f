package task

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCoroutineTaskCompletesAfterAsyncWork(t *testing.T) {
	svc := newTestService(t)

	started := make(chan struct{})
	release := make(chan struct{})

	h := svc.NewBuilder().EnqueueCoroutineTask(func() error {
		close(started)
		<-release
		return nil
	})

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("coroutine never started")
	}

	if h.Finished() {
		t.Fatal("coroutine task reported finished before its async work returned")
	}

	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !h.Finished() {
		t.Fatal("expected Finished() true after Wait")
	}
	if err := h.Err(); err != nil {
		t.Fatalf("expected nil Err, got %v", err)
	}
}

func TestCoroutineTaskSurfacesAsyncError(t *testing.T) {
	svc := newTestService(t)

	wantErr := errors.New("coroutine boom")
	h := svc.NewBuilder().EnqueueCoroutineTask(func() error {
		return wantErr
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if err := h.Err(); !errors.Is(err, wantErr) {
		t.Fatalf("expected Err to wrap %v, got %v", wantErr, err)
	}
}

func TestCoroutineTaskAsContinuationParentsCorrectly(t *testing.T) {
	svc := newTestService(t)

	done := make(chan struct{})
	parent := svc.NewBuilder().EnqueueTaskWithHandle(func(ctx *Context) {
		ctx.NewBuilder().EnqueueCoroutineTask(func() error {
			<-done
			return nil
		})
	})

	// Give the coroutine task a moment to be submitted as parent's
	// continuation before asserting it blocks parent completion.
	time.Sleep(20 * time.Millisecond)
	if parent.Finished() {
		t.Fatal("parent should not finish before its coroutine continuation does")
	}
	close(done)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := parent.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}
