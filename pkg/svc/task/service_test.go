package task

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := New(Config{NumWorkers: 2, RingSize: 256})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestEnqueueTaskWithHandleRuns(t *testing.T) {
	svc := newTestService(t)

	var ran atomic.Bool
	h := svc.NewBuilder().EnqueueTaskWithHandle(func(*Context) {
		ran.Store(true)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !ran.Load() {
		t.Fatal("task never ran")
	}
	if !h.Finished() {
		t.Fatal("expected Finished() true after Wait")
	}
	if err := h.Err(); err != nil {
		t.Fatalf("expected nil Err, got %v", err)
	}
}

func TestDependencyChainRunsInOrder(t *testing.T) {
	svc := newTestService(t)

	var mu sync.Mutex
	var order []int32
	appendOrdered := func(v int32) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, v)
	}

	c1 := svc.NewBuilder().EnqueueTask(func(*Context) {
		appendOrdered(1)
	})

	h2 := svc.NewBuilder().AddWait(c1).EnqueueTaskWithHandle(func(*Context) {
		appendOrdered(2)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h2.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected [1 2], got %v", order)
	}
}

func TestContinuationCompletesParentLast(t *testing.T) {
	svc := newTestService(t)

	var childRan atomic.Bool
	parent := svc.NewBuilder().EnqueueTaskWithHandle(func(ctx *Context) {
		ctx.NewBuilder().EnqueueTask(func(*Context) {
			time.Sleep(20 * time.Millisecond)
			childRan.Store(true)
		})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := parent.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !childRan.Load() {
		t.Fatal("parent reported finished before its continuation ran")
	}
}

func TestPanicIsRecoveredAndSurfaced(t *testing.T) {
	svc := newTestService(t)

	h := svc.NewBuilder().EnqueueTaskWithHandle(func(*Context) {
		panic("boom")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if err := h.Err(); err == nil {
		t.Fatal("expected non-nil Err after panicking task")
	}
}

func TestEnqueueSyncPointJoinsMultipleTasks(t *testing.T) {
	svc := newTestService(t)

	var count atomic.Int32
	b := svc.NewBuilder()
	for i := 0; i < 5; i++ {
		c := svc.NewBuilder().EnqueueTask(func(*Context) {
			count.Add(1)
		})
		b.AddWait(c)
	}
	sync := b.EnqueueSyncPoint()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sync.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if count.Load() != 5 {
		t.Fatalf("expected all 5 dependencies to run, got %d", count.Load())
	}
}
