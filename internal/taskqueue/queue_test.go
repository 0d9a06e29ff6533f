package taskqueue

import (
	"sync"
	"testing"
	"time"
)

func TestPushPopFIFO(t *testing.T) {
	s := NewSet[int](1, MinRingSize, nil)
	vals := []int{1, 2, 3, 4, 5}
	for i := range vals {
		s.Push(0, &vals[i])
	}
	for i := range vals {
		got := s.TryPop(0)
		if got == nil || *got != vals[i] {
			t.Fatalf("expected %d, got %v", vals[i], got)
		}
	}
	if s.TryPop(0) != nil {
		t.Fatal("expected empty queue")
	}
}

func TestPopOrWaitWakesOnPush(t *testing.T) {
	s := NewSet[int](1, MinRingSize, nil)
	done := make(chan *int, 1)

	go func() {
		done <- s.PopOrWait(0)
	}()

	time.Sleep(20 * time.Millisecond) // give the popper time to start waiting
	v := 42
	s.Push(0, &v)

	select {
	case got := <-done:
		if got == nil || *got != 42 {
			t.Fatalf("expected 42, got %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("PopOrWait never woke up")
	}
}

func TestRequestStopAllWakesWaiters(t *testing.T) {
	s := NewSet[int](2, MinRingSize, nil)
	var wg sync.WaitGroup
	results := make([]*int, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.PopOrWait(i)
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	s.RequestStopAll()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not wake up after RequestStopAll")
	}

	for _, r := range results {
		if r != nil {
			t.Fatalf("expected nil after stop, got %v", r)
		}
	}
}

func TestOverflowEventuallySucceeds(t *testing.T) {
	s := NewSet[int](1, MinRingSize, nil)
	vals := make([]int, MinRingSize+1)
	for i := range vals {
		vals[i] = i
	}

	for i := 0; i < int(MinRingSize); i++ {
		s.Push(0, &vals[i])
	}

	pushDone := make(chan struct{})
	go func() {
		s.Push(0, &vals[MinRingSize])
		close(pushDone)
	}()

	time.Sleep(10 * time.Millisecond)
	// Drain one slot so the overflowing push can proceed.
	s.TryPop(0)

	select {
	case <-pushDone:
	case <-time.After(2 * time.Second):
		t.Fatal("overflowing push never completed")
	}
}
