// Package messaging implements the Messaging System: a process-wide UID
// router and per-agent inbound queues supporting fire-and-forget sends,
// unicast requests with a blocking reply handle, and request/reply with a
// polled completion handler.
//
// © 2025 voxen-sub000 authors. MIT License.
package messaging

import (
	"sync"
	"time"

	"github.com/Svenny/voxen-sub000/internal/uid"
)

// Message is one routed item: either a plain message, a request (carries a
// non-nil request field), or a completion notice (isCompletion true) routed
// back to a request's original sender.
type Message struct {
	From, To uid.UID
	MsgUID   uid.UID
	Payload  any

	isCompletion bool
	request      *requestState
}

// Queue is an agent's inbound FIFO: a slice-backed ring guarded by a mutex,
// with a condition variable standing in for the original's futex wait.
// Mirrors detail::InboundQueue, minus the intrusive-linked-list/manual-
// allocator machinery that C++ header needed and Go's GC makes unnecessary.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []*Message
	closed bool
}

func newQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends msg as the newest item and wakes one waiter.
func (q *Queue) push(msg *Message) {
	q.mu.Lock()
	q.items = append(q.items, msg)
	q.mu.Unlock()
	q.cond.Signal()
}

// popBatch removes up to n oldest items, returning fewer if the queue holds
// less than that.
func (q *Queue) popBatch(n int) []*Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	if n > len(q.items) {
		n = len(q.items)
	}

	batch := make([]*Message, n)
	copy(batch, q.items[:n])
	q.items = q.items[n:]
	return batch
}

// clear drops every queued message, e.g. on agent unregistration.
func (q *Queue) clear() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}

// wait blocks until at least one message is queued, the queue is closed, or
// timeout elapses (0 means return immediately without blocking).
func (q *Queue) wait(timeout time.Duration) {
	if timeout <= 0 {
		return
	}

	deadline := time.Now().Add(timeout)
	done := make(chan struct{})

	go func() {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		q.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Until(deadline)):
	}
}

func (q *Queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}
