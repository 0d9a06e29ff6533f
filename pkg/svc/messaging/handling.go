package messaging

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Svenny/voxen-sub000/internal/uid"
	"github.com/Svenny/voxen-sub000/internal/voxerr"
)

// RequestStatus is the lifecycle state of a Request/RequestWithCompletion
// call.
type RequestStatus int32

const (
	StatusPending RequestStatus = iota
	StatusComplete
	StatusFailed
	StatusDropped
)

func (s RequestStatus) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusComplete:
		return "Complete"
	case StatusFailed:
		return "Failed"
	case StatusDropped:
		return "Dropped"
	default:
		return "Unknown"
	}
}

// requestState is the shared control block behind a request message: a
// status word plus a condition variable standing in for the original's
// futex-based RequestHandleBase::wait(), and an optional routed-completion
// configuration.
type requestState struct {
	mu      sync.Mutex
	cond    *sync.Cond
	status  atomic.Int32
	waiting atomic.Bool
	err     any

	needsCompletion bool
	senderUID       uid.UID
}

// MessageInfo is passed to a regular message handler.
type MessageInfo struct {
	from uid.UID
}

// SenderUID returns the UID of the agent that sent this message.
func (m MessageInfo) SenderUID() uid.UID { return m.from }

// CompletionInfo is passed to a completion handler (either a request reply
// poll, or directly to RequestHandle users via Status/RethrowIfFailed).
type CompletionInfo struct {
	msg *Message
}

func (c CompletionInfo) Status() RequestStatus {
	return RequestStatus(c.msg.request.status.Load())
}

// Err returns nil for Complete, errDropped for Dropped, or a
// *voxerr.Error wrapping the recovered handler panic for Failed.
func (c CompletionInfo) Err() error {
	return statusErr(c.Status(), c.msg.request.err)
}

// RethrowIfFailed panics with the original handler's recovered value if the
// request failed. Mirrors rethrowIfFailed()'s re-raise semantics: the
// original handler's panic value is surfaced again here, at the point the
// caller chose to inspect the result, rather than at the point it happened.
func (c CompletionInfo) RethrowIfFailed() {
	if c.Status() == StatusFailed && c.msg.request.err != nil {
		panic(c.msg.request.err)
	}
}

// RequestHandle is returned by RequestWithHandle: a blocking, typed view
// onto one in-flight request.
type RequestHandle struct {
	msg *Message
}

// Status returns the current status without blocking.
func (h *RequestHandle) Status() RequestStatus {
	return RequestStatus(h.msg.request.status.Load())
}

// Payload returns the (mutable) request payload.
func (h *RequestHandle) Payload() any { return h.msg.Payload }

// Err returns nil for Complete, errDropped for Dropped, or a
// *voxerr.Error wrapping the recovered handler panic for Failed. Pending
// always returns nil; call after Wait to get a meaningful result.
func (h *RequestHandle) Err() error {
	return statusErr(h.Status(), h.msg.request.err)
}

// Wait blocks until the request completes or ctx is done.
func (h *RequestHandle) Wait(ctx context.Context) (RequestStatus, error) {
	rs := h.msg.request

	if st := RequestStatus(rs.status.Load()); st != StatusPending {
		return st, nil
	}

	rs.waiting.Store(true)

	done := make(chan struct{})
	go func() {
		rs.mu.Lock()
		for RequestStatus(rs.status.Load()) == StatusPending {
			rs.cond.Wait()
		}
		rs.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		return RequestStatus(rs.status.Load()), nil
	case <-ctx.Done():
		return StatusPending, ctx.Err()
	}
}

// RethrowIfFailed panics with the handler's recovered value if the request
// failed. Must only be called once Status() != Pending.
func (h *RequestHandle) RethrowIfFailed() {
	if h.Status() == StatusFailed && h.msg.request.err != nil {
		panic(h.msg.request.err)
	}
}

// errDropped is returned by Err() for requests with no registered handler,
// for callers that prefer Go's error-return idiom over inspecting Status()
// directly.
var errDropped = voxerr.Sentinel(voxerr.Dropped)

func statusErr(status RequestStatus, panicVal any) error {
	switch status {
	case StatusFailed:
		return voxerr.Wrap(voxerr.Failed, "Request", panicError{panicVal})
	case StatusDropped:
		return errDropped
	default:
		return nil
	}
}

type panicError struct{ v any }

func (p panicError) Error() string {
	if err, ok := p.v.(error); ok {
		return err.Error()
	}
	if s, ok := p.v.(string); ok {
		return s
	}
	return "request handler panicked"
}
