package messaging

import (
	"sync"

	"github.com/Svenny/voxen-sub000/internal/uid"
)

// MessageHandler processes one regular (non-request) or request message.
// For requests, a panic here is recovered and turned into a Failed status.
type MessageHandler func(info MessageInfo, payload any)

// CompletionHandler processes a request's reply, whether it arrived via a
// routed completion message (RequestWithCompletion) or is inspected
// directly off a RequestHandle.
type CompletionHandler func(info CompletionInfo)

// Sender is the send-only half of an agent: addressable by myUID, routes
// outgoing messages and requests through router. Embedded in MessageQueue,
// which adds the receiving half (handlers + polling).
type Sender struct {
	router *Router
	myUID  uid.UID
}

// NewSender builds a send-only handle for myUID. Most callers want
// NewMessageQueue instead, which also registers an inbound queue.
func NewSender(router *Router, myUID uid.UID) Sender {
	return Sender{router: router, myUID: myUID}
}

// Send delivers payload to msgUID-tagged handlers on agent to, fire and
// forget. Dropped silently if to is not routed.
func (s Sender) Send(to uid.UID, msgUID uid.UID, payload any) {
	s.router.Send(to, &Message{
		From:   s.myUID,
		To:     to,
		MsgUID: msgUID,
		Payload: payload,
	})
}

// RequestWithHandle sends a request and returns a handle the caller can
// poll or block on via Wait.
func (s Sender) RequestWithHandle(to uid.UID, msgUID uid.UID, payload any) *RequestHandle {
	msg := &Message{
		From:    s.myUID,
		To:      to,
		MsgUID:  msgUID,
		Payload: payload,
		request: newRequestState(s.myUID, false),
	}
	s.router.Send(to, msg)
	return &RequestHandle{msg: msg}
}

// RequestWithCompletion sends a request whose reply is routed back as a
// completion message, delivered through the sender's own
// MessageQueue.PollMessages/WaitMessages loop and dispatched to whatever
// CompletionHandler is registered for msgUID.
func (s Sender) RequestWithCompletion(to uid.UID, msgUID uid.UID, payload any) {
	msg := &Message{
		From:    s.myUID,
		To:      to,
		MsgUID:  msgUID,
		Payload: payload,
		request: newRequestState(s.myUID, true),
	}
	s.router.Send(to, msg)
}

func newRequestState(sender uid.UID, needsCompletion bool) *requestState {
	rs := &requestState{needsCompletion: needsCompletion, senderUID: sender}
	rs.cond = sync.NewCond(&rs.mu)
	return rs
}
