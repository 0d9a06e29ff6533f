package messaging

import (
	"time"

	"github.com/Svenny/voxen-sub000/internal/uid"
)

// pollBatchSize bounds how many messages PollMessages pops per lock
// acquisition, mirroring the original's fixed 8-message batch.
const pollBatchSize = 8

// MessageQueue is one agent's full messaging surface: it can send (embedded
// Sender) and receives through its own inbound Queue, dispatching to
// handlers registered by message UID. Handler registration is expected to
// happen from the same goroutine that calls PollMessages/WaitMessages (the
// original makes the same single-owner-thread assumption, hence no lock
// around the handler maps).
type MessageQueue struct {
	Sender

	router *Router
	myUID  uid.UID
	queue  *Queue

	handlers           map[uid.UID]MessageHandler
	completionHandlers map[uid.UID]CompletionHandler
}

// NewMessageQueue registers myUID with router and returns a ready-to-use
// MessageQueue. Returns voxerr.AlreadyRegistered if myUID is already routed.
func NewMessageQueue(router *Router, myUID uid.UID) (*MessageQueue, error) {
	q, err := router.RegisterAgent(myUID)
	if err != nil {
		return nil, err
	}

	return &MessageQueue{
		Sender:             NewSender(router, myUID),
		router:             router,
		myUID:              myUID,
		queue:              q,
		handlers:           make(map[uid.UID]MessageHandler),
		completionHandlers: make(map[uid.UID]CompletionHandler),
	}, nil
}

// Close unregisters this agent, clearing its inbound queue.
func (mq *MessageQueue) Close() {
	mq.router.UnregisterAgent(mq.myUID)
}

// RegisterHandler installs (or replaces) the handler for msgUID.
func (mq *MessageQueue) RegisterHandler(msgUID uid.UID, h MessageHandler) {
	mq.handlers[msgUID] = h
}

// UnregisterHandler removes the handler for msgUID, if any.
func (mq *MessageQueue) UnregisterHandler(msgUID uid.UID) {
	delete(mq.handlers, msgUID)
}

// RegisterCompletionHandler installs (or replaces) the completion handler
// for msgUID, used by RequestWithCompletion replies.
func (mq *MessageQueue) RegisterCompletionHandler(msgUID uid.UID, h CompletionHandler) {
	mq.completionHandlers[msgUID] = h
}

// UnregisterCompletionHandler removes the completion handler for msgUID, if
// any.
func (mq *MessageQueue) UnregisterCompletionHandler(msgUID uid.UID) {
	delete(mq.completionHandlers, msgUID)
}

// PollMessages drains every currently queued message, dispatching each to
// its registered handler (or completing/dropping requests with no handler),
// without blocking for more to arrive.
func (mq *MessageQueue) PollMessages() {
	for {
		batch := mq.queue.popBatch(pollBatchSize)
		if len(batch) == 0 {
			return
		}

		for _, msg := range batch {
			mq.dispatch(msg)
		}
	}
}

// WaitMessages blocks up to timeout for at least one message to arrive,
// then polls. A zero timeout behaves like PollMessages.
func (mq *MessageQueue) WaitMessages(timeout time.Duration) {
	mq.queue.wait(timeout)
	mq.PollMessages()
}

func (mq *MessageQueue) dispatch(msg *Message) {
	if msg.isCompletion {
		if h, ok := mq.completionHandlers[msg.MsgUID]; ok {
			h(CompletionInfo{msg: msg})
		}
		return
	}

	if msg.request != nil {
		mq.dispatchRequest(msg)
		return
	}

	if h, ok := mq.handlers[msg.MsgUID]; ok {
		h(MessageInfo{from: msg.From}, msg.Payload)
	}
}

func (mq *MessageQueue) dispatchRequest(msg *Message) {
	h, ok := mq.handlers[msg.MsgUID]
	if !ok {
		mq.router.CompleteRequest(msg, StatusDropped, nil)
		return
	}

	var panicVal any
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicVal = r
			}
		}()
		h(MessageInfo{from: msg.From}, msg.Payload)
	}()

	if panicVal != nil {
		mq.router.CompleteRequest(msg, StatusFailed, panicVal)
	} else {
		mq.router.CompleteRequest(msg, StatusComplete, nil)
	}
}
