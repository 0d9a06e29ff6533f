package messaging

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Svenny/voxen-sub000/internal/uid"
	"github.com/Svenny/voxen-sub000/internal/voxerr"
)

// numShards is the routing table shard count. Deliberately large (mirroring
// the original's 512) so that registering/unregistering unrelated agents
// essentially never contends on the same shard lock.
const numShards = 512

// routingShard is one slice of the UID keyspace: a map of agent UID to its
// inbound queue, guarded by an RWMutex (reads - route lookups on every send
// - vastly outnumber writes - register/unregister).
type routingShard struct {
	mu     sync.RWMutex
	routes map[uid.UID]*Queue
}

// Router routes messages addressed by UID to the recipient's inbound
// queue, and recycles queues through a free list on unregistration. Mirrors
// detail::MessageRouter.
type Router struct {
	shards [numShards]routingShard

	poolMu     sync.Mutex
	freeQueues []*Queue

	logger *zap.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger overrides the router's logger (default: a no-op logger).
func WithLogger(l *zap.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// NewRouter constructs an empty Router.
func NewRouter(opts ...Option) *Router {
	r := &Router{logger: zap.NewNop()}
	for i := range r.shards {
		r.shards[i].routes = make(map[uid.UID]*Queue)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) shardFor(id uid.UID) *routingShard {
	return &r.shards[id.ShardIndex(numShards)]
}

// RegisterAgent creates (or recycles) an inbound queue for id and records
// the route. Returns voxerr.AlreadyRegistered if id is already routed.
func (r *Router) RegisterAgent(id uid.UID) (*Queue, error) {
	q := r.takeQueue()

	shard := r.shardFor(id)
	shard.mu.Lock()
	if _, exists := shard.routes[id]; exists {
		shard.mu.Unlock()
		r.returnQueue(q)
		return nil, voxerr.New(voxerr.AlreadyRegistered, "Router.RegisterAgent")
	}
	shard.routes[id] = q
	shard.mu.Unlock()

	return q, nil
}

// UnregisterAgent removes id's route, clears its queue, and returns the
// queue to the free list for reuse.
func (r *Router) UnregisterAgent(id uid.UID) {
	shard := r.shardFor(id)

	shard.mu.Lock()
	q, ok := shard.routes[id]
	if ok {
		delete(shard.routes, id)
	}
	shard.mu.Unlock()

	if ok {
		q.clear()
		q.close()
		r.returnQueue(q)
	}
}

// Send pushes msg onto to's inbound queue. If to is not routed, the message
// is silently dropped.
func (r *Router) Send(to uid.UID, msg *Message) {
	shard := r.shardFor(to)

	shard.mu.RLock()
	q, ok := shard.routes[to]
	shard.mu.RUnlock()

	if !ok {
		return
	}
	q.push(msg)
}

// CompleteRequest finalizes a request's status (and, if it asked for a
// routed completion message, sends one back to the original sender).
// Exactly one of status/panicVal pairs: Complete/nil, Failed/<recovered
// value>, Dropped/nil.
func (r *Router) CompleteRequest(msg *Message, status RequestStatus, panicVal any) {
	rs := msg.request
	rs.err = panicVal
	rs.status.Store(int32(status))

	if rs.waiting.Load() {
		rs.mu.Lock()
		rs.cond.Broadcast()
		rs.mu.Unlock()
	}

	if rs.needsCompletion {
		r.Send(rs.senderUID, &Message{
			From:         msg.To,
			To:           rs.senderUID,
			MsgUID:       msg.MsgUID,
			Payload:      msg.Payload,
			isCompletion: true,
			request:      rs,
		})
	}
}

func (r *Router) takeQueue() *Queue {
	r.poolMu.Lock()
	defer r.poolMu.Unlock()

	if n := len(r.freeQueues); n > 0 {
		q := r.freeQueues[n-1]
		r.freeQueues = r.freeQueues[:n-1]
		q.closed = false
		return q
	}
	return newQueue()
}

func (r *Router) returnQueue(q *Queue) {
	r.poolMu.Lock()
	r.freeQueues = append(r.freeQueues, q)
	r.poolMu.Unlock()
}
