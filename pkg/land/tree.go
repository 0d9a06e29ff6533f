package land

// Ops supplies the per-payload lifecycle the tree needs but cannot
// provide itself: New constructs a fresh zero-value payload the first
// time a slot is touched, Copy deep-copies a payload when its owning
// node is duplicated for copy-on-write so that mutations through a
// freshly-COW'd node never leak back into an older snapshot.
type Ops[V any] struct {
	New  func() *V
	Copy func(*V) *V
}

type nodeKind uint8

const (
	kindTriRoot nodeKind = iota
	kindBridge
	kindDuoctree
	kindChunk
)

// node is the single recursive node type backing every level of the
// tree (root-grid subtree, triquadtree root, triquadtree bridge, all
// four duoctree sizes, and chunk leaves). kind and byteIndex record
// which level a node occupies; only kindChunk and "stopped" duoctree
// nodes ever populate payload/subPayload, and only kindChunk nodes
// never populate children.
type node[V any] struct {
	kind      nodeKind
	byteIndex int
	tick      uint64

	children   map[byte]*node[V]
	payload    *V
	subPayload [8]*V
}

func newNode[V any](kind nodeKind, byteIndex int, tick uint64) *node[V] {
	n := &node[V]{kind: kind, byteIndex: byteIndex, tick: tick}
	if kind != kindChunk {
		n.children = make(map[byte]*node[V])
	}
	return n
}

func cloneNode[V any](n *node[V], tick uint64, ops Ops[V]) *node[V] {
	c := &node[V]{kind: n.kind, byteIndex: n.byteIndex, tick: tick}
	if n.children != nil {
		c.children = make(map[byte]*node[V], len(n.children))
		for k, v := range n.children {
			c.children[k] = v
		}
	}
	if n.payload != nil {
		c.payload = ops.Copy(n.payload)
	}
	for i, p := range n.subPayload {
		if p != nil {
			c.subPayload[i] = ops.Copy(p)
		}
	}
	return c
}

func (n *node[V]) isEmpty() bool {
	if n.payload != nil {
		return false
	}
	for _, p := range n.subPayload {
		if p != nil {
			return false
		}
	}
	return len(n.children) == 0
}

// Tree is a copy-on-write map from ChunkKey (via TreePath) to a
// caller-owned payload of type V. The zero value is not usable; create
// one with New.
type Tree[V any] struct {
	ops   Ops[V]
	roots [RootItemsX * RootItemsZ]*node[V]
}

// New creates an empty storage tree using ops for payload lifecycle.
func New[V any](ops Ops[V]) *Tree[V] {
	return &Tree[V]{ops: ops}
}

// Clone returns a snapshot of t that shares all unmodified subtrees
// with it; subsequent Access/Remove calls against either tree at a
// different tick copy-on-write before mutating, leaving the other
// snapshot untouched.
func (t *Tree[V]) Clone() *Tree[V] {
	c := &Tree[V]{ops: t.ops}
	c.roots = t.roots
	return c
}

func descendRoute[V any](cur *node[V], b byte, childKind nodeKind, childByteIndex int, tick uint64, ops Ops[V]) *node[V] {
	child, ok := cur.children[b]
	if !ok {
		child = newNode[V](childKind, childByteIndex, tick)
	} else if child.tick != tick {
		child = cloneNode(child, tick, ops)
	}
	cur.children[b] = child
	return child
}

// Access returns a mutable pointer to the payload addressed by path,
// creating every node and payload slot along the way that does not yet
// exist. Every node touched is stamped with tick; a node found stamped
// with an older tick is copy-on-write cloned first, so snapshots taken
// via Clone before this tick are unaffected.
func (t *Tree[V]) Access(path TreePath, tick uint64) *V {
	bytes := pathToBytes(path)

	rootIdx := bytes[7]
	root := t.roots[rootIdx]
	if root == nil {
		root = newNode[V](kindTriRoot, 6, tick)
	} else if root.tick != tick {
		root = cloneNode(root, tick, t.ops)
	}
	t.roots[rootIdx] = root

	cur := descendRoute(root, bytes[6], kindBridge, 5, tick, t.ops)
	cur = descendRoute(cur, bytes[5], kindDuoctree, duoLevels[0].byteIndex, tick, t.ops)

	for i, lvl := range duoLevels {
		b := bytes[lvl.byteIndex]
		if b&0x80 != 0 {
			if b&0x40 != 0 {
				idx := b & 0x07
				if cur.subPayload[idx] == nil {
					cur.subPayload[idx] = t.ops.New()
				}
				return cur.subPayload[idx]
			}
			if cur.payload == nil {
				cur.payload = t.ops.New()
			}
			return cur.payload
		}

		nextKind, nextByteIndex := kindDuoctree, 0
		if i+1 < len(duoLevels) {
			nextByteIndex = duoLevels[i+1].byteIndex
		} else {
			nextKind, nextByteIndex = kindChunk, 0
		}
		cur = descendRoute(cur, b, nextKind, nextByteIndex, tick, t.ops)
	}

	if cur.payload == nil {
		cur.payload = t.ops.New()
	}
	return cur.payload
}

// Lookup returns the payload addressed by path without creating or
// copy-on-write cloning anything; ok is false if no payload has ever
// been stored there.
func (t *Tree[V]) Lookup(path TreePath) (*V, bool) {
	bytes := pathToBytes(path)

	cur := t.roots[bytes[7]]
	if cur == nil {
		return nil, false
	}
	if cur = cur.children[bytes[6]]; cur == nil {
		return nil, false
	}
	if cur = cur.children[bytes[5]]; cur == nil {
		return nil, false
	}

	for _, lvl := range duoLevels {
		b := bytes[lvl.byteIndex]
		if b&0x80 != 0 {
			if b&0x40 != 0 {
				p := cur.subPayload[b&0x07]
				return p, p != nil
			}
			return cur.payload, cur.payload != nil
		}
		if cur = cur.children[b]; cur == nil {
			return nil, false
		}
	}
	return cur.payload, cur.payload != nil
}

// Remove deletes the payload addressed by path, copy-on-write cloning
// every node on the path that is stamped with an older tick, and prunes
// any node left with no children and no payload. It reports whether a
// payload was actually present to remove.
func (t *Tree[V]) Remove(path TreePath, tick uint64) bool {
	bytes := pathToBytes(path)

	rootIdx := bytes[7]
	root := t.roots[rootIdx]
	if root == nil {
		return false
	}
	if root.tick != tick {
		root = cloneNode(root, tick, t.ops)
		t.roots[rootIdx] = root
	}

	type frame struct {
		parent *node[V]
		key    byte
	}
	var stack []frame
	cur := root

	route := func(b byte) bool {
		child, ok := cur.children[b]
		if !ok {
			return false
		}
		if child.tick != tick {
			child = cloneNode(child, tick, t.ops)
			cur.children[b] = child
		}
		stack = append(stack, frame{parent: cur, key: b})
		cur = child
		return true
	}

	if !route(bytes[6]) || !route(bytes[5]) {
		return false
	}

	removed := false
	for _, lvl := range duoLevels {
		b := bytes[lvl.byteIndex]
		if b&0x80 != 0 {
			if b&0x40 != 0 {
				idx := b & 0x07
				if cur.subPayload[idx] == nil {
					return false
				}
				cur.subPayload[idx] = nil
			} else {
				if cur.payload == nil {
					return false
				}
				cur.payload = nil
			}
			removed = true
			break
		}
		if !route(b) {
			return false
		}
	}
	if !removed {
		if cur.payload == nil {
			return false
		}
		cur.payload = nil
	}

	for i := len(stack) - 1; i >= 0; i-- {
		f := stack[i]
		child := f.parent.children[f.key]
		if child.isEmpty() {
			delete(f.parent.children, f.key)
		} else {
			break
		}
	}
	if root.isEmpty() {
		t.roots[rootIdx] = nil
	}
	return true
}

// VisitFunc is called once per node touched by CopyFrom, before it
// descends into that node's children - mirroring the original engine's
// per-node user callback invoked during tree merges (e.g. to refresh a
// spatial index as copied subtrees are discovered).
type VisitFunc func(path TreePath)

// CopyFrom replaces every root-grid slot of t that does not already
// point at the identical subtree in src with src's slot, sharing
// structure rather than deep-copying. visit, if non-nil, is invoked once
// for every newly-linked node (including those deep inside an adopted
// subtree) before CopyFrom descends into its children - this is the
// only case where a node that already exists in t might still need a
// callback, since pointer identity is the sole skip condition.
func (t *Tree[V]) CopyFrom(src *Tree[V], visit VisitFunc) {
	for i := range t.roots {
		if t.roots[i] == src.roots[i] {
			continue
		}
		t.roots[i] = src.roots[i]
		if src.roots[i] == nil {
			continue
		}
		var bytes [8]byte
		bytes[7] = byte(i)
		visitSubtree(src.roots[i], bytes, visit)
	}
}

func visitSubtree[V any](n *node[V], bytes [8]byte, visit VisitFunc) {
	if visit != nil {
		visit(pathFromBytes(bytes))
	}
	if n.kind == kindChunk {
		return
	}
	for k, child := range n.children {
		nb := bytes
		nb[n.byteIndex] = k
		visitSubtree(child, nb, visit)
	}
}
