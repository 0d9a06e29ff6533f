package land

// WalkFunc is invoked once per populated payload slot during Walk, in
// unspecified order. The *V returned is the live payload pointer; callers
// that need to retain it across further tree mutation must copy it.
type WalkFunc[V any] func(path TreePath, payload *V)

// Walk visits every populated payload in the tree: one call per chunk leaf
// or duoctree node's even-scale payload, and one call per odd-scale
// sub-payload slot. It does not visit empty intermediate routing nodes.
//
// This is the tree-external counterpart to CopyFrom's user_fn - the
// operation SPEC_FULL.md's persistence section requires ("the storage tree
// can be walked and serialized externally given tick ordering") for a
// snapshot's Save path, which needs every live entry, not just the ones
// that changed since some prior tick.
func (t *Tree[V]) Walk(fn WalkFunc[V]) {
	for i, root := range t.roots {
		if root == nil {
			continue
		}
		var bytes [8]byte
		bytes[7] = byte(i)
		walkNode(root, bytes, fn)
	}
}

func walkNode[V any](n *node[V], bytes [8]byte, fn WalkFunc[V]) {
	if n.payload != nil {
		b := bytes
		if n.kind != kindChunk {
			b[n.byteIndex] = 0x80
		}
		fn(pathFromBytes(b), n.payload)
	}
	for i, p := range n.subPayload {
		if p != nil {
			b := bytes
			b[n.byteIndex] = byte(0xC0 | i)
			fn(pathFromBytes(b), p)
		}
	}
	for k, child := range n.children {
		nb := bytes
		nb[n.byteIndex] = k
		walkNode(child, nb, fn)
	}
}
