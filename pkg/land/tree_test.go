package land

import "testing"

func intOps() Ops[int] {
	return Ops[int]{
		New:  func() *int { v := 0; return &v },
		Copy: func(v *int) *int { c := *v; return &c },
	}
}

func mustPath(t *testing.T, key ChunkKey) TreePath {
	t.Helper()
	p, err := KeyToTreePath(key)
	if err != nil {
		t.Fatalf("KeyToTreePath(%v): %v", key, err)
	}
	return p
}

func TestAccessCreatesAndLookupFinds(t *testing.T) {
	tr := New[int](intOps())
	key := ChunkKey{X: 4, Y: 0, Z: -8, ScaleLog2: 2}
	path := mustPath(t, key)

	*tr.Access(path, 1) = 42

	v, ok := tr.Lookup(path)
	if !ok || *v != 42 {
		t.Fatalf("expected 42, got %v ok=%v", v, ok)
	}
}

func TestLookupMissingReturnsFalse(t *testing.T) {
	tr := New[int](intOps())
	key := ChunkKey{X: 0, Y: 0, Z: 0, ScaleLog2: 0}
	if _, ok := tr.Lookup(mustPath(t, key)); ok {
		t.Fatal("expected lookup on empty tree to fail")
	}
}

func TestCopyOnWriteAcrossTicksIsolatesSnapshots(t *testing.T) {
	tr := New[int](intOps())
	keyA := ChunkKey{X: 0, Y: 0, Z: 0, ScaleLog2: 0}
	keyB := ChunkKey{X: 4, Y: 0, Z: 0, ScaleLog2: 0}
	pathA, pathB := mustPath(t, keyA), mustPath(t, keyB)

	*tr.Access(pathA, 1) = 1
	*tr.Access(pathB, 1) = 2

	snap := tr.Clone()

	*tr.Access(pathA, 2) = 100
	tr.Remove(pathB, 2)

	if v, ok := snap.Lookup(pathA); !ok || *v != 1 {
		t.Fatalf("snapshot should still see original value 1, got %v ok=%v", v, ok)
	}
	if v, ok := snap.Lookup(pathB); !ok || *v != 2 {
		t.Fatalf("snapshot should still see key B, got %v ok=%v", v, ok)
	}
	if v, ok := tr.Lookup(pathA); !ok || *v != 100 {
		t.Fatalf("live tree should see updated value 100, got %v ok=%v", v, ok)
	}
	if _, ok := tr.Lookup(pathB); ok {
		t.Fatal("live tree should no longer see removed key B")
	}
}

func TestRemovePrunesEmptyNodesUpToRoot(t *testing.T) {
	tr := New[int](intOps())
	key := ChunkKey{X: 0, Y: 0, Z: 0, ScaleLog2: 0}
	path := mustPath(t, key)

	*tr.Access(path, 1) = 7
	if !tr.Remove(path, 1) {
		t.Fatal("expected remove to report success")
	}
	rootIdx := pathToBytes(path)[7]
	if tr.roots[rootIdx] != nil {
		t.Fatal("expected root slot to be pruned back to nil once empty")
	}
	if tr.Remove(path, 2) {
		t.Fatal("removing an already-absent key should report false")
	}
}

func TestRemoveKeepsSiblingsAlive(t *testing.T) {
	tr := New[int](intOps())
	keyA := ChunkKey{X: 0, Y: 0, Z: 0, ScaleLog2: 0}
	keyB := ChunkKey{X: 4, Y: 0, Z: 0, ScaleLog2: 0}
	pathA, pathB := mustPath(t, keyA), mustPath(t, keyB)

	*tr.Access(pathA, 1) = 1
	*tr.Access(pathB, 1) = 2

	tr.Remove(pathA, 1)

	if v, ok := tr.Lookup(pathB); !ok || *v != 2 {
		t.Fatalf("sibling key B should survive removal of A, got %v ok=%v", v, ok)
	}
}

func TestOddEvenScaleShareDuoctreeNodeButNotPayload(t *testing.T) {
	tr := New[int](intOps())
	even := ChunkKey{X: 0, Y: 0, Z: 0, ScaleLog2: 2}
	odd := ChunkKey{X: 0, Y: 0, Z: 0, ScaleLog2: 1}

	*tr.Access(mustPath(t, even), 1) = 10
	*tr.Access(mustPath(t, odd), 1) = 20

	ve, ok := tr.Lookup(mustPath(t, even))
	if !ok || *ve != 10 {
		t.Fatalf("expected even-scale payload 10, got %v ok=%v", ve, ok)
	}
	vo, ok := tr.Lookup(mustPath(t, odd))
	if !ok || *vo != 20 {
		t.Fatalf("expected odd-scale payload 20, got %v ok=%v", vo, ok)
	}
}

func TestCopyFromAdoptsChangedRootSlotsAndVisitsNodes(t *testing.T) {
	src := New[int](intOps())
	key := ChunkKey{X: 0, Y: 0, Z: 0, ScaleLog2: 0}
	*src.Access(mustPath(t, key), 1) = 5

	dst := New[int](intOps())
	var visited []TreePath
	dst.CopyFrom(src, func(p TreePath) { visited = append(visited, p) })

	if v, ok := dst.Lookup(mustPath(t, key)); !ok || *v != 5 {
		t.Fatalf("expected dst to adopt src's value, got %v ok=%v", v, ok)
	}
	if len(visited) == 0 {
		t.Fatal("expected CopyFrom to visit at least the adopted root subtree")
	}

	// A second CopyFrom from an identical src should be a no-op: same
	// root pointers, so no nodes are revisited.
	visited = nil
	dst.CopyFrom(src, func(p TreePath) { visited = append(visited, p) })
	if len(visited) != 0 {
		t.Fatalf("expected no-op CopyFrom to visit nothing, got %v", visited)
	}
}
