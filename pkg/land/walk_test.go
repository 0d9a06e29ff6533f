package land

import "testing"

func TestWalkVisitsEveryPopulatedPayloadExactlyOnce(t *testing.T) {
	tr := New[int](intOps())
	keys := []ChunkKey{
		{X: 0, Y: 0, Z: 0, ScaleLog2: 0},
		{X: 4, Y: 0, Z: 0, ScaleLog2: 0},
		{X: 0, Y: 0, Z: 0, ScaleLog2: 2},
		{X: 0, Y: 0, Z: 0, ScaleLog2: 1},
		{X: -8, Y: 0, Z: 16, ScaleLog2: 3},
	}
	want := make(map[TreePath]int, len(keys))
	for i, k := range keys {
		p := mustPath(t, k)
		*tr.Access(p, 1) = i + 1
		want[p] = i + 1
	}

	got := make(map[TreePath]int, len(keys))
	tr.Walk(func(path TreePath, payload *int) {
		got[path] = *payload
	})

	if len(got) != len(want) {
		t.Fatalf("expected %d visited payloads, got %d (%v)", len(want), len(got), got)
	}
	for p, v := range want {
		gv, ok := got[p]
		if !ok || gv != v {
			t.Fatalf("path %#x: want %d, got %d ok=%v", p, v, gv, ok)
		}
	}
}

func TestWalkSkipsEmptyTree(t *testing.T) {
	tr := New[int](intOps())
	called := false
	tr.Walk(func(TreePath, *int) { called = true })
	if called {
		t.Fatal("expected Walk over an empty tree to visit nothing")
	}
}

func TestWalkAfterRemoveOmitsRemovedEntry(t *testing.T) {
	tr := New[int](intOps())
	keyA := ChunkKey{X: 0, Y: 0, Z: 0, ScaleLog2: 0}
	keyB := ChunkKey{X: 4, Y: 0, Z: 0, ScaleLog2: 0}
	pathA, pathB := mustPath(t, keyA), mustPath(t, keyB)

	*tr.Access(pathA, 1) = 1
	*tr.Access(pathB, 1) = 2
	tr.Remove(pathA, 1)

	var seen []TreePath
	tr.Walk(func(path TreePath, _ *int) { seen = append(seen, path) })
	if len(seen) != 1 || seen[0] != pathB {
		t.Fatalf("expected only pathB to survive, got %v", seen)
	}
}
