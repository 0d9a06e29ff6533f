package land

import "testing"

// Reproduces voxen/util/concentric_octahedra_walker.test.cpp's four cases
// point-for-point, including the exact visit order within each ring.

func TestConcentricOctahedraWalkerRadius0(t *testing.T) {
	w := NewConcentricOctahedraWalker(0)
	if w.WrappedAround() {
		t.Fatal("wrapped before first step")
	}
	for i := 0; i < 3; i++ {
		if got := w.Step(); got != ([3]int32{0, 0, 0}) {
			t.Fatalf("step %d = %v, want {0,0,0}", i, got)
		}
	}
	if !w.WrappedAround() {
		t.Fatal("expected wrapped after radius-0 steps")
	}
}

func TestConcentricOctahedraWalkerRadius1(t *testing.T) {
	w := NewConcentricOctahedraWalker(1)

	want := [][3]int32{
		{0, 0, 0},
		{-1, 0, 0},
		{0, 0, -1},
		{0, 1, 0},
		{0, -1, 0},
		{0, 0, 1},
	}
	for i, pt := range want {
		if got := w.Step(); got != pt {
			t.Fatalf("step %d = %v, want %v", i, got, pt)
		}
	}
	if w.WrappedAround() {
		t.Fatal("should not have wrapped yet")
	}
	if got := w.Step(); got != ([3]int32{1, 0, 0}) {
		t.Fatalf("step 6 = %v, want {1,0,0}", got)
	}
	if !w.WrappedAround() {
		t.Fatal("expected wrapped after radius-1 ring")
	}

	// Again.
	if got := w.Step(); got != ([3]int32{0, 0, 0}) {
		t.Fatalf("cycle restart = %v, want {0,0,0}", got)
	}
	if got := w.Step(); got != ([3]int32{-1, 0, 0}) {
		t.Fatalf("cycle restart step 2 = %v, want {-1,0,0}", got)
	}
}

func TestConcentricOctahedraWalkerRadius2(t *testing.T) {
	w := NewConcentricOctahedraWalker(2)

	want := [][3]int32{
		// Radius 0
		{0, 0, 0},
		// Radius 1
		{-1, 0, 0}, {0, 0, -1}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {1, 0, 0},
		// Radius 2
		{-2, 0, 0}, {-1, 0, -1}, {-1, 1, 0}, {-1, -1, 0}, {-1, 0, 1},
		{0, 0, -2}, {0, 1, -1}, {0, -1, -1}, {0, 2, 0}, {0, -2, 0},
		{0, 1, 1}, {0, -1, 1}, {0, 0, 2},
		{1, 0, -1}, {1, 1, 0}, {1, -1, 0}, {1, 0, 1},
	}
	for i, pt := range want {
		if got := w.Step(); got != pt {
			t.Fatalf("step %d = %v, want %v", i, got, pt)
		}
	}
	if w.WrappedAround() {
		t.Fatal("should not have wrapped yet")
	}
	if got := w.Step(); got != ([3]int32{2, 0, 0}) {
		t.Fatalf("last radius-2 step = %v, want {2,0,0}", got)
	}
	if !w.WrappedAround() {
		t.Fatal("expected wrapped after radius-2 ring")
	}

	// Again.
	if got := w.Step(); got != ([3]int32{0, 0, 0}) {
		t.Fatalf("cycle restart = %v, want {0,0,0}", got)
	}
}

func TestConcentricOctahedraWalkerRadius3(t *testing.T) {
	w := NewConcentricOctahedraWalker(3)

	// Skip results for radii 0 (1 result), 1 (6 results), 2 (18 results).
	for i := 0; i < 25; i++ {
		w.Step()
	}

	// First results of radius 3.
	if got := w.Step(); got != ([3]int32{-3, 0, 0}) {
		t.Fatalf("first radius-3 step = %v, want {-3,0,0}", got)
	}
	if got := w.Step(); got != ([3]int32{-2, 0, -1}) {
		t.Fatalf("second radius-3 step = %v, want {-2,0,-1}", got)
	}

	// Skip more results (total 38 results for radius 3).
	for i := 0; i < 34; i++ {
		w.Step()
	}

	// Last results of radius 3.
	if got := w.Step(); got != ([3]int32{2, 0, 1}) {
		t.Fatalf("penultimate radius-3 step = %v, want {2,0,1}", got)
	}
	if w.WrappedAround() {
		t.Fatal("should not have wrapped yet")
	}
	if got := w.Step(); got != ([3]int32{3, 0, 0}) {
		t.Fatalf("last radius-3 step = %v, want {3,0,0}", got)
	}
	if !w.WrappedAround() {
		t.Fatal("expected wrapped after radius-3 ring")
	}

	// Again.
	if got := w.Step(); got != ([3]int32{0, 0, 0}) {
		t.Fatalf("cycle restart = %v, want {0,0,0}", got)
	}
}

// Scenario 6 of SPEC_FULL.md §8: a concentric-octahedra walker of radius 2
// yields 1 + 6 + 18 = 25 points in the documented order, then reports
// WrappedAround()==true and cycles.
func TestConcentricOctahedraWalkerScenario6(t *testing.T) {
	w := NewConcentricOctahedraWalker(2)
	seen := make(map[[3]int32]struct{})
	for i := 0; i < 25; i++ {
		seen[w.Step()] = struct{}{}
	}
	if len(seen) != 25 {
		t.Fatalf("got %d distinct points, want 25", len(seen))
	}
	if !w.WrappedAround() {
		t.Fatal("expected wrapped after 25 points at radius 2")
	}
	if got := w.Step(); got != ([3]int32{0, 0, 0}) {
		t.Fatalf("cycled step = %v, want {0,0,0}", got)
	}
}
