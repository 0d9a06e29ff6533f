package land

// ConcentricOctahedraWalker enumerates the integer points of successive
// octahedron shells (|x|+|y|+|z| = r) around the origin, for r = 0, 1, ...,
// up to a configured maximum radius, then cycles back to r = 0 and repeats
// forever. This is the chunk-ticket streaming primitive a radius-based
// "load everything within N rings of the player" request walks: ring 0 is
// just the pivot itself, ring 1 its 6 face neighbors, ring 2 the next 18
// points out, and so on (ring r for r >= 1 has exactly 4*r*r + 2 points).
//
// Grounded on the original engine's ConcentricOctahedraWalker
// (voxen/util/concentric_octahedra_walker.hpp, exercised by
// land_service.cpp's chunk ticket processing, whose
// "ConcentricOctahedraWalker cwk(octa_area->scaled_radius); while
// (!cwk.wrappedAround()) { ... cwk.step() ... }" loop this mirrors);
// only the test file survived into this pack, so the point order below is
// reverse-engineered from it and reproduced exactly in walker_test.go.
type ConcentricOctahedraWalker struct {
	maxRadius int32
	radius    int32
	ring      [][3]int32
	idx       int
	wrapped   bool
}

// NewConcentricOctahedraWalker builds a walker cycling through radii
// [0, maxRadius]. A negative maxRadius is clamped to 0.
func NewConcentricOctahedraWalker(maxRadius int32) *ConcentricOctahedraWalker {
	if maxRadius < 0 {
		maxRadius = 0
	}
	return &ConcentricOctahedraWalker{maxRadius: maxRadius, ring: octahedronRing(0)}
}

// WrappedAround reports whether the most recently returned point was the
// last point of the maximum radius ring, i.e. the next Step starts a fresh
// cycle at radius 0.
func (w *ConcentricOctahedraWalker) WrappedAround() bool { return w.wrapped }

// Step returns the next (x, y, z) offset in the walk and advances the
// internal cursor. The pivot itself (ring 0) is always [0,0,0].
func (w *ConcentricOctahedraWalker) Step() [3]int32 {
	if w.idx >= len(w.ring) {
		w.radius++
		if w.radius > w.maxRadius {
			w.radius = 0
		}
		w.ring = octahedronRing(w.radius)
		w.idx = 0
	}
	p := w.ring[w.idx]
	w.idx++
	w.wrapped = w.radius == w.maxRadius && w.idx == len(w.ring)
	return p
}

// octahedronRing returns every point of the r-th octahedron shell
// (|x|+|y|+|z| = r), in the fixed order the original walker visits them:
// x outermost (from -r to r), then z within the remaining budget, emitting
// the +y point before the -y point at each (x, z) (or a single y=0 point
// when the budget is exhausted).
func octahedronRing(r int32) [][3]int32 {
	if r == 0 {
		return [][3]int32{{0, 0, 0}}
	}
	pts := make([][3]int32, 0, 4*r*r+2)
	for x := -r; x <= r; x++ {
		rem := r - abs32(x)
		for z := -rem; z <= rem; z++ {
			d := rem - abs32(z)
			if d == 0 {
				pts = append(pts, [3]int32{x, 0, z})
			} else {
				pts = append(pts, [3]int32{x, d, z})
				pts = append(pts, [3]int32{x, -d, z})
			}
		}
	}
	return pts
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
