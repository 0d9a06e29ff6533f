package land

import "fmt"

// ChunkKey identifies one chunk-scale volume of the world: a chunk at
// scale_log2 0 is 1x1x1 chunks, at scale_log2 s is 2^s chunks on a side,
// with (X, Y, Z) giving the position of its minimal corner in chunk
// units of that scale.
type ChunkKey struct {
	X, Y, Z   int32
	ScaleLog2 uint32
}

// Valid reports whether k falls within the storage tree's representable
// range: scale within [0, NumLODScales), coordinates aligned to the
// scale's chunk size, X/Z within the unique (pre-wrap) world span, and Y
// within the fixed world height.
func (k ChunkKey) Valid() bool {
	if k.ScaleLog2 >= NumLODScales {
		return false
	}
	align := int32(1) << k.ScaleLog2
	if k.X%align != 0 || k.Y%align != 0 || k.Z%align != 0 {
		return false
	}
	if k.X < MinUniqueWorldXChunk || k.X > MaxUniqueWorldXChunk {
		return false
	}
	if k.Z < MinUniqueWorldZChunk || k.Z > MaxUniqueWorldZChunk {
		return false
	}
	if k.Y < MinWorldYChunk || k.Y > MaxWorldYChunk {
		return false
	}
	return true
}

// Wrap folds X and Z into the unique world span, torus-style; Y is left
// untouched since the Y axis does not wrap.
func (k ChunkKey) Wrap() ChunkKey {
	k.X = wrapAxis(k.X, MinUniqueWorldXChunk, MaxUniqueWorldXChunk)
	k.Z = wrapAxis(k.Z, MinUniqueWorldZChunk, MaxUniqueWorldZChunk)
	return k
}

func wrapAxis(v, lo, hi int32) int32 {
	span := hi - lo + 1
	v = (v - lo) % span
	if v < 0 {
		v += span
	}
	return v + lo
}

func (k ChunkKey) String() string {
	return fmt.Sprintf("ChunkKey{%d,%d,%d @ %d}", k.X, k.Y, k.Z, k.ScaleLog2)
}
