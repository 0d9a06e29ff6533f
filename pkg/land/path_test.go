package land

import (
	"math/rand"
	"testing"
)

func TestTreePathRoundTripAllScales(t *testing.T) {
	rng := rand.New(rand.NewSource(0xDEADBEEF))

	for scale := uint32(0); scale < NumLODScales; scale++ {
		align := int32(1) << scale
		for i := 0; i < 200; i++ {
			x := alignedRandCoord(rng, MinUniqueWorldXChunk, MaxUniqueWorldXChunk, align)
			y := alignedRandCoord(rng, MinWorldYChunk, MaxWorldYChunk, align)
			z := alignedRandCoord(rng, MinUniqueWorldZChunk, MaxUniqueWorldZChunk, align)
			key := ChunkKey{X: x, Y: y, Z: z, ScaleLog2: scale}

			path, err := KeyToTreePath(key)
			if err != nil {
				t.Fatalf("KeyToTreePath(%v): %v", key, err)
			}
			got, err := TreePathToKey(path)
			if err != nil {
				t.Fatalf("TreePathToKey(%#x) for %v: %v", path, key, err)
			}
			if got != key {
				t.Fatalf("round trip mismatch: want %v, got %v (path %#x)", key, got, path)
			}
		}
	}
}

func alignedRandCoord(rng *rand.Rand, lo, hi, align int32) int32 {
	span := (hi - lo + 1) / align
	return lo + rng.Int31n(span)*align
}

func TestKeyToTreePathRejectsMisalignedKey(t *testing.T) {
	_, err := KeyToTreePath(ChunkKey{X: 1, Y: 0, Z: 0, ScaleLog2: 1})
	if err == nil {
		t.Fatal("expected misaligned key to be rejected")
	}
}

func TestKeyToTreePathRejectsOutOfRangeScale(t *testing.T) {
	_, err := KeyToTreePath(ChunkKey{ScaleLog2: NumLODScales})
	if err == nil {
		t.Fatal("expected out-of-range scale to be rejected")
	}
}

func TestKeyToTreePathRejectsOutOfBoundsCoordinate(t *testing.T) {
	_, err := KeyToTreePath(ChunkKey{X: MaxUniqueWorldXChunk + 1, ScaleLog2: 0})
	if err == nil {
		t.Fatal("expected out-of-bounds X to be rejected")
	}
	_, err = KeyToTreePath(ChunkKey{Y: MinWorldYChunk - 1, ScaleLog2: 0})
	if err == nil {
		t.Fatal("expected out-of-bounds Y to be rejected")
	}
}

func TestChunkKeyWrap(t *testing.T) {
	k := ChunkKey{X: MaxUniqueWorldXChunk + 1, Y: 0, Z: 0, ScaleLog2: 0}
	wrapped := k.Wrap()
	if wrapped.X != MinUniqueWorldXChunk {
		t.Fatalf("expected wraparound to MinUniqueWorldXChunk, got %d", wrapped.X)
	}
}

func TestDistinctKeysProduceDistinctPaths(t *testing.T) {
	seen := make(map[TreePath]ChunkKey)
	rng := rand.New(rand.NewSource(1))

	for scale := uint32(0); scale < NumLODScales; scale++ {
		align := int32(1) << scale
		for i := 0; i < 100; i++ {
			x := alignedRandCoord(rng, MinUniqueWorldXChunk, MaxUniqueWorldXChunk, align)
			y := alignedRandCoord(rng, MinWorldYChunk, MaxWorldYChunk, align)
			z := alignedRandCoord(rng, MinUniqueWorldZChunk, MaxUniqueWorldZChunk, align)
			key := ChunkKey{X: x, Y: y, Z: z, ScaleLog2: scale}

			path, err := KeyToTreePath(key)
			if err != nil {
				t.Fatalf("KeyToTreePath(%v): %v", key, err)
			}
			if prev, ok := seen[path]; ok && prev != key {
				t.Fatalf("path collision between %v and %v at path %#x", prev, key, path)
			}
			seen[path] = key
		}
	}
}
