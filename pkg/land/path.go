package land

import "fmt"

// TreePath is the fully-resolved address of a ChunkKey within the
// storage tree: one byte per level, from the root grid slot (byte 7)
// down through the triquadtree and duoctree levels (bytes 6..1). Byte 0
// is reserved and always zero - the finest (scale 0) chunk leaf is
// addressed by byte 1 alone, same as any other duoctree child.
type TreePath uint64

func pathFromBytes(b [8]byte) TreePath {
	var p uint64
	for i, bb := range b {
		p |= uint64(bb) << (8 * i)
	}
	return TreePath(p)
}

func pathToBytes(p TreePath) (b [8]byte) {
	for i := range b {
		b[i] = byte(p >> (8 * i))
	}
	return b
}

// duoLevel describes one duoctree level of the tree: it bundles two
// octree splits, so it represents two scale_log2 values - evenScale (the
// whole node, one payload slot) and oddScale (one octree split below
// that, addressed via an 8-way "subnode selector"). Descending past both
// routes to one of 64 children, indexed by the 3 "upper" (evenScale-1)
// bits concatenated with 3 "lower" (childCellSize-granularity) bits.
type duoLevel struct {
	cellSize  uint32
	evenScale uint32
	oddScale  uint32
	byteIndex int
}

var duoLevels = [4]duoLevel{
	{DuoctreeX256SizeChunks, 8, 7, 4},
	{DuoctreeX64SizeChunks, 6, 5, 3},
	{DuoctreeX16SizeChunks, 4, 3, 2},
	{DuoctreeX4SizeChunks, 2, 1, 1},
}

// KeyToTreePath computes the tree path addressing key. It returns an
// error if key is outside the storage tree's representable range.
func KeyToTreePath(key ChunkKey) (TreePath, error) {
	if !key.Valid() {
		return 0, fmt.Errorf("land: invalid chunk key %v", key)
	}

	ux := uint32(key.X - MinUniqueWorldXChunk)
	uz := uint32(key.Z - MinUniqueWorldZChunk)
	uy := uint32(key.Y - MinWorldYChunk)

	rootX := ux / RootItemSizeChunks
	rootZ := uz / RootItemSizeChunks
	rx := ux % RootItemSizeChunks
	rz := uz % RootItemSizeChunks

	var bytes [8]byte
	bytes[7] = byte(rootX*RootItemsZ + rootZ)

	var triXBit, triZBit uint32
	if rx >= TriBridgeSizeChunks {
		triXBit, rx = 1, rx-TriBridgeSizeChunks
	}
	if rz >= TriBridgeSizeChunks {
		triZBit, rz = 1, rz-TriBridgeSizeChunks
	}
	bytes[6] = byte(triXBit<<1 | triZBit)

	var bridgeXBit, bridgeZBit, yHalfBit uint32
	if rx >= DuoctreeX256SizeChunks {
		bridgeXBit, rx = 1, rx-DuoctreeX256SizeChunks
	}
	if rz >= DuoctreeX256SizeChunks {
		bridgeZBit, rz = 1, rz-DuoctreeX256SizeChunks
	}
	if uy >= DuoctreeX256SizeChunks {
		yHalfBit, uy = 1, uy-DuoctreeX256SizeChunks
	}
	bytes[5] = byte(bridgeXBit<<2 | bridgeZBit<<1 | yHalfBit)

	for _, lvl := range duoLevels {
		if key.ScaleLog2 == lvl.evenScale {
			bytes[lvl.byteIndex] = 0x80
			return pathFromBytes(bytes), nil
		}

		half := lvl.cellSize / 2
		child := lvl.cellSize / 4

		var xHi, yHi, zHi uint32
		if rx >= half {
			xHi, rx = 1, rx-half
		}
		if uy >= half {
			yHi, uy = 1, uy-half
		}
		if rz >= half {
			zHi, rz = 1, rz-half
		}
		upper3 := xHi<<2 | yHi<<1 | zHi

		if key.ScaleLog2 == lvl.oddScale {
			bytes[lvl.byteIndex] = byte(0xC0 | upper3)
			return pathFromBytes(bytes), nil
		}

		var xLo, yLo, zLo uint32
		if rx >= child {
			xLo, rx = 1, rx-child
		}
		if uy >= child {
			yLo, uy = 1, uy-child
		}
		if rz >= child {
			zLo, rz = 1, rz-child
		}
		lower3 := xLo<<2 | yLo<<1 | zLo
		bytes[lvl.byteIndex] = byte(upper3<<3 | lower3)
	}
	return pathFromBytes(bytes), nil
}

// TreePathToKey inverts KeyToTreePath. It returns an error if path does
// not decode to a representable chunk key (e.g. a root index outside
// RootItemsX*RootItemsZ).
func TreePathToKey(path TreePath) (ChunkKey, error) {
	bytes := pathToBytes(path)

	rootIdx := uint32(bytes[7])
	rootX, rootZ := rootIdx/RootItemsZ, rootIdx%RootItemsZ
	if rootX >= RootItemsX {
		return ChunkKey{}, fmt.Errorf("land: tree path has out-of-range root index %d", rootIdx)
	}

	triRootIdx := uint32(bytes[6])
	triXBit, triZBit := (triRootIdx>>1)&1, triRootIdx&1

	bridgeByte := uint32(bytes[5])
	bridgeXBit, bridgeZBit, yHalfBit := (bridgeByte>>2)&1, (bridgeByte>>1)&1, bridgeByte&1

	rx := rootX*RootItemSizeChunks + triXBit*TriBridgeSizeChunks + bridgeXBit*DuoctreeX256SizeChunks
	rz := rootZ*RootItemSizeChunks + triZBit*TriBridgeSizeChunks + bridgeZBit*DuoctreeX256SizeChunks
	uy := yHalfBit * DuoctreeX256SizeChunks

	var scale uint32
	for _, lvl := range duoLevels {
		b := bytes[lvl.byteIndex]
		if b&0x80 != 0 {
			if b&0x40 != 0 {
				upper3 := uint32(b & 0x07)
				half := lvl.cellSize / 2
				rx += (upper3 >> 2 & 1) * half
				uy += (upper3 >> 1 & 1) * half
				rz += (upper3 & 1) * half
				scale = lvl.oddScale
			} else {
				scale = lvl.evenScale
			}
			key := ChunkKey{X: int32(rx) + MinUniqueWorldXChunk, Y: int32(uy) + MinWorldYChunk, Z: int32(rz) + MinUniqueWorldZChunk, ScaleLog2: scale}
			if !key.Valid() {
				return ChunkKey{}, fmt.Errorf("land: tree path decodes to invalid key %v", key)
			}
			return key, nil
		}

		idx6 := uint32(b & 0x3F)
		upper3, lower3 := idx6>>3&0x7, idx6&0x7
		half, child := lvl.cellSize/2, lvl.cellSize/4
		rx += (upper3>>2&1)*half + (lower3>>2&1)*child
		uy += (upper3>>1&1)*half + (lower3>>1&1)*child
		rz += (upper3&1)*half + (lower3&1)*child
	}

	key := ChunkKey{X: int32(rx) + MinUniqueWorldXChunk, Y: int32(uy) + MinWorldYChunk, Z: int32(rz) + MinUniqueWorldZChunk, ScaleLog2: 0}
	if !key.Valid() {
		return ChunkKey{}, fmt.Errorf("land: tree path decodes to invalid key %v", key)
	}
	return key, nil
}
