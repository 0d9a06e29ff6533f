// Package land implements the Land Storage Tree: a copy-on-write tree
// mapping 21-bit packed ChunkKeys to caller payloads over a fixed,
// toroidally-wrapped (X/Z) world span.
//
// © 2025 voxen-sub000 authors. MIT License.
package land

// Node sizes, in chunks, for every level below the root grid. Levels
// double twice per duoctree step (x4 -> x16 -> x64 -> x256), matching
// the original engine's DuoctreeNodeBase<TChild>::NODE_SIZE_CHUNKS = 4 *
// TChild::NODE_SIZE_CHUNKS. The triquadtree levels above them double per
// level on the X/Z axis (see TriBridgeSizeChunks below), unlike the
// original's TriquadtreeNodeBase<...>::NODE_SIZE_CHUNKS = 8 * TChild.
const (
	DuoctreeX4SizeChunks   = 4
	DuoctreeX16SizeChunks  = 16
	DuoctreeX64SizeChunks  = 64
	DuoctreeX256SizeChunks = 256

	// TriBridgeSizeChunks/TriRootSizeChunks grow the X/Z axis by one quad
	// (2-way per axis) split per level above the largest duoctree node;
	// the bridge level additionally folds in a Y-half selector bit so the
	// full [MinWorldYChunk, MaxWorldYChunk] span is covered by exactly
	// two stacked DuoctreeX256 subtrees.
	TriBridgeSizeChunks = 2 * DuoctreeX256SizeChunks
	TriRootSizeChunks   = 2 * TriBridgeSizeChunks

	// RootItemSizeChunks is the span, in chunks, covered by one root grid
	// slot - exactly one TriquadtreeRootNode subtree.
	RootItemSizeChunks = TriRootSizeChunks

	// RootItemsX/RootItemsZ size the root grid. The original engine
	// tuned these for its target world size; this rework keeps the root
	// grid small (16 cells) since the subtree below each root cell
	// already spans RootItemSizeChunks chunks on a side.
	RootItemsX = 4
	RootItemsZ = 4

	// NumLODScales is the number of representable chunk scale levels
	// (scale_log2 in [0, NumLODScales-1]): one "chunk" leaf level plus
	// one level per duoctree step, even and odd (subnode) scales
	// interleaved - 1 (chunk) + 2*4 (duoctree levels) = 9.
	NumLODScales = 9

	// MinWorldYChunk/MaxWorldYChunk bound the Y axis (not wrapped,
	// unlike X/Z): two stacked largest duoctree nodes span exactly this
	// range, split at Y=0.
	MinWorldYChunk = -DuoctreeX256SizeChunks
	MaxWorldYChunk = DuoctreeX256SizeChunks - 1

	worldXChunks = RootItemsX * RootItemSizeChunks
	worldZChunks = RootItemsZ * RootItemSizeChunks

	// MinUniqueWorldXChunk/MaxUniqueWorldXChunk (and Z) bound one period
	// of the X/Z torus - coordinates outside this range wrap, but every
	// value in it maps to a unique tree path.
	MinUniqueWorldXChunk = -worldXChunks / 2
	MaxUniqueWorldXChunk = worldXChunks/2 - 1
	MinUniqueWorldZChunk = -worldZChunks / 2
	MaxUniqueWorldZChunk = worldZChunks/2 - 1

	// ChunkKeyXZBits/ChunkKeyYBits give the field widths of a packed
	// ChunkKey encoding; ChunkKey itself stores plain int32 fields and this
	// package has no function that packs it. Must stay under 32 so this package's use of int32
	// intermediates during path math can't silently overflow.
	ChunkKeyXZBits = 21
	ChunkKeyYBits  = 21
)
