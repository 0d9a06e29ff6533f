package worldctl

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"

	"github.com/Svenny/voxen-sub000/pkg/land"
	"github.com/Svenny/voxen-sub000/pkg/landcache"
)

// LandState bundles the three persistent, never-evicted storage trees that
// make up one tick's authoritative world state - raw chunk blocks,
// pseudo-chunk LOD/impostor data, and pseudo-surface mesh data - per
// SPEC_FULL.md §3's "Land State" and §6's "three hash tries addressable by
// chunk-key tree path". Distinct from pkg/landcache's generation-result
// caches: these trees are never evicted, only Saved/Loaded.
type LandState struct {
	Tick          uint64
	Raw           *land.Tree[landcache.ChunkPayload]
	PseudoChunk   *land.Tree[landcache.PseudoChunkPayload]
	PseudoSurface *land.Tree[landcache.PseudoSurfacePayload]
}

// manifestEntry is one (path, payload) pair as captured by Tree.Walk.
type manifestEntry struct {
	Path uint64
	Data landcache.ChunkPayload
}

type pseudoChunkEntry struct {
	Path uint64
	Data landcache.PseudoChunkPayload
}

type pseudoSurfaceEntry struct {
	Path uint64
	Data landcache.PseudoSurfacePayload
}

// manifest is the gob-encoded value stored under one tick's Badger key.
// encoding/gob is the standard library's self-describing binary codec;
// it's used here rather than the protobuf runtime already pulled in
// indirectly via client_golang (see DESIGN.md's dependency ledger: that
// protobuf dependency is deliberately left indirect, with no generated
// message type anywhere in this repo) because a hand-rolled proto.Message
// without running protoc would be the kind of fabricated-dependency-shim
// this rework avoids, and gob needs no schema compiler at all for an
// internal-only, Go-to-Go snapshot format with no cross-language
// requirement.
type manifest struct {
	Tick          uint64
	Raw           []manifestEntry
	PseudoChunk   []pseudoChunkEntry
	PseudoSurface []pseudoSurfaceEntry
}

func buildManifest(ls LandState) manifest {
	m := manifest{Tick: ls.Tick}
	ls.Raw.Walk(func(path land.TreePath, payload *landcache.ChunkPayload) {
		m.Raw = append(m.Raw, manifestEntry{Path: uint64(path), Data: *payload})
	})
	ls.PseudoChunk.Walk(func(path land.TreePath, payload *landcache.PseudoChunkPayload) {
		m.PseudoChunk = append(m.PseudoChunk, pseudoChunkEntry{Path: uint64(path), Data: *payload})
	})
	ls.PseudoSurface.Walk(func(path land.TreePath, payload *landcache.PseudoSurfacePayload) {
		m.PseudoSurface = append(m.PseudoSurface, pseudoSurfaceEntry{Path: uint64(path), Data: *payload})
	})
	return m
}

// NewLandState builds an empty LandState at tick, ready for Access/Remove.
// Callers outside this package (the land service, the sim thread's initial
// state before the first Start) use this instead of reaching into
// unexported manifest-restoration machinery.
func NewLandState(tick uint64) LandState {
	return LandState{
		Tick:          tick,
		Raw:           land.New[landcache.ChunkPayload](chunkPayloadOps()),
		PseudoChunk:   land.New[landcache.PseudoChunkPayload](pseudoChunkPayloadOps()),
		PseudoSurface: land.New[landcache.PseudoSurfacePayload](pseudoSurfacePayloadOps()),
	}
}

// restoreLandState rebuilds a LandState from a decoded manifest, writing
// every entry back at the manifest's own tick so the restored trees carry
// tick stamps consistent with a tree that had just been mutated at Save
// time.
func restoreLandState(m manifest) LandState {
	ls := LandState{
		Tick:          m.Tick,
		Raw:           land.New[landcache.ChunkPayload](chunkPayloadOps()),
		PseudoChunk:   land.New[landcache.PseudoChunkPayload](pseudoChunkPayloadOps()),
		PseudoSurface: land.New[landcache.PseudoSurfacePayload](pseudoSurfacePayloadOps()),
	}
	for _, e := range m.Raw {
		*ls.Raw.Access(land.TreePath(e.Path), m.Tick) = e.Data
	}
	for _, e := range m.PseudoChunk {
		*ls.PseudoChunk.Access(land.TreePath(e.Path), m.Tick) = e.Data
	}
	for _, e := range m.PseudoSurface {
		*ls.PseudoSurface.Access(land.TreePath(e.Path), m.Tick) = e.Data
	}
	return ls
}

func chunkPayloadOps() land.Ops[landcache.ChunkPayload] {
	return land.Ops[landcache.ChunkPayload]{
		New:  func() *landcache.ChunkPayload { return &landcache.ChunkPayload{} },
		Copy: func(v *landcache.ChunkPayload) *landcache.ChunkPayload { c := *v; return &c },
	}
}

func pseudoChunkPayloadOps() land.Ops[landcache.PseudoChunkPayload] {
	return land.Ops[landcache.PseudoChunkPayload]{
		New:  func() *landcache.PseudoChunkPayload { return &landcache.PseudoChunkPayload{} },
		Copy: func(v *landcache.PseudoChunkPayload) *landcache.PseudoChunkPayload { c := *v; return &c },
	}
}

func pseudoSurfacePayloadOps() land.Ops[landcache.PseudoSurfacePayload] {
	return land.Ops[landcache.PseudoSurfacePayload]{
		New:  func() *landcache.PseudoSurfacePayload { return &landcache.PseudoSurfacePayload{} },
		Copy: func(v *landcache.PseudoSurfacePayload) *landcache.PseudoSurfacePayload { c := *v; return &c },
	}
}

func encodeManifest(m manifest) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("worldctl: encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeManifest(data []byte) (manifest, error) {
	var m manifest
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return manifest{}, fmt.Errorf("worldctl: decode manifest: %w", err)
	}
	return m, nil
}

// tickKey is the Badger key for tick: big-endian so Badger's own key
// ordering (used by iteration in, e.g., a future "list snapshots" tool)
// sorts snapshots oldest-to-newest.
func tickKey(tick uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], tick)
	return b[:]
}
