package landsvc

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Svenny/voxen-sub000/pkg/land"
	"github.com/Svenny/voxen-sub000/pkg/landcache"
	"github.com/Svenny/voxen-sub000/pkg/worldctl"
)

func testCaches(t *testing.T) *landcache.Caches {
	t.Helper()
	cfg := landcache.Config{CapBytes: 1 << 20, TTL: time.Minute, Shards: 2}
	caches, err := landcache.New(cfg, cfg, cfg, nil)
	if err != nil {
		t.Fatalf("landcache.New: %v", err)
	}
	t.Cleanup(caches.Close)
	return caches
}

func countingGenerators() (Generators, *int32) {
	var calls int32
	return Generators{
		Chunk: func(ctx context.Context, k land.ChunkKey) (*landcache.ChunkPayload, error) {
			atomic.AddInt32(&calls, 1)
			return &landcache.ChunkPayload{Data: []byte("c")}, nil
		},
		PseudoChunk: func(ctx context.Context, k land.ChunkKey) (*landcache.PseudoChunkPayload, error) {
			return &landcache.PseudoChunkPayload{Data: []byte("pc")}, nil
		},
		PseudoSurface: func(ctx context.Context, k land.ChunkKey) (*landcache.PseudoSurfacePayload, error) {
			return &landcache.PseudoSurfacePayload{Data: []byte("ps")}, nil
		},
	}, &calls
}

func TestTickPopulatesAllThreeTreesForRequestedChunks(t *testing.T) {
	state := worldctl.NewLandState(0)
	gens, _ := countingGenerators()
	svc := New(state, testCaches(t), gens, Config{})

	key := land.ChunkKey{X: 0, Y: 0, Z: 0, ScaleLog2: 0}
	svc.RequestChunk(key)

	if err := svc.Tick(context.Background(), 1); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	path, err := land.KeyToTreePath(key)
	if err != nil {
		t.Fatalf("KeyToTreePath: %v", err)
	}
	if v, ok := state.Raw.Lookup(path); !ok || string(v.Data) != "c" {
		t.Fatalf("expected raw chunk payload, got %v ok=%v", v, ok)
	}
	if v, ok := state.PseudoChunk.Lookup(path); !ok || string(v.Data) != "pc" {
		t.Fatalf("expected pseudo-chunk payload, got %v ok=%v", v, ok)
	}
	if v, ok := state.PseudoSurface.Lookup(path); !ok || string(v.Data) != "ps" {
		t.Fatalf("expected pseudo-surface payload, got %v ok=%v", v, ok)
	}
}

func TestTickWithNoPendingRequestsIsANoop(t *testing.T) {
	state := worldctl.NewLandState(0)
	gens, calls := countingGenerators()
	svc := New(state, testCaches(t), gens, Config{})

	if err := svc.Tick(context.Background(), 1); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if atomic.LoadInt32(calls) != 0 {
		t.Fatalf("expected no generator calls with no pending requests, got %d", *calls)
	}
}

func TestRequestAreaWalksConcentricOctahedra(t *testing.T) {
	state := worldctl.NewLandState(0)
	gens, calls := countingGenerators()
	svc := New(state, testCaches(t), gens, Config{})

	pivot := land.ChunkKey{X: 0, Y: 0, Z: 0, ScaleLog2: 0}
	svc.RequestArea(pivot, 2) // 1 + 6 + 18 = 25 ring points

	if err := svc.Tick(context.Background(), 1); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	// Every ring point is distinct and in bounds for this pivot, so all 25
	// should have reached the generators.
	if got := atomic.LoadInt32(calls); got != 25 {
		t.Fatalf("expected 25 generator calls for a radius-2 area, got %d", got)
	}

	// Spot-check a ring-1 face neighbor actually landed in the tree.
	neighbor := land.ChunkKey{X: 1, Y: 0, Z: 0, ScaleLog2: 0}
	path, err := land.KeyToTreePath(neighbor)
	if err != nil {
		t.Fatalf("KeyToTreePath: %v", err)
	}
	if _, ok := state.Raw.Lookup(path); !ok {
		t.Fatal("expected ring-1 neighbor chunk to be loaded")
	}
}

func TestTrimRemovesChunksUnrequestedPastStaleness(t *testing.T) {
	state := worldctl.NewLandState(0)
	gens, _ := countingGenerators()
	svc := New(state, testCaches(t), gens, Config{StaleAfterTicks: 2})

	stale := land.ChunkKey{X: 0, Y: 0, Z: 0, ScaleLog2: 0}
	fresh := land.ChunkKey{X: 4, Y: 0, Z: 0, ScaleLog2: 0}

	svc.RequestChunk(stale)
	if err := svc.Tick(context.Background(), 1); err != nil {
		t.Fatalf("Tick(1): %v", err)
	}

	svc.RequestChunk(fresh)
	if err := svc.Tick(context.Background(), 5); err != nil {
		t.Fatalf("Tick(5): %v", err)
	}

	stalePath, _ := land.KeyToTreePath(stale)
	freshPath, _ := land.KeyToTreePath(fresh)

	if _, ok := state.Raw.Lookup(stalePath); ok {
		t.Fatal("expected stale chunk to be trimmed from raw tree")
	}
	if _, ok := state.PseudoChunk.Lookup(stalePath); ok {
		t.Fatal("expected stale chunk to be trimmed from pseudo-chunk tree")
	}
	if _, ok := state.Raw.Lookup(freshPath); !ok {
		t.Fatal("expected freshly requested chunk to survive trimming")
	}
}
