package landcache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Svenny/voxen-sub000/pkg/land"
)

func testConfig() Config {
	return Config{CapBytes: 1 << 20, TTL: time.Minute, Shards: 2}
}

func TestGetOrLoadChunkCachesAndDedups(t *testing.T) {
	caches, err := New(testConfig(), testConfig(), testConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer caches.Close()

	key := land.ChunkKey{X: 0, Y: 0, Z: 0, ScaleLog2: 0}

	var calls int32
	start := make(chan struct{})
	gen := func(ctx context.Context, k land.ChunkKey) (*ChunkPayload, error) {
		atomic.AddInt32(&calls, 1)
		<-start
		return &ChunkPayload{Tick: 1, Data: []byte("chunk")}, nil
	}

	const goroutines = 8
	var wg sync.WaitGroup
	results := make([]*ChunkPayload, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := caches.GetOrLoadChunk(context.Background(), key, gen)
			if err != nil {
				t.Errorf("GetOrLoadChunk: %v", err)
				return
			}
			results[i] = v
		}(i)
	}
	close(start)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected generator to run exactly once, ran %d times", got)
	}
	for i, r := range results {
		if r == nil || string(r.Data) != "chunk" {
			t.Fatalf("goroutine %d got unexpected result %v", i, r)
		}
	}

	entries, _ := caches.Stats()
	if entries != 1 {
		t.Fatalf("expected 1 cached entry after first load, got %d", entries)
	}
}

func TestGetOrLoadPropagatesGeneratorError(t *testing.T) {
	caches, err := New(testConfig(), testConfig(), testConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer caches.Close()

	key := land.ChunkKey{X: 4, Y: 0, Z: 0, ScaleLog2: 0}
	wantErr := context.DeadlineExceeded
	gen := func(ctx context.Context, k land.ChunkKey) (*PseudoSurfacePayload, error) {
		return nil, wantErr
	}

	if _, err := caches.GetOrLoadPseudoSurface(context.Background(), key, gen); err != wantErr {
		t.Fatalf("expected generator error to propagate, got %v", err)
	}
}

func TestSeparateCachesDoNotShareKeys(t *testing.T) {
	caches, err := New(testConfig(), testConfig(), testConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer caches.Close()

	key := land.ChunkKey{X: 0, Y: 0, Z: 0, ScaleLog2: 2}
	_, err = caches.GetOrLoadPseudoChunk(context.Background(), key, func(ctx context.Context, k land.ChunkKey) (*PseudoChunkPayload, error) {
		return &PseudoChunkPayload{Tick: 1, Data: []byte("pc")}, nil
	})
	if err != nil {
		t.Fatalf("GetOrLoadPseudoChunk: %v", err)
	}

	var chunkCalls int32
	_, err = caches.GetOrLoadChunk(context.Background(), key, func(ctx context.Context, k land.ChunkKey) (*ChunkPayload, error) {
		atomic.AddInt32(&chunkCalls, 1)
		return &ChunkPayload{Tick: 1, Data: []byte("c")}, nil
	})
	if err != nil {
		t.Fatalf("GetOrLoadChunk: %v", err)
	}
	if chunkCalls != 1 {
		t.Fatalf("expected chunk cache miss despite identical key in pseudo-chunk cache, got %d calls", chunkCalls)
	}
}
