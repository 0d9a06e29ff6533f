// Package landcache instantiates the teacher's generic, CLOCK-Pro-evicted,
// singleflight-deduplicated cache engine (pkg/cache.Cache[K,V]) three times,
// once per kind of generated land data named in SPEC_FULL.md's "Land State"
// data model: raw chunk blocks, pseudo-chunk LOD/impostor data, and
// pseudo-surface mesh data for the renderer.
//
// Unlike the persistent, never-evicted trees in pkg/land (the authoritative
// world state), these caches hold the *results of generation work* -
// keyed by the same land.ChunkKey, but capacity-bounded and safe to evict
// and regenerate under memory pressure. GetOrLoad's singleflight layer is
// what actually implements "dispatch chunk-load ... tasks" from
// SPEC_FULL.md §4.8: concurrent requests for the same ungenerated chunk
// collapse into a single generator call.
//
// © 2025 voxen-sub000 authors. MIT License.
package landcache

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cache "github.com/Svenny/voxen-sub000/pkg"
	"github.com/Svenny/voxen-sub000/pkg/land"
)

// ChunkPayload is the raw block data for one chunk leaf.
type ChunkPayload struct {
	Tick uint64
	Data []byte
}

// PseudoChunkPayload is aggregated LOD/impostor data derived from one or more
// finer chunks, stored at a duoctree node's coarser scale.
type PseudoChunkPayload struct {
	Tick uint64
	Data []byte
}

// PseudoSurfacePayload is renderer-consumed mesh data generated from a
// chunk's (or pseudo-chunk's) block data.
type PseudoSurfacePayload struct {
	Tick uint64
	Data []byte
}

// ChunkGenerator produces a chunk's raw block data; PseudoChunkGenerator and
// PseudoSurfaceGenerator are its LOD/impostor and mesh-data counterparts.
// All three share LoaderFunc's contract: pure with respect to the cache,
// context-aware, safe to call concurrently for distinct keys.
type (
	ChunkGenerator         = cache.LoaderFunc[land.ChunkKey, *ChunkPayload]
	PseudoChunkGenerator   = cache.LoaderFunc[land.ChunkKey, *PseudoChunkPayload]
	PseudoSurfaceGenerator = cache.LoaderFunc[land.ChunkKey, *PseudoSurfacePayload]
)

// Config sizes one of the three underlying caches.
type Config struct {
	CapBytes int64
	TTL      time.Duration
	Shards   uint8
}

// Caches bundles the three generation caches the land service drives per
// tick: chunk, pseudo-chunk, and pseudo-surface.
type Caches struct {
	Chunk         *cache.Cache[land.ChunkKey, *ChunkPayload]
	PseudoChunk   *cache.Cache[land.ChunkKey, *PseudoChunkPayload]
	PseudoSurface *cache.Cache[land.ChunkKey, *PseudoSurfacePayload]
}

// New builds the three caches. A nil registry disables Prometheus metrics
// for all three, matching the teacher's cache package's opt-in default. All
// three are registered under the same reg (distinguished by subsystem name -
// "chunk", "pseudo_chunk", "pseudo_surface" - so their metric families don't
// collide; see cache.WithMetrics).
func New(chunkCfg, pseudoChunkCfg, pseudoSurfaceCfg Config, reg *prometheus.Registry) (*Caches, error) {
	var opts []cache.Option[land.ChunkKey, *ChunkPayload]
	if reg != nil {
		opts = append(opts, cache.WithMetrics[land.ChunkKey, *ChunkPayload](reg, "chunk"))
	}
	chunkC, err := cache.New[land.ChunkKey, *ChunkPayload](chunkCfg.CapBytes, chunkCfg.TTL, chunkCfg.Shards, opts...)
	if err != nil {
		return nil, err
	}

	var pcOpts []cache.Option[land.ChunkKey, *PseudoChunkPayload]
	if reg != nil {
		pcOpts = append(pcOpts, cache.WithMetrics[land.ChunkKey, *PseudoChunkPayload](reg, "pseudo_chunk"))
	}
	pseudoChunkC, err := cache.New[land.ChunkKey, *PseudoChunkPayload](pseudoChunkCfg.CapBytes, pseudoChunkCfg.TTL, pseudoChunkCfg.Shards, pcOpts...)
	if err != nil {
		return nil, err
	}

	var psOpts []cache.Option[land.ChunkKey, *PseudoSurfacePayload]
	if reg != nil {
		psOpts = append(psOpts, cache.WithMetrics[land.ChunkKey, *PseudoSurfacePayload](reg, "pseudo_surface"))
	}
	pseudoSurfaceC, err := cache.New[land.ChunkKey, *PseudoSurfacePayload](pseudoSurfaceCfg.CapBytes, pseudoSurfaceCfg.TTL, pseudoSurfaceCfg.Shards, psOpts...)
	if err != nil {
		return nil, err
	}

	return &Caches{Chunk: chunkC, PseudoChunk: pseudoChunkC, PseudoSurface: pseudoSurfaceC}, nil
}

// GetOrLoadChunk fetches key's cached raw block data, generating it via gen
// on a miss; concurrent misses for the same key share one gen call.
func (c *Caches) GetOrLoadChunk(ctx context.Context, key land.ChunkKey, gen ChunkGenerator) (*ChunkPayload, error) {
	return c.Chunk.GetOrLoad(ctx, key, gen)
}

// GetOrLoadPseudoChunk is GetOrLoadChunk's pseudo-chunk (LOD/impostor)
// counterpart.
func (c *Caches) GetOrLoadPseudoChunk(ctx context.Context, key land.ChunkKey, gen PseudoChunkGenerator) (*PseudoChunkPayload, error) {
	return c.PseudoChunk.GetOrLoad(ctx, key, gen)
}

// GetOrLoadPseudoSurface is GetOrLoadChunk's mesh-data counterpart.
func (c *Caches) GetOrLoadPseudoSurface(ctx context.Context, key land.ChunkKey, gen PseudoSurfaceGenerator) (*PseudoSurfacePayload, error) {
	return c.PseudoSurface.GetOrLoad(ctx, key, gen)
}

// Close releases all three caches' background resources (arena rotation
// timers and the like).
func (c *Caches) Close() {
	c.Chunk.Close()
	c.PseudoChunk.Close()
	c.PseudoSurface.Close()
}

// Stats reports the combined entry count and byte size across all three
// caches, for periodic publication to internal/metrics gauges by the sim
// thread or land service.
func (c *Caches) Stats() (entries int, bytes int64) {
	entries = c.Chunk.Len() + c.PseudoChunk.Len() + c.PseudoSurface.Len()
	bytes = c.Chunk.SizeBytes() + c.PseudoChunk.SizeBytes() + c.PseudoSurface.SizeBytes()
	return entries, bytes
}
