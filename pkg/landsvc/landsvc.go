// Package landsvc implements the Land Service SPEC_FULL.md §4.8 and §6
// describe but never name a Go package for: the component the sim thread
// calls once per tick to "dispatch chunk-load, pseudo-data-gen, and
// pseudo-surface-gen tasks; trim stale chunks", publishing its result
// through the three persistent pkg/land.Tree instances that make up
// worldctl.LandState.
//
// © 2025 voxen-sub000 authors. MIT License.
package landsvc

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/Svenny/voxen-sub000/internal/voxerr"
	"github.com/Svenny/voxen-sub000/pkg/land"
	"github.com/Svenny/voxen-sub000/pkg/landcache"
	"github.com/Svenny/voxen-sub000/pkg/worldctl"
)

// Generators supplies the three generator functions the service dispatches
// on a chunk-request miss.
type Generators struct {
	Chunk         landcache.ChunkGenerator
	PseudoChunk   landcache.PseudoChunkGenerator
	PseudoSurface landcache.PseudoSurfaceGenerator
}

// Config controls staleness trimming.
type Config struct {
	// StaleAfterTicks is how many ticks a chunk may go unrequested before
	// Tick removes it from all three trees. Zero disables trimming.
	StaleAfterTicks uint64
}

// Service owns one worldctl.LandState and the generation caches in front of
// it, and drives per-tick dispatch/trim. Not internally synchronized beyond
// its own request queue: per SPEC_FULL.md §5, only the sim thread calls
// Tick, so the three trees' "single mutator" invariant holds by
// construction as long as callers honor that contract.
type Service struct {
	state  worldctl.LandState
	caches *landcache.Caches
	gens   Generators
	cfg    Config

	mu      sync.Mutex
	pending map[land.ChunkKey]struct{}
	touched map[land.ChunkKey]uint64
}

// New builds a Service over an already-constructed LandState and caches.
func New(state worldctl.LandState, caches *landcache.Caches, gens Generators, cfg Config) *Service {
	return &Service{
		state:   state,
		caches:  caches,
		gens:    gens,
		cfg:     cfg,
		pending: make(map[land.ChunkKey]struct{}),
		touched: make(map[land.ChunkKey]uint64),
	}
}

// State returns the LandState this service mutates. The sim thread reads
// it once per tick, after Tick returns, to publish the new WorldState
// snapshot.
func (s *Service) State() worldctl.LandState { return s.state }

// RequestChunk marks key for generation on the next Tick. Safe to call from
// any goroutine (the player-input/renderer-visibility path, typically),
// unlike Tick itself.
func (s *Service) RequestChunk(key land.ChunkKey) {
	s.mu.Lock()
	s.pending[key] = struct{}{}
	s.mu.Unlock()
}

// RequestArea marks every chunk key within scaledRadius rings of pivot (in
// pivot's own scale) for generation on the next Tick, walking them in the
// same concentric-octahedra order a chunk ticket's octahedron area does in
// the original engine. Safe to call from any goroutine, like RequestChunk.
func (s *Service) RequestArea(pivot land.ChunkKey, scaledRadius int32) {
	scale := int32(1) << pivot.ScaleLog2
	walker := land.NewConcentricOctahedraWalker(scaledRadius)
	for {
		off := walker.Step()
		key := land.ChunkKey{
			X:         pivot.X + scale*off[0],
			Y:         pivot.Y + scale*off[1],
			Z:         pivot.Z + scale*off[2],
			ScaleLog2: pivot.ScaleLog2,
		}.Wrap()
		// Y does not wrap; a ring point above/below the fixed world height
		// simply falls outside any chunk ticket's representable area.
		if key.Valid() {
			s.RequestChunk(key)
		}
		if walker.WrappedAround() {
			return
		}
	}
}

func (s *Service) drainPending() []land.ChunkKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]land.ChunkKey, 0, len(s.pending))
	for k := range s.pending {
		keys = append(keys, k)
	}
	s.pending = make(map[land.ChunkKey]struct{})
	return keys
}

type genResult struct {
	key           land.ChunkKey
	path          land.TreePath
	chunk         *landcache.ChunkPayload
	pseudoChunk   *landcache.PseudoChunkPayload
	pseudoSurface *landcache.PseudoSurfacePayload
}

// Tick dispatches chunk-load/pseudo-chunk/pseudo-surface generation for
// every chunk requested since the last Tick, fanned out concurrently via
// errgroup (one goroutine per generation kind per key - generation itself
// never touches the trees), then applies every result to the three trees
// serially on the calling goroutine before trimming stale entries. Must
// only ever be called from the sim thread.
func (s *Service) Tick(ctx context.Context, tick uint64) error {
	keys := s.drainPending()
	results := make([]genResult, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	for i, k := range keys {
		path, err := land.KeyToTreePath(k)
		if err != nil {
			return voxerr.Wrap(voxerr.InvalidArgument, "landsvc.Tick", err)
		}
		results[i] = genResult{key: k, path: path}

		i, k := i, k
		g.Go(func() error {
			p, err := s.caches.GetOrLoadChunk(gctx, k, s.gens.Chunk)
			if err != nil {
				return err
			}
			results[i].chunk = p
			return nil
		})
		g.Go(func() error {
			p, err := s.caches.GetOrLoadPseudoChunk(gctx, k, s.gens.PseudoChunk)
			if err != nil {
				return err
			}
			results[i].pseudoChunk = p
			return nil
		})
		g.Go(func() error {
			p, err := s.caches.GetOrLoadPseudoSurface(gctx, k, s.gens.PseudoSurface)
			if err != nil {
				return err
			}
			results[i].pseudoSurface = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return voxerr.Wrap(voxerr.ExternalLibFailure, "landsvc.Tick", err)
	}

	for _, r := range results {
		*s.state.Raw.Access(r.path, tick) = *r.chunk
		*s.state.PseudoChunk.Access(r.path, tick) = *r.pseudoChunk
		*s.state.PseudoSurface.Access(r.path, tick) = *r.pseudoSurface
		s.touched[r.key] = tick
	}

	return s.trimStale(tick)
}

// trimStale removes every tracked chunk whose last RequestChunk predates
// tick by more than cfg.StaleAfterTicks, from all three trees.
func (s *Service) trimStale(tick uint64) error {
	if s.cfg.StaleAfterTicks == 0 {
		return nil
	}
	var errs []error
	for k, lastTick := range s.touched {
		if tick < lastTick || tick-lastTick <= s.cfg.StaleAfterTicks {
			continue
		}
		path, err := land.KeyToTreePath(k)
		if err != nil {
			errs = append(errs, err)
			delete(s.touched, k)
			continue
		}
		s.state.Raw.Remove(path, tick)
		s.state.PseudoChunk.Remove(path, tick)
		s.state.PseudoSurface.Remove(path, tick)
		delete(s.touched, k)
	}
	if len(errs) == 0 {
		return nil
	}
	return voxerr.Wrap(voxerr.InvalidArgument, "landsvc.trimStale", multierr.Combine(errs...))
}
