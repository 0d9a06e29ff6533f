// Package worldctl implements the World Control service: the three
// asynchronous operations (start, save, stop) SPEC_FULL.md §6 exposes to
// host code, backed by a BadgerDB-persisted, tick-indexed snapshot store.
// Each operation is dispatched as a task on the shared Task System so it
// runs off the sim thread, and reports progress/completion through the
// caller-supplied callbacks rather than blocking - a direct rework of
// examples/disk_eject/main.go's BadgerDB L2-cache pattern, repurposed from
// "cache eviction backstop" to "tick-indexed world snapshot store".
//
// © 2025 voxen-sub000 authors. MIT License.
package worldctl

import (
	"context"
	"sync"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/Svenny/voxen-sub000/internal/voxerr"
	"github.com/Svenny/voxen-sub000/pkg/svc/task"
)

// ProgressCallback is invoked zero or more times during an operation with a
// monotonically increasing fraction in [0,1].
type ProgressCallback func(fraction float64)

// ResultCallback is invoked exactly once when an operation finishes,
// carrying its error (nil on success).
type ResultCallback func(err error)

// SnapshotFunc returns the world's current LandState for Save to persist.
// The sim thread supplies this by closing over its published snapshot.
type SnapshotFunc func() LandState

// Config controls Service construction.
type Config struct {
	// Dir is the BadgerDB data directory.
	Dir string
}

// Service owns the Badger handle and dispatches start/save/stop as tasks.
type Service struct {
	db     *badger.DB
	tasks  *task.Service
	logger *zap.Logger

	stopped   atomic.Bool
	ops       sync.WaitGroup // tracks in-flight Start/Save tasks only, not Stop itself
	closeOnce sync.Once
	closeErr  error
}

// New opens (or creates) the Badger store at cfg.Dir and returns a Service
// that dispatches its operations onto tasks.
func New(cfg Config, tasks *task.Service, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := badger.DefaultOptions(cfg.Dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, voxerr.Wrap(voxerr.ExternalLibFailure, "worldctl.New", err)
	}
	return &Service{db: db, tasks: tasks, logger: logger}, nil
}

func reportProgress(cb ProgressCallback, fraction float64) {
	if cb != nil {
		cb(fraction)
	}
}

func reportResult(cb ResultCallback, err error) {
	if cb != nil {
		cb(err)
	}
}

// Start loads the most recently saved LandState (the highest tick key in
// the store), or returns a fresh, empty LandState at tick 0 if the store is
// empty. The loaded (or fresh) state is delivered via onLoaded before
// result fires, so the sim thread can publish it as the first WorldState.
func (s *Service) Start(ctx context.Context, onLoaded func(LandState), progress ProgressCallback, result ResultCallback) {
	s.ops.Add(1)
	s.tasks.NewBuilder().EnqueueTaskWithHandle(func(*task.Context) {
		defer s.ops.Done()
		reportProgress(progress, 0)

		ls, found, err := s.loadLatest()
		if err != nil {
			reportResult(result, voxerr.Wrap(voxerr.ExternalLibFailure, "worldctl.Start", err))
			return
		}
		if !found {
			ls = NewLandState(0)
		}
		reportProgress(progress, 1)
		if onLoaded != nil {
			onLoaded(ls)
		}
		reportResult(result, nil)
	})
}

// Save serializes snapshot() into a manifest and writes it under its tick's
// key. Concurrent Saves for distinct ticks proceed independently; Badger's
// own transaction isolation serializes writes to the same key.
func (s *Service) Save(ctx context.Context, snapshot SnapshotFunc, progress ProgressCallback, result ResultCallback) {
	if s.stopped.Load() {
		reportResult(result, voxerr.New(voxerr.InvalidArgument, "worldctl.Save: service stopped"))
		return
	}
	s.ops.Add(1)
	s.tasks.NewBuilder().EnqueueTaskWithHandle(func(*task.Context) {
		defer s.ops.Done()
		reportProgress(progress, 0)

		ls := snapshot()
		m := buildManifest(ls)
		reportProgress(progress, 0.5)

		data, err := encodeManifest(m)
		if err != nil {
			reportResult(result, voxerr.Wrap(voxerr.InvalidData, "worldctl.Save", err))
			return
		}

		err = s.db.Update(func(txn *badger.Txn) error {
			return txn.Set(tickKey(ls.Tick), data)
		})
		if err != nil {
			reportResult(result, voxerr.Wrap(voxerr.ExternalLibFailure, "worldctl.Save", err))
			return
		}

		reportProgress(progress, 1)
		reportResult(result, nil)
	})
}

// Load fetches and decodes the manifest saved at exactly tick, returning
// voxerr.InvalidData-tagged errors for missing or corrupt entries.
func (s *Service) Load(ctx context.Context, tick uint64) (LandState, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(tickKey(tick))
		if err != nil {
			return err
		}
		return item.Value(func(b []byte) error {
			data = append([]byte(nil), b...)
			return nil
		})
	})
	if err != nil {
		return LandState{}, voxerr.Wrap(voxerr.InvalidData, "worldctl.Load", err)
	}
	m, err := decodeManifest(data)
	if err != nil {
		return LandState{}, voxerr.Wrap(voxerr.InvalidData, "worldctl.Load", err)
	}
	return restoreLandState(m), nil
}

// loadLatest scans for the highest tick key present and decodes it. Badger
// iterates keys in lexicographic order, which for big-endian uint64 keys
// (see tickKey) is numeric order, so the last key visited is the latest
// tick.
func (s *Service) loadLatest() (LandState, bool, error) {
	var data []byte
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			found = true
			item := it.Item()
			if err := item.Value(func(b []byte) error {
				data = append(data[:0], b...)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return LandState{}, false, err
	}
	if !found {
		return LandState{}, false, nil
	}
	m, err := decodeManifest(data)
	if err != nil {
		return LandState{}, false, err
	}
	return restoreLandState(m), true, nil
}

// Stop marks the service closed to new Saves, waits for every in-flight
// Start/Save task to finish, then closes the Badger handle. Safe to call
// more than once; later calls return immediately with a nil result.
func (s *Service) Stop(ctx context.Context, progress ProgressCallback, result ResultCallback) {
	if !s.stopped.CompareAndSwap(false, true) {
		reportResult(result, nil)
		return
	}
	s.tasks.NewBuilder().EnqueueTaskWithHandle(func(*task.Context) {
		reportProgress(progress, 0)
		s.ops.Wait()
		s.closeDB()
		reportProgress(progress, 1)
		if s.closeErr != nil {
			reportResult(result, voxerr.Wrap(voxerr.ExternalLibFailure, "worldctl.Stop", s.closeErr))
			return
		}
		reportResult(result, nil)
	})
}

// Close force-stops synchronously, logging rather than returning an error -
// the destructor-time backstop SPEC_FULL.md §4.8 describes ("the World
// Control service also logs and force-stops on its destructor"). Prefer
// Stop with a ResultCallback for an orderly shutdown; Close is for defer.
func (s *Service) Close() {
	s.stopped.Store(true)
	s.ops.Wait()
	s.closeDB()
	if s.closeErr != nil {
		s.logger.Error("worldctl: force-stop close failed", zap.Error(s.closeErr))
	}
}

func (s *Service) closeDB() {
	s.closeOnce.Do(func() {
		s.closeErr = s.db.Close()
	})
}
