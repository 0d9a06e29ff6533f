// Package sim implements the Frame/Tick Sim Thread: one dedicated goroutine
// driving the engine simulation at a fixed tick interval, publishing an
// atomically-swapped WorldState snapshot every tick.
//
// © 2025 voxen-sub000 authors. MIT License.
package sim

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Svenny/voxen-sub000/internal/envconfig"
	"github.com/Svenny/voxen-sub000/pkg/landsvc"
	"github.com/Svenny/voxen-sub000/pkg/svc/messaging"
	"github.com/Svenny/voxen-sub000/pkg/worldctl"
)

// WorldState is the consistent, immutable snapshot published once per tick.
// Readers (the renderer, host code) load it via atomic.Pointer and never see
// a partially-updated tick, per SPEC_FULL.md §5's "the world-state snapshot
// pointer is published with release and read with acquire; readers see an
// entirely consistent snapshot".
type WorldState struct {
	Tick uint64
	Land worldctl.LandState
}

// Config controls the sim thread's tick cadence and chunk streaming.
type Config struct {
	// TickInterval is the fixed duration between ticks. Defaults to 10ms
	// (100 ticks/s) from VOXEN_TICK_INTERVAL (Go duration syntax, e.g.
	// "10ms") if unset/non-positive.
	TickInterval time.Duration

	// StreamRadius is the scaled radius of the concentric-octahedra area
	// requested, each tick, around the latest PlayerStateMessage's target
	// block. Defaults to 4 from VOXEN_STREAM_RADIUS if unset/non-positive.
	StreamRadius int32
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = envconfig.Duration("VOXEN_TICK_INTERVAL", 10*time.Millisecond)
	}
	if c.StreamRadius <= 0 {
		c.StreamRadius = int32(envconfig.Int("VOXEN_STREAM_RADIUS", 4))
	}
	return c
}

// Thread is the sim thread: it owns the land service, the world control
// service, and an inbound MessageQueue, and drives Tick once per tick
// boundary until stopped.
type Thread struct {
	cfg    Config
	mq     *messaging.MessageQueue
	land   *landsvc.Service
	ctl    *worldctl.Service
	logger *zap.Logger

	current atomic.Pointer[WorldState]

	playerMu sync.Mutex
	player   PlayerStateMessage

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New builds a Thread. initial is the first WorldState to publish before
// the first tick runs - typically whatever worldctl.Service.Start loaded.
// mq must not yet have handlers registered for MsgPlayerState/MsgSave/
// MsgStop; New registers them.
func New(mq *messaging.MessageQueue, land *landsvc.Service, ctl *worldctl.Service, initial WorldState, cfg Config, logger *zap.Logger) *Thread {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Thread{
		cfg:    cfg.withDefaults(),
		mq:     mq,
		land:   land,
		ctl:    ctl,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	t.current.Store(&initial)

	mq.RegisterHandler(MsgPlayerState, t.handlePlayerState)
	mq.RegisterHandler(MsgSave, t.handleSave)
	mq.RegisterHandler(MsgStop, t.handleStop)

	return t
}

// Current returns the most recently published WorldState. Safe to call
// from any goroutine.
func (t *Thread) Current() *WorldState { return t.current.Load() }

// Done is closed once Run has returned.
func (t *Thread) Done() <-chan struct{} { return t.doneCh }

// RequestStop asks Run to exit after finishing any tick already in
// progress. Idempotent; does not itself touch the World Control service -
// pair with a StopCommand message, or call ctl.Stop separately, to also
// drain World Control's own in-flight Saves.
func (t *Thread) RequestStop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
}

func (t *Thread) handlePlayerState(_ messaging.MessageInfo, payload any) {
	ps, ok := payload.(PlayerStateMessage)
	if !ok {
		return
	}
	t.playerMu.Lock()
	t.player = ps
	t.playerMu.Unlock()
}

func (t *Thread) handleSave(_ messaging.MessageInfo, payload any) {
	cmd, ok := payload.(SaveCommand)
	if !ok {
		return
	}
	snap := t.current.Load()
	t.ctl.Save(context.Background(), func() worldctl.LandState { return snap.Land }, cmd.Progress, cmd.Result)
}

func (t *Thread) handleStop(_ messaging.MessageInfo, payload any) {
	cmd, _ := payload.(StopCommand)
	t.RequestStop()
	t.ctl.Stop(context.Background(), cmd.Progress, cmd.Result)
}

// Run drives the fixed-tick loop: poll inbound messages, advance the land
// service, publish a new snapshot, sleep until the next tick boundary.
// Blocks until ctx is cancelled or RequestStop is called (directly, or via
// a routed StopCommand); call it from its own goroutine. Closes Done on
// return.
func (t *Thread) Run(ctx context.Context) {
	defer close(t.doneCh)

	ticker := time.NewTicker(t.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.runTick(ctx)
		}
	}
}

func (t *Thread) runTick(ctx context.Context) {
	t.mq.PollMessages()

	t.playerMu.Lock()
	target := t.player.TargetBlock
	t.playerMu.Unlock()
	if target != nil {
		// Keep the chunks around the player's targeted block loaded, walked
		// in the same concentric-octahedra order a chunk ticket's
		// octahedron area does in the original engine.
		t.land.RequestArea(*target, t.cfg.StreamRadius)
	}

	prev := t.current.Load()
	nextTick := prev.Tick + 1

	if err := t.land.Tick(ctx, nextTick); err != nil {
		t.logger.Error("land service tick failed", zap.Uint64("tick", nextTick), zap.Error(err))
	}

	t.current.Store(&WorldState{Tick: nextTick, Land: t.land.State()})
}
