package sim

import (
	"github.com/Svenny/voxen-sub000/internal/uid"
	"github.com/Svenny/voxen-sub000/pkg/land"
	"github.com/Svenny/voxen-sub000/pkg/worldctl"
)

// UID is the sim thread's own agent identity - the destination for every
// PlayerState/Save/Stop message a host sends it.
var UID = uid.FromU64Pair(0x5349_4d5f_5448_5245, 0x4144_5f55_4944_0001) // "SIM_THREAD_UID" in ASCII-ish hex

// Well-known message UIDs the sim thread registers handlers for. Values are
// arbitrary but fixed, mirroring how the original engine's message UIDs are
// compile-time constants.
var (
	MsgPlayerState = uid.FromU64Pair(0x504c_4159_4552_5354, 0x4154_4500_0000_0001)
	MsgSave        = uid.FromU64Pair(0x574f_524c_4443_544c, 0x5341_5645_0000_0001)
	MsgStop        = uid.FromU64Pair(0x574f_524c_4443_544c, 0x5354_4f50_0000_0001)
)

// PlayerStateMessage is the host input layer's per-frame report of the
// player's position, orientation, and targeted block, per SPEC_FULL.md §6's
// host contract ("translates OS key/mouse events into a PlayerStateMessage
// (position, orientation, target block)").
type PlayerStateMessage struct {
	Position    [3]float64
	Orientation [3]float64
	TargetBlock *land.ChunkKey // nil if no block is targeted
}

// SaveCommand asks the sim thread to dispatch a World Control Save against
// its current snapshot. Progress/Result are optional, as in
// worldctl.Service.Save.
type SaveCommand struct {
	Progress worldctl.ProgressCallback
	Result   worldctl.ResultCallback
}

// StopCommand asks the sim thread to stop ticking and the World Control
// service to stop accepting further Saves.
type StopCommand struct {
	Progress worldctl.ProgressCallback
	Result   worldctl.ResultCallback
}
