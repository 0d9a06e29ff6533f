// Package uid implements the engine-wide 128-bit opaque identity used to
// address services, agents and message types.
//
// The layout mirrors the common "UUID-like" 128-bit value: two uint64 halves,
// hashable and comparable by value, with a literal constructor suited for
// compile-time UID tables (service/message UIDs are usually declared as
// package-level vars built with FromU64Pair).
//
// © 2025 voxen-sub000 authors. MIT License.
package uid

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// UID is a 128-bit opaque identifier. Zero value is the reserved "nil" UID.
type UID struct {
	Hi, Lo uint64
}

// Nil is the reserved, never-valid UID used as a sentinel.
var Nil = UID{}

// FromU64Pair builds a UID from two explicit 64-bit halves. This is the
// idiomatic replacement for the original engine's UID literal syntax: callers
// declare package-level UIDs as
//
//	var ServiceTaskSystem = uid.FromU64Pair(0x1111111111111111, 0x2222222222222222)
func FromU64Pair(hi, lo uint64) UID { return UID{Hi: hi, Lo: lo} }

// IsNil reports whether u is the reserved nil UID.
func (u UID) IsNil() bool { return u.Hi == 0 && u.Lo == 0 }

// String renders the UID in hyphenated hex form for logs.
func (u UID) String() string {
	return fmt.Sprintf("%016x-%016x", u.Hi, u.Lo)
}

// Hash64 returns a 64-bit hash of the UID, used to index routing/registry
// shards uniformly. Built on xxhash, the same hash family the teacher's
// dependency tree already carries transitively through badger.
func (u UID) Hash64() uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], u.Hi)
	binary.LittleEndian.PutUint64(buf[8:16], u.Lo)
	return xxhash.Sum64(buf[:])
}

// ShardIndex maps the UID uniformly onto [0, numShards) for sharded
// registries (routing tables, task counter tracker shards are indexed
// differently, but messaging/service registries use this).
func (u UID) ShardIndex(numShards int) int {
	if numShards <= 0 {
		return 0
	}
	return int(u.Hash64() % uint64(numShards))
}
