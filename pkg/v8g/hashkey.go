package v8g

import "github.com/cespare/xxhash/v2"

// U64Key is a Key whose hash is itself - useful when callers already have
// a well-distributed 64-bit identifier (e.g. a land ChunkKey) and want to
// skip a redundant hashing step.
type U64Key uint64

// Hash implements Key.
func (k U64Key) Hash() uint64 { return uint64(k) }

// StringKey is a Key for arbitrary string-keyed tries, hashed with
// xxhash - the same hash family already pulled in transitively through
// badger, promoted here to a direct dependency.
type StringKey string

// Hash implements Key.
func (k StringKey) Hash() uint64 { return xxhash.Sum64String(string(k)) }
