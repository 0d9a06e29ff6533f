// Package taskcounter implements the Task Counter Tracker: allocation and
// completion-tracking of monotonically increasing 64-bit task counters.
//
// The tracker is split into a fixed number of independent shards
// ("completion lists"), the same divide-and-conquer idea the teacher's
// pkg/shard.go applies to cache entries: each shard owns an atomic
// "fully completed" high-water mark plus a lock-protected slice of
// out-of-order completions, so unrelated counters never contend on the same
// cache line.
//
// © 2025 voxen-sub000 authors. MIT License.
package taskcounter

import (
	"sort"
	"sync"
	"sync/atomic"
)

// NumShards is the fixed shard count, matching the original engine's
// NUM_COMPLETION_LISTS. Counter values are allocated so that
// counter % NumShards deterministically selects a shard.
const NumShards = 64

// completionList is one shard: an atomic contiguous high-water mark plus a
// lock-protected set of completions that arrived out of order.
type completionList struct {
	mu                sync.Mutex
	fullyCompleted    atomic.Uint64
	outOfOrderValues  []uint64
}

// Tracker allocates and tracks completion of task counters.
type Tracker struct {
	nextCounter atomic.Uint64
	lists       [NumShards]completionList
}

// New constructs a Tracker ready for use. The allocation counter starts at
// NumShards so that `id % NumShards` always uniquely identifies a shard from
// the very first allocated id (mirrors the original's initial value).
func New() *Tracker {
	t := &Tracker{}
	t.nextCounter.Store(NumShards)
	return t
}

// Allocate returns a fresh, never-reused counter value.
func (t *Tracker) Allocate() uint64 {
	return t.nextCounter.Add(1) - 1
}

// Complete marks counter as finished. Safe to call concurrently for
// independent or even identical counters (the latter would be a caller bug,
// but will not corrupt tracker state beyond redundant list entries).
func (t *Tracker) Complete(counter uint64) {
	list := &t.lists[counter%NumShards]
	desired := counter / NumShards
	expected := desired - 1

	if list.fullyCompleted.CompareAndSwap(expected, desired) {
		// In-order completion: the common case, no locking needed.
		return
	}

	list.mu.Lock()
	defer list.mu.Unlock()

	list.outOfOrderValues = append(list.outOfOrderValues, desired)
	if len(list.outOfOrderValues) <= 1 {
		return
	}

	vals := list.outOfOrderValues
	sort.Slice(vals, func(i, j int) bool { return vals[i] > vals[j] })
	expected = list.fullyCompleted.Load()
	for len(list.outOfOrderValues) > 0 {
		tail := list.outOfOrderValues[len(list.outOfOrderValues)-1]
		if tail != expected+1 {
			break
		}
		if !list.fullyCompleted.CompareAndSwap(expected, tail) {
			break
		}
		expected = tail
		list.outOfOrderValues = list.outOfOrderValues[:len(list.outOfOrderValues)-1]
	}
}

// IsComplete reports whether counter has completed.
func (t *Tracker) IsComplete(counter uint64) bool {
	list := &t.lists[counter%NumShards]
	expected := counter / NumShards

	if list.fullyCompleted.Load() >= expected {
		return true
	}

	list.mu.Lock()
	defer list.mu.Unlock()
	for _, v := range list.outOfOrderValues {
		if v == expected {
			return true
		}
	}
	return false
}

// TrimComplete partitions counters in place, moving already-complete entries
// to the end and returning the count of entries still pending. Used eagerly
// by task submission to shrink dependency lists before they are stored on a
// task header.
func (t *Tracker) TrimComplete(counters []uint64) int {
	remaining := len(counters)

	for i := 0; i < remaining; {
		counter := counters[i]
		list := &t.lists[counter%NumShards]
		expected := counter / NumShards

		if list.fullyCompleted.Load() >= expected {
			remaining--
			counters[i], counters[remaining] = counters[remaining], counters[i]
			continue
		}

		found := false
		list.mu.Lock()
		for _, v := range list.outOfOrderValues {
			if v == expected {
				found = true
				break
			}
		}
		list.mu.Unlock()

		if found {
			remaining--
			counters[i], counters[remaining] = counters[remaining], counters[i]
		} else {
			i++
		}
	}

	return remaining
}
