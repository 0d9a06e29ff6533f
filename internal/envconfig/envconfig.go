// Package envconfig loads top-level engine tunables (tick interval, worker
// count, cache capacity) from environment variables; pkg/sim and
// pkg/svc/task read their defaults through it. This is the ambient configuration loader
// the distilled spec leaves unspecified in §6 "CLI / env / config" — grounded
// on the flag-handling convention of the teacher's cmd/arena-cache-inspect.
//
// © 2025 voxen-sub000 authors. MIT License.
package envconfig

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Int reads an int environment variable, falling back to def if unset or
// unparsable.
func Int(name string, def int) int {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Duration reads a time.Duration environment variable (Go duration syntax,
// e.g. "10ms"), falling back to def if unset or unparsable.
func Duration(name string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// String reads a string environment variable, falling back to def if unset.
func String(name string, def string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return def
}

// Bytes reads a byte-size environment variable expressed as a plain integer
// number of bytes, falling back to def if unset or unparsable.
func Bytes(name string, def int64) int64 {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

// MustPositiveInt panics with a descriptive message when n <= 0, so a
// caller can fail fast on an obviously broken flag/env override, the same
// way the teacher's applyOptions() rejects non-positive capacities.
func MustPositiveInt(name string, n int) int {
	if n <= 0 {
		panic(fmt.Sprintf("envconfig: %s must be > 0, got %d", name, n))
	}
	return n
}
