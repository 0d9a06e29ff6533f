// Command chunkkey_gen emits deterministic land.ChunkKey datasets for
// standalone benchmarking of the Land Generation Cache and Land Service,
// outside `go test`. It writes newline-separated "x,y,z,scale" tuples that
// can be replayed against a benchmark harness's RequestChunk calls.
//
// Usage:
//
//	go run tools/chunkkey_gen/chunkkey_gen.go -n 100000 -dist=zipf -seed=42 -out keys.csv
//
// Flags:
//
//	-n       number of keys to generate (default 100000)
//	-dist    distribution: "uniform" or "zipf" (default uniform)
//	-zipfs   Zipf s parameter (>1)  (default 1.2)
//	-zipfv   Zipf v parameter (>=1) (default 1.0)
//	-scale   chunk scale_log2 to generate at, 0..8 (default 0)
//	-seed    RNG seed (default current time)
//	-out     output file (default stdout)
//
// A zipf distribution models a player population clustered near one corner
// of the world (each axis skewed toward its minimum bound) with a long tail
// of rarely-visited chunks,
// the access pattern the Land Service's generation caches are meant to
// absorb - adapted from the teacher's tools/dataset_gen.go, which generated
// flat uint64 keys for the generic arena cache with no spatial structure.
//
// © 2025 voxen-sub000 authors. MIT License.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/Svenny/voxen-sub000/pkg/land"
)

func main() {
	var (
		n       = flag.Int("n", 100_000, "number of keys to generate")
		dist    = flag.String("dist", "uniform", "distribution: uniform or zipf")
		zipfS   = flag.Float64("zipfs", 1.2, "zipf s parameter (>1)")
		zipfV   = flag.Float64("zipfv", 1.0, "zipf v parameter (>=1)")
		scale   = flag.Uint("scale", 0, "chunk scale_log2 to generate at, 0..8")
		seedVal = flag.Int64("seed", time.Now().UnixNano(), "PRNG seed")
		outPath = flag.String("out", "", "output file (default stdout)")
	)
	flag.Parse()

	if *scale >= land.NumLODScales {
		fmt.Fprintf(os.Stderr, "scale must be < %d\n", land.NumLODScales)
		os.Exit(1)
	}
	align := int32(1) << *scale

	rnd := rand.New(rand.NewSource(*seedVal))

	spanX := uint64(land.MaxUniqueWorldXChunk - land.MinUniqueWorldXChunk + 1)
	spanZ := uint64(land.MaxUniqueWorldZChunk - land.MinUniqueWorldZChunk + 1)
	spanY := uint64(land.MaxWorldYChunk - land.MinWorldYChunk + 1)

	var axisX, axisY, axisZ func() uint64
	switch *dist {
	case "uniform":
		axisX = func() uint64 { return rnd.Uint64() % spanX }
		axisY = func() uint64 { return rnd.Uint64() % spanY }
		axisZ = func() uint64 { return rnd.Uint64() % spanZ }
	case "zipf":
		if *zipfS <= 1.0 || *zipfV < 1 {
			fmt.Fprintln(os.Stderr, "zipfs must be >1 and zipfv >=1")
			os.Exit(1)
		}
		axisX = rand.NewZipf(rnd, *zipfS, *zipfV, spanX-1).Uint64
		axisY = rand.NewZipf(rnd, *zipfS, *zipfV, spanY-1).Uint64
		axisZ = rand.NewZipf(rnd, *zipfS, *zipfV, spanZ-1).Uint64
	default:
		fmt.Fprintln(os.Stderr, "unknown dist:", *dist)
		os.Exit(1)
	}

	var out *os.File
	var err error
	if *outPath == "" {
		out = os.Stdout
	} else {
		out, err = os.Create(*outPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "cannot create file:", err)
			os.Exit(1)
		}
		defer out.Close()
	}

	w := bufio.NewWriterSize(out, 1<<20)
	defer w.Flush()

	for i := 0; i < *n; i++ {
		x := land.MinUniqueWorldXChunk + int32(axisX())
		y := land.MinWorldYChunk + int32(axisY())
		z := land.MinUniqueWorldZChunk + int32(axisZ())

		x -= x % align
		y -= y % align
		z -= z % align

		fmt.Fprintf(w, "%d,%d,%d,%d\n", x, y, z, *scale)
	}
}
