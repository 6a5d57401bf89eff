// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package aggregate is the EC aggregation engine: it walks every EC-coded
// object this target leads, decides per stripe whether to encode fresh
// parity, update it incrementally, recompute it outright, or repair a hole,
// and coordinates the chosen write with the stripe's parity holder before
// committing locally. The component split below follows spec.md §2's
// table: driver, stripe state, parity probe, mode selector, four transform
// paths, peer coordinator, and a cell buffer pool.
package aggregate

import (
	"github.com/objagg/objagg/proto"
	"github.com/objagg/objagg/util/limiter"
)

// Mode is the outcome of the Mode Selector for one stripe.
type Mode int

const (
	ModeSkip Mode = iota
	ModeEncode
	ModePartialUpdate
	ModeRecalc
	ModeHoleRepair
)

func (m Mode) String() string {
	switch m {
	case ModeSkip:
		return "skip"
	case ModeEncode:
		return "encode"
	case ModePartialUpdate:
		return "partial_update"
	case ModeRecalc:
		return "recalc"
	case ModeHoleRepair:
		return "hole_repair"
	default:
		return "unknown"
	}
}

// Config bounds one aggregation run the way spec.md §4.1 describes:
// "Iteration scope is bounded by an inclusive epoch range [lo, hi] passed
// to the driver." SnapshotEpoch and Yield are the scheduler cooperation
// points a single-threaded event loop needs to stay responsive over a scan
// that can span millions of stripes.
type Config struct {
	LoEpoch proto.Epoch
	HiEpoch proto.Epoch

	// SnapshotEpoch is the iteration's own view of "now": extents written
	// at or after it are in flight and must never be folded into parity,
	// even if they happen to fall inside [LoEpoch, HiEpoch].
	SnapshotEpoch proto.Epoch

	// StripesPerYield caps how many stripes the driver processes before
	// calling Yield; zero disables yielding.
	StripesPerYield int

	// Yield is the cooperative-scheduler suspension point: called with the
	// total stripe count processed so far in this run. Returning an error aborts
	// the run with that error; a nil Yield means run to completion
	// uninterrupted.
	Yield func(processed int) error

	// Limits bounds the VOS read/write bandwidth this run is allowed to
	// consume, so a large backlog of unaggregated stripes doesn't starve
	// foreground I/O on the same target. Nil means unbounded.
	Limits limiter.Limiter

	// WorkerPoolSize bounds the dedicated worker pool the driver offloads
	// encode/update/reconstruct Galois-field math onto, the suspension
	// point spec.md §5 describes separately from VOS/RPC I/O. Zero uses
	// defaultWorkerPoolSize.
	WorkerPoolSize int
}

// Status summarizes one completed (or aborted) run, surfaced to callers and
// mirrored into the metrics package's counters.
type Status struct {
	ObjectsVisited   int
	StripesProcessed int
	StripesAbandoned int
	BytesMoved       uint64
	ModeCounts       map[Mode]int
}

func newStatus() *Status {
	return &Status{ModeCounts: make(map[Mode]int)}
}
