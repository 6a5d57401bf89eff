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

package aggregate

import (
	"sync"

	"github.com/objagg/objagg/proto"
)

// streamKey identifies one data-extent stream: a single (object, dkey,
// akey) triple, the granularity the Iteration Driver walks extents at.
type streamKey struct {
	oid  proto.ObjectID
	dkey string
	akey string
}

// replayGuard remembers the highest stripe number each stream has already
// committed, so that running the same Driver again over the same epoch
// range (for instance after a Yield abort) never redoes a stripe it already
// committed. The record lives in memory for the lifetime of one Driver
// only: it is not persisted, so a restarted process, or the fresh Driver
// each aggregate.Run call builds, starts with no history. This is not in
// the distilled aggregation algorithm itself — it is the supplemented
// behavior original_source's replay path relies on.
type replayGuard struct {
	mu        sync.Mutex
	committed map[streamKey]uint64
}

func newReplayGuard() *replayGuard {
	return &replayGuard{committed: make(map[streamKey]uint64)}
}

// Done reports whether stripenum was already committed for key.
func (g *replayGuard) Done(key streamKey, stripenum uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	last, ok := g.committed[key]
	return ok && stripenum <= last
}

// Advance records stripenum as the new high-water mark for key. Stripes
// are committed in ascending index order per stream, so a plain
// high-water mark is sufficient — there is never a gap to track.
func (g *replayGuard) Advance(key streamKey, stripenum uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if last, ok := g.committed[key]; !ok || stripenum > last {
		g.committed[key] = stripenum
	}
}
