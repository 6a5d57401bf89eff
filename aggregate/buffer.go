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

import "github.com/objagg/objagg/util"

// cellPool hands out the per-cell byte slices the stripe state, the probe
// and the four transform paths all read and write into, backed by the same
// size-classed free list util.GetBuffer/PutBuffer already give every other
// package that shuffles extent bytes. Keeping allocation behind one type
// here means the transform paths never call make([]byte, ...) directly.
type cellPool struct{}

func newCellPool() *cellPool {
	return &cellPool{}
}

func (p *cellPool) get(n int) []byte {
	return util.GetBuffer(n)[:n]
}

func (p *cellPool) put(b []byte) {
	util.PutBuffer(b)
}

// getShards allocates count cells of size n each, for callers that need a
// full [][]byte shard set (encode, reconstruct).
func (p *cellPool) getShards(count, n int) [][]byte {
	shards := make([][]byte, count)
	for i := range shards {
		shards[i] = p.get(n)
	}
	return shards
}

func (p *cellPool) putShards(shards [][]byte) {
	for _, s := range shards {
		if s != nil {
			p.put(s)
		}
	}
}
