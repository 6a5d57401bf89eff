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

// Package ecmath is the Galois-field adapter spec.md §5 calls the "EC Math
// Adapter": a codec keyed by (k, p) that the Encode, Recalc and
// Partial-Update paths share through a small process-wide cache, the same way
// the teacher caches one grpc.ClientConn per remote address instead of
// dialing fresh on every RPC.
package ecmath

import (
	"sync"

	"github.com/objagg/objagg/errors"
	"github.com/objagg/objagg/proto"
)

// Codec is the Galois-field operation set the aggregation paths drive. All
// shards passed to these methods must already be sized to one cell
// (class.CellBytes()); callers own slicing stripe buffers into cells.
type Codec interface {
	// Encode computes every parity shard from scratch given all k data
	// shards, the full-stripe path spec.md §5.2 describes.
	Encode(dataShards, parityShards [][]byte) error

	// UpdateShard recomputes parityShards incrementally from the delta
	// between oldShard and newShard at data index idx, the single-cell
	// incremental update spec.md §5.3 describes. It must give the same
	// result as a full Encode over the updated data set.
	UpdateShard(idx int, oldShard, newShard []byte, parityShards [][]byte) error

	// Reconstruct fills the entries of shards whose ok[i] is false, given
	// enough of the remaining k entries are present. No aggregation path
	// calls it: Hole-Repair re-fetches cell content from the object's
	// remote path instead of rebuilding it from parity.
	Reconstruct(shards [][]byte, ok []bool) error
}

// cache hands out one Codec per (k,p) pair. A pair is never removed: the
// set of object classes live on a target is small and bounded by pool
// configuration, so the cache can only grow to a handful of entries.
type cache struct {
	mu    sync.RWMutex
	byKP  map[kp]Codec
	newFn func(k, p int) (Codec, error)
}

type kp struct {
	k, p int
}

var defaultCache = &cache{
	byKP:  make(map[kp]Codec),
	newFn: newReedSolomon,
}

// CodecGet returns the shared Codec for class, constructing and caching it
// on first use. spec.md's Open Question on p>2 is resolved here: classes
// with p>2 return errors.ErrUnsupportedParity rather than silently building
// a codec that the peer-parity fetch path (bounded to two parity RPCs) could
// not actually drive.
func CodecGet(class proto.ObjectClass) (Codec, error) {
	if class.P > 2 {
		return nil, errors.ErrUnsupportedParity
	}
	return defaultCache.get(int(class.K), int(class.P))
}

func (c *cache) get(k, p int) (Codec, error) {
	key := kp{k, p}

	c.mu.RLock()
	codec, ok := c.byKP[key]
	c.mu.RUnlock()
	if ok {
		return codec, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if codec, ok = c.byKP[key]; ok {
		return codec, nil
	}
	codec, err := c.newFn(k, p)
	if err != nil {
		return nil, errors.Wrap(errors.KindFatal, "ecmath: codec init", err)
	}
	c.byKP[key] = codec
	return codec, nil
}
