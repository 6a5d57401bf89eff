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
	"context"

	"github.com/objagg/objagg/ecmath"
	"github.com/objagg/objagg/errors"
	"github.com/objagg/objagg/objremote"
	"github.com/objagg/objagg/proto"
	"github.com/objagg/objagg/vos"
)

// runPartialUpdate is the incremental path: exactly one data cell moved
// since parity was last computed, so it recomputes parity from the delta
// between the cell's old and new content rather than re-reading the other
// k-1 cells (spec.md §5.3). The old pre-image is fetched from the object's
// remote path, not the local replica: by the time a cell's change lands
// here, the leader's local copy of whatever parity.epoch last saw has
// already been reclaimed by the commit that wrote that parity (the local
// store only ever holds replicas newer than the current parity), so the
// only surviving copy of the old bytes is the object's own durable data.
func runPartialUpdate(ctx context.Context, store vos.Store, prober *Prober, codec ecmath.Codec, pool *cellPool, oid proto.ObjectID, dkey, akey string, stripe *StripeState, changedCell int, parityEpoch proto.Epoch, layout objremote.Layout, handle objremote.Handle) (parityShards [][]byte, err error) {
	class := stripe.Class
	cellBytes := int(class.CellBytes())

	oldShard := pool.get(cellBytes)
	newShard := pool.get(cellBytes)
	defer func() {
		pool.put(oldShard)
		pool.put(newShard)
	}()

	recx := proto.CellRange(stripe.StripeNum, uint32(changedCell), class)
	if err := handle.Fetch(ctx, parityEpoch, dkey, akey, recx, oldShard); err != nil {
		return nil, errors.Wrap(errors.KindTransient, "aggregate: fetch old cell for partial update", err)
	}
	if err := store.Fetch(ctx, oid, stripe.MaxEpoch, dkey, akey, recx, newShard); err != nil {
		return nil, errors.Wrap(errors.KindTransient, "aggregate: fetch new cell for partial update", err)
	}

	parityShards = pool.getShards(int(class.P), cellBytes)
	for j := range parityShards {
		if err := prober.FetchParityCell(ctx, oid, dkey, akey, class, stripe.StripeNum, uint32(j), layout, parityEpoch, parityShards[j]); err != nil {
			pool.putShards(parityShards)
			return nil, errors.Wrap(errors.KindTransient, "aggregate: fetch current parity for partial update", err)
		}
	}

	if err := codec.UpdateShard(changedCell, oldShard, newShard, parityShards); err != nil {
		pool.putShards(parityShards)
		return nil, errors.Wrap(errors.KindFatal, "aggregate: update parity shard", err)
	}
	return parityShards, nil
}
