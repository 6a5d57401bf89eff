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

	"github.com/objagg/objagg/errors"
	"github.com/objagg/objagg/objremote"
	"github.com/objagg/objagg/proto"
)

// holeRepairResult carries the complement ranges runHoleRepair recovered
// from the object's authoritative remote path, keyed by data-cell index,
// for the driver to ship to the stripe's parity holders and write back
// locally in place of the hole that used to be there.
type holeRepairResult struct {
	Filled map[int][]byte
}

// runHoleRepair takes every data cell of the stripe that carries a hole
// extent — punched out by a user delete or a rebuild gap — and fetches that
// whole cell's real content at hi_epoch from the object's remote path,
// since local VOS no longer has it. Cells without a hole extent are not
// fetched, even when no local extent covers them. This stripe is being downgraded
// from parity-coded back to plain replication for these cells: the driver
// ships the recovered bytes to every parity holder and drops the now-stale
// parity extent once they land.
func runHoleRepair(ctx context.Context, pool *cellPool, oid proto.ObjectID, dkey, akey string, stripe *StripeState, handle objremote.Handle) (*holeRepairResult, error) {
	class := stripe.Class
	cellBytes := int(class.CellBytes())

	result := &holeRepairResult{Filled: make(map[int][]byte)}
	for i := 0; i < int(class.K); i++ {
		if !stripe.Cells[i].hasHole {
			continue
		}
		buf := pool.get(cellBytes)
		recx := proto.CellRange(stripe.StripeNum, uint32(i), class)
		if err := handle.Fetch(ctx, stripe.MaxEpoch, dkey, akey, recx, buf); err != nil {
			pool.put(buf)
			return nil, errors.Wrap(errors.KindTransient, "aggregate: fetch complement range for hole repair", err)
		}
		result.Filled[i] = buf
	}
	return result, nil
}
