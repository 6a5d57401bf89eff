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
	"github.com/objagg/objagg/proto"
	"github.com/objagg/objagg/vos"
)

// runEncode is the full-stripe path: every data cell is fully replicated
// and no parity exists yet, so it fetches all k cells and computes every
// parity cell from scratch (spec.md §5.2).
func runEncode(ctx context.Context, store vos.Store, codec ecmath.Codec, pool *cellPool, oid proto.ObjectID, dkey, akey string, stripe *StripeState) (dataShards, parityShards [][]byte, err error) {
	class := stripe.Class
	cellBytes := int(class.CellBytes())

	dataShards = pool.getShards(int(class.K), cellBytes)
	for i := range dataShards {
		recx := proto.CellRange(stripe.StripeNum, uint32(i), class)
		if err := store.Fetch(ctx, oid, stripe.MaxEpoch, dkey, akey, recx, dataShards[i]); err != nil {
			pool.putShards(dataShards)
			return nil, nil, errors.Wrap(errors.KindTransient, "aggregate: fetch data cell for encode", err)
		}
	}

	parityShards = pool.getShards(int(class.P), cellBytes)
	if err := codec.Encode(dataShards, parityShards); err != nil {
		pool.putShards(dataShards)
		pool.putShards(parityShards)
		return nil, nil, errors.Wrap(errors.KindFatal, "aggregate: encode stripe", err)
	}
	return dataShards, parityShards, nil
}
