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
	"github.com/objagg/objagg/proto"
	"github.com/objagg/objagg/vos"
)

// runRecalc is the full-recompute path: parity exists but either more than
// one cell moved since it was last written, or the probe found the parity
// cells disagreeing on presence (a prior run was interrupted mid-write).
// Both cases are only safely resolved by discarding whatever parity exists
// and re-deriving it from the current data, so this shares runEncode's
// fetch-and-encode body rather than trying to patch the stale parity in
// place.
func runRecalc(ctx context.Context, store vos.Store, codec ecmath.Codec, pool *cellPool, oid proto.ObjectID, dkey, akey string, stripe *StripeState) (dataShards, parityShards [][]byte, err error) {
	return runEncode(ctx, store, codec, pool, oid, dkey, akey, stripe)
}
