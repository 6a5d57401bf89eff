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

// Package objremote is the thin capability object the driver opens once per
// object: the partial-update and hole-repair paths read the object's data
// through it, and the Layout it resolves addresses the parity probe and the
// peer commits, instead of those components re-deriving pool/container/shard
// addressing themselves. It deliberately exposes only the two operations spec.md §9
// calls out, the way the teacher's client packages hand callers a narrow
// service handle rather than a full client struct.
package objremote

import (
	"context"
	"errors"

	"github.com/objagg/objagg/proto"
)

// ErrNoLayout is returned when a Handle has no placement on file for a
// given (dkey, akey); the driver treats it like any other transient open
// failure and moves on to the next akey.
var ErrNoLayout = errors.New("objremote: no layout for dkey/akey")

// Layout is the per-object placement the Peer Coordinator needs to address
// the other k+p-1 shards of a stripe: which rank/tag holds replica i or
// parity shard j.
type Layout struct {
	Class   proto.ObjectClass
	Ranks   []proto.Rank // len == K, data shard -> rank
	Parity  []proto.Rank // len == P, parity shard -> rank
	SelfIdx int          // this target's shard index within Ranks/Parity
	IsData  bool         // whether SelfIdx indexes Ranks (true) or Parity
}

// ShardOf returns the rank holding the given shard index in the combined
// [0,K+P) shard numbering used by spec.md §4.7's RPC fan-out.
func (l Layout) ShardOf(shard int) proto.Rank {
	if shard < len(l.Ranks) {
		return l.Ranks[shard]
	}
	return l.Parity[shard-len(l.Ranks)]
}

// Handle is the capability an opened object hands to its caller: fetch a
// byte range at a given epoch, or resolve the current shard layout. It is
// intentionally narrower than a full vos.Store — the driver already knows
// which object it is operating on, so Handle never takes an ObjectID again.
type Handle interface {
	// Fetch reads recx of dkey/akey as of epoch, exactly like
	// vos.Store.Fetch but pre-bound to this object.
	Fetch(ctx context.Context, epoch proto.Epoch, dkey, akey string, recx proto.Recx, buf []byte) error

	// LayoutGet resolves the current placement for dkey/akey's stripe
	// addressing. A reshard between the probe and the peer RPC is surfaced
	// as errors.KindTransient by the caller, not retried here.
	LayoutGet(ctx context.Context, dkey, akey string) (Layout, error)
}

// Opener resolves an ObjectID to a Handle; spec.md §4.1's "object enter"
// step calls this once per admitted object.
type Opener interface {
	Open(ctx context.Context, oid proto.ObjectID) (Handle, error)
}
