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

	"github.com/google/uuid"

	"github.com/objagg/objagg/errors"
	"github.com/objagg/objagg/proto"
	"github.com/objagg/objagg/rpc"
)

// PeerRPC is the subset of rpc.PeerClient the coordinator drives; a
// same-process parity holder satisfies it with LocalPeer instead of paying
// for a loopback gRPC round trip.
type PeerRPC interface {
	EcAggregate(ctx context.Context, req *rpc.EcAggregateRequest) (*rpc.EcAggregateResponse, error)
	EcReplicate(ctx context.Context, req *rpc.EcReplicateRequest) (*rpc.EcReplicateResponse, error)
}

// PeerDialer resolves a rank to a PeerRPC, the seam tests substitute with
// an in-memory fake and production wires to rpc.Dial + rpc.NewPeerClient.
type PeerDialer interface {
	DialParity(ctx context.Context, rank proto.Rank) (PeerRPC, error)
}

// LocalPeer adapts a same-process rpc.PeerServer into PeerRPC, for the
// common deployment shape where several of a stripe's shards are
// co-located on one engine and a network hop would be pure overhead.
type LocalPeer struct {
	Impl rpc.PeerServer
}

func (l LocalPeer) EcAggregate(ctx context.Context, req *rpc.EcAggregateRequest) (*rpc.EcAggregateResponse, error) {
	return l.Impl.EcAggregate(ctx, req)
}

func (l LocalPeer) EcReplicate(ctx context.Context, req *rpc.EcReplicateRequest) (*rpc.EcReplicateResponse, error) {
	return l.Impl.EcReplicate(ctx, req)
}

// PeerCoordinator drives the two-party mutation spec.md §4.7 and invariant
// I-10 describe: the parity holder must commit before the leader commits
// its own local half, so a crash between the two always leaves the object
// in a state a retry can still converge from (the parity write never lags
// behind what the leader already believes is durable).
type PeerCoordinator struct {
	dialer PeerDialer
}

func newPeerCoordinator(dialer PeerDialer) *PeerCoordinator {
	return &PeerCoordinator{dialer: dialer}
}

// ReplicateArgs bundles one parity cell's committed content.
type ReplicateArgs struct {
	OID       proto.ObjectID
	Dkey      string
	Akey      string
	Class     proto.ObjectClass
	StripeNum uint64
	PeerIdx   uint32
	Mode      Mode
	Epoch     proto.Epoch
	Recx      proto.Recx
	Data      []byte
	IsHole    bool
}

// CommitRemote replicates one parity cell to rank and waits for the
// peer's acknowledgement before returning, so the caller only advances its
// own local commit once this returns nil.
func (c *PeerCoordinator) CommitRemote(ctx context.Context, rank proto.Rank, args ReplicateArgs) error {
	peer, err := c.dialer.DialParity(ctx, rank)
	if err != nil {
		return errors.Wrap(errors.KindTransient, "aggregate: dial parity holder", err)
	}
	resp, err := peer.EcReplicate(ctx, &rpc.EcReplicateRequest{
		ReqID: uuid.NewString(),
		OID: args.OID, Dkey: args.Dkey, Akey: args.Akey, Class: args.Class,
		StripeNum: args.StripeNum, PeerIdx: args.PeerIdx, Mode: args.Mode.String(),
		Epoch: args.Epoch, Recx: args.Recx, Data: args.Data, IsHole: args.IsHole,
	})
	if err != nil {
		return errors.Wrap(errors.KindTransient, "aggregate: replicate to parity holder", err)
	}
	if resp.Err != "" {
		return errors.New(errors.KindTransient, resp.Err)
	}
	if !resp.Committed {
		return errors.New(errors.KindTransient, "aggregate: parity holder declined replication")
	}
	return nil
}
