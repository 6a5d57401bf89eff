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

	"github.com/objagg/objagg/proto"
	"github.com/objagg/objagg/rpc"
	"github.com/objagg/objagg/util/limiter"
	"github.com/objagg/objagg/vos"
)

// ShardServer answers the two RPCs a remote leader sends this target when
// it holds one of the stripe's parity cells: rpc.PeerServer implemented
// directly against the local vos.Store, with no aggregation logic of its
// own — the leader always decides the mode and ships the final bytes, this
// side only ever probes or commits what it is told to. Inbound commits run
// through the same bandwidth limiter the leader side uses, since a busy
// parity holder is exactly as exposed to aggregation traffic as a leader.
type ShardServer struct {
	store vos.Store
}

func NewShardServer(store vos.Store, limits limiter.Limiter) *ShardServer {
	return &ShardServer{store: newThrottledStore(store, limits)}
}

func (s *ShardServer) EcAggregate(ctx context.Context, req *rpc.EcAggregateRequest) (*rpc.EcAggregateResponse, error) {
	recx := proto.ParityRecxFor(req.StripeNum, req.Class)
	it, err := s.store.RangeExtents(ctx, req.OID, req.Dkey, req.Akey, recx, proto.EpochRange{Hi: proto.EpochMax})
	if err != nil {
		return &rpc.EcAggregateResponse{Err: err.Error()}, nil
	}
	found, epoch := latestNonHole(ctx, it)

	resp := &rpc.EcAggregateResponse{Found: found, Epoch: epoch}
	if found && req.FetchData {
		buf := make([]byte, req.Class.CellBytes())
		if err := s.store.Fetch(ctx, req.OID, epoch, req.Dkey, req.Akey, recx, buf); err != nil {
			return &rpc.EcAggregateResponse{Err: err.Error()}, nil
		}
		resp.Data = buf
	}
	return resp, nil
}

func (s *ShardServer) EcReplicate(ctx context.Context, req *rpc.EcReplicateRequest) (*rpc.EcReplicateResponse, error) {
	var err error
	if req.IsHole {
		err = s.store.RemoveRange(ctx, req.OID, req.Dkey, req.Akey, req.Recx, proto.EpochRange{Hi: req.Epoch})
	} else {
		err = s.store.Update(ctx, req.OID, req.Epoch, req.Dkey, req.Akey, req.Recx, req.Data)
	}
	if err != nil {
		return &rpc.EcReplicateResponse{Err: err.Error()}, nil
	}
	return &rpc.EcReplicateResponse{Committed: true}, nil
}
