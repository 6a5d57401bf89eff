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

package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	serviceName       = "objagg.PeerShard"
	methodEcAggregate = "/" + serviceName + "/EcAggregate"
	methodEcReplicate = "/" + serviceName + "/EcReplicate"
)

// PeerClient is the leader-side handle to one parity shard, used by the
// aggregate package's peer coordinator to run the probe and replicate RPCs
// spec.md §4.2 and §4.7 describe.
type PeerClient struct {
	conn *grpc.ClientConn
}

func NewPeerClient(conn *grpc.ClientConn) *PeerClient {
	return &PeerClient{conn: conn}
}

func (c *PeerClient) EcAggregate(ctx context.Context, req *EcAggregateRequest) (*EcAggregateResponse, error) {
	resp := new(EcAggregateResponse)
	err := c.conn.Invoke(ctx, methodEcAggregate, req, resp, grpc.CallContentSubtype(CodecName))
	return resp, err
}

func (c *PeerClient) EcReplicate(ctx context.Context, req *EcReplicateRequest) (*EcReplicateResponse, error) {
	resp := new(EcReplicateResponse)
	err := c.conn.Invoke(ctx, methodEcReplicate, req, resp, grpc.CallContentSubtype(CodecName))
	return resp, err
}
