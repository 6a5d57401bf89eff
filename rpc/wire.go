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

// Package rpc carries the two opcodes spec.md §4.7 names for peer parity
// coordination: EC_AGGREGATE, the probe a non-parity-holding leader sends
// to ask a parity shard what it currently has for a stripe, and
// EC_REPLICATE, the mutation a leader sends a parity shard to apply before
// committing its own local half of the same stripe update. Generated
// .pb.go stubs are not part of this retrieval pack, so the wire types below
// are hand-written the same way common/raft.ProposeRequest defines its own
// envelope, and a small JSON codec (codec.go) lets the usual
// google.golang.org/grpc client/server machinery carry them without a
// protoc step.
package rpc

import "github.com/objagg/objagg/proto"

// EcAggregateRequest probes a parity shard for its current view of one
// stripe, the read-only half of spec.md §4.2's parity probe when the
// parity holder is a remote target.
type EcAggregateRequest struct {
	ReqID     string
	OID       proto.ObjectID
	Dkey      string
	Akey      string
	Class     proto.ObjectClass
	StripeNum uint64
	PeerIdx   uint32 // which parity cell (0..p-1) this probe targets
	FetchData bool   // also return the parity cell's current bytes
}

type EcAggregateResponse struct {
	Found bool
	Epoch proto.Epoch
	Data  []byte // populated when the request set FetchData
	Err   string
}

// EcReplicateRequest carries the actual mutation a leader applies to a
// parity shard: Data written at Recx (a freshly computed parity cell, or a
// recovered data range during Hole-Repair), or, with IsHole set, a removal
// of Recx. The receiver does not branch on Mode: every request takes the
// same write-or-remove path, and parity commits leave Mode at its zero
// value.
type EcReplicateRequest struct {
	ReqID     string
	OID       proto.ObjectID
	Dkey      string
	Akey      string
	Class     proto.ObjectClass
	StripeNum uint64
	PeerIdx   uint32
	Mode      string
	Epoch     proto.Epoch
	Recx      proto.Recx
	Data      []byte
	IsHole    bool
}

type EcReplicateResponse struct {
	Committed bool
	Err       string
}
