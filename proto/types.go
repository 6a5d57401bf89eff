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

package proto

// Types shared across vos, ecmath, rpc and aggregate. Keeping them in one
// leaf package avoids the import cycles those packages would otherwise form
// around the stripe/extent vocabulary.

type (
	// Epoch is a monotone version stamp per write. EpochMax is the parity
	// probe's "absent" sentinel (spec.md §3).
	Epoch uint64

	// Rank identifies an engine peer (a storage target) for RPC addressing.
	Rank uint32
	// Tag identifies a parity shard's RPC service endpoint on its rank,
	// per spec.md §4.7: "{rank: peer_rank, tag: peer_idx + 1}".
	Tag uint32

	// ObjectID identifies the EC-coded object this aggregation context is
	// working on.
	ObjectID struct {
		Hi, Lo uint64
	}

	// ObjectClass carries the (k, p, len) attributes of spec.md §3 plus the
	// per-record byte size.
	ObjectClass struct {
		K     uint32 // data cells per stripe
		P     uint32 // parity cells per stripe
		Len   uint32 // record count per cell
		Rsize uint32 // bytes per record
	}

	// EpochRange bounds the iteration scope: "Iteration scope is bounded
	// by an inclusive epoch range [lo, hi] passed to the driver. Records
	// outside are not visible to the data extent iterator." (spec.md §4.1)
	EpochRange struct {
		Lo, Hi Epoch
	}
)

// Contains reports whether e falls within r, inclusive.
func (r EpochRange) Contains(e Epoch) bool {
	return e >= r.Lo && e <= r.Hi
}

const EpochMax = Epoch(^uint64(0))

// StripeBytes returns k*len*rsize, the full-stripe byte count used by
// invariant 6 ("a stripe is full of replicas iff fill == k*len*rsize").
func (c ObjectClass) StripeBytes() uint64 {
	return uint64(c.K) * uint64(c.Len) * uint64(c.Rsize)
}

// CellBytes returns len*rsize, the size of one cell's SGL buffer.
func (c ObjectClass) CellBytes() uint64 {
	return uint64(c.Len) * uint64(c.Rsize)
}

// StripeRecords returns k*len, the record-index width of one stripe.
func (c ObjectClass) StripeRecords() uint64 {
	return uint64(c.K) * uint64(c.Len)
}
