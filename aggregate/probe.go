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
	"github.com/objagg/objagg/objremote"
	"github.com/objagg/objagg/proto"
	"github.com/objagg/objagg/rpc"
	"github.com/objagg/objagg/vos"
)

// ParityCellResult is the probe's answer for one parity cell of a stripe:
// spec.md §4.2's "issue a visibility-filtered range query against the
// parity index ... with the parity flag set", resolved either against the
// local store (when this target holds the parity shard) or against its
// peer over rpc.EcAggregate.
type ParityCellResult struct {
	PeerIdx uint32
	Exists  bool
	Epoch   proto.Epoch
}

// Prober implements the Parity Probe component.
type Prober struct {
	store vos.Store
	peers PeerDialer
}

func newProber(store vos.Store, peers PeerDialer) *Prober {
	return &Prober{store: store, peers: peers}
}

// Probe resolves the current state of every parity cell of stripenum,
// local ones against store, remote ones against their holder's rank.
func (p *Prober) Probe(ctx context.Context, oid proto.ObjectID, dkey, akey string, class proto.ObjectClass, stripenum uint64, layout objremote.Layout, er proto.EpochRange) ([]ParityCellResult, error) {
	results := make([]ParityCellResult, len(layout.Parity))
	for j := range layout.Parity {
		results[j].PeerIdx = uint32(j)

		if layout.IsData || layout.SelfIdx != j {
			// remote parity holder: RPC probe.
			client, err := p.peers.DialParity(ctx, layout.Parity[j])
			if err != nil {
				return nil, errors.Wrap(errors.KindTransient, "aggregate: dial parity holder", err)
			}
			resp, err := client.EcAggregate(ctx, &rpc.EcAggregateRequest{
				ReqID: uuid.NewString(),
				OID: oid, Dkey: dkey, Akey: akey, Class: class,
				StripeNum: stripenum, PeerIdx: uint32(j),
			})
			if err != nil {
				return nil, errors.Wrap(errors.KindTransient, "aggregate: probe parity holder", err)
			}
			if resp.Err != "" {
				return nil, errors.New(errors.KindTransient, resp.Err)
			}
			results[j].Exists = resp.Found
			results[j].Epoch = resp.Epoch
			continue
		}

		// local: this target is itself parity cell j's holder.
		recx := proto.ParityRecxFor(stripenum, class)
		it, err := p.store.RangeExtents(ctx, oid, dkey, akey, recx, er)
		if err != nil {
			return nil, errors.Wrap(errors.KindTransient, "aggregate: probe local parity", err)
		}
		found, epoch := latestNonHole(ctx, it)
		results[j].Exists = found
		results[j].Epoch = epoch
	}
	return results, nil
}

// FetchParityCell returns peerIdx's current parity bytes, local or remote,
// for the incremental Partial-Update path (which needs the live parity
// content, not just its epoch, to run ecmath.Codec.UpdateShard).
func (p *Prober) FetchParityCell(ctx context.Context, oid proto.ObjectID, dkey, akey string, class proto.ObjectClass, stripenum uint64, peerIdx uint32, layout objremote.Layout, epoch proto.Epoch, buf []byte) error {
	if !layout.IsData && layout.SelfIdx == int(peerIdx) {
		recx := proto.ParityRecxFor(stripenum, class)
		return p.store.Fetch(ctx, oid, epoch, dkey, akey, recx, buf)
	}

	client, err := p.peers.DialParity(ctx, layout.Parity[peerIdx])
	if err != nil {
		return errors.Wrap(errors.KindTransient, "aggregate: dial parity holder", err)
	}
	resp, err := client.EcAggregate(ctx, &rpc.EcAggregateRequest{
		ReqID: uuid.NewString(),
		OID: oid, Dkey: dkey, Akey: akey, Class: class,
		StripeNum: stripenum, PeerIdx: peerIdx, FetchData: true,
	})
	if err != nil {
		return errors.Wrap(errors.KindTransient, "aggregate: fetch parity holder content", err)
	}
	if resp.Err != "" {
		return errors.New(errors.KindTransient, resp.Err)
	}
	if !resp.Found || len(resp.Data) != len(buf) {
		return errors.New(errors.KindConsistencyViolated, "aggregate: parity holder returned no or mismatched content")
	}
	copy(buf, resp.Data)
	return nil
}

func latestNonHole(ctx context.Context, it vos.ExtentIterator) (bool, proto.Epoch) {
	defer it.Close()
	found := false
	var epoch proto.Epoch
	for {
		e, err := it.Next(ctx)
		if err != nil {
			break
		}
		if e.IsHole {
			continue
		}
		found = true
		if e.Epoch > epoch {
			epoch = e.Epoch
		}
	}
	return found, epoch
}
