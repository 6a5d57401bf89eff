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

	"golang.org/x/sync/errgroup"

	"github.com/objagg/objagg/ecmath"
	"github.com/objagg/objagg/errors"
	"github.com/objagg/objagg/objremote"
	"github.com/objagg/objagg/proto"
)

func minExistingEpoch(probes []ParityCellResult) proto.Epoch {
	min := proto.EpochMax
	for _, pr := range probes {
		if pr.Exists && pr.Epoch < min {
			min = pr.Epoch
		}
	}
	return min
}

// applyMode resolves the codec, runs the transform path mode selected, and
// commits the result to every parity holder — peer holders first, the
// local one last, per I-10's peer-before-local ordering.
func (d *Driver) applyMode(ctx context.Context, oid proto.ObjectID, dkey, akey string, stripe *StripeState, mode Mode, changed []int, probes []ParityCellResult, layout objremote.Layout, handle objremote.Handle) error {
	codec, err := ecmath.CodecGet(stripe.Class)
	if err != nil {
		return err
	}
	codec = newWorkerCodec(d.workers, codec)

	switch mode {
	case ModeEncode:
		dataShards, parityShards, err := runEncode(ctx, d.store, codec, d.pool, oid, dkey, akey, stripe)
		if err != nil {
			return err
		}
		defer d.pool.putShards(dataShards)
		defer d.pool.putShards(parityShards)
		return d.commitParity(ctx, oid, dkey, akey, stripe, layout, parityShards)

	case ModeRecalc:
		dataShards, parityShards, err := runRecalc(ctx, d.store, codec, d.pool, oid, dkey, akey, stripe)
		if err != nil {
			return err
		}
		defer d.pool.putShards(dataShards)
		defer d.pool.putShards(parityShards)
		return d.commitParity(ctx, oid, dkey, akey, stripe, layout, parityShards)

	case ModePartialUpdate:
		parityEpoch := minExistingEpoch(probes)
		parityShards, err := runPartialUpdate(ctx, d.store, d.prober, codec, d.pool, oid, dkey, akey, stripe, changed[0], parityEpoch, layout, handle)
		if err != nil {
			return err
		}
		defer d.pool.putShards(parityShards)
		return d.commitParity(ctx, oid, dkey, akey, stripe, layout, parityShards)

	case ModeHoleRepair:
		result, err := runHoleRepair(ctx, d.pool, oid, dkey, akey, stripe, handle)
		if err != nil {
			return err
		}
		return d.commitHoleRepair(ctx, oid, dkey, akey, stripe, layout, result)

	default:
		return errors.New(errors.KindInvalidInput, "aggregate: unknown mode")
	}
}

// commitParity writes every parity cell of stripe. Per I-10, every peer
// holder must observe its write before the local one is considered final,
// so the remote fan-out (issued concurrently, one goroutine per peer) runs
// to completion before the local cell — if this target holds one — is
// written at all.
func (d *Driver) commitParity(ctx context.Context, oid proto.ObjectID, dkey, akey string, stripe *StripeState, layout objremote.Layout, parityShards [][]byte) error {
	class := stripe.Class
	recx := proto.ParityRecxFor(stripe.StripeNum, class)

	localIdx := -1
	grp, gctx := errgroup.WithContext(ctx)
	for j, shard := range parityShards {
		if !layout.IsData && layout.SelfIdx == j {
			localIdx = j
			continue
		}
		j, shard := j, shard
		grp.Go(func() error {
			return d.peers.CommitRemote(gctx, layout.Parity[j], ReplicateArgs{
				OID: oid, Dkey: dkey, Akey: akey, Class: class,
				StripeNum: stripe.StripeNum, PeerIdx: uint32(j),
				Epoch: stripe.MaxEpoch, Recx: recx, Data: shard,
			})
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}

	if localIdx >= 0 {
		if err := d.store.Update(ctx, oid, stripe.MaxEpoch, dkey, akey, recx, parityShards[localIdx]); err != nil {
			return errors.Wrap(errors.KindTransient, "aggregate: commit local parity", err)
		}
	}

	// Invariant 4: the local replica range-delete happens under the same
	// hi_epoch as the parity write above. The range starts prefix_ext
	// records before the stripe, reaching back over the head of an extent
	// that crossed in from the previous stripe, and stops suffix_ext records
	// short of the stripe end, leaving an extent that crosses into the next
	// stripe for that stripe's commit to reclaim — per spec.md §9 Open
	// Question 3 this can delete bytes carried over from the previous stripe
	// too, which is the documented, intentional behavior, not a bug.
	dataRange := proto.StripeDataRange(stripe.StripeNum, class)
	deleteRecx := proto.Recx{
		Index: dataRange.Index - stripe.PrefixExt,
		Count: dataRange.Count + stripe.PrefixExt - stripe.SuffixExt,
	}
	if err := d.store.RemoveRange(ctx, oid, dkey, akey, deleteRecx, proto.EpochRange{Lo: 0, Hi: stripe.MaxEpoch}); err != nil {
		return errors.Wrap(errors.KindTransient, "aggregate: delete consumed data extents", err)
	}
	return nil
}

// commitHoleRepair ships each complement range runHoleRepair recovered to
// every parity holder via EC_REPLICATE — the stripe's missing cells are
// being downgraded from parity-coded back to plain replication, so every
// holder needs a real copy of the bytes, not a share of a recomputed
// parity — writes the same ranges to the local replica, then deletes the
// stripe's parity extent everywhere it lives. The stripe is left
// unprotected by parity until a later run finds it fully replicated again
// and re-encodes it from scratch.
func (d *Driver) commitHoleRepair(ctx context.Context, oid proto.ObjectID, dkey, akey string, stripe *StripeState, layout objremote.Layout, result *holeRepairResult) error {
	class := stripe.Class

	for cell, data := range result.Filled {
		recx := proto.CellRange(stripe.StripeNum, uint32(cell), class)
		if err := d.replicateToParityHolders(ctx, oid, dkey, akey, stripe, layout, recx, data, false); err != nil {
			return errors.Wrap(errors.KindTransient, "aggregate: replicate repaired cell to parity holders", err)
		}
		if err := d.store.Update(ctx, oid, stripe.MaxEpoch, dkey, akey, recx, data); err != nil {
			return errors.Wrap(errors.KindTransient, "aggregate: commit repaired cell locally", err)
		}
		d.pool.put(data)
	}

	parityRecx := proto.ParityRecxFor(stripe.StripeNum, class)
	if err := d.replicateToParityHolders(ctx, oid, dkey, akey, stripe, layout, parityRecx, nil, true); err != nil {
		return errors.Wrap(errors.KindTransient, "aggregate: delete stale parity at peers", err)
	}
	er := proto.EpochRange{Lo: 0, Hi: stripe.MaxEpoch}
	if err := d.store.RemoveRange(ctx, oid, dkey, akey, parityRecx, er); err != nil {
		return errors.Wrap(errors.KindTransient, "aggregate: delete stale local parity", err)
	}
	return nil
}

// replicateToParityHolders ships one write (or, with isHole, a delete) to
// every parity holder rank of layout over EC_REPLICATE, run concurrently —
// the same peer fan-out commitParity uses for a freshly computed parity
// cell, reused here to push a recovered data range or a parity delete.
func (d *Driver) replicateToParityHolders(ctx context.Context, oid proto.ObjectID, dkey, akey string, stripe *StripeState, layout objremote.Layout, recx proto.Recx, data []byte, isHole bool) error {
	class := stripe.Class
	grp, gctx := errgroup.WithContext(ctx)
	for j, rank := range layout.Parity {
		j, rank := j, rank
		grp.Go(func() error {
			return d.peers.CommitRemote(gctx, rank, ReplicateArgs{
				OID: oid, Dkey: dkey, Akey: akey, Class: class,
				StripeNum: stripe.StripeNum, PeerIdx: uint32(j), Mode: ModeHoleRepair,
				Epoch: stripe.MaxEpoch, Recx: recx, Data: data, IsHole: isHole,
			})
		})
	}
	return grp.Wait()
}
