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

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/cubefs/blobstore/util/taskpool"

	"github.com/objagg/objagg/ecmath"
	"github.com/objagg/objagg/errors"
	"github.com/objagg/objagg/identity"
	"github.com/objagg/objagg/metrics"
	"github.com/objagg/objagg/objremote"
	"github.com/objagg/objagg/proto"
	"github.com/objagg/objagg/vos"
)

// Driver is the Iteration Driver: it owns the object/dkey/akey walk, folds
// each akey's extents into stripes, and dispatches every completed stripe
// to the Mode Selector and the matching transform path.
type Driver struct {
	store   vos.Store
	opener  objremote.Opener
	idsvc   identity.Service
	prober  *Prober
	peers   *PeerCoordinator
	pool    *cellPool
	guard   *replayGuard
	workers taskpool.TaskPool
	cfg     Config
}

// NewDriver wires the four external collaborators (storage, identity,
// object-remote layout, peer dialer) into a Driver ready to Run.
func NewDriver(store vos.Store, opener objremote.Opener, idsvc identity.Service, dialer PeerDialer, cfg Config) *Driver {
	store = newThrottledStore(store, cfg.Limits)
	workerPoolSize := cfg.WorkerPoolSize
	if workerPoolSize == 0 {
		workerPoolSize = defaultWorkerPoolSize
	}
	return &Driver{
		store:   store,
		opener:  opener,
		idsvc:   idsvc,
		prober:  newProber(store, dialer),
		peers:   newPeerCoordinator(dialer),
		pool:    newCellPool(),
		guard:   newReplayGuard(),
		workers: taskpool.New(workerPoolSize, workerPoolSize),
		cfg:     cfg,
	}
}

func (d *Driver) epochRange() proto.EpochRange {
	hi := d.cfg.HiEpoch
	if d.cfg.SnapshotEpoch != 0 && d.cfg.SnapshotEpoch-1 < hi {
		hi = d.cfg.SnapshotEpoch - 1
	}
	return proto.EpochRange{Lo: d.cfg.LoEpoch, Hi: hi}
}

// Run walks every object visible in the driver's epoch range and returns
// once the scan completes or Config.Yield aborts it.
func (d *Driver) Run(ctx context.Context) (*Status, error) {
	span, ctx := trace.StartSpanFromContext(ctx, "ec-aggregate")
	status := newStatus()
	er := d.epochRange()
	span.Infof("run starting, epoch range [%d,%d]", er.Lo, er.Hi)

	objIt, err := d.store.IterateObjects(ctx, er)
	if err != nil {
		return status, errors.Wrap(errors.KindTransient, "aggregate: iterate objects", err)
	}
	defer objIt.Close()

	processedStripes := 0
	for {
		cursor, err := objIt.Next(ctx)
		if err == vos.ErrIterDone {
			break
		}
		if err != nil {
			return status, errors.Wrap(errors.KindTransient, "aggregate: object iterator", err)
		}
		if !cursor.IsECData {
			continue
		}

		leader, err := d.idsvc.CheckLeader(ctx, cursor.OID)
		if err != nil || !leader.IsLeader {
			continue
		}
		status.ObjectsVisited++

		if err := d.runObject(ctx, cursor, er, status, &processedStripes); err != nil {
			if errors.KindOf(err) == errors.KindFatal {
				span.Errorf("object %+v aborted, run stopping: %s", cursor.OID, err)
				return status, err
			}
			// any other kind: this object's remaining streams are
			// abandoned, but the scan continues with the next object.
			span.Warnf("object %+v abandoned: %s", cursor.OID, err)
			continue
		}
	}
	span.Infof("run complete: %d objects visited, %d stripes processed, %d abandoned",
		status.ObjectsVisited, status.StripesProcessed, status.StripesAbandoned)
	return status, nil
}

func (d *Driver) runObject(ctx context.Context, cursor vos.ObjectCursor, er proto.EpochRange, status *Status, processedStripes *int) error {
	handle, err := d.opener.Open(ctx, cursor.OID)
	if err != nil {
		return errors.Wrap(errors.KindTransient, "aggregate: open object", err)
	}

	dkeyIt, err := d.store.IterateDkeys(ctx, cursor.OID)
	if err != nil {
		return errors.Wrap(errors.KindTransient, "aggregate: iterate dkeys", err)
	}
	defer dkeyIt.Close()

	for {
		dkey, err := dkeyIt.Next(ctx)
		if err == vos.ErrIterDone {
			break
		}
		if err != nil {
			return errors.Wrap(errors.KindTransient, "aggregate: dkey iterator", err)
		}

		if err := d.runDkey(ctx, cursor, handle, dkey, er, status, processedStripes); err != nil {
			if errors.KindOf(err) == errors.KindFatal {
				return err
			}
			continue
		}
	}
	return nil
}

func (d *Driver) runDkey(ctx context.Context, cursor vos.ObjectCursor, handle objremote.Handle, dkey string, er proto.EpochRange, status *Status, processedStripes *int) error {
	akeyIt, err := d.store.IterateAkeys(ctx, cursor.OID, dkey)
	if err != nil {
		return errors.Wrap(errors.KindTransient, "aggregate: iterate akeys", err)
	}
	defer akeyIt.Close()

	for {
		akey, err := akeyIt.Next(ctx)
		if err == vos.ErrIterDone {
			break
		}
		if err != nil {
			return errors.Wrap(errors.KindTransient, "aggregate: akey iterator", err)
		}

		layout, err := handle.LayoutGet(ctx, dkey, akey)
		if err != nil {
			continue
		}
		if err := d.runStream(ctx, cursor, handle, dkey, akey, layout, er, status, processedStripes); err != nil {
			if errors.KindOf(err) == errors.KindFatal {
				return err
			}
			continue
		}
	}
	return nil
}

func (d *Driver) runStream(ctx context.Context, cursor vos.ObjectCursor, handle objremote.Handle, dkey, akey string, layout objremote.Layout, er proto.EpochRange, status *Status, processedStripes *int) error {
	extentIt, err := d.store.IterateExtents(ctx, cursor.OID, dkey, akey, er)
	if err != nil {
		return errors.Wrap(errors.KindTransient, "aggregate: iterate extents", err)
	}
	defer extentIt.Close()

	acc := newStripeAccumulator(cursor.Class)
	for {
		e, err := extentIt.Next(ctx)
		if err == vos.ErrIterDone {
			break
		}
		if err != nil {
			return errors.Wrap(errors.KindTransient, "aggregate: extent iterator", err)
		}
		if proto.IsParityIndex(e.Index) {
			return errors.ErrParityWhereData
		}

		for _, s := range acc.Feed(e) {
			d.handleStripe(ctx, cursor.OID, dkey, akey, s, layout, handle, er, status)
			*processedStripes++
			if d.cfg.StripesPerYield > 0 && *processedStripes%d.cfg.StripesPerYield == 0 && d.cfg.Yield != nil {
				if err := d.cfg.Yield(*processedStripes); err != nil {
					return errors.Wrap(errors.KindFatal, "aggregate: yield aborted run", err)
				}
			}
		}
	}
	if final := acc.Flush(); final != nil {
		d.handleStripe(ctx, cursor.OID, dkey, akey, final, layout, handle, er, status)
		*processedStripes++
		if d.cfg.StripesPerYield > 0 && *processedStripes%d.cfg.StripesPerYield == 0 && d.cfg.Yield != nil {
			if err := d.cfg.Yield(*processedStripes); err != nil {
				return errors.Wrap(errors.KindFatal, "aggregate: yield aborted run", err)
			}
		}
	}
	return nil
}

// handleStripe runs the Mode Selector and the chosen transform path for
// one completed stripe, then commits the result to every parity holder
// before advancing the replay guard.
func (d *Driver) handleStripe(ctx context.Context, oid proto.ObjectID, dkey, akey string, stripe *StripeState, layout objremote.Layout, handle objremote.Handle, er proto.EpochRange, status *Status) {
	span := trace.SpanFromContextSafe(ctx)
	key := streamKey{oid: oid, dkey: dkey, akey: akey}
	if d.guard.Done(key, stripe.StripeNum) {
		return
	}

	if _, err := ecmath.CodecGet(stripe.Class); err != nil {
		span.Warnf("stripe %d of %+v/%s/%s abandoned: unsupported parity class", stripe.StripeNum, oid, dkey, akey)
		status.StripesAbandoned++
		metrics.StripesAbandoned.WithLabelValues("unsupported_parity").Inc()
		return
	}

	probes, err := d.prober.Probe(ctx, oid, dkey, akey, stripe.Class, stripe.StripeNum, layout, er)
	if err != nil {
		span.Warnf("stripe %d of %+v/%s/%s abandoned: probe failed: %s", stripe.StripeNum, oid, dkey, akey, err)
		status.StripesAbandoned++
		metrics.StripesAbandoned.WithLabelValues(errors.KindOf(err).String()).Inc()
		return
	}

	mode, changed := SelectMode(stripe, probes)
	if mode == ModeSkip {
		return
	}

	if err := d.applyMode(ctx, oid, dkey, akey, stripe, mode, changed, probes, layout, handle); err != nil {
		span.Warnf("stripe %d of %+v/%s/%s abandoned in mode %s: %s", stripe.StripeNum, oid, dkey, akey, mode, err)
		status.StripesAbandoned++
		metrics.StripesAbandoned.WithLabelValues(errors.KindOf(err).String()).Inc()
		return
	}

	status.StripesProcessed++
	status.ModeCounts[mode]++
	metrics.StripesProcessed.WithLabelValues(mode.String()).Inc()
	d.guard.Advance(key, stripe.StripeNum)
}
