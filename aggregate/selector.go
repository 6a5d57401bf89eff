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

import "github.com/objagg/objagg/proto"

// SelectMode is the Mode Selector: it turns a stripe's accumulated
// coverage plus the parity probe's answer into one of the four transform
// paths, or a no-op. Holes always win over aggregation (a stripe cannot be
// safely encoded while a record inside it has been punched). Encode is the
// only path gated on full local replication — it builds parity straight
// from local data with no peer fetch, so it cannot fire over a partial
// stripe. Partial-Update and Recalc fetch whatever cells they need from
// the cell's peer targets, so they fire as soon as parity exists and at
// least one cell outran it, regardless of how much of the stripe is
// locally replicated. Among them the split is strictly "a single cell
// moved since parity was last written" (PartialUpdate) versus "more than
// one did" (Recalc) — an exact tie (one cell exactly at the parity epoch)
// counts as unchanged, never as a rewrite, so partial-update is driven
// with a strict greater-than, not greater-or-equal.
func SelectMode(stripe *StripeState, probes []ParityCellResult) (Mode, []int) {
	if !stripe.AnyTouched() {
		return ModeSkip, nil
	}
	if stripe.HasHole() {
		return ModeHoleRepair, stripe.TouchedCells()
	}

	allMissing, anyMissing := true, false
	parityEpoch := proto.EpochMax
	for _, pr := range probes {
		if pr.Exists {
			allMissing = false
			if pr.Epoch < parityEpoch {
				parityEpoch = pr.Epoch
			}
		} else {
			anyMissing = true
		}
	}
	if allMissing {
		if !stripe.FullyReplicated() {
			return ModeSkip, nil
		}
		return ModeEncode, nil
	}
	if anyMissing {
		// parity cells disagree on presence: a partial parity set from an
		// interrupted prior run, only a full Recalc restores consistency.
		return ModeRecalc, nil
	}

	var changed []int
	for i := range stripe.Cells {
		if stripe.Cells[i].maxEpoch > parityEpoch {
			changed = append(changed, i)
		}
	}
	switch len(changed) {
	case 0:
		return ModeSkip, nil
	case 1:
		return ModePartialUpdate, changed
	default:
		return ModeRecalc, changed
	}
}
