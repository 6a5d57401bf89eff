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

// cellInfo tracks one data cell's coverage within a stripe as the driver
// folds extents into it.
type cellInfo struct {
	recordsFilled uint64
	hasHole       bool
	minEpoch      proto.Epoch
	maxEpoch      proto.Epoch
	touched       bool
}

// StripeState is the accumulated view of one stripe's data cells, built by
// feeding it every data extent the Iteration Driver reads for that stripe
// range. Invariant 6 from spec.md ("a stripe is full of replicas iff fill
// == k*len*rsize") is StripeState.FullyReplicated below.
type StripeState struct {
	StripeNum uint64
	Class     proto.ObjectClass
	Cells     []cellInfo
	MaxEpoch  proto.Epoch
	MinEpoch  proto.Epoch

	// PrefixExt and SuffixExt record, in records, how an extent crossing
	// this stripe's boundary was split: PrefixExt is nonzero when this
	// stripe's first cell carries the tail of an extent whose head belongs
	// to stripenum-1, and holds the length of that head; SuffixExt is
	// nonzero when this stripe's last cell carries the head of an extent
	// whose tail belongs to stripenum+1, and holds the length of that head
	// inside this stripe. A non-hole commit's data delete range starts
	// PrefixExt records before the stripe and ends SuffixExt records short
	// of its end, so a crossing extent is reclaimed whole by the later of
	// the two stripes it spans.
	PrefixExt uint64
	SuffixExt uint64
}

func newStripeState(stripenum uint64, class proto.ObjectClass) *StripeState {
	return &StripeState{
		StripeNum: stripenum,
		Class:     class,
		Cells:     make([]cellInfo, class.K),
		MinEpoch:  proto.EpochMax,
	}
}

// FullyReplicated reports whether every cell in the stripe is completely
// covered by non-hole data, record for record.
func (s *StripeState) FullyReplicated() bool {
	for i := range s.Cells {
		if s.Cells[i].hasHole || s.Cells[i].recordsFilled != uint64(s.Class.Len) {
			return false
		}
	}
	return true
}

// HasHole reports whether any touched cell carries a hole.
func (s *StripeState) HasHole() bool {
	for i := range s.Cells {
		if s.Cells[i].hasHole {
			return true
		}
	}
	return false
}

// AnyTouched reports whether at least one cell saw an extent.
func (s *StripeState) AnyTouched() bool {
	for i := range s.Cells {
		if s.Cells[i].touched {
			return true
		}
	}
	return false
}

// TouchedCells returns the indices of data cells this stripe actually saw
// an extent for.
func (s *StripeState) TouchedCells() []int {
	var out []int
	for i := range s.Cells {
		if s.Cells[i].touched {
			out = append(out, i)
		}
	}
	return out
}

// Feed folds one data extent (already known to belong to this stripe) into
// the per-cell coverage, splitting it across cell boundaries if it spans
// more than one.
func (s *StripeState) Feed(e proto.Extent) {
	width := uint64(s.Class.Len)
	base := s.StripeNum * s.Class.StripeRecords()

	for idx, end := e.Index, e.End(); idx < end; {
		cell := int((idx - base) / width)
		cellEnd := base + uint64(cell+1)*width
		segEnd := end
		if cellEnd < segEnd {
			segEnd = cellEnd
		}

		ci := &s.Cells[cell]
		ci.touched = true
		if e.IsHole {
			ci.hasHole = true
		} else {
			ci.recordsFilled += segEnd - idx
		}
		if e.Epoch > ci.maxEpoch {
			ci.maxEpoch = e.Epoch
		}
		if ci.minEpoch == 0 || e.Epoch < ci.minEpoch {
			ci.minEpoch = e.Epoch
		}

		if e.Epoch > s.MaxEpoch {
			s.MaxEpoch = e.Epoch
		}
		if e.Epoch < s.MinEpoch {
			s.MinEpoch = e.Epoch
		}

		idx = segEnd
	}
}

// stripeAccumulator turns an in-order stream of data extents into a
// sequence of completed StripeStates, one per stripe boundary crossed.
type stripeAccumulator struct {
	class   proto.ObjectClass
	current *StripeState
}

func newStripeAccumulator(class proto.ObjectClass) *stripeAccumulator {
	return &stripeAccumulator{class: class}
}

// Feed consumes one extent (in ascending index order), splitting it at
// stripe boundaries if it spans more than one, and returns every
// StripeState completed as a result — zero, one, or several if e jumps
// clean across stripes that otherwise saw no extent at all.
func (a *stripeAccumulator) Feed(e proto.Extent) []*StripeState {
	var done []*StripeState
	segs := splitByStripe(e, a.class)
	for i, seg := range segs {
		stripenum := proto.StripeNum(seg.Index, a.class)
		if a.current != nil && a.current.StripeNum != stripenum {
			done = append(done, a.current)
			a.current = nil
		}
		if a.current == nil {
			a.current = newStripeState(stripenum, a.class)
			if i > 0 {
				// this stripe's first segment is the continuation of an
				// extent whose head landed in the previous stripe.
				a.current.PrefixExt = segs[i-1].Recx.Count
			}
		}
		a.current.Feed(seg)
		if i < len(segs)-1 {
			// more of this same extent continues into the next stripe.
			a.current.SuffixExt = seg.Recx.Count
		}
	}
	return done
}

// splitByStripe breaks e into one sub-extent per stripe it overlaps.
func splitByStripe(e proto.Extent, class proto.ObjectClass) []proto.Extent {
	width := class.StripeRecords()
	var out []proto.Extent
	for idx, end := e.Index, e.End(); idx < end; {
		stripeEnd := (idx/width + 1) * width
		segEnd := end
		if stripeEnd < segEnd {
			segEnd = stripeEnd
		}
		seg := e
		seg.Recx = proto.Recx{Index: idx, Count: segEnd - idx}
		out = append(out, seg)
		idx = segEnd
	}
	return out
}

// Flush finalizes the last open stripe at the end of an akey's extent
// stream. Returns nil if nothing was ever fed.
func (a *stripeAccumulator) Flush() *StripeState {
	done := a.current
	a.current = nil
	return done
}
