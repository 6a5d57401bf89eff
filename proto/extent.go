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

// Recx is a half-open span of record indices, [Index, Index+Count).
type Recx struct {
	Index uint64
	Count uint64
}

// End returns the first index past this span.
func (r Recx) End() uint64 {
	return r.Index + r.Count
}

// Overlaps reports whether r and o share any record index.
func (r Recx) Overlaps(o Recx) bool {
	return r.Index < o.End() && o.Index < r.End()
}

// Extent is the iteration driver's view of one replica or parity record
// range, per spec.md §3: "{ index, count, epoch, is_hole }". At most one
// extent in a scanned window may cross a stripe boundary, and only on its
// tail.
type Extent struct {
	Recx
	Epoch  Epoch
	IsHole bool
}
