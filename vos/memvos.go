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

package vos

import (
	"context"
	"sort"
	"sync"

	"github.com/objagg/objagg/proto"
)

// MemStore is an in-memory Store used by tests and as cmd/ecaggd's local
// store: it applies the same
// epoch-visibility rule a real VOS would (the newest epoch covering a byte
// range shadows older ones) so round-trip and boundary tests exercise real
// merge semantics instead of a stub that always returns one extent.
type MemStore struct {
	mu      sync.Mutex
	objects map[proto.ObjectID]ObjectCursor
	dkeys   map[proto.ObjectID]map[string]struct{}
	akeys   map[dkeyKey]map[string]struct{}
	records map[akeyKey][]record
}

type dkeyKey struct {
	oid  proto.ObjectID
	dkey string
}

type akeyKey struct {
	oid  proto.ObjectID
	dkey string
	akey string
}

type record struct {
	proto.Extent
	Data []byte
}

func NewMemStore() *MemStore {
	return &MemStore{
		objects: make(map[proto.ObjectID]ObjectCursor),
		dkeys:   make(map[proto.ObjectID]map[string]struct{}),
		akeys:   make(map[dkeyKey]map[string]struct{}),
		records: make(map[akeyKey][]record),
	}
}

// RegisterObject declares oid as admitted (or not) for the object-enter
// callback; tests use this to control the "is EC-coded and this target is
// leader" filter that spec.md §4.1 applies before the driver resets its
// aggregation context.
func (s *MemStore) RegisterObject(oid proto.ObjectID, class proto.ObjectClass, isECData bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[oid] = ObjectCursor{OID: oid, Class: class, IsECData: isECData}
}

func (s *MemStore) touch(oid proto.ObjectID, dkey, akey string) {
	if _, ok := s.dkeys[oid]; !ok {
		s.dkeys[oid] = make(map[string]struct{})
	}
	s.dkeys[oid][dkey] = struct{}{}

	dk := dkeyKey{oid, dkey}
	if _, ok := s.akeys[dk]; !ok {
		s.akeys[dk] = make(map[string]struct{})
	}
	s.akeys[dk][akey] = struct{}{}
}

func (s *MemStore) Fetch(ctx context.Context, oid proto.ObjectID, epoch proto.Epoch, dkey, akey string, recx proto.Recx, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range buf {
		buf[i] = 0
	}
	if recx.Count == 0 {
		return nil
	}
	rsize := uint64(len(buf)) / recx.Count

	recs := append([]record(nil), s.records[akeyKey{oid, dkey, akey}]...)
	sort.Slice(recs, func(i, j int) bool { return recs[i].Epoch < recs[j].Epoch })

	for _, rec := range recs {
		if rec.Epoch > epoch || rec.IsHole {
			continue
		}
		lo, hi := overlap(rec.Recx, recx)
		if lo >= hi {
			continue
		}
		srcOff := (lo - rec.Index) * rsize
		dstOff := (lo - recx.Index) * rsize
		n := (hi - lo) * rsize
		copy(buf[dstOff:dstOff+n], rec.Data[srcOff:srcOff+n])
	}
	return nil
}

func (s *MemStore) Update(ctx context.Context, oid proto.ObjectID, epoch proto.Epoch, dkey, akey string, recx proto.Recx, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touch(oid, dkey, akey)
	data := make([]byte, len(buf))
	copy(data, buf)
	key := akeyKey{oid, dkey, akey}
	s.records[key] = append(s.records[key], record{
		Extent: proto.Extent{Recx: recx, Epoch: epoch},
		Data:   data,
	})
	return nil
}

// WriteHole records a user-level delete: a hole extent carries no bytes and,
// in IterateExtents/RangeExtents, shadows whatever replica or parity
// previously covered its range, per spec.md's Extent record (`is_hole`).
// Fetch skips hole records, so older bytes under a hole still read back.
func (s *MemStore) WriteHole(oid proto.ObjectID, epoch proto.Epoch, dkey, akey string, recx proto.Recx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touch(oid, dkey, akey)
	key := akeyKey{oid, dkey, akey}
	s.records[key] = append(s.records[key], record{Extent: proto.Extent{Recx: recx, Epoch: epoch, IsHole: true}})
}

func (s *MemStore) RemoveRange(ctx context.Context, oid proto.ObjectID, dkey, akey string, recx proto.Recx, er proto.EpochRange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := akeyKey{oid, dkey, akey}
	var kept []record
	for _, rec := range s.records[key] {
		if !er.Contains(rec.Epoch) {
			kept = append(kept, rec)
			continue
		}
		if rec.End() <= recx.Index || rec.Index >= recx.End() {
			kept = append(kept, rec)
			continue
		}
		// the paths that call RemoveRange always pass the full stripe
		// range they just consumed, so a partial punch never occurs in
		// practice; dropping the whole record matches that usage.
	}
	s.records[key] = kept
	return nil
}

func overlap(a, b proto.Recx) (lo, hi uint64) {
	lo = a.Index
	if b.Index > lo {
		lo = b.Index
	}
	hi = a.End()
	if b.End() < hi {
		hi = b.End()
	}
	return lo, hi
}

// subtract returns the sub-ranges of recx not covered by any interval in
// covered, used to compute the visible (shadow-free) extent set for
// IterateExtents/RangeExtents.
func subtract(recx proto.Recx, covered []proto.Recx) []proto.Recx {
	remaining := []proto.Recx{recx}
	for _, c := range covered {
		var next []proto.Recx
		for _, r := range remaining {
			lo, hi := overlap(r, c)
			if lo >= hi {
				next = append(next, r)
				continue
			}
			if r.Index < lo {
				next = append(next, proto.Recx{Index: r.Index, Count: lo - r.Index})
			}
			if hi < r.End() {
				next = append(next, proto.Recx{Index: hi, Count: r.End() - hi})
			}
		}
		remaining = next
	}
	return remaining
}

func (s *MemStore) visible(oid proto.ObjectID, dkey, akey string, bound proto.Recx, er proto.EpochRange) []proto.Extent {
	recs := append([]record(nil), s.records[akeyKey{oid, dkey, akey}]...)
	sort.Slice(recs, func(i, j int) bool { return recs[i].Epoch > recs[j].Epoch })

	var covered []proto.Recx
	var out []proto.Extent
	for _, rec := range recs {
		if !er.Contains(rec.Epoch) {
			continue
		}
		lo, hi := overlap(rec.Recx, bound)
		if lo >= hi {
			continue
		}
		clipped := proto.Recx{Index: lo, Count: hi - lo}
		for _, vis := range subtract(clipped, covered) {
			out = append(out, proto.Extent{Recx: vis, Epoch: rec.Epoch, IsHole: rec.IsHole})
		}
		covered = append(covered, clipped)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func (s *MemStore) IterateExtents(ctx context.Context, oid proto.ObjectID, dkey, akey string, er proto.EpochRange) (ExtentIterator, error) {
	s.mu.Lock()
	bound := proto.Recx{Index: 0, Count: proto.ParityFlag}
	extents := s.visible(oid, dkey, akey, bound, er)
	s.mu.Unlock()
	return &sliceExtentIter{extents: extents}, nil
}

func (s *MemStore) RangeExtents(ctx context.Context, oid proto.ObjectID, dkey, akey string, recx proto.Recx, er proto.EpochRange) (ExtentIterator, error) {
	s.mu.Lock()
	extents := s.visible(oid, dkey, akey, recx, er)
	s.mu.Unlock()
	return &sliceExtentIter{extents: extents}, nil
}

func (s *MemStore) IterateObjects(ctx context.Context, er proto.EpochRange) (ObjectIterator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cursors := make([]ObjectCursor, 0, len(s.objects))
	for _, c := range s.objects {
		cursors = append(cursors, c)
	}
	sort.Slice(cursors, func(i, j int) bool {
		if cursors[i].OID.Hi != cursors[j].OID.Hi {
			return cursors[i].OID.Hi < cursors[j].OID.Hi
		}
		return cursors[i].OID.Lo < cursors[j].OID.Lo
	})
	return &sliceObjectIter{cursors: cursors}, nil
}

func (s *MemStore) IterateDkeys(ctx context.Context, oid proto.ObjectID) (DkeyIterator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var dkeys []string
	for dk := range s.dkeys[oid] {
		dkeys = append(dkeys, dk)
	}
	sort.Strings(dkeys)
	return &sliceStringIter{values: dkeys}, nil
}

func (s *MemStore) IterateAkeys(ctx context.Context, oid proto.ObjectID, dkey string) (AkeyIterator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var akeys []string
	for ak := range s.akeys[dkeyKey{oid, dkey}] {
		akeys = append(akeys, ak)
	}
	sort.Strings(akeys)
	return &sliceStringIter{values: akeys}, nil
}

type sliceExtentIter struct {
	extents []proto.Extent
	pos     int
}

func (it *sliceExtentIter) Next(ctx context.Context) (proto.Extent, error) {
	if it.pos >= len(it.extents) {
		return proto.Extent{}, ErrIterDone
	}
	e := it.extents[it.pos]
	it.pos++
	return e, nil
}

func (it *sliceExtentIter) Close() {}

type sliceObjectIter struct {
	cursors []ObjectCursor
	pos     int
}

func (it *sliceObjectIter) Next(ctx context.Context) (ObjectCursor, error) {
	if it.pos >= len(it.cursors) {
		return ObjectCursor{}, ErrIterDone
	}
	c := it.cursors[it.pos]
	it.pos++
	return c, nil
}

func (it *sliceObjectIter) Close() {}

type sliceStringIter struct {
	values []string
	pos    int
}

func (it *sliceStringIter) Next(ctx context.Context) (string, error) {
	if it.pos >= len(it.values) {
		return "", ErrIterDone
	}
	v := it.values[it.pos]
	it.pos++
	return v, nil
}

func (it *sliceStringIter) Close() {}
