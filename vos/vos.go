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

// Package vos defines the boundary to the local versioned object store.
// spec.md §1 lists VOS among the components that are "external
// collaborators, interface-only": this package only declares the shape of
// that collaborator (an iterator plus point read/write/range-delete) and
// ships an in-memory fake for tests. A production VOS (an LSM-tree-backed
// engine with epoch-aware visibility) is out of scope, mirroring the
// teacher's own column-family Store interface in common/kvstore without
// adopting its RocksDB/CGO backend.
package vos

import (
	"context"
	"errors"
	"io"

	"github.com/objagg/objagg/proto"
)

var ErrIterDone = io.EOF

type (
	// ObjectCursor is one admitted object: "is EC-coded" and class
	// attributes are resolved by the store from object-ID metadata, the
	// way a DAOS object ID embeds its object class.
	ObjectCursor struct {
		OID      proto.ObjectID
		Class    proto.ObjectClass
		IsECData bool
	}

	ObjectIterator interface {
		// Next returns ErrIterDone when the scan is exhausted.
		Next(ctx context.Context) (ObjectCursor, error)
		Close()
	}
	DkeyIterator interface {
		Next(ctx context.Context) (string, error)
		Close()
	}
	AkeyIterator interface {
		Next(ctx context.Context) (string, error)
		Close()
	}
	// ExtentIterator yields extents in index order within the epoch
	// range the query was opened with. The iteration driver relies on
	// index order to detect stripe boundaries (spec.md §4.1).
	ExtentIterator interface {
		Next(ctx context.Context) (proto.Extent, error)
		Close()
	}

	// Store is the VOS boundary the Iteration Driver, Parity Probe, and
	// the four transform paths are built against.
	Store interface {
		// IterateObjects yields every object with at least one record in
		// er, for the caller to filter by leadership and EC-ness.
		IterateObjects(ctx context.Context, er proto.EpochRange) (ObjectIterator, error)
		IterateDkeys(ctx context.Context, oid proto.ObjectID) (DkeyIterator, error)
		IterateAkeys(ctx context.Context, oid proto.ObjectID, dkey string) (AkeyIterator, error)

		// IterateExtents performs the full per-akey walk the Iteration
		// Driver consumes: data extents only, in index order, epoch
		// range er. Parity-flagged indices are never returned here —
		// surfacing one is a ConsistencyViolated error (spec.md §7).
		IterateExtents(ctx context.Context, oid proto.ObjectID, dkey, akey string, er proto.EpochRange) (ExtentIterator, error)

		// RangeExtents is the bounded range query spec.md §4.2 uses for
		// the Parity Probe ("issue a visibility-filtered range query
		// against the parity index [stripenum*len, stripenum*len+len)
		// with the parity flag set"). The Hole-Repair path does not use
		// it; it reads cell content through objremote.Handle.Fetch.
		RangeExtents(ctx context.Context, oid proto.ObjectID, dkey, akey string, recx proto.Recx, er proto.EpochRange) (ExtentIterator, error)

		Fetch(ctx context.Context, oid proto.ObjectID, epoch proto.Epoch, dkey, akey string, recx proto.Recx, buf []byte) error
		Update(ctx context.Context, oid proto.ObjectID, epoch proto.Epoch, dkey, akey string, recx proto.Recx, buf []byte) error
		RemoveRange(ctx context.Context, oid proto.ObjectID, dkey, akey string, recx proto.Recx, er proto.EpochRange) error
	}
)

var ErrNotFound = errors.New("vos: no such extent")
