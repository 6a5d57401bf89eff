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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/objagg/objagg/proto"
)

func TestMemStoreFetchNewestShadowsOldest(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	oid := proto.ObjectID{Hi: 1, Lo: 1}

	require.NoError(t, s.Update(ctx, oid, 1, "d", "a", proto.Recx{Index: 0, Count: 4}, []byte{1, 1, 1, 1}))
	require.NoError(t, s.Update(ctx, oid, 2, "d", "a", proto.Recx{Index: 1, Count: 2}, []byte{2, 2}))

	buf := make([]byte, 4)
	require.NoError(t, s.Fetch(ctx, oid, proto.EpochMax, "d", "a", proto.Recx{Index: 0, Count: 4}, buf))
	require.Equal(t, []byte{1, 2, 2, 1}, buf)
}

func TestMemStoreFetchRespectsEpochCeiling(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	oid := proto.ObjectID{Hi: 1, Lo: 2}

	require.NoError(t, s.Update(ctx, oid, 1, "d", "a", proto.Recx{Index: 0, Count: 2}, []byte{9, 9}))
	require.NoError(t, s.Update(ctx, oid, 5, "d", "a", proto.Recx{Index: 0, Count: 2}, []byte{3, 3}))

	buf := make([]byte, 2)
	require.NoError(t, s.Fetch(ctx, oid, 1, "d", "a", proto.Recx{Index: 0, Count: 2}, buf))
	require.Equal(t, []byte{9, 9}, buf)
}

func TestMemStoreHoleNeverMergesAway(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	oid := proto.ObjectID{Hi: 1, Lo: 3}

	require.NoError(t, s.Update(ctx, oid, 1, "d", "a", proto.Recx{Index: 0, Count: 4}, []byte{1, 1, 1, 1}))
	s.WriteHole(oid, 2, "d", "a", proto.Recx{Index: 0, Count: 4})

	it, err := s.RangeExtents(ctx, oid, "d", "a", proto.Recx{Index: 0, Count: 4}, proto.EpochRange{Hi: proto.EpochMax})
	require.NoError(t, err)
	defer it.Close()

	e, err := it.Next(ctx)
	require.NoError(t, err)
	require.True(t, e.IsHole)
	require.Equal(t, proto.Epoch(2), e.Epoch)

	_, err = it.Next(ctx)
	require.Equal(t, ErrIterDone, err)
}

func TestMemStoreRemoveRangeDropsRecordsInEpochWindow(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	oid := proto.ObjectID{Hi: 1, Lo: 4}

	require.NoError(t, s.Update(ctx, oid, 1, "d", "a", proto.Recx{Index: 0, Count: 4}, []byte{1, 1, 1, 1}))
	require.NoError(t, s.RemoveRange(ctx, oid, "d", "a", proto.Recx{Index: 0, Count: 4}, proto.EpochRange{Hi: 1}))

	buf := make([]byte, 4)
	require.NoError(t, s.Fetch(ctx, oid, proto.EpochMax, "d", "a", proto.Recx{Index: 0, Count: 4}, buf))
	require.Equal(t, []byte{0, 0, 0, 0}, buf)
}

func TestMemStoreIterateObjectsDkeysAkeysSorted(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	oidA := proto.ObjectID{Hi: 0, Lo: 2}
	oidB := proto.ObjectID{Hi: 0, Lo: 1}
	s.RegisterObject(oidA, proto.ObjectClass{K: 2, P: 1, Len: 4, Rsize: 8}, true)
	s.RegisterObject(oidB, proto.ObjectClass{K: 2, P: 1, Len: 4, Rsize: 8}, false)

	it, err := s.IterateObjects(ctx, proto.EpochRange{Hi: proto.EpochMax})
	require.NoError(t, err)
	defer it.Close()

	first, err := it.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, oidB, first.OID)
	require.False(t, first.IsECData)

	second, err := it.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, oidA, second.OID)
	require.True(t, second.IsECData)

	_, err = it.Next(ctx)
	require.Equal(t, ErrIterDone, err)
}
