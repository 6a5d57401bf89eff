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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/objagg/objagg/ecmath"
	"github.com/objagg/objagg/identity"
	"github.com/objagg/objagg/objremote"
	"github.com/objagg/objagg/proto"
	"github.com/objagg/objagg/vos"
)

type fakeDialer struct {
	peers map[proto.Rank]PeerRPC
}

func (f fakeDialer) DialParity(ctx context.Context, rank proto.Rank) (PeerRPC, error) {
	return f.peers[rank], nil
}

var (
	e2eClass = proto.ObjectClass{K: 2, P: 1, Len: 2, Rsize: 4}
	e2eDkey  = "d0"
	e2eAkey  = "a0"
)

// driverHarness wires one leader-side store, one remote parity-holder
// store, a third store standing in for the object's authoritative remote
// path (the one source hole-repair fetches the true bytes from, since by
// the time a hole is punched the leader's own replica may be gone), and a
// fresh Driver over them, mirroring the split aggregate.Run performs
// between the local vos.Store and the peer dialer.
type driverHarness struct {
	local  *vos.MemStore
	remote *vos.MemStore
	source *vos.MemStore
	oid    proto.ObjectID
	layout objremote.Layout
}

func newDriverHarness(t *testing.T) *driverHarness {
	oid := proto.ObjectID{Hi: 0, Lo: 42}
	h := &driverHarness{
		local:  vos.NewMemStore(),
		remote: vos.NewMemStore(),
		source: vos.NewMemStore(),
		oid:    oid,
		layout: objremote.Layout{
			Class:   e2eClass,
			Ranks:   []proto.Rank{0},
			Parity:  []proto.Rank{1},
			SelfIdx: 0,
			IsData:  true,
		},
	}
	h.local.RegisterObject(oid, e2eClass, true)
	return h
}

func (h *driverHarness) newDriver() *Driver {
	layouts := objremote.NewLayoutTable()
	layouts.Set(e2eDkey, e2eAkey, h.layout)
	opener := objremote.NewLocalOpener(h.source, layouts)

	idsvc := identity.NewStaticService()
	idsvc.SetLeader(h.oid, identity.LeaderStatus{IsLeader: true})

	dialer := fakeDialer{peers: map[proto.Rank]PeerRPC{
		1: LocalPeer{Impl: NewShardServer(h.remote, nil)},
	}}

	return NewDriver(h.local, opener, idsvc, dialer, Config{HiEpoch: proto.EpochMax})
}

// writeCell lands a new replica both in the leader's local staging store
// and at the object's durable remote path, mirroring production where the
// aggregation engine's local copy is reclaimed once parity absorbs it but
// the object's own store keeps the data forever.
func (h *driverHarness) writeCell(t *testing.T, epoch proto.Epoch, cell int, data []byte) {
	recx := proto.CellRange(0, uint32(cell), e2eClass)
	require.NoError(t, h.local.Update(context.Background(), h.oid, epoch, e2eDkey, e2eAkey, recx, data))
	require.NoError(t, h.source.Update(context.Background(), h.oid, epoch, e2eDkey, e2eAkey, recx, data))
}

func (h *driverHarness) fetchRemoteParity(t *testing.T) []byte {
	buf := make([]byte, e2eClass.CellBytes())
	recx := proto.ParityRecxFor(0, e2eClass)
	require.NoError(t, h.remote.Fetch(context.Background(), h.oid, proto.EpochMax, e2eDkey, e2eAkey, recx, buf))
	return buf
}

func expectedParity(t *testing.T, cell0, cell1 []byte) []byte {
	codec, err := ecmath.CodecGet(e2eClass)
	require.NoError(t, err)
	parity := [][]byte{make([]byte, len(cell0))}
	require.NoError(t, codec.Encode([][]byte{cell0, cell1}, parity))
	return parity[0]
}

func TestDriverEncodesFreshParity(t *testing.T) {
	h := newDriverHarness(t)
	ctx := context.Background()

	cell0 := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	cell1 := []byte{8, 7, 6, 5, 4, 3, 2, 1}
	h.writeCell(t, 1, 0, cell0)
	h.writeCell(t, 1, 1, cell1)

	status, err := h.newDriver().Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, status.ModeCounts[ModeEncode])
	require.Equal(t, 1, status.StripesProcessed)

	require.Equal(t, expectedParity(t, cell0, cell1), h.fetchRemoteParity(t))
}

func TestDriverPartialUpdateMatchesFullRecalc(t *testing.T) {
	h := newDriverHarness(t)
	ctx := context.Background()

	cell0 := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	cell1 := []byte{8, 7, 6, 5, 4, 3, 2, 1}
	h.writeCell(t, 1, 0, cell0)
	h.writeCell(t, 1, 1, cell1)
	_, err := h.newDriver().Run(ctx)
	require.NoError(t, err)

	cell0New := []byte{9, 9, 9, 9, 9, 9, 9, 9}
	h.writeCell(t, 2, 0, cell0New)

	status, err := h.newDriver().Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, status.ModeCounts[ModePartialUpdate])

	require.Equal(t, expectedParity(t, cell0New, cell1), h.fetchRemoteParity(t))
}

func TestDriverRecalcsOnMultipleChangedCells(t *testing.T) {
	h := newDriverHarness(t)
	ctx := context.Background()

	cell0 := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	cell1 := []byte{8, 7, 6, 5, 4, 3, 2, 1}
	h.writeCell(t, 1, 0, cell0)
	h.writeCell(t, 1, 1, cell1)
	_, err := h.newDriver().Run(ctx)
	require.NoError(t, err)

	cell0New := []byte{9, 9, 9, 9, 9, 9, 9, 9}
	cell1New := []byte{2, 2, 2, 2, 2, 2, 2, 2}
	h.writeCell(t, 2, 0, cell0New)
	h.writeCell(t, 2, 1, cell1New)

	status, err := h.newDriver().Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, status.ModeCounts[ModeRecalc])

	require.Equal(t, expectedParity(t, cell0New, cell1New), h.fetchRemoteParity(t))
}

func TestDriverHoleRepairReplicatesComplementAndDropsParity(t *testing.T) {
	h := newDriverHarness(t)
	ctx := context.Background()

	cell0 := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	cell1 := []byte{8, 7, 6, 5, 4, 3, 2, 1}
	h.writeCell(t, 1, 0, cell0)
	h.writeCell(t, 1, 1, cell1)
	_, err := h.newDriver().Run(ctx)
	require.NoError(t, err)

	h.local.WriteHole(h.oid, 2, e2eDkey, e2eAkey, proto.CellRange(0, 1, e2eClass))

	status, err := h.newDriver().Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, status.ModeCounts[ModeHoleRepair])

	parityRecx := proto.ParityRecxFor(0, e2eClass)
	er := proto.EpochRange{Lo: 0, Hi: proto.EpochMax}

	buf := make([]byte, e2eClass.CellBytes())
	require.NoError(t, h.local.Fetch(ctx, h.oid, proto.EpochMax, e2eDkey, e2eAkey, proto.CellRange(0, 1, e2eClass), buf))
	require.Equal(t, cell1, buf, "complement range must be recovered into the local replica")

	remoteBuf := make([]byte, e2eClass.CellBytes())
	require.NoError(t, h.remote.Fetch(ctx, h.oid, proto.EpochMax, e2eDkey, e2eAkey, proto.CellRange(0, 1, e2eClass), remoteBuf))
	require.Equal(t, cell1, remoteBuf, "complement range must be shipped to the parity holder")

	localIt, err := h.local.RangeExtents(ctx, h.oid, e2eDkey, e2eAkey, parityRecx, er)
	require.NoError(t, err)
	found, _ := latestNonHole(ctx, localIt)
	require.False(t, found, "local parity extent must be deleted after hole repair")

	remoteIt, err := h.remote.RangeExtents(ctx, h.oid, e2eDkey, e2eAkey, parityRecx, er)
	require.NoError(t, err)
	found, _ = latestNonHole(ctx, remoteIt)
	require.False(t, found, "peer parity extent must be deleted after hole repair")
}

func TestDriverSkipsNonLeaderObjects(t *testing.T) {
	h := newDriverHarness(t)
	ctx := context.Background()
	h.writeCell(t, 1, 0, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	h.writeCell(t, 1, 1, []byte{8, 7, 6, 5, 4, 3, 2, 1})

	layouts := objremote.NewLayoutTable()
	layouts.Set(e2eDkey, e2eAkey, h.layout)
	opener := objremote.NewLocalOpener(h.local, layouts)
	idsvc := identity.NewStaticService() // leadership never set -> IsLeader false
	dialer := fakeDialer{peers: map[proto.Rank]PeerRPC{
		1: LocalPeer{Impl: NewShardServer(h.remote, nil)},
	}}
	d := NewDriver(h.local, opener, idsvc, dialer, Config{HiEpoch: proto.EpochMax})

	status, err := d.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, status.ObjectsVisited)
	require.Equal(t, 0, status.StripesProcessed)
}
