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

package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/objagg/objagg/proto"
)

func TestStaticServiceDefaultsToNonLeader(t *testing.T) {
	s := NewStaticService()
	st, err := s.CheckLeader(context.Background(), proto.ObjectID{Hi: 1, Lo: 1})
	require.NoError(t, err)
	require.False(t, st.IsLeader)
}

func TestStaticServiceSetLeaderRoundTrips(t *testing.T) {
	s := NewStaticService()
	oid := proto.ObjectID{Hi: 1, Lo: 2}
	s.SetLeader(oid, LeaderStatus{IsLeader: true, Rank: 3, Term: 5})

	st, err := s.CheckLeader(context.Background(), oid)
	require.NoError(t, err)
	require.Equal(t, LeaderStatus{IsLeader: true, Rank: 3, Term: 5}, st)
}

func TestStaticServiceHandleAndPropsRoundTrip(t *testing.T) {
	s := NewStaticService()
	oid := proto.ObjectID{Hi: 2, Lo: 2}

	handle := ContainerHandle{PoolUUID: [16]byte{1}, ContainerUUID: [16]byte{2}, Epoch: 9}
	s.SetHandle(oid, handle)
	got, err := s.PoolIVSrvHdlFetch(context.Background(), oid)
	require.NoError(t, err)
	require.Equal(t, handle, got)

	props := PoolProps{RedundancyFactor: 2, RebuildFencing: true}
	s.SetProps(oid, props)
	gotProps, err := s.PoolIVPropFetch(context.Background(), oid)
	require.NoError(t, err)
	require.Equal(t, props, gotProps)
}
