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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/objagg/objagg/proto"
)

func testClass() proto.ObjectClass {
	return proto.ObjectClass{K: 2, P: 1, Len: 4, Rsize: 8}
}

func TestStripeStateFullyReplicated(t *testing.T) {
	class := testClass()
	s := newStripeState(0, class)
	s.Feed(proto.Extent{Recx: proto.Recx{Index: 0, Count: 4}, Epoch: 1})
	require.False(t, s.FullyReplicated())

	s.Feed(proto.Extent{Recx: proto.Recx{Index: 4, Count: 4}, Epoch: 1})
	require.True(t, s.FullyReplicated())
	require.False(t, s.HasHole())
}

func TestStripeStateHoleBlocksFullyReplicated(t *testing.T) {
	class := testClass()
	s := newStripeState(0, class)
	s.Feed(proto.Extent{Recx: proto.Recx{Index: 0, Count: 4}, Epoch: 1})
	s.Feed(proto.Extent{Recx: proto.Recx{Index: 4, Count: 4}, Epoch: 1, IsHole: true})

	require.True(t, s.HasHole())
	require.False(t, s.FullyReplicated())
	require.Equal(t, []int{1}, s.TouchedCells())
}

func TestStripeAccumulatorCompletesOnBoundaryCross(t *testing.T) {
	class := testClass()
	acc := newStripeAccumulator(class)

	done := acc.Feed(proto.Extent{Recx: proto.Recx{Index: 0, Count: 8}, Epoch: 1})
	require.Empty(t, done)

	done = acc.Feed(proto.Extent{Recx: proto.Recx{Index: 8, Count: 4}, Epoch: 1})
	require.Len(t, done, 1)
	require.Equal(t, uint64(0), done[0].StripeNum)
	require.True(t, done[0].FullyReplicated())

	final := acc.Flush()
	require.NotNil(t, final)
	require.Equal(t, uint64(1), final.StripeNum)
}

func TestStripeAccumulatorSplitsExtentSpanningMultipleStripes(t *testing.T) {
	class := testClass()
	acc := newStripeAccumulator(class)

	// one extent covering all of stripe 0 and the first cell of stripe 1.
	done := acc.Feed(proto.Extent{Recx: proto.Recx{Index: 0, Count: 12}, Epoch: 1})
	require.Len(t, done, 1)
	require.Equal(t, uint64(0), done[0].StripeNum)
	require.True(t, done[0].FullyReplicated())

	final := acc.Flush()
	require.NotNil(t, final)
	require.Equal(t, uint64(1), final.StripeNum)
	require.False(t, final.FullyReplicated())
	require.Equal(t, []int{0}, final.TouchedCells())
}
