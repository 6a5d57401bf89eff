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

package ecmath

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/objagg/objagg/errors"
	"github.com/objagg/objagg/proto"
)

func makeShards(k, n int, seed byte) [][]byte {
	shards := make([][]byte, k)
	for i := range shards {
		shards[i] = make([]byte, n)
		for j := range shards[i] {
			shards[i][j] = seed + byte(i*7+j)
		}
	}
	return shards
}

func TestCodecGetRejectsPGreaterThanTwo(t *testing.T) {
	_, err := CodecGet(proto.ObjectClass{K: 3, P: 3, Len: 4, Rsize: 8})
	require.Error(t, err)
	require.Equal(t, errors.ErrUnsupportedParity, err)
}

func TestCodecGetCachesByKP(t *testing.T) {
	c1, err := CodecGet(proto.ObjectClass{K: 3, P: 2, Len: 1, Rsize: 1})
	require.NoError(t, err)
	c2, err := CodecGet(proto.ObjectClass{K: 3, P: 2, Len: 4, Rsize: 8})
	require.NoError(t, err)
	require.Same(t, c1, c2)
}

func TestReedSolomonEncodeReconstructRoundTrip(t *testing.T) {
	codec, err := CodecGet(proto.ObjectClass{K: 3, P: 2, Len: 1, Rsize: 1})
	require.NoError(t, err)

	data := makeShards(3, 16, 1)
	parity := makeShards(2, 16, 0)
	require.NoError(t, codec.Encode(data, parity))

	all := append(append([][]byte{}, data...), parity...)
	ok := []bool{true, false, true, true, true}
	missing := all[1]
	all[1] = make([]byte, 16)

	require.NoError(t, codec.Reconstruct(all, ok))
	require.Equal(t, missing, all[1])
}

func TestReedSolomonUpdateShardMatchesFullEncode(t *testing.T) {
	codec, err := CodecGet(proto.ObjectClass{K: 3, P: 2, Len: 1, Rsize: 1})
	require.NoError(t, err)

	oldData := makeShards(3, 16, 1)
	oldParity := makeShards(2, 16, 0)
	require.NoError(t, codec.Encode(oldData, oldParity))

	newData := make([][]byte, 3)
	for i := range newData {
		newData[i] = append([]byte(nil), oldData[i]...)
	}
	newData[1] = makeShards(1, 16, 99)[0]

	incrParity := make([][]byte, 2)
	for i := range incrParity {
		incrParity[i] = append([]byte(nil), oldParity[i]...)
	}
	require.NoError(t, codec.UpdateShard(1, oldData[1], newData[1], incrParity))

	freshParity := makeShards(2, 16, 0)
	require.NoError(t, codec.Encode(newData, freshParity))

	require.Equal(t, freshParity, incrParity)
}

func TestReedSolomonReconstructFailsWithTooFewLiveShards(t *testing.T) {
	codec, err := CodecGet(proto.ObjectClass{K: 3, P: 2, Len: 1, Rsize: 1})
	require.NoError(t, err)

	shards := makeShards(5, 16, 1)
	ok := []bool{true, false, false, false, true}
	err = codec.Reconstruct(shards, ok)
	require.Error(t, err)
	require.Equal(t, errors.KindConsistencyViolated, errors.KindOf(err))
}
