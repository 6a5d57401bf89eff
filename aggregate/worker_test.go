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
	"errors"
	"testing"

	"github.com/cubefs/cubefs/blobstore/util/taskpool"
	"github.com/stretchr/testify/require"
)

type fakeCodec struct {
	encodeCalls int
	failWith    error
}

func (f *fakeCodec) Encode(dataShards, parityShards [][]byte) error {
	f.encodeCalls++
	if f.failWith != nil {
		return f.failWith
	}
	for i := range parityShards {
		parityShards[i] = append(parityShards[i][:0], dataShards[0]...)
	}
	return nil
}

func (f *fakeCodec) UpdateShard(idx int, oldShard, newShard []byte, parityShards [][]byte) error {
	return nil
}

func (f *fakeCodec) Reconstruct(shards [][]byte, ok []bool) error {
	return nil
}

func TestWorkerCodecDispatchesEncodeThroughPool(t *testing.T) {
	pool := taskpool.New(1, 1)
	inner := &fakeCodec{}
	wc := newWorkerCodec(pool, inner)

	data := [][]byte{{1, 2, 3}}
	parity := [][]byte{make([]byte, 3)}
	require.NoError(t, wc.Encode(data, parity))
	require.Equal(t, 1, inner.encodeCalls)
	require.Equal(t, []byte{1, 2, 3}, parity[0])
}

func TestWorkerCodecPropagatesInnerError(t *testing.T) {
	pool := taskpool.New(1, 1)
	inner := &fakeCodec{failWith: errors.New("boom")}
	wc := newWorkerCodec(pool, inner)

	err := wc.Encode(nil, nil)
	require.EqualError(t, err, "boom")
}
