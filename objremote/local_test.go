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

package objremote

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/objagg/objagg/proto"
)

type fakeFetcher struct {
	calls []proto.ObjectID
}

func (f *fakeFetcher) Fetch(ctx context.Context, oid proto.ObjectID, epoch proto.Epoch, dkey, akey string, recx proto.Recx, buf []byte) error {
	f.calls = append(f.calls, oid)
	for i := range buf {
		buf[i] = 0xAB
	}
	return nil
}

func TestLocalOpenerLayoutGetMissingReturnsErrNoLayout(t *testing.T) {
	layouts := NewLayoutTable()
	opener := NewLocalOpener(&fakeFetcher{}, layouts)

	handle, err := opener.Open(context.Background(), proto.ObjectID{Hi: 1, Lo: 1})
	require.NoError(t, err)

	_, err = handle.LayoutGet(context.Background(), "d", "a")
	require.Equal(t, ErrNoLayout, err)
}

func TestLocalOpenerLayoutGetResolvesSetLayout(t *testing.T) {
	layouts := NewLayoutTable()
	want := Layout{
		Class:   proto.ObjectClass{K: 2, P: 1, Len: 4, Rsize: 8},
		Ranks:   []proto.Rank{0, 1},
		Parity:  []proto.Rank{2},
		SelfIdx: 0,
		IsData:  true,
	}
	layouts.Set("d", "a", want)
	opener := NewLocalOpener(&fakeFetcher{}, layouts)

	handle, err := opener.Open(context.Background(), proto.ObjectID{Hi: 1, Lo: 1})
	require.NoError(t, err)

	got, err := handle.LayoutGet(context.Background(), "d", "a")
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.Equal(t, proto.Rank(0), got.ShardOf(0))
	require.Equal(t, proto.Rank(2), got.ShardOf(2))
}

func TestLocalHandleFetchDelegatesToFetcherBoundToOID(t *testing.T) {
	fetcher := &fakeFetcher{}
	opener := NewLocalOpener(fetcher, NewLayoutTable())
	oid := proto.ObjectID{Hi: 7, Lo: 8}

	handle, err := opener.Open(context.Background(), oid)
	require.NoError(t, err)

	buf := make([]byte, 4)
	require.NoError(t, handle.Fetch(context.Background(), 1, "d", "a", proto.Recx{Index: 0, Count: 4}, buf))
	require.Equal(t, []byte{0xAB, 0xAB, 0xAB, 0xAB}, buf)
	require.Equal(t, []proto.ObjectID{oid}, fetcher.calls)
}
