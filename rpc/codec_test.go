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

package rpc

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"

	"github.com/objagg/objagg/proto"
)

func TestJSONCodecRegistered(t *testing.T) {
	c := encoding.GetCodec(CodecName)
	require.NotNil(t, c)
	require.Equal(t, CodecName, c.Name())
}

func TestJSONCodecRoundTripsWireTypes(t *testing.T) {
	c := jsonCodec{}

	req := &EcAggregateRequest{
		ReqID:     "r1",
		OID:       proto.ObjectID{Hi: 1, Lo: 2},
		Dkey:      "d",
		Akey:      "a",
		Class:     proto.ObjectClass{K: 2, P: 1, Len: 4, Rsize: 8},
		StripeNum: 3,
		PeerIdx:   1,
		FetchData: true,
	}
	data, err := c.Marshal(req)
	require.NoError(t, err)

	var got EcAggregateRequest
	require.NoError(t, c.Unmarshal(data, &got))
	require.Equal(t, *req, got)
}

func TestJSONCodecRoundTripsReplicateRequestData(t *testing.T) {
	c := jsonCodec{}

	req := &EcReplicateRequest{
		ReqID:     "r2",
		OID:       proto.ObjectID{Hi: 5, Lo: 6},
		Dkey:      "d",
		Akey:      "a",
		Class:     proto.ObjectClass{K: 2, P: 1, Len: 4, Rsize: 8},
		StripeNum: 7,
		PeerIdx:   0,
		Mode:      "encode",
		Epoch:     9,
		Recx:      proto.Recx{Index: 0, Count: 4},
		Data:      []byte{1, 2, 3, 4},
	}
	data, err := c.Marshal(req)
	require.NoError(t, err)

	var got EcReplicateRequest
	require.NoError(t, c.Unmarshal(data, &got))
	require.Equal(t, *req, got)
}
