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
	"github.com/klauspost/reedsolomon"

	"github.com/objagg/objagg/errors"
)

// rsCodec wraps a klauspost/reedsolomon Encoder fixed to one (k, p) pair.
type rsCodec struct {
	k, p int
	enc  reedsolomon.Encoder
}

func newReedSolomon(k, p int) (Codec, error) {
	enc, err := reedsolomon.New(k, p)
	if err != nil {
		return nil, err
	}
	return &rsCodec{k: k, p: p, enc: enc}, nil
}

func (c *rsCodec) Encode(dataShards, parityShards [][]byte) error {
	if len(dataShards) != c.k || len(parityShards) != c.p {
		return errors.New(errors.KindInvalidInput, "ecmath: shard count does not match object class")
	}
	shards := make([][]byte, c.k+c.p)
	copy(shards, dataShards)
	copy(shards[c.k:], parityShards)
	return c.enc.Encode(shards)
}

func (c *rsCodec) UpdateShard(idx int, oldShard, newShard []byte, parityShards [][]byte) error {
	if idx < 0 || idx >= c.k {
		return errors.New(errors.KindInvalidInput, "ecmath: data shard index out of range")
	}
	if len(parityShards) != c.p {
		return errors.New(errors.KindInvalidInput, "ecmath: parity shard count does not match object class")
	}
	shards := make([][]byte, c.k+c.p)
	shards[idx] = oldShard
	copy(shards[c.k:], parityShards)

	newData := make([][]byte, c.k)
	newData[idx] = newShard

	return c.enc.Update(shards, newData)
}

func (c *rsCodec) Reconstruct(shards [][]byte, ok []bool) error {
	if len(shards) != c.k+c.p || len(ok) != c.k+c.p {
		return errors.New(errors.KindInvalidInput, "ecmath: shard count does not match object class")
	}
	live := 0
	working := make([][]byte, len(shards))
	for i, present := range ok {
		if present {
			working[i] = shards[i]
			live++
		}
	}
	if live < c.k {
		return errors.Wrap(errors.KindConsistencyViolated, "ecmath: too few live shards to reconstruct", reedsolomon.ErrTooFewShards)
	}
	if err := c.enc.Reconstruct(working); err != nil {
		return errors.Wrap(errors.KindFatal, "ecmath: reconstruct failed", err)
	}
	for i, present := range ok {
		if !present {
			shards[i] = working[i]
		}
	}
	return nil
}
