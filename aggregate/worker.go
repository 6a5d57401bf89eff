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
	"github.com/cubefs/cubefs/blobstore/util/taskpool"

	"github.com/objagg/objagg/ecmath"
)

const defaultWorkerPoolSize = 4

// workerCodec dispatches every Galois-field call onto a dedicated worker
// pool and blocks the caller on a one-shot completion channel, the
// suspension point spec.md §5 describes for CPU-bound encode/update/
// reconstruct work — everything else in a path function (VOS fetches, RPC)
// stays a direct cooperative call, only the codec math is offloaded.
type workerCodec struct {
	pool  taskpool.TaskPool
	inner ecmath.Codec
}

func newWorkerCodec(pool taskpool.TaskPool, inner ecmath.Codec) ecmath.Codec {
	return &workerCodec{pool: pool, inner: inner}
}

func (w *workerCodec) Encode(dataShards, parityShards [][]byte) error {
	return w.run(func() error { return w.inner.Encode(dataShards, parityShards) })
}

func (w *workerCodec) UpdateShard(idx int, oldShard, newShard []byte, parityShards [][]byte) error {
	return w.run(func() error { return w.inner.UpdateShard(idx, oldShard, newShard, parityShards) })
}

func (w *workerCodec) Reconstruct(shards [][]byte, ok []bool) error {
	return w.run(func() error { return w.inner.Reconstruct(shards, ok) })
}

func (w *workerCodec) run(fn func() error) error {
	done := make(chan error, 1)
	w.pool.Run(func() {
		done <- fn()
	})
	return <-done
}
