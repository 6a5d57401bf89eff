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

	"github.com/objagg/objagg/proto"
	"github.com/objagg/objagg/util/limiter"
	"github.com/objagg/objagg/vos"
)

// throttledStore wraps a vos.Store with the teacher's bandwidth limiter so
// a background aggregation pass can't monopolize the VOS I/O path the way
// foreground client traffic needs it. Everything but Fetch/Update passes
// straight through; those two account their payload size against the
// limiter's byte-rate budget the same way util/limiter's LimitReader and
// LimitWriter would for a streaming caller, without forcing Store's
// buffer-based Fetch/Update signatures to become io.Reader/io.Writer.
type throttledStore struct {
	vos.Store
	limits limiter.Limiter
}

func newThrottledStore(inner vos.Store, limits limiter.Limiter) vos.Store {
	if limits == nil {
		return inner
	}
	return &throttledStore{Store: inner, limits: limits}
}

func (t *throttledStore) Fetch(ctx context.Context, oid proto.ObjectID, epoch proto.Epoch, dkey, akey string, recx proto.Recx, buf []byte) error {
	if err := t.limits.Reader(ctx, nil).WaitN(len(buf)); err != nil {
		return err
	}
	return t.Store.Fetch(ctx, oid, epoch, dkey, akey, recx, buf)
}

func (t *throttledStore) Update(ctx context.Context, oid proto.ObjectID, epoch proto.Epoch, dkey, akey string, recx proto.Recx, buf []byte) error {
	if err := t.limits.Writer(ctx, nil).WaitN(len(buf)); err != nil {
		return err
	}
	return t.Store.Update(ctx, oid, epoch, dkey, akey, recx, buf)
}
