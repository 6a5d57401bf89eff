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
	"sync"

	"github.com/objagg/objagg/proto"
)

// fetcher is the slice of vos.Store a Handle needs; declared locally to
// avoid objremote depending on the vos package for its whole Store surface.
type fetcher interface {
	Fetch(ctx context.Context, oid proto.ObjectID, epoch proto.Epoch, dkey, akey string, recx proto.Recx, buf []byte) error
}

// LayoutTable is a static (dkey, akey) -> Layout map, the shape a
// single-pool deployment or a test fixture uses in place of a pool-map
// lookup.
type LayoutTable struct {
	mu      sync.RWMutex
	layouts map[layoutKey]Layout
}

type layoutKey struct {
	dkey, akey string
}

func NewLayoutTable() *LayoutTable {
	return &LayoutTable{layouts: make(map[layoutKey]Layout)}
}

func (t *LayoutTable) Set(dkey, akey string, l Layout) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.layouts[layoutKey{dkey, akey}] = l
}

func (t *LayoutTable) Get(dkey, akey string) (Layout, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	l, ok := t.layouts[layoutKey{dkey, akey}]
	return l, ok
}

// LocalOpener opens every object against the same fetcher and layout
// table; good enough for a single-target deployment where the driver's
// own vos.Store also happens to be this process, and for tests.
type LocalOpener struct {
	store   fetcher
	layouts *LayoutTable
}

func NewLocalOpener(store fetcher, layouts *LayoutTable) *LocalOpener {
	return &LocalOpener{store: store, layouts: layouts}
}

func (o *LocalOpener) Open(ctx context.Context, oid proto.ObjectID) (Handle, error) {
	return &localHandle{oid: oid, store: o.store, layouts: o.layouts}, nil
}

type localHandle struct {
	oid     proto.ObjectID
	store   fetcher
	layouts *LayoutTable
}

func (h *localHandle) Fetch(ctx context.Context, epoch proto.Epoch, dkey, akey string, recx proto.Recx, buf []byte) error {
	return h.store.Fetch(ctx, h.oid, epoch, dkey, akey, recx, buf)
}

func (h *localHandle) LayoutGet(ctx context.Context, dkey, akey string) (Layout, error) {
	l, ok := h.layouts.Get(dkey, akey)
	if !ok {
		return Layout{}, ErrNoLayout
	}
	return l, nil
}
