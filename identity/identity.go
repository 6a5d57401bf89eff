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

// Package identity resolves the pool/container bootstrap facts the driver
// needs before it can touch an object: whether this target currently holds
// EC aggregation leadership for an object's shard, and the pool-wide
// incarnation-versioned handle DAOS calls an "IV" (incarnation value) cache
// entry. It plays the role the teacher's client package plays for cluster
// bootstrap (client/master_client.go resolving a node's role before any
// shard traffic), narrowed to the two lookups spec.md needs.
package identity

import (
	"context"
	"sync"

	"github.com/objagg/objagg/proto"
)

// LeaderStatus is the answer to "should this target run aggregation for
// this object's shard right now": spec.md §4.1 requires skipping non-leader
// objects entirely. The driver checks it once per object before walking
// it; the Peer Coordinator does not check it again before committing.
type LeaderStatus struct {
	IsLeader bool
	Rank     proto.Rank
	Term     uint64
}

// Service is the bootstrap surface the driver depends on; of its methods
// the driver calls only CheckLeader. Both PoolIVSrvHdlFetch and PoolIVPropFetch mirror DAOS'
// pool_iv_srv_hdl_fetch/pool_iv_prop_fetch calls: pulling a cached
// pool-incarnation value instead of a synchronous RPC on every object.
type Service interface {
	// CheckLeader answers LeaderStatus for oid's shard as of the calling
	// target's current view; it never blocks on a peer RPC.
	CheckLeader(ctx context.Context, oid proto.ObjectID) (LeaderStatus, error)

	// PoolIVSrvHdlFetch resolves the server-side container open handle
	// for oid's pool, caching across calls the way the pool IV cache does.
	PoolIVSrvHdlFetch(ctx context.Context, oid proto.ObjectID) (ContainerHandle, error)

	// PoolIVPropFetch resolves the pool property cache entry carrying the
	// redundancy factor and the rebuild-fencing flag. The driver does not
	// consult it before starting a run.
	PoolIVPropFetch(ctx context.Context, oid proto.ObjectID) (PoolProps, error)
}

// ContainerHandle is an opaque, cacheable open-container reference.
type ContainerHandle struct {
	PoolUUID      [16]byte
	ContainerUUID [16]byte
	Epoch         proto.Epoch
}

// PoolProps is the subset of pool properties aggregation cares about.
type PoolProps struct {
	RedundancyFactor uint32
	RebuildFencing   bool
}

// StaticService is a Service backed by a fixed leader map, the shape tests
// and a single-pool standalone deployment use in place of the real
// pool-service RPC round trip.
type StaticService struct {
	mu      sync.RWMutex
	leaders map[proto.ObjectID]LeaderStatus
	handles map[proto.ObjectID]ContainerHandle
	props   map[proto.ObjectID]PoolProps
}

func NewStaticService() *StaticService {
	return &StaticService{
		leaders: make(map[proto.ObjectID]LeaderStatus),
		handles: make(map[proto.ObjectID]ContainerHandle),
		props:   make(map[proto.ObjectID]PoolProps),
	}
}

func (s *StaticService) SetLeader(oid proto.ObjectID, st LeaderStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaders[oid] = st
}

func (s *StaticService) SetHandle(oid proto.ObjectID, h ContainerHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles[oid] = h
}

func (s *StaticService) SetProps(oid proto.ObjectID, p PoolProps) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.props[oid] = p
}

func (s *StaticService) CheckLeader(ctx context.Context, oid proto.ObjectID) (LeaderStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.leaders[oid], nil
}

func (s *StaticService) PoolIVSrvHdlFetch(ctx context.Context, oid proto.ObjectID) (ContainerHandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handles[oid], nil
}

func (s *StaticService) PoolIVPropFetch(ctx context.Context, oid proto.ObjectID) (PoolProps, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.props[oid], nil
}
