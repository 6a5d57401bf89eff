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
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/resolver"

	"github.com/objagg/objagg/identity"
	"github.com/objagg/objagg/objremote"
	"github.com/objagg/objagg/proto"
	"github.com/objagg/objagg/rpc"
	"github.com/objagg/objagg/vos"
)

// Run is the package's single entry point: build a Driver over the given
// collaborators and run it to completion (or until Config.Yield aborts
// it).
func Run(ctx context.Context, store vos.Store, opener objremote.Opener, idsvc identity.Service, dialer PeerDialer, cfg Config) (*Status, error) {
	return NewDriver(store, opener, idsvc, dialer, cfg).Run(ctx)
}

// GrpcPeerDialer is the production PeerDialer: it dials each rank's
// objagg:/// target through rpc.Dial on first use and reuses the
// connection afterward, the way the teacher's client package keeps one
// grpc.ClientConn per cluster member rather than dialing per RPC.
type GrpcPeerDialer struct {
	mu    sync.Mutex
	book  *rpc.AddressBook
	conns map[proto.Rank]*grpc.ClientConn
}

func NewGrpcPeerDialer(book *rpc.AddressBook) *GrpcPeerDialer {
	resolver.Register(rpc.NewResolverBuilder(book))
	return &GrpcPeerDialer{book: book, conns: make(map[proto.Rank]*grpc.ClientConn)}
}

func (g *GrpcPeerDialer) DialParity(ctx context.Context, rank proto.Rank) (PeerRPC, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if conn, ok := g.conns[rank]; ok {
		return rpc.NewPeerClient(conn), nil
	}
	conn, err := rpc.Dial(rank)
	if err != nil {
		return nil, err
	}
	g.conns[rank] = conn
	return rpc.NewPeerClient(conn), nil
}

// Close tears down every cached peer connection.
func (g *GrpcPeerDialer) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var first error
	for rank, conn := range g.conns {
		if err := conn.Close(); err != nil && first == nil {
			first = err
		}
		delete(g.conns, rank)
	}
	return first
}
