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
	"fmt"
	"sync"

	"google.golang.org/grpc/resolver"

	"github.com/objagg/objagg/proto"
)

// Scheme is the custom resolver scheme peer dial targets use:
// "objagg:///<rank>". Addresses come from an AddressBook rather than DNS,
// the way the teacher's client/resolver.go resolves cluster member IDs
// against its own membership table instead of a name server.
const Scheme = "objagg"

// AddressBook maps a target's Rank to its current dial address. cmd/ecaggd
// fills it once at startup from its configured peer addresses.
type AddressBook struct {
	mu   sync.RWMutex
	addr map[proto.Rank]string
}

func NewAddressBook() *AddressBook {
	return &AddressBook{addr: make(map[proto.Rank]string)}
}

func (b *AddressBook) Set(rank proto.Rank, address string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addr[rank] = address
}

func (b *AddressBook) Get(rank proto.Rank) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.addr[rank]
	return a, ok
}

// Target returns the dial string for rank under the objagg scheme.
func Target(rank proto.Rank) string {
	return fmt.Sprintf("%s:///%d", Scheme, rank)
}

type resolverBuilder struct {
	book *AddressBook
}

// NewResolverBuilder returns a resolver.Builder backed by book, to be
// registered once per process with resolver.Register.
func NewResolverBuilder(book *AddressBook) resolver.Builder {
	return &resolverBuilder{book: book}
}

func (b *resolverBuilder) Scheme() string {
	return Scheme
}

func (b *resolverBuilder) Build(target resolver.Target, cc resolver.ClientConn, _ resolver.BuildOptions) (resolver.Resolver, error) {
	r := &rankResolver{book: b.book, rank: target.Endpoint(), cc: cc}
	r.resolve()
	return r, nil
}

// rankResolver re-resolves a single rank's address from the shared
// AddressBook on demand; it never polls, matching the teacher resolver's
// push-driven ResolveNow model.
type rankResolver struct {
	book *AddressBook
	rank string
	cc   resolver.ClientConn
}

func (r *rankResolver) resolve() {
	var rank proto.Rank
	fmt.Sscanf(r.rank, "%d", &rank)

	addr, ok := r.book.Get(rank)
	if !ok {
		r.cc.ReportError(fmt.Errorf("rpc: no address on file for rank %d", rank))
		return
	}
	r.cc.UpdateState(resolver.State{Addresses: []resolver.Address{{Addr: addr}}})
}

func (r *rankResolver) ResolveNow(resolver.ResolveNowOptions) { r.resolve() }
func (r *rankResolver) Close()                                {}
