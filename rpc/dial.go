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
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/cubefs/cubefs/blobstore/util/log"

	"github.com/objagg/objagg/proto"
)

// dialOpts mirrors the teacher's client.generateDialOpts: keepalive pings so
// a half-open peer connection is detected quickly, a bounded exponential
// backoff instead of grpc's unbounded default, and round_robin across the
// resolved address set.
func dialOpts() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultServiceConfig(`{"loadBalancingPolicy":"round_robin"}`),
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff: backoff.Config{
				BaseDelay:  100 * time.Millisecond,
				Multiplier: 1.6,
				MaxDelay:   3 * time.Second,
			},
			MinConnectTimeout: 5 * time.Second,
		}),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             3 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.WithChainUnaryInterceptor(unaryClientLogger),
	}
}

// Dial opens a connection to rank's objagg:/// target, using the resolver
// registered against the process-wide AddressBook (see NewResolverBuilder).
func Dial(rank proto.Rank) (*grpc.ClientConn, error) {
	return grpc.Dial(Target(rank), dialOpts()...)
}

// DialTarget opens a connection against an arbitrary resolver target
// string, the form tests use when addressing an in-process bufconn server.
func DialTarget(target string) (*grpc.ClientConn, error) {
	return grpc.Dial(target, dialOpts()...)
}

func unaryClientLogger(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	start := time.Now()
	err := invoker(ctx, method, req, reply, cc, opts...)
	if err != nil {
		log.Warnf("rpc: %s failed in %s: %v", method, time.Since(start), err)
	}
	return err
}
