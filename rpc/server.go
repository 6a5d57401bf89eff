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

	"google.golang.org/grpc"
)

// PeerServer is what an aggregation target exposes to leaders driving a
// stripe that has one of this target's shards as parity holder.
type PeerServer interface {
	EcAggregate(ctx context.Context, req *EcAggregateRequest) (*EcAggregateResponse, error)
	EcReplicate(ctx context.Context, req *EcReplicateRequest) (*EcReplicateResponse, error)
}

// RegisterPeerServer wires impl into srv using a hand-written ServiceDesc in
// place of a protoc-generated one, the same registration entry point
// grpc.Server.RegisterService expects from generated code.
func RegisterPeerServer(srv *grpc.Server, impl PeerServer) {
	srv.RegisterService(&serviceDesc, impl)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*PeerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "EcAggregate",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				in := new(EcAggregateRequest)
				if err := dec(in); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(PeerServer).EcAggregate(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodEcAggregate}
				handler := func(ctx context.Context, req interface{}) (interface{}, error) {
					return srv.(PeerServer).EcAggregate(ctx, req.(*EcAggregateRequest))
				}
				return interceptor(ctx, in, info, handler)
			},
		},
		{
			MethodName: "EcReplicate",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				in := new(EcReplicateRequest)
				if err := dec(in); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(PeerServer).EcReplicate(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodEcReplicate}
				handler := func(ctx context.Context, req interface{}) (interface{}, error) {
					return srv.(PeerServer).EcReplicate(ctx, req.(*EcReplicateRequest))
				}
				return interceptor(ctx, in, info, handler)
			},
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "objagg/rpc.proto",
}
