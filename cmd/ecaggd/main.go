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

// Command ecaggd runs the EC aggregation engine against one target's VOS
// pool tree on a fixed interval, the standalone daemon shape a sidecar to
// the real storage engine would take.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"github.com/cubefs/cubefs/blobstore/common/config"
	"github.com/cubefs/cubefs/blobstore/util/errors"
	"github.com/cubefs/cubefs/blobstore/util/log"

	"github.com/objagg/objagg/aggregate"
	"github.com/objagg/objagg/identity"
	"github.com/objagg/objagg/metrics"
	"github.com/objagg/objagg/objremote"
	"github.com/objagg/objagg/proto"
	"github.com/objagg/objagg/rpc"
	"github.com/objagg/objagg/util/limiter"
	"github.com/objagg/objagg/vos"
)

// Config is the daemon's on-disk configuration, loaded the way the
// teacher's cmd.go loads its own server config with config.Init/Load.
type Config struct {
	Rank         proto.Rank        `json:"rank"`
	MetricsAddr  string            `json:"metrics_addr"`
	RPCAddr      string            `json:"rpc_addr"`
	PeerAddrs    map[uint32]string `json:"peer_addrs"`
	ScanInterval time.Duration     `json:"scan_interval"`
	LogLevel     log.Level         `json:"log_level"`
	ReadMBPS     int               `json:"read_mbps"`
	WriteMBPS    int               `json:"write_mbps"`
}

func main() {
	config.Init("f", "", "ecaggd.json")

	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		log.Fatal(errors.Detail(err))
	}
	log.SetOutputLevel(cfg.LogLevel)
	if cfg.ScanInterval == 0 {
		cfg.ScanInterval = time.Minute
	}

	store := vos.NewMemStore()
	layouts := objremote.NewLayoutTable()
	opener := objremote.NewLocalOpener(store, layouts)
	idsvc := identity.NewStaticService()

	book := rpc.NewAddressBook()
	for idx, addr := range cfg.PeerAddrs {
		book.Set(proto.Rank(idx), addr)
	}
	dialer := aggregate.NewGrpcPeerDialer(book)
	defer dialer.Close()

	limits := limiter.NewLimiter(limiter.LimitConfig{
		ReadMBPS:  cfg.ReadMBPS,
		WriteMBPS: cfg.WriteMBPS,
	})

	go serveMetrics(cfg.MetricsAddr)
	go serveRPC(cfg.RPCAddr, store, limits)

	ctx, cancel := context.WithCancel(context.Background())
	go awaitSignal(cancel)

	runForever(ctx, store, opener, idsvc, dialer, limits, cfg.ScanInterval)
}

func runForever(ctx context.Context, store vos.Store, opener objremote.Opener, idsvc identity.Service, dialer aggregate.PeerDialer, limits limiter.Limiter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, err := aggregate.Run(ctx, store, opener, idsvc, dialer, aggregate.Config{
				HiEpoch:         proto.EpochMax,
				StripesPerYield: 4096,
				Limits:          limits,
				Yield: func(processed int) error {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
						return nil
					}
				},
			})
			if err != nil {
				log.Errorf("ecaggd: aggregation run failed: %v", err)
				continue
			}
			log.Infof("ecaggd: run complete: %d objects, %d stripes processed, %d abandoned",
				status.ObjectsVisited, status.StripesProcessed, status.StripesAbandoned)
		}
	}
}

func serveMetrics(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errorf("ecaggd: metrics server stopped: %v", err)
	}
}

func serveRPC(addr string, store vos.Store, limits limiter.Limiter) {
	if addr == "" {
		return
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("ecaggd: rpc listen: %v", err)
	}
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(metrics.GRPCMetrics.UnaryServerInterceptor()),
	)
	rpc.RegisterPeerServer(srv, aggregate.NewShardServer(store, limits))
	metrics.GRPCMetrics.InitializeMetrics(srv)
	if err := srv.Serve(lis); err != nil {
		log.Errorf("ecaggd: rpc server stopped: %v", err)
	}
}

func awaitSignal(cancel context.CancelFunc) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("ecaggd: shutting down")
	cancel()
}
