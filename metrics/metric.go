package metrics

import (
	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ECAgg"

var (
	Registry = prometheus.NewRegistry()

	GRPCMetrics = grpcprometheus.NewServerMetrics(
		func(c *prometheus.CounterOpts) {
			c.Namespace = namespace
		},
	)

	// StripesProcessed counts stripes that reached a terminal mode,
	// labeled by the mode the Mode Selector chose.
	StripesProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stripes_processed_total",
		Help:      "stripes that reached a terminal transform mode",
	}, []string{"mode"})

	// StripesAbandoned counts stripes dropped after a path-level error,
	// labeled by error kind.
	StripesAbandoned = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stripes_abandoned_total",
		Help:      "stripes abandoned after a path-level failure",
	}, []string{"kind"})

	// BytesMoved counts bytes read from or written to VOS/peer by path,
	// labeled by mode and direction.
	BytesMoved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bytes_moved_total",
		Help:      "bytes read or written by an aggregation path",
	}, []string{"mode", "direction"})

	// PeerRPCLatency observes EC_AGGREGATE/EC_REPLICATE round-trip time.
	PeerRPCLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "peer_rpc_latency_seconds",
		Help:      "round-trip latency of peer parity-shard RPCs",
		Buckets:   prometheus.DefBuckets,
	}, []string{"opcode"})
)

func init() {
	Registry.MustRegister(
		GRPCMetrics,
		StripesProcessed,
		StripesAbandoned,
		BytesMoved,
		PeerRPCLatency,
	)
	GRPCMetrics.EnableHandlingTimeHistogram(
		func(h *prometheus.HistogramOpts) {
			h.Namespace = namespace
		},
	)
}
