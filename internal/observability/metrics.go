package observability

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	messagesDecoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rtmpcore",
			Subsystem: "chunk",
			Name:      "messages_decoded_total",
			Help:      "Complete messages dispatched by the decoder.",
		},
		[]string{"datatype"},
	)
	bytesDecoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rtmpcore",
			Subsystem: "chunk",
			Name:      "bytes_decoded_total",
			Help:      "Message payload bytes dispatched by the decoder.",
		},
		[]string{"datatype"},
	)
	handshakeOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rtmpcore",
			Subsystem: "handshake",
			Name:      "outcomes_total",
			Help:      "Terminal handshake outcomes by role.",
		},
		[]string{"role", "outcome"},
	)
	rpcCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rtmpcore",
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "RPC call registry activity.",
		},
		[]string{"kind"},
	)
	rpcActiveCalls = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rtmpcore",
			Subsystem: "rpc",
			Name:      "active_calls",
			Help:      "Outstanding remote calls awaiting a response.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(messagesDecoded, bytesDecoded, handshakeOutcomes, rpcCalls, rpcActiveCalls)
	})
}

func RecordMessageDecoded(datatype uint8, bytes int) {
	RegisterMetrics()
	label := strconv.Itoa(int(datatype))
	messagesDecoded.WithLabelValues(label).Inc()
	bytesDecoded.WithLabelValues(label).Add(float64(bytes))
}

func RecordHandshake(role, outcome string) {
	RegisterMetrics()
	handshakeOutcomes.WithLabelValues(role, outcome).Inc()
}

func RecordCall(kind string) {
	RegisterMetrics()
	rpcCalls.WithLabelValues(kind).Inc()
}

func SetActiveCalls(n int) {
	RegisterMetrics()
	rpcActiveCalls.Set(float64(n))
}
