package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tgserver",
		Name:      "connections",
		Help:      "Live client connections.",
	})
	metricHandshakes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tgserver",
		Name:      "handshakes_total",
		Help:      "Completed DH handshakes.",
	})
	metricRpcCalls = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tgserver",
		Name:      "rpc_calls_total",
		Help:      "Dispatched RPC calls.",
	})
	metricRpcErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tgserver",
		Name:      "rpc_errors_total",
		Help:      "RPC calls answered with rpc_error.",
	})
	metricCryptoFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tgserver",
		Name:      "crypto_failures_total",
		Help:      "Fatal envelope decryption failures.",
	})
	metricDroppedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tgserver",
		Name:      "dropped_messages_total",
		Help:      "Messages dropped by replay or window checks.",
	})
)
