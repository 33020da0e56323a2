// Package metrics registers the engine's Prometheus instruments. Exposition
// is the host process's concern; the engine only observes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SwapLatency tracks round-trip execution latency per strategy.
var SwapLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "ordex",
		Subsystem: "execution",
		Name:      "swap_latency_ms",
		Help:      "Round-trip swap execution latency in milliseconds",
		Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	},
	[]string{"strategy"},
)

// TradesExecuted counts execution attempts by strategy and terminal status.
var TradesExecuted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ordex",
		Subsystem: "execution",
		Name:      "trades_total",
		Help:      "Total execution attempts by strategy and status",
	},
	[]string{"strategy", "status"},
)

// OrdersTriggered counts order book firings by order kind.
var OrdersTriggered = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ordex",
		Subsystem: "orders",
		Name:      "triggered_total",
		Help:      "Conditional and limit orders that fired",
	},
	[]string{"kind"},
)

// RemoteAttempts counts fault-tolerant executor attempts per target outcome.
var RemoteAttempts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ordex",
		Subsystem: "remote",
		Name:      "attempts_total",
		Help:      "Remote agent call attempts by outcome",
	},
	[]string{"outcome"},
)
