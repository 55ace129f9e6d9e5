package monitor

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	relayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "llm_gateway",
		Name:      "relay_requests_total",
		Help:      "Relayed requests by provider, model, status, and transport.",
	}, []string{"provider", "model", "status", "stream"})

	relayLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "llm_gateway",
		Name:      "relay_duration_seconds",
		Help:      "End-to-end relay latency by provider.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"provider"})

	relayCostUsd = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "llm_gateway",
		Name:      "relay_cost_usd_total",
		Help:      "Accumulated USD cost of relayed requests by provider.",
	}, []string{"provider"})

	activeStreams = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "llm_gateway",
		Name:      "active_streams",
		Help:      "Streams currently being relayed, by provider.",
	}, []string{"provider"})

	billingFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "llm_gateway",
		Name:      "billing_failures_total",
		Help:      "Billing hook invocations that returned an error.",
	})

	mcpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "llm_gateway",
		Name:      "mcp_requests_total",
		Help:      "MCP JSON-RPC calls by method, upstream, and outcome.",
	}, []string{"method", "upstream", "outcome"})
)

// RecordRelay records the outcome of one relayed request.
func RecordRelay(provider, model string, status int, stream bool, costUsd float64, elapsed time.Duration) {
	relayRequests.WithLabelValues(provider, model,
		strconv.Itoa(status), strconv.FormatBool(stream)).Inc()
	relayLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
	if costUsd > 0 {
		relayCostUsd.WithLabelValues(provider).Add(costUsd)
	}
}

// ActiveStreamsInc marks a stream as started.
func ActiveStreamsInc(provider string) {
	activeStreams.WithLabelValues(provider).Inc()
}

// ActiveStreamsDec marks a stream as finished.
func ActiveStreamsDec(provider string) {
	activeStreams.WithLabelValues(provider).Dec()
}

// BillingFailureInc counts a failed billing hook delivery.
func BillingFailureInc() {
	billingFailures.Inc()
}

// RecordMCP records one MCP proxy call.
func RecordMCP(method, upstream, outcome string) {
	mcpRequests.WithLabelValues(method, upstream, outcome).Inc()
}
