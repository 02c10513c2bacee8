// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LifecycleTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_transitions_total",
			Help: "Total number of successful lifecycle transitions",
		},
		[]string{"from", "to"},
	)

	GuardViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_guard_violations_total",
			Help: "Total number of lifecycle transitions refused by a guard",
		},
		[]string{"action", "error_code"},
	)

	GatewayCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bank_gateway_calls_total",
			Help: "Total number of bank gateway calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	GatewayCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "bank_gateway_call_duration_seconds",
			Help: "Duration of bank gateway calls in seconds",
		},
		[]string{"operation"},
	)

	HandshakePolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bank_handshake_polls_total",
			Help: "Total number of handshake status polls by outcome",
		},
		[]string{"outcome"},
	)

	HandshakeReconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bank_handshake_reconciliations_total",
			Help: "Total number of handshake reconciliations by result",
		},
		[]string{"result"},
	)

	HandshakesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bank_handshakes_active",
			Help: "Number of handshakes currently waiting on the bank",
		},
	)
)
