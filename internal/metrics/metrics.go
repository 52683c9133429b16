package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	GateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrcut_gate_decisions_total",
			Help: "Request gate outcomes",
		},
		[]string{"outcome"}, // admitted|no_token|invalid_token|forbidden|public
	)

	IntakeMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrcut_intake_messages_total",
			Help: "Queue intake outcomes per delivery",
		},
		[]string{"outcome"}, // acked|duplicate|requeued|rejected
	)

	CustomerOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrcut_customer_operations_total",
			Help: "Customer service operations by result",
		},
		[]string{"op", "result"}, // create|register|update|login , ok|conflict|not_found|forbidden|unauthorized|error
	)

	RemoteAuthLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hrcut_remote_auth_seconds",
			Help:    "Latency of delegated token validation calls",
			Buckets: prometheus.DefBuckets,
		},
	)
)

var registerOnce sync.Once

// MustRegister registers all collectors once; both serve and worker commands call it.
func MustRegister(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(
			GateDecisions,
			IntakeMessages,
			CustomerOps,
			RemoteAuthLatency,
		)
	})
}
