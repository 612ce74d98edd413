package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pool metrics
	PoolRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sundial_pool_requests_total",
			Help: "Total number of proxied requests by traffic class and status",
		},
		[]string{"class", "status"},
	)

	PoolRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sundial_pool_request_duration_seconds",
			Help:    "Proxied request duration in seconds by traffic class",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 10),
		},
		[]string{"class"},
	)

	ReplicasHealthy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sundial_replicas_healthy",
			Help: "Number of replicas currently eligible for routing",
		},
	)

	ReplicaFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sundial_replica_failures_total",
			Help: "Total failed attempts per replica by source (route or probe)",
		},
		[]string{"replica", "source"},
	)

	// Orchestrator metrics
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sundial_restart_cycles_total",
			Help: "Total restart cycles by final status",
		},
		[]string{"status"},
	)

	StepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sundial_restart_step_duration_seconds",
			Help:    "Restart step duration in seconds by step",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"step"},
	)
)

// Register registers all metrics with the default registry
func Register() {
	prometheus.MustRegister(
		PoolRequestsTotal,
		PoolRequestDuration,
		ReplicasHealthy,
		ReplicaFailuresTotal,
		CyclesTotal,
		StepDuration,
	)
}

// Handler returns the HTTP handler for the /metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
