// Package metrics exposes Prometheus instrumentation for the engine and
// the daemon. Metrics register on the default registry at package load and
// are served by the daemon's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	workflowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_workflows_total",
			Help: "Total workflow executions by terminal status",
		},
		[]string{"status"},
	)

	stepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_steps_total",
			Help: "Total step executions by operation and outcome",
		},
		[]string{"operation", "status"},
	)

	stepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studio_step_duration_seconds",
			Help:    "Step execution duration by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	ratelimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "studio_ratelimit_rejections_total",
		Help: "Total requests rejected by the rate limiter",
	})
)

// RecordWorkflow counts one finished workflow under its terminal status.
func RecordWorkflow(status string) {
	workflowsTotal.WithLabelValues(status).Inc()
}

// RecordStep counts one finished step and observes its duration.
func RecordStep(operation, status string, seconds float64) {
	stepsTotal.WithLabelValues(operation, status).Inc()
	stepDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordRateLimitRejection counts one request rejected by the rate limiter.
func RecordRateLimitRejection() {
	ratelimitRejections.Inc()
}
