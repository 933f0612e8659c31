package metrics

import (
	"time"

	"mercator-hq/saturn/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// PolicyMetrics tracks policy layer executions.
//
// Metrics:
//   - saturn_engine_policy_executions_total: Completed policy layers by policy, kind and outcome
//   - saturn_engine_policy_execution_duration_seconds: Policy layer duration
//   - saturn_engine_policy_failures_total: Failures leaving a pipeline by kind and stage
type PolicyMetrics struct {
	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	failuresTotal     *prometheus.CounterVec
}

// NewPolicyMetrics creates and registers policy metrics with the provided registry.
func NewPolicyMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PolicyMetrics {
	pm := &PolicyMetrics{
		executionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_executions_total",
				Help:      "Total number of completed policy layers",
			},
			[]string{"policy_id", "kind", "outcome"},
		),

		executionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_execution_duration_seconds",
				Help:      "Duration of policy layers in seconds, including the wrapped step",
				Buckets:   cfg.PolicyDurationBuckets,
			},
			[]string{"policy_id", "kind"},
		),

		failuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_failures_total",
				Help:      "Total number of failed policy layers by failure stage",
			},
			[]string{"kind", "stage"},
		),
	}

	registry.MustRegister(
		pm.executionsTotal,
		pm.executionDuration,
		pm.failuresTotal,
	)

	return pm
}

// RecordExecution records a completed policy layer.
func (pm *PolicyMetrics) RecordExecution(policyID, kind, outcome string, duration time.Duration) {
	pm.executionsTotal.WithLabelValues(policyID, kind, outcome).Inc()
	pm.executionDuration.WithLabelValues(policyID, kind).Observe(duration.Seconds())
}

// RecordFailure records a failed policy layer.
func (pm *PolicyMetrics) RecordFailure(kind, stage string) {
	pm.failuresTotal.WithLabelValues(kind, stage).Inc()
}
