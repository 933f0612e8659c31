package metrics

import (
	"mercator-hq/saturn/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics tracks composite policy instances.
//
// Metrics:
//   - saturn_engine_policy_instances_created_total: Composite instances built
//   - saturn_engine_policy_instances_disposed_total: Composite instances disposed
//   - saturn_engine_policy_instances_live: Composite instances not yet disposed
type PipelineMetrics struct {
	createdTotal  *prometheus.CounterVec
	disposedTotal *prometheus.CounterVec
	live          *prometheus.GaugeVec
}

// NewPipelineMetrics creates and registers pipeline metrics with the provided registry.
func NewPipelineMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PipelineMetrics {
	pm := &PipelineMetrics{
		createdTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_instances_created_total",
				Help:      "Total number of composite policy instances created",
			},
			[]string{"kind"},
		),

		disposedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_instances_disposed_total",
				Help:      "Total number of composite policy instances disposed",
			},
			[]string{"kind"},
		),

		live: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_instances_live",
				Help:      "Current number of composite policy instances not yet disposed",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		pm.createdTotal,
		pm.disposedTotal,
		pm.live,
	)

	return pm
}

// RecordCreated records a new composite instance.
func (pm *PipelineMetrics) RecordCreated(kind string) {
	pm.createdTotal.WithLabelValues(kind).Inc()
}

// RecordDisposed records a disposed composite instance.
func (pm *PipelineMetrics) RecordDisposed(kind string) {
	pm.disposedTotal.WithLabelValues(kind).Inc()
}

// UpdateLive sets the number of live composite instances.
func (pm *PipelineMetrics) UpdateLive(kind string, n int) {
	pm.live.WithLabelValues(kind).Set(float64(n))
}
