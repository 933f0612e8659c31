package metrics

import (
	"mercator-hq/saturn/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// JournalMetrics tracks the transition journal.
//
// Metrics:
//   - saturn_engine_journal_writes_total: Journal writes by outcome
//   - saturn_engine_journal_pruned_total: Records removed by retention
type JournalMetrics struct {
	writesTotal *prometheus.CounterVec
	prunedTotal prometheus.Counter
}

// NewJournalMetrics creates and registers journal metrics with the provided registry.
func NewJournalMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *JournalMetrics {
	jm := &JournalMetrics{
		writesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "journal_writes_total",
				Help:      "Total number of journal writes by outcome",
			},
			[]string{"outcome"},
		),

		prunedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "journal_pruned_total",
				Help:      "Total number of journal records removed by retention",
			},
		),
	}

	registry.MustRegister(
		jm.writesTotal,
		jm.prunedTotal,
	)

	return jm
}

// RecordWrite records a journal write attempt.
func (jm *JournalMetrics) RecordWrite(outcome string) {
	jm.writesTotal.WithLabelValues(outcome).Inc()
}

// RecordPruned records pruned journal records.
func (jm *JournalMetrics) RecordPruned(n int64) {
	jm.prunedTotal.Add(float64(n))
}
