// Package metrics provides Prometheus metrics for the policy engine.
//
// # Metrics Categories
//
//   - Policy Metrics: policy layer executions, durations and failures by stage
//   - Pipeline Metrics: composite policy instances created, live pipelines, disposals
//   - Cache Metrics: applicability cache hits, misses, size and evictions
//   - Journal Metrics: transition journal writes and dropped records
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//
//	collector.RecordPolicyExecution("rate-limit", "source", "success", 2*time.Millisecond)
//	collector.RecordInstanceCreated("source")
//	collector.RecordCacheHit("source")
//
//	http.Handle("/metrics", collector.Handler())
//
// All Record methods are no-ops when metrics are disabled in the
// configuration, and on a nil *Collector.
//
// # Cardinality Management
//
// Policy IDs are used as label values. The collector caps the number of
// distinct policy label sets; policies beyond the cap are reported as "other".
package metrics
