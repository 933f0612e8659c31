package metrics

import (
	"net/http"
	"sync"
	"time"

	"mercator-hq/saturn/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultMaxCardinality is the maximum number of distinct policy label sets.
const DefaultMaxCardinality = 10000

// Collector owns the Prometheus metrics of the engine.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	policyMetrics   *PolicyMetrics
	pipelineMetrics *PipelineMetrics
	cacheMetrics    *CacheMetrics
	journalMetrics  *JournalMetrics

	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a collector registering its metrics with registry.
// If registry is nil a new registry is created.
//
// Example:
//
//	cfg := &config.MetricsConfig{
//		Enabled:   true,
//		Namespace: "saturn",
//		Subsystem: "engine",
//	}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = "saturn"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "engine"
	}
	if len(cfg.PolicyDurationBuckets) == 0 {
		// Policy layers range from sub-millisecond header rewrites to remote calls.
		cfg.PolicyDurationBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}
	}

	c := &Collector{
		config:             cfg,
		registry:           registry,
		cardinalityLimiter: NewCardinalityLimiter(DefaultMaxCardinality),
	}

	c.policyMetrics = NewPolicyMetrics(cfg, registry)
	c.pipelineMetrics = NewPipelineMetrics(cfg, registry)
	c.cacheMetrics = NewCacheMetrics(cfg, registry)
	c.journalMetrics = NewJournalMetrics(cfg, registry)

	return c
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// RecordPolicyExecution records a completed policy layer.
//
// Parameters:
//   - policyID: Policy identifier
//   - kind: "source" or "operation"
//   - outcome: "success" or "failure"
//   - duration: Time between the layer starting and completing
func (c *Collector) RecordPolicyExecution(policyID, kind, outcome string, duration time.Duration) {
	if !c.enabled() {
		return
	}

	if !c.cardinalityLimiter.Allow("policy:" + policyID + ":" + kind + ":" + outcome) {
		policyID = "other"
	}

	c.policyMetrics.RecordExecution(policyID, kind, outcome, duration)
}

// RecordPolicyFailure records a failure leaving a pipeline, by stage.
func (c *Collector) RecordPolicyFailure(kind, stage string) {
	if !c.enabled() {
		return
	}

	c.policyMetrics.RecordFailure(kind, stage)
}

// RecordInstanceCreated records the creation of a composite policy instance.
func (c *Collector) RecordInstanceCreated(kind string) {
	if !c.enabled() {
		return
	}

	c.pipelineMetrics.RecordCreated(kind)
}

// RecordInstanceDisposed records the disposal of a composite policy instance.
func (c *Collector) RecordInstanceDisposed(kind string) {
	if !c.enabled() {
		return
	}

	c.pipelineMetrics.RecordDisposed(kind)
}

// UpdateLivePipelines sets the number of live composite policy instances.
func (c *Collector) UpdateLivePipelines(kind string, n int) {
	if !c.enabled() {
		return
	}

	c.pipelineMetrics.UpdateLive(kind, n)
}

// RecordCacheHit records an applicability cache hit.
func (c *Collector) RecordCacheHit(cacheName string) {
	if !c.enabled() {
		return
	}

	c.cacheMetrics.RecordHit(cacheName)
}

// RecordCacheMiss records an applicability cache miss.
func (c *Collector) RecordCacheMiss(cacheName string) {
	if !c.enabled() {
		return
	}

	c.cacheMetrics.RecordMiss(cacheName)
}

// UpdateCacheSize sets the number of entries of a cache.
func (c *Collector) UpdateCacheSize(cacheName string, size int) {
	if !c.enabled() {
		return
	}

	c.cacheMetrics.UpdateSize(cacheName, size)
}

// RecordCacheEviction records evicted entries.
//
// Parameters:
//   - cacheName: Name of the cache
//   - reason: "expired", "invalidated" or "closed"
//   - n: Number of evicted entries
func (c *Collector) RecordCacheEviction(cacheName, reason string, n int) {
	if !c.enabled() || n <= 0 {
		return
	}

	c.cacheMetrics.RecordEvictions(cacheName, reason, n)
}

// RecordJournalWrite records a journal write attempt.
//
// Parameters:
//   - outcome: "success", "error" or "dropped"
func (c *Collector) RecordJournalWrite(outcome string) {
	if !c.enabled() {
		return
	}

	c.journalMetrics.RecordWrite(outcome)
}

// RecordJournalPruned records records removed by retention.
func (c *Collector) RecordJournalPruned(n int64) {
	if !c.enabled() || n <= 0 {
		return
	}

	c.journalMetrics.RecordPruned(n)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the OpenMetrics format when the scraper
// asks for it. A metric failing to collect does not fail the scrape.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// CardinalityLimiter limits the number of unique label combinations.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter allowing maxCardinality label sets.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether labelSet is known or can still be added.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
