package telemetry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/policy/notification"
	"mercator-hq/saturn/pkg/telemetry/health"
	"mercator-hq/saturn/pkg/telemetry/logging"
	"mercator-hq/saturn/pkg/telemetry/metrics"
	"mercator-hq/saturn/pkg/telemetry/tracing"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Telemetry bundles the logger, metrics collector, tracer and health checker
// of one engine process.
type Telemetry struct {
	config  *config.TelemetryConfig
	build   BuildInfo
	logger  *logging.Logger
	metrics *metrics.Collector
	tracer  *tracing.Tracer
	health  *health.Checker
}

// New creates the telemetry components described by cfg. Logs are written to w.
func New(cfg *config.TelemetryConfig, w io.Writer, build BuildInfo) (*Telemetry, error) {
	logger, err := logging.New(logging.FromConfig(cfg.Logging, w))
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	tracer, err := tracing.New(&cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	return &Telemetry{
		config:  cfg,
		build:   build,
		logger:  logger,
		metrics: metrics.NewCollector(&cfg.Metrics, nil),
		tracer:  tracer,
		health:  health.New(2 * time.Second),
	}, nil
}

// Logger returns the structured logger.
func (t *Telemetry) Logger() *logging.Logger { return t.logger }

// Metrics returns the Prometheus collector.
func (t *Telemetry) Metrics() *metrics.Collector { return t.metrics }

// Tracer returns the tracer. It is a noop tracer when tracing is disabled.
func (t *Telemetry) Tracer() *tracing.Tracer { return t.tracer }

// Health returns the readiness checker.
func (t *Telemetry) Health() *health.Checker { return t.health }

// Listeners returns the transition listeners reporting to the enabled
// telemetry backends.
func (t *Telemetry) Listeners() []notification.Listener {
	var listeners []notification.Listener
	if t.config.Metrics.Enabled {
		listeners = append(listeners, notification.NewMetricsListener(t.metrics))
	}
	if t.tracer.Enabled() {
		listeners = append(listeners, notification.NewTracingListener(t.tracer))
	}
	return listeners
}

// Handler serves the metrics endpoint and the health endpoints.
func (t *Telemetry) Handler() http.Handler {
	mux := http.NewServeMux()
	if t.config.Metrics.Enabled {
		path := t.config.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle(path, t.metrics.Handler())
	}
	health.Register(mux, t.health, t.build.Version, t.build.Commit, t.build.BuildTime)
	return mux
}

// Shutdown flushes pending spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.tracer.Shutdown(ctx)
}
