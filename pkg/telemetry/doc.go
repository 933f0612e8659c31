// Package telemetry wires the observability of the policy engine.
//
// # Components
//
//   - logging: slog-based structured logging with execution fields
//   - metrics: Prometheus metrics for policy layers, pipelines, caches and the journal
//   - tracing: OpenTelemetry spans per policy layer
//   - health: liveness and readiness endpoints
//
// # Usage
//
//	tel, err := telemetry.New(&cfg.Telemetry, os.Stderr, telemetry.BuildInfo{Version: version})
//	if err != nil {
//		return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	notifier := notification.NewNotifier(tel.Logger().Slog(), tel.Listeners()...)
//	http.ListenAndServe(cfg.Telemetry.Metrics.ListenAddress, tel.Handler())
package telemetry
