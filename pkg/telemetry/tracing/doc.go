// Package tracing provides OpenTelemetry tracing of policy layer executions.
//
// # Overview
//
// Every policy layer wrapping a source or an operation can be recorded as a
// span. The span starts when the layer is entered and ends when its
// continuation completes, so nested layers of one execution form a tree:
//
//	policy rate-limit (source)          12ms
//	└── policy set-variable (source)    11ms
//	    └── policy tag (operation)       3ms
//
// Spans are exported over OTLP/gRPC. When tracing is disabled a noop tracer
// is used and span creation costs nothing.
//
// # Sampling Strategies
//
//   - always: Sample all executions (development/debugging)
//   - never: Sample no executions
//   - ratio: Sample a fraction of executions, respecting a sampled parent
//
// # Usage
//
//	cfg := &config.TracingConfig{
//	    Enabled:     true,
//	    Sampler:     "ratio",
//	    SampleRatio: 0.1,
//	    Endpoint:    "localhost:4317",
//	    ServiceName: "saturn",
//	}
//	tracer, err := tracing.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "policy rate-limit",
//	    trace.WithAttributes(tracing.PolicyAttributes("rate-limit", "source", execID, corrID, "orders/source")...))
//	defer span.End()
//
// # Context Propagation
//
// Message flows carry no HTTP headers, so the W3C trace context travels in
// message attributes:
//
//	attrs := tracing.InjectToAttributes(ctx)        // traceparent, tracestate
//	ctx = tracing.ExtractFromAttributes(ctx, attrs)
//
// # Attributes
//
// Policy spans carry saturn.policy.id, saturn.policy.kind,
// saturn.execution.id, saturn.correlation.id and saturn.component.location.
// Failed layers additionally carry saturn.failure.stage.
package tracing
