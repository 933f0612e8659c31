package tracing

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
)

// Trace context travels between flows as W3C message attributes
// ("traceparent" and "tracestate").

var propagator = propagation.NewCompositeTextMapPropagator(
	propagation.TraceContext{},
	propagation.Baggage{},
)

// Propagator returns the W3C Trace Context and Baggage propagator.
func Propagator() propagation.TextMapPropagator {
	return propagator
}

// ExtractFromAttributes returns ctx carrying the remote span context found in
// message attributes. Non-string attributes are ignored.
func ExtractFromAttributes(ctx context.Context, attrs map[string]any) context.Context {
	carrier := propagation.MapCarrier{}
	for _, key := range propagator.Fields() {
		if v, ok := attrs[key].(string); ok {
			carrier[key] = v
		}
	}
	if len(carrier) == 0 {
		return ctx
	}
	return propagator.Extract(ctx, carrier)
}

// InjectToAttributes returns the propagation attributes of the span in ctx.
func InjectToAttributes(ctx context.Context) map[string]any {
	carrier := propagation.MapCarrier{}
	propagator.Inject(ctx, carrier)

	attrs := make(map[string]any, len(carrier))
	for k, v := range carrier {
		attrs[k] = v
	}
	return attrs
}
