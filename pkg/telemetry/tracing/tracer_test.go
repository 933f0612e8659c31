package tracing

import (
	"context"
	"errors"
	"testing"

	"mercator-hq/saturn/pkg/config"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestTracer(t *testing.T) (*Tracer, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tracer, err := NewWithExporter(&config.TracingConfig{
		Enabled:     true,
		Sampler:     SamplerAlways,
		ServiceName: "saturn-test",
	}, exporter)
	if err != nil {
		t.Fatalf("NewWithExporter() error = %v, want nil", err)
	}
	t.Cleanup(func() { _ = tracer.Shutdown(context.Background()) })
	return tracer, exporter
}

func TestNew(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("New(nil) error = nil, want error")
	}

	tracer, err := New(&config.TracingConfig{Enabled: false})
	if err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}
	if tracer.Enabled() {
		t.Error("Enabled() = true for disabled config")
	}

	_, span := tracer.Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Error("disabled tracer produced a valid span context")
	}
	span.End()

	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v, want nil", err)
	}
}

func TestNewWithExporter_InvalidSampler(t *testing.T) {
	_, err := NewWithExporter(&config.TracingConfig{Enabled: true, Sampler: "sometimes"}, tracetest.NewInMemoryExporter())
	if err == nil {
		t.Fatal("NewWithExporter() error = nil, want sampler error")
	}
}

func TestTracer_Start(t *testing.T) {
	tracer, exporter := newTestTracer(t)

	ctx, parent := tracer.Start(context.Background(), "flow")
	if TraceID(ctx) == "" {
		t.Fatal("TraceID() is empty inside a sampled span")
	}
	_, child := tracer.Start(ctx, "policy")
	child.SetAttributes(PolicyAttributes("p1", "source", "exec-1", "corr-1", "orders/source")...)
	child.End()
	parent.End()

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("exported spans = %d, want 2", len(spans))
	}
	if spans[0].Parent.SpanID() != spans[1].SpanContext.SpanID() {
		t.Error("policy span is not a child of the flow span")
	}

	found := false
	for _, kv := range spans[0].Attributes {
		if string(kv.Key) == AttrComponent && kv.Value.AsString() == "orders/source" {
			found = true
		}
	}
	if !found {
		t.Errorf("span attributes = %v, want %s", spans[0].Attributes, AttrComponent)
	}
}

func TestSetErrorAndStatus(t *testing.T) {
	tracer, exporter := newTestTracer(t)

	_, span := tracer.Start(context.Background(), "failing")
	failure := errors.New("boom")
	SetError(span, failure)
	SetFailureStage(span, "policy")
	SetStatus(span, failure)
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("exported spans = %d, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("status = %v, want Error", spans[0].Status.Code)
	}
	if len(spans[0].Events) == 0 {
		t.Error("RecordError did not add an exception event")
	}
}

func TestTraceID_NoSpan(t *testing.T) {
	if got := TraceID(context.Background()); got != "" {
		t.Errorf("TraceID() = %q, want empty", got)
	}
}
