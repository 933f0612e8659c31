package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys used by policy layer spans.
const (
	AttrPolicyID      = "saturn.policy.id"
	AttrPolicyKind    = "saturn.policy.kind"
	AttrExecutionID   = "saturn.execution.id"
	AttrCorrelationID = "saturn.correlation.id"
	AttrComponent     = "saturn.component.location"
	AttrFailureStage  = "saturn.failure.stage"
)

// PolicyAttributes returns the attributes describing one policy layer execution.
func PolicyAttributes(policyID, kind, executionID, correlationID, location string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrPolicyID, policyID),
		attribute.String(AttrPolicyKind, kind),
		attribute.String(AttrExecutionID, executionID),
		attribute.String(AttrCorrelationID, correlationID),
	}
	if location != "" {
		attrs = append(attrs, attribute.String(AttrComponent, location))
	}
	return attrs
}

// SetFailureStage records where a failure originated.
func SetFailureStage(span trace.Span, stage string) {
	span.SetAttributes(attribute.String(AttrFailureStage, stage))
}
