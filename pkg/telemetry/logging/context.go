package logging

import (
	"context"
)

// Context keys for common log fields.
type contextKey string

const (
	// ExecutionIDKey is the context key for event execution IDs.
	ExecutionIDKey contextKey = "execution_id"

	// CorrelationIDKey is the context key for correlation IDs.
	CorrelationIDKey contextKey = "correlation_id"

	// PolicyIDKey is the context key for policy IDs.
	PolicyIDKey contextKey = "policy_id"

	// ComponentKey is the context key for component locations.
	ComponentKey contextKey = "component"

	// TraceIDKey is the context key for trace IDs.
	TraceIDKey contextKey = "trace_id"
)

// fieldKeys is the order in which context fields are emitted.
var fieldKeys = []contextKey{ExecutionIDKey, CorrelationIDKey, PolicyIDKey, ComponentKey, TraceIDKey}

// WithExecutionID adds an execution ID to the context.
func WithExecutionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ExecutionIDKey, id)
}

// GetExecutionID retrieves the execution ID from the context.
func GetExecutionID(ctx context.Context) string {
	return stringValue(ctx, ExecutionIDKey)
}

// WithCorrelationID adds a correlation ID to the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// GetCorrelationID retrieves the correlation ID from the context.
func GetCorrelationID(ctx context.Context) string {
	return stringValue(ctx, CorrelationIDKey)
}

// WithPolicyID adds a policy ID to the context.
func WithPolicyID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, PolicyIDKey, id)
}

// GetPolicyID retrieves the policy ID from the context.
func GetPolicyID(ctx context.Context) string {
	return stringValue(ctx, PolicyIDKey)
}

// WithComponent adds a component location to the context.
func WithComponent(ctx context.Context, location string) context.Context {
	return context.WithValue(ctx, ComponentKey, location)
}

// GetComponent retrieves the component location from the context.
func GetComponent(ctx context.Context) string {
	return stringValue(ctx, ComponentKey)
}

// WithTraceID adds a trace ID to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, TraceIDKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// extractContextFields returns the key-value pairs of every field set in ctx.
func extractContextFields(ctx context.Context) []any {
	var fields []any
	for _, key := range fieldKeys {
		if v := stringValue(ctx, key); v != "" {
			fields = append(fields, string(key), v)
		}
	}
	return fields
}
