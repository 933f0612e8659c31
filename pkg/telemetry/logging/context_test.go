package logging

import (
	"context"
	"testing"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()
	ctx = WithExecutionID(ctx, "exec-1")
	ctx = WithCorrelationID(ctx, "corr-1")
	ctx = WithPolicyID(ctx, "rate-limit")
	ctx = WithComponent(ctx, "orders/source")
	ctx = WithTraceID(ctx, "trace-abc")

	tests := []struct {
		name string
		get  func(context.Context) string
		want string
	}{
		{"ExecutionID", GetExecutionID, "exec-1"},
		{"CorrelationID", GetCorrelationID, "corr-1"},
		{"PolicyID", GetPolicyID, "rate-limit"},
		{"Component", GetComponent, "orders/source"},
		{"TraceID", GetTraceID, "trace-abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.get(ctx); got != tt.want {
				t.Errorf("Get%s() = %q, want %q", tt.name, got, tt.want)
			}
			if got := tt.get(context.Background()); got != "" {
				t.Errorf("Get%s() on empty context = %q, want empty", tt.name, got)
			}
		})
	}
}

func TestExtractContextFields_Order(t *testing.T) {
	ctx := WithPolicyID(WithExecutionID(context.Background(), "exec-1"), "p1")

	got := extractContextFields(ctx)
	want := []any{"execution_id", "exec-1", "policy_id", "p1"}
	if len(got) != len(want) {
		t.Fatalf("extractContextFields() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("extractContextFields()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
