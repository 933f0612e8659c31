package notification

import (
	"context"
	"sync"

	"mercator-hq/saturn/pkg/policy"
	"mercator-hq/saturn/pkg/telemetry/tracing"

	"go.opentelemetry.io/otel/trace"
)

// TracingListener records one span per policy layer. Layers nest inside the
// layer that was still open for the same correlation ID; the outermost layer
// continues the trace carried in the message "traceparent" attribute, if any.
type TracingListener struct {
	tracer *tracing.Tracer

	mu    sync.Mutex
	open  map[string][]openSpan // by correlation ID, innermost last
	count int
}

type openSpan struct {
	key  string
	ctx  context.Context
	span trace.Span
}

// NewTracingListener creates a listener recording spans with tracer.
func NewTracingListener(tracer *tracing.Tracer) *TracingListener {
	return &TracingListener{
		tracer: tracer,
		open:   make(map[string][]openSpan),
	}
}

// OnPolicyTransition implements Listener.
func (l *TracingListener) OnPolicyTransition(t Transition) {
	switch t.Phase {
	case PhaseBefore:
		l.start(t)
	case PhaseAfter:
		l.end(t)
	}
}

// OpenSpans returns the number of layers started and not yet completed.
func (l *TracingListener) OpenSpans() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

func (l *TracingListener) start(t Transition) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stack := l.open[t.CorrelationID]

	var parent context.Context
	if len(stack) > 0 {
		parent = stack[len(stack)-1].ctx
	} else {
		parent = context.Background()
		if t.Event != nil {
			parent = tracing.ExtractFromAttributes(t.Event.Context().Context(), t.Event.Message().Attributes)
		}
	}

	ctx, span := l.tracer.Start(parent, string(t.Kind)+" policy "+t.PolicyID,
		trace.WithTimestamp(t.Timestamp),
		trace.WithAttributes(tracing.PolicyAttributes(t.PolicyID, string(t.Kind), t.ExecutionID, t.CorrelationID, t.Location)...),
	)

	l.open[t.CorrelationID] = append(stack, openSpan{key: t.Key(), ctx: ctx, span: span})
	l.count++
}

func (l *TracingListener) end(t Transition) {
	l.mu.Lock()
	stack := l.open[t.CorrelationID]
	var span trace.Span
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].key == t.Key() {
			span = stack[i].span
			stack = append(stack[:i], stack[i+1:]...)
			break
		}
	}
	if span != nil {
		l.count--
	}
	if len(stack) == 0 {
		delete(l.open, t.CorrelationID)
	} else {
		l.open[t.CorrelationID] = stack
	}
	l.mu.Unlock()

	if span == nil {
		return
	}

	if t.Err != nil {
		tracing.SetError(span, t.Err)
		if me, ok := policy.AsMessagingError(t.Err); ok {
			tracing.SetFailureStage(span, string(me.Stage))
		}
	}
	tracing.SetStatus(span, t.Err)
	span.End(trace.WithTimestamp(t.Timestamp))
}
