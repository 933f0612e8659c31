package notification

import (
	"sync"
	"time"

	"mercator-hq/saturn/pkg/policy"
	"mercator-hq/saturn/pkg/telemetry/metrics"
)

// MetricsListener records policy layer executions and failures.
type MetricsListener struct {
	collector *metrics.Collector
	started   sync.Map // Transition.Key() -> time.Time
}

// NewMetricsListener creates a listener reporting to collector.
func NewMetricsListener(collector *metrics.Collector) *MetricsListener {
	return &MetricsListener{collector: collector}
}

// OnPolicyTransition implements Listener.
func (l *MetricsListener) OnPolicyTransition(t Transition) {
	if t.Phase == PhaseBefore {
		l.started.Store(t.Key(), t.Timestamp)
		return
	}

	var duration time.Duration
	if v, ok := l.started.LoadAndDelete(t.Key()); ok {
		duration = t.Timestamp.Sub(v.(time.Time))
	}

	outcome := "success"
	if t.Err != nil {
		outcome = "failure"
		stage := policy.StagePolicy
		if me, ok := policy.AsMessagingError(t.Err); ok {
			stage = me.Stage
		}
		l.collector.RecordPolicyFailure(string(t.Kind), string(stage))
	}
	l.collector.RecordPolicyExecution(t.PolicyID, string(t.Kind), outcome, duration)
}
