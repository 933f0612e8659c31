package notification

import (
	"log/slog"
	"time"

	"mercator-hq/saturn/pkg/event"
)

// Phase is the point of a policy layer a transition reports.
type Phase string

const (
	PhaseBefore Phase = "before"
	PhaseAfter  Phase = "after"
)

// Kind tells whether the policy wraps a source or an operation.
type Kind string

const (
	KindSource    Kind = "source"
	KindOperation Kind = "operation"
)

// Transition describes a policy layer starting or completing.
type Transition struct {
	Phase         Phase
	Kind          Kind
	PolicyID      string
	ExecutionID   string
	CorrelationID string
	Location      string

	// Event is the event entering the policy (before) or leaving it (after, on success).
	Event *event.Event

	// Err is the failure of the layer. Only set for PhaseAfter.
	Err error

	Timestamp time.Time
}

// Key identifies the policy layer of one execution. Before and After
// transitions of the same layer share the key.
func (t Transition) Key() string {
	return string(t.Kind) + "|" + t.ExecutionID + "|" + t.PolicyID
}

// Listener receives policy transitions.
type Listener interface {
	OnPolicyTransition(t Transition)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(t Transition)

// OnPolicyTransition calls f(t).
func (f ListenerFunc) OnPolicyTransition(t Transition) { f(t) }

// Notifier fans transitions out to listeners. A nil *Notifier is valid and
// notifies nobody.
type Notifier struct {
	listeners []Listener
	logger    *slog.Logger
}

// NewNotifier creates a notifier for the given listeners.
func NewNotifier(logger *slog.Logger, listeners ...Listener) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		listeners: listeners,
		logger:    logger,
	}
}

// Enabled reports whether any listener is registered.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.listeners) > 0
}

// Notify delivers t to every listener. A panicking listener is logged and
// does not prevent delivery to the others.
func (n *Notifier) Notify(t Transition) {
	if !n.Enabled() {
		return
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	for _, l := range n.listeners {
		n.deliver(l, t)
	}
}

func (n *Notifier) deliver(l Listener, t Transition) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("policy transition listener panicked",
				"policy_id", t.PolicyID,
				"phase", t.Phase,
				"panic", r,
			)
		}
	}()
	l.OnPolicyTransition(t)
}
