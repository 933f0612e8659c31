package processor

import (
	"log/slog"
	"sync/atomic"

	"mercator-hq/saturn/pkg/event"
	"mercator-hq/saturn/pkg/policy"
	"mercator-hq/saturn/pkg/policy/notification"
	"mercator-hq/saturn/pkg/policy/state"
	"mercator-hq/saturn/pkg/telemetry/logging"
)

// SourcePolicyProcessor applies a policy around a flow execution.
type SourcePolicyProcessor struct {
	layer
}

// NewSourcePolicyProcessor creates a processor applying p around next.
func NewSourcePolicyProcessor(p policy.Policy, next policy.Processor, handler *state.Handler, notifier *notification.Notifier, logger *slog.Logger) *SourcePolicyProcessor {
	return &SourcePolicyProcessor{
		layer: newLayer(notification.KindSource, policy.StageFlow, p, next, handler, notifier, logger),
	}
}

// OperationPolicyProcessor applies a policy around an operation execution.
type OperationPolicyProcessor struct {
	layer
}

// NewOperationPolicyProcessor creates a processor applying p around next.
func NewOperationPolicyProcessor(p policy.Policy, next policy.Processor, handler *state.Handler, notifier *notification.Notifier, logger *slog.Logger) *OperationPolicyProcessor {
	return &OperationPolicyProcessor{
		layer: newLayer(notification.KindOperation, policy.StageOperation, p, next, handler, notifier, logger),
	}
}

// layer holds the processing shared by source and operation policies.
type layer struct {
	kind          notification.Kind
	terminalStage policy.Stage
	policy        policy.Policy
	next          policy.Processor
	handler       *state.Handler
	notifier      *notification.Notifier
	logger        *slog.Logger
}

func newLayer(kind notification.Kind, terminalStage policy.Stage, p policy.Policy, next policy.Processor, handler *state.Handler, notifier *notification.Notifier, logger *slog.Logger) layer {
	if handler == nil {
		handler = state.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return layer{
		kind:          kind,
		terminalStage: terminalStage,
		policy:        p,
		next:          next,
		handler:       handler,
		notifier:      notifier,
		logger:        logger,
	}
}

// invocation is the state of one pass of an event through the layer.
type invocation struct {
	id         state.PolicyStateID
	original   *event.Event
	location   string
	flowResult atomic.Pointer[event.Event]
}

// Policy returns the applied policy.
func (l *layer) Policy() policy.Policy { return l.policy }

// Process runs the policy chain for ev.
func (l *layer) Process(ev *event.Event, done policy.Callback) {
	inv := &invocation{
		id:       state.PolicyStateID{ExecutionID: ev.ID(), PolicyID: l.policy.ID},
		original: ev,
		location: policy.ComponentLocation(ev),
	}

	l.handler.UpdateNextOperation(inv.id, ev.Context(), policy.ProcessorFunc(func(policyEv *event.Event, nextDone policy.Callback) {
		l.processNext(inv, policyEv, nextDone)
	}))

	policyEv := ev.ClearVariables()
	if latest, ok := l.handler.GetLatestState(inv.id); ok {
		policyEv = policyEv.WithVariables(latest.Variables())
	}
	policyEv = policyEv.WithInternalParameter(policy.PolicyStateParameter, inv.id)

	l.notify(notification.PhaseBefore, inv, policyEv, nil)

	l.policy.Chain.Process(policyEv, func(result *event.Event, err error) {
		l.handler.RemoveNextOperation(inv.id)

		if err != nil {
			failure := l.policyFailure(err, policyEv, inv.location)
			l.notify(notification.PhaseAfter, inv, nil, failure)
			done(nil, failure)
			return
		}

		base := inv.original
		if flowResult := inv.flowResult.Load(); flowResult != nil {
			base = flowResult
		}
		out := base.WithMessage(result.Message())

		l.notify(notification.PhaseAfter, inv, out, nil)
		done(out, nil)
	})
}

// processNext hands the event from the policy chain to the wrapped step and
// back, swapping policy variables for flow variables in both directions.
func (l *layer) processNext(inv *invocation, policyEv *event.Event, nextDone policy.Callback) {
	l.handler.UpdateState(inv.id, policyEv)

	msg := inv.original.Message()
	if l.policy.Chain.PropagateMessageTransformations() {
		msg = policyEv.Message()
	}
	flowEv := inv.original.WithMessage(msg)

	l.next.Process(flowEv, func(result *event.Event, err error) {
		if err != nil {
			failure := policy.WrapFailure(err, l.terminalStage, inv.location, flowEv).
				WithPolicyFrame(l.policy.ID, inv.location)
			nextDone(nil, failure)
			return
		}

		inv.flowResult.Store(result)

		vars := policyEv.Variables()
		if latest, ok := l.handler.GetLatestState(inv.id); ok {
			vars = latest.Variables()
		}
		nextDone(result.WithVariables(vars).WithInternalParameter(policy.PolicyStateParameter, inv.id), nil)
	})
}

// policyFailure attributes err to the policy chain unless it already is an
// attributed failure propagated from the wrapped step.
func (l *layer) policyFailure(err error, ev *event.Event, location string) *policy.MessagingError {
	if me, ok := policy.AsMessagingError(err); ok {
		return me
	}

	ctx := logging.WithExecutionID(ev.Context().Context(), ev.ID())
	ctx = logging.WithPolicyID(ctx, l.policy.ID)
	ctx = logging.WithComponent(ctx, location)
	l.logger.DebugContext(ctx, "policy chain failed", "error", err)

	return &policy.MessagingError{
		Stage:    policy.StagePolicy,
		PolicyID: l.policy.ID,
		Location: location,
		Event:    ev,
		Cause:    err,
	}
}

func (l *layer) notify(phase notification.Phase, inv *invocation, ev *event.Event, err error) {
	if !l.notifier.Enabled() {
		return
	}
	l.notifier.Notify(notification.Transition{
		Phase:         phase,
		Kind:          l.kind,
		PolicyID:      l.policy.ID,
		ExecutionID:   inv.id.ExecutionID,
		CorrelationID: inv.original.Context().CorrelationID(),
		Location:      inv.location,
		Event:         ev,
		Err:           err,
	})
}
