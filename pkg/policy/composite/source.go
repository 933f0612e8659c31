package composite

import (
	"fmt"
	"log/slog"
	"sync"

	"mercator-hq/saturn/pkg/event"
	"mercator-hq/saturn/pkg/policy"
	"mercator-hq/saturn/pkg/policy/processor"
)

// SourcePolicy applies source policies around a flow execution.
type SourcePolicy interface {
	// Process runs the flow for ev through the policies. cb is invoked
	// exactly once.
	Process(ev *event.Event, pp SourceParametersProcessor, cb func(SourcePolicyResult))

	// Dispose releases the caller's reference.
	Dispose()
}

// SourcePolicyResult is the outcome of a source policy execution.
// Exactly one of Success and Failure is set.
type SourcePolicyResult struct {
	Success *SourcePolicySuccessResult
	Failure *SourcePolicyFailureResult
}

// IsSuccess reports whether the execution succeeded.
func (r SourcePolicyResult) IsSuccess() bool { return r.Success != nil }

// SourcePolicySuccessResult is a successful source policy execution.
type SourcePolicySuccessResult struct {
	// Result is the event produced by the policies and the flow.
	Result *event.Event

	// ResponseParameters computes the parameters of the source response.
	ResponseParameters func() map[string]any

	// ParametersProcessor is the processor the parameters are computed with.
	ParametersProcessor SourceParametersProcessor
}

// SourcePolicyFailureResult is a failed source policy execution.
type SourcePolicyFailureResult struct {
	// Err is the attributed failure.
	Err *policy.MessagingError

	// ErrorResponseParameters computes the parameters of the error response.
	ErrorResponseParameters func() map[string]any
}

type noSourceParameters struct{}

func (noSourceParameters) SuccessfulExecutionResponseParameters(*event.Event) map[string]any {
	return nil
}

func (noSourceParameters) FailedExecutionResponseParameters(*event.Event) map[string]any {
	return nil
}

func orNoSourceParameters(pp SourceParametersProcessor) SourceParametersProcessor {
	if pp == nil {
		return noSourceParameters{}
	}
	return pp
}

// CommonSourcePolicy dispatches source invocations to the sinks of a
// composite and resolves their outcome.
type CommonSourcePolicy struct {
	sinks  *sinkGroup
	logger *slog.Logger
}

// Process emits the invocation to the next sink.
func (c *CommonSourcePolicy) Process(ev *event.Event, pp SourceParametersProcessor, cb func(SourcePolicyResult)) {
	pp = orNoSourceParameters(pp)
	err := c.sinks.emit(ev, func(result *event.Event, err error) {
		c.finishFlowProcessing(ev, result, err, pp, cb)
	})
	if err != nil {
		cb(failureResult(policy.WrapFailure(err, policy.StageFlow, policy.ComponentLocation(ev), ev), ev, pp))
	}
}

// finishFlowProcessing resolves the outcome of an invocation.
func (c *CommonSourcePolicy) finishFlowProcessing(ev, result *event.Event, err error, pp SourceParametersProcessor, cb func(SourcePolicyResult)) {
	if err == nil {
		cb(SourcePolicyResult{Success: &SourcePolicySuccessResult{
			Result:              result,
			ResponseParameters:  func() map[string]any { return pp.SuccessfulExecutionResponseParameters(result) },
			ParametersProcessor: pp,
		}})
		return
	}

	me := policy.WrapFailure(err, policy.StageFlow, policy.ComponentLocation(ev), ev)
	c.logger.Debug("source policy execution failed",
		"execution_id", ev.ID(),
		"stage", me.Stage,
		"error", me.Cause,
	)
	cb(failureResult(me, ev, pp))
}

// Dispose stops accepting invocations; sinks close once none is in flight.
func (c *CommonSourcePolicy) Dispose() {
	c.sinks.dispose()
}

func failureResult(me *policy.MessagingError, ev *event.Event, pp SourceParametersProcessor) SourcePolicyResult {
	failed := me.Event
	if failed == nil {
		failed = ev
	}
	sctx, _ := SourcePolicyContextFrom(ev)

	return SourcePolicyResult{Failure: &SourcePolicyFailureResult{
		Err: me,
		ErrorResponseParameters: func() map[string]any {
			if me.Stage == policy.StageFlow && sctx != nil {
				if params := sctx.OriginalFailureResponseParameters(); params != nil {
					return params
				}
			}
			return pp.FailedExecutionResponseParameters(failed)
		},
	}}
}

// CompositeSourcePolicy applies an ordered list of policies around a flow.
type CompositeSourcePolicy struct {
	refCount

	policies  []policy.Policy
	flow      policy.Processor
	factory   processor.Factory
	params    policy.PointcutParameters
	component policy.Component
	counters  buildCounters
	common    *CommonSourcePolicy
	logger    *slog.Logger
}

// NewCompositeSourcePolicy creates a composite applying policies, in order,
// around flow. It fails with policy.ErrInvalidArgument if policies is empty.
func NewCompositeSourcePolicy(policies []policy.Policy, flow policy.Processor, opts ...Option) (*CompositeSourcePolicy, error) {
	if len(policies) == 0 {
		return nil, fmt.Errorf("%w: composite source policy requires at least one policy", policy.ErrInvalidArgument)
	}
	if flow == nil {
		return nil, fmt.Errorf("%w: composite source policy requires a flow", policy.ErrInvalidArgument)
	}

	o := newOptions(opts)
	c := &CompositeSourcePolicy{
		policies:  append([]policy.Policy(nil), policies...),
		flow:      flow,
		factory:   o.factory,
		params:    o.params,
		component: o.component,
		logger:    o.logger,
	}
	c.common = &CommonSourcePolicy{
		sinks:  newSinkGroup(o.sinkCount, c.buildPipeline, o.onDisposed, o.logger),
		logger: o.logger,
	}
	c.refCount.initRefs(c.common.Dispose)

	return c, nil
}

// Policies returns the applied policies in order.
func (c *CompositeSourcePolicy) Policies() []policy.Policy {
	return append([]policy.Policy(nil), c.policies...)
}

// Stats returns the build counters of the composite.
func (c *CompositeSourcePolicy) Stats() Stats {
	return c.counters.stats(c.common.sinks)
}

// Process runs ev through the policies and the flow.
func (c *CompositeSourcePolicy) Process(ev *event.Event, pp SourceParametersProcessor, cb func(SourcePolicyResult)) {
	pp = orNoSourceParameters(pp)
	AttachSourcePolicyContext(ev.Context(), c.params).begin(ev, pp)

	ev = ev.WithInternalParameter(policy.ComponentLocationParameter, c.component.Location)
	c.common.Process(ev, pp, cb)
}

func (c *CompositeSourcePolicy) buildPipeline() policy.Processor {
	c.counters.pipelines.Add(1)

	next := c.applyNextOperation(c.flow)
	for i := len(c.policies) - 1; i >= 0; i-- {
		next = c.applyPolicy(c.policies[i], next)
	}
	return next
}

// applyNextOperation creates the innermost step running the flow.
func (c *CompositeSourcePolicy) applyNextOperation(flow policy.Processor) policy.Processor {
	c.counters.nextOperations.Add(1)

	return policy.ProcessorFunc(func(ev *event.Event, done policy.Callback) {
		sctx, _ := SourcePolicyContextFrom(ev)
		var pp SourceParametersProcessor = noSourceParameters{}
		if sctx != nil && sctx.ParametersProcessor() != nil {
			pp = sctx.ParametersProcessor()
		}

		flow.Process(ev, onceCallback(c.logger, ev, func(result *event.Event, err error) {
			if err != nil {
				me := policy.WrapFailure(err, policy.StageFlow, c.component.Location, ev)
				if sctx != nil {
					failed := me.Event
					if failed == nil {
						failed = ev
					}
					sctx.setFailureResponseParameters(pp.FailedExecutionResponseParameters(failed))
				}
				done(nil, me)
				return
			}
			if sctx != nil {
				sctx.setResponseParameters(pp.SuccessfulExecutionResponseParameters(result))
			}
			done(result, nil)
		}))
	})
}

func (c *CompositeSourcePolicy) applyPolicy(p policy.Policy, next policy.Processor) policy.Processor {
	c.counters.policies.Add(1)
	return c.factory.CreateSourcePolicy(p, next)
}

// NoSourcePolicy runs the flow directly. It is used when no source policy applies.
type NoSourcePolicy struct {
	flow   policy.Processor
	logger *slog.Logger
}

// NewNoSourcePolicy creates a source policy running flow without policies.
func NewNoSourcePolicy(flow policy.Processor, logger *slog.Logger) *NoSourcePolicy {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoSourcePolicy{flow: flow, logger: logger}
}

// Process runs the flow.
func (n *NoSourcePolicy) Process(ev *event.Event, pp SourceParametersProcessor, cb func(SourcePolicyResult)) {
	pp = orNoSourceParameters(pp)
	n.flow.Process(ev, onceCallback(n.logger, ev, func(result *event.Event, err error) {
		if err != nil {
			cb(failureResult(policy.WrapFailure(err, policy.StageFlow, policy.ComponentLocation(ev), ev), ev, pp))
			return
		}
		cb(SourcePolicyResult{Success: &SourcePolicySuccessResult{
			Result:              result,
			ResponseParameters:  func() map[string]any { return pp.SuccessfulExecutionResponseParameters(result) },
			ParametersProcessor: pp,
		}})
	}))
}

// Dispose does nothing.
func (n *NoSourcePolicy) Dispose() {}

// onceCallback guards against steps completing more than once.
func onceCallback(logger *slog.Logger, ev *event.Event, done policy.Callback) policy.Callback {
	var once sync.Once
	return func(result *event.Event, err error) {
		called := false
		once.Do(func() {
			called = true
			done(result, err)
		})
		if !called {
			logger.Warn("step completed more than once, ignoring", "execution_id", ev.ID(), "error", err)
		}
	}
}
