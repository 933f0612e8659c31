package composite

import (
	"fmt"
	"log/slog"
	"sync"

	"mercator-hq/saturn/pkg/event"
	"mercator-hq/saturn/pkg/policy"
	"mercator-hq/saturn/pkg/policy/processor"
)

// ExecutorCallback receives the outcome of an operation execution. Only the
// first signal is honored.
type ExecutorCallback interface {
	// Complete signals success. value is an *event.Event, an event.Message,
	// or a payload.
	Complete(value any)

	// Error signals failure.
	Error(err error)
}

// ExecutorCallbackFuncs implements ExecutorCallback with functions.
type ExecutorCallbackFuncs struct {
	OnComplete func(value any)
	OnError    func(err error)
}

// Complete implements ExecutorCallback.
func (f ExecutorCallbackFuncs) Complete(value any) {
	if f.OnComplete != nil {
		f.OnComplete(value)
	}
}

// Error implements ExecutorCallback.
func (f ExecutorCallbackFuncs) Error(err error) {
	if f.OnError != nil {
		f.OnError(err)
	}
}

// OperationExecutionFunction executes an operation with the given parameters.
type OperationExecutionFunction func(parameters map[string]any, ev *event.Event, cb ExecutorCallback)

// OperationPolicy applies operation policies around an operation execution.
type OperationPolicy interface {
	// Process runs fn for ev through the policies. cb receives the resulting
	// *event.Event on success and a *policy.MessagingError on failure.
	Process(ev *event.Event, fn OperationExecutionFunction, pp OperationParametersProcessor, location string, cb ExecutorCallback)

	// Dispose releases the caller's reference.
	Dispose()
}

// guardedCallback forwards the first signal and drops the others.
type guardedCallback struct {
	once   sync.Once
	cb     ExecutorCallback
	logger *slog.Logger
	ev     *event.Event
}

func guard(logger *slog.Logger, ev *event.Event, cb ExecutorCallback) *guardedCallback {
	return &guardedCallback{cb: cb, logger: logger, ev: ev}
}

func (g *guardedCallback) Complete(value any) {
	if !g.signal(func() { g.cb.Complete(value) }) {
		g.logger.Warn("operation completed after it already signaled, ignoring", "execution_id", g.ev.ID())
	}
}

func (g *guardedCallback) Error(err error) {
	if !g.signal(func() { g.cb.Error(err) }) {
		g.logger.Warn("operation failed after it already signaled, ignoring", "execution_id", g.ev.ID(), "error", err)
	}
}

func (g *guardedCallback) signal(fn func()) bool {
	called := false
	g.once.Do(func() {
		called = true
		fn()
	})
	return called
}

// terminalCallback turns the operation outcome into the completion of the
// innermost step of the pipeline.
type terminalCallback struct {
	ev       *event.Event
	location string
	done     policy.Callback
}

func (t *terminalCallback) Complete(value any) {
	t.done(resultEvent(t.ev, value), nil)
}

func (t *terminalCallback) Error(err error) {
	t.done(nil, policy.WrapFailure(err, policy.StageOperation, t.location, t.ev))
}

func resultEvent(ev *event.Event, value any) *event.Event {
	switch v := value.(type) {
	case *event.Event:
		if v == nil {
			return ev.WithPayload(nil)
		}
		return v.WithContext(ev.Context())
	case event.Message:
		return ev.WithMessage(v)
	default:
		return ev.WithPayload(v)
	}
}

// CompositeOperationPolicy applies an ordered list of policies around an operation.
type CompositeOperationPolicy struct {
	refCount

	policies    []policy.Policy
	factory     processor.Factory
	params      policy.PointcutParameters
	component   policy.Component
	transformer OperationParametersTransformer
	counters    buildCounters
	sinks       *sinkGroup
	logger      *slog.Logger
}

// NewCompositeOperationPolicy creates a composite applying policies, in order,
// around the operation given to each Process call. It fails with
// policy.ErrInvalidArgument if policies is empty.
func NewCompositeOperationPolicy(policies []policy.Policy, opts ...Option) (*CompositeOperationPolicy, error) {
	if len(policies) == 0 {
		return nil, fmt.Errorf("%w: composite operation policy requires at least one policy", policy.ErrInvalidArgument)
	}

	o := newOptions(opts)
	c := &CompositeOperationPolicy{
		policies:    append([]policy.Policy(nil), policies...),
		factory:     o.factory,
		params:      o.params,
		component:   o.component,
		transformer: o.transformer,
		logger:      o.logger,
	}
	c.sinks = newSinkGroup(o.sinkCount, c.buildPipeline, o.onDisposed, o.logger)
	c.refCount.initRefs(c.sinks.dispose)

	return c, nil
}

// Policies returns the applied policies in order.
func (c *CompositeOperationPolicy) Policies() []policy.Policy {
	return append([]policy.Policy(nil), c.policies...)
}

// Stats returns the build counters of the composite.
func (c *CompositeOperationPolicy) Stats() Stats {
	return c.counters.stats(c.sinks)
}

// Process runs fn through the policies. Each invocation gets its own child
// execution context, terminated when the invocation completes.
func (c *CompositeOperationPolicy) Process(ev *event.Event, fn OperationExecutionFunction, pp OperationParametersProcessor, location string, cb ExecutorCallback) {
	guarded := guard(c.logger, ev, cb)
	if location == "" {
		location = c.component.Location
	}
	if fn == nil {
		guarded.Error(&policy.MessagingError{Stage: policy.StageOperation, Location: location, Event: ev, Cause: ErrNoExecutionFunction})
		return
	}

	var parameters map[string]any
	if pp != nil {
		parameters = pp.OperationParameters()
	}

	child := ev.Context().NewChild()
	octx := &OperationPolicyContext{
		params:      c.params,
		parameters:  parameters,
		location:    location,
		fn:          fn,
		original:    ev,
		transformer: c.transformer,
	}
	child.SetAttribute(operationContextKey{}, octx)

	opEv := ev.WithContext(child).WithInternalParameter(policy.ComponentLocationParameter, location)
	if c.transformer != nil {
		opEv = opEv.WithMessage(c.transformer.FromParametersToMessage(parameters))
	}

	err := c.sinks.emit(opEv, func(result *event.Event, err error) {
		octx.release()
		child.Terminate(result, err)

		if err != nil {
			guarded.Error(policy.WrapFailure(err, policy.StageOperation, location, opEv))
			return
		}
		guarded.Complete(result.WithContext(ev.Context()))
	})
	if err != nil {
		octx.release()
		child.Terminate(nil, err)
		guarded.Error(policy.WrapFailure(err, policy.StageOperation, location, ev))
	}
}

func (c *CompositeOperationPolicy) buildPipeline() policy.Processor {
	c.counters.pipelines.Add(1)

	next := c.applyNextOperation()
	for i := len(c.policies) - 1; i >= 0; i-- {
		next = c.applyPolicy(c.policies[i], next)
	}
	return next
}

// applyNextOperation creates the innermost step running the operation of the
// current invocation.
func (c *CompositeOperationPolicy) applyNextOperation() policy.Processor {
	c.counters.nextOperations.Add(1)

	return policy.ProcessorFunc(func(ev *event.Event, done policy.Callback) {
		location := policy.ComponentLocation(ev)

		octx, ok := OperationPolicyContextFrom(ev)
		var fn OperationExecutionFunction
		if ok {
			fn = octx.executionFunction()
		}
		if fn == nil {
			done(nil, &policy.MessagingError{Stage: policy.StageOperation, Location: location, Event: ev, Cause: ErrNoExecutionFunction})
			return
		}

		parameters := octx.OperationParameters()
		if t := octx.ParametersTransformer(); t != nil {
			parameters = t.FromMessageToParameters(ev.Message())
		}
		octx.setOperationEvent(ev)

		fn(parameters, ev, &terminalCallback{
			ev:       ev,
			location: location,
			done:     onceCallback(c.logger, ev, done),
		})
	})
}

func (c *CompositeOperationPolicy) applyPolicy(p policy.Policy, next policy.Processor) policy.Processor {
	c.counters.policies.Add(1)
	return c.factory.CreateOperationPolicy(p, next)
}

// NoOperationPolicy executes the operation directly. It is used when no
// operation policy applies.
type NoOperationPolicy struct {
	logger *slog.Logger
}

// NewNoOperationPolicy creates a pass-through operation policy.
func NewNoOperationPolicy(logger *slog.Logger) *NoOperationPolicy {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoOperationPolicy{logger: logger}
}

// Process calls fn with the resolved parameters.
func (n *NoOperationPolicy) Process(ev *event.Event, fn OperationExecutionFunction, pp OperationParametersProcessor, location string, cb ExecutorCallback) {
	guarded := guard(n.logger, ev, cb)
	if fn == nil {
		guarded.Error(&policy.MessagingError{Stage: policy.StageOperation, Location: location, Event: ev, Cause: ErrNoExecutionFunction})
		return
	}

	var parameters map[string]any
	if pp != nil {
		parameters = pp.OperationParameters()
	}
	fn(parameters, ev, &passThroughCallback{ev: ev, location: location, cb: guarded})
}

// Dispose does nothing.
func (n *NoOperationPolicy) Dispose() {}

type passThroughCallback struct {
	ev       *event.Event
	location string
	cb       ExecutorCallback
}

func (p *passThroughCallback) Complete(value any) {
	p.cb.Complete(resultEvent(p.ev, value))
}

func (p *passThroughCallback) Error(err error) {
	p.cb.Error(policy.WrapFailure(err, policy.StageOperation, p.location, p.ev))
}
