package composite

import (
	"sync"

	"mercator-hq/saturn/pkg/event"
	"mercator-hq/saturn/pkg/policy"
)

type sourceContextKey struct{}

type operationContextKey struct{}

// SourcePolicyContext is the source policy state of one execution. It lives
// on the execution Context and is released with it.
type SourcePolicyContext struct {
	mu                        sync.Mutex
	params                    policy.PointcutParameters
	original                  *event.Event
	paramsProcessor           SourceParametersProcessor
	responseParameters        map[string]any
	failureResponseParameters map[string]any
}

// AttachSourcePolicyContext returns the source policy context of ctx, creating
// it if needed. Non-nil params replace the recorded pointcut parameters.
func AttachSourcePolicyContext(ctx *event.Context, params policy.PointcutParameters) *SourcePolicyContext {
	actual, _ := ctx.LoadOrStoreAttribute(sourceContextKey{}, &SourcePolicyContext{})
	sctx := actual.(*SourcePolicyContext)
	if params != nil {
		sctx.mu.Lock()
		sctx.params = params
		sctx.mu.Unlock()
	}
	return sctx
}

// SourcePolicyContextFrom returns the source policy context of ev's execution.
func SourcePolicyContextFrom(ev *event.Event) (*SourcePolicyContext, bool) {
	sctx, ok := ev.Context().Attribute(sourceContextKey{}).(*SourcePolicyContext)
	return sctx, ok
}

// PointcutParameters returns the parameters policies were resolved for.
func (c *SourcePolicyContext) PointcutParameters() policy.PointcutParameters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// OriginalEvent returns the event as it entered the engine.
func (c *SourcePolicyContext) OriginalEvent() *event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.original
}

// ParametersProcessor returns the response parameters processor of the execution.
func (c *SourcePolicyContext) ParametersProcessor() SourceParametersProcessor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paramsProcessor
}

// OriginalResponseParameters returns the response parameters computed from
// the flow result, before source policies changed it.
func (c *SourcePolicyContext) OriginalResponseParameters() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.responseParameters
}

// OriginalFailureResponseParameters returns the response parameters computed
// from the failed flow event.
func (c *SourcePolicyContext) OriginalFailureResponseParameters() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failureResponseParameters
}

func (c *SourcePolicyContext) begin(original *event.Event, pp SourceParametersProcessor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.original = original
	c.paramsProcessor = pp
	c.responseParameters = nil
	c.failureResponseParameters = nil
}

func (c *SourcePolicyContext) setResponseParameters(params map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responseParameters = params
}

func (c *SourcePolicyContext) setFailureResponseParameters(params map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureResponseParameters = params
}

// OperationPolicyContext is the state of one operation invocation. It lives on
// the child Context created for the invocation.
type OperationPolicyContext struct {
	mu             sync.Mutex
	params         policy.PointcutParameters
	parameters     map[string]any
	location       string
	fn             OperationExecutionFunction
	original       *event.Event
	operationEvent *event.Event
	transformer    OperationParametersTransformer
}

// OperationPolicyContextFrom returns the operation policy context of ev's invocation.
func OperationPolicyContextFrom(ev *event.Event) (*OperationPolicyContext, bool) {
	octx, ok := ev.Context().Attribute(operationContextKey{}).(*OperationPolicyContext)
	return octx, ok
}

// PointcutParameters returns the parameters policies were resolved for.
func (c *OperationPolicyContext) PointcutParameters() policy.PointcutParameters {
	return c.params
}

// OperationParameters returns the resolved parameters of the operation.
func (c *OperationPolicyContext) OperationParameters() map[string]any {
	return c.parameters
}

// Location returns the location of the operation.
func (c *OperationPolicyContext) Location() string {
	return c.location
}

// OriginalEvent returns the event the operation was invoked with.
func (c *OperationPolicyContext) OriginalEvent() *event.Event {
	return c.original
}

// ParametersTransformer returns the parameters transformer, if any.
func (c *OperationPolicyContext) ParametersTransformer() OperationParametersTransformer {
	return c.transformer
}

// OperationEvent returns the event the operation was executed with, or nil
// if the operation did not run yet.
func (c *OperationPolicyContext) OperationEvent() *event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.operationEvent
}

func (c *OperationPolicyContext) executionFunction() OperationExecutionFunction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fn
}

func (c *OperationPolicyContext) setOperationEvent(ev *event.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.operationEvent = ev
}

// release drops the execution function once the invocation completed.
func (c *OperationPolicyContext) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fn = nil
}
