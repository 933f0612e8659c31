// Package pointcut creates the pointcut parameters used to decide which
// policies apply to a source or operation invocation.
//
// Factories are registered per component kind. For each component at most
// one factory may claim it; if none does, the engine falls back to
// policy.BasePointcutParameters, which only carries the component.
//
// Operation factories may optionally implement SourceAwareOperationFactory
// to also receive the pointcut parameters of the source that triggered the
// execution.
package pointcut
