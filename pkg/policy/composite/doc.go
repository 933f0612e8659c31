// Package composite builds and runs the pipeline of an ordered list of
// policies around a flow (source policies) or an operation (operation
// policies).
//
// The pipeline is folded right to left: the innermost processor runs the
// flow or operation, and each policy wraps the processor built so far, so
// the first policy in the list is the outermost one.
//
// A composite owns a set of sinks. Each sink lazily builds its own pipeline
// the first time it is selected and sinks are selected round robin. An
// invocation runs on the caller's goroutine, so concurrent invocations of a
// built pipeline never wait on each other. Disposal is deferred until no
// invocation is in flight, so a composite can be disposed while requests are
// still running through it.
//
// # Basic Usage
//
//	c, err := composite.NewCompositeSourcePolicy(policies, flow,
//	    composite.WithComponent(component),
//	)
//	if err != nil {
//	    return err
//	}
//	defer c.Dispose()
//
//	c.Process(ev, params, func(r composite.SourcePolicyResult) {
//	    if r.Failure != nil {
//	        // r.Failure.Err is a *policy.MessagingError
//	    }
//	})
package composite
