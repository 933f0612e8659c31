package processor

import (
	"fmt"

	"mercator-hq/saturn/pkg/event"
	"mercator-hq/saturn/pkg/policy"
	"mercator-hq/saturn/pkg/policy/state"
)

// ExecuteNext returns the processor that hands an event to the step wrapped by
// the policy currently processing it. Policy chains use it to continue to the
// next policy, or to the flow or operation once no policy is left.
//
// handler must be the handler used by the policy processors.
func ExecuteNext(handler *state.Handler) policy.Processor {
	if handler == nil {
		handler = state.Default()
	}
	return policy.ProcessorFunc(func(ev *event.Event, done policy.Callback) {
		id, ok := ev.InternalParameter(policy.PolicyStateParameter).(state.PolicyStateID)
		if !ok {
			done(nil, policy.ErrNoNextOperation)
			return
		}

		next, ok := handler.RetrieveNextOperation(id)
		if !ok {
			done(nil, fmt.Errorf("%w: policy %q, execution %q", policy.ErrNoNextOperation, id.PolicyID, id.ExecutionID))
			return
		}
		next.Process(ev, done)
	})
}
