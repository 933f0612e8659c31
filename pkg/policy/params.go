package policy

import "mercator-hq/saturn/pkg/event"

// Internal event parameters reserved for the engine.
const (
	// ComponentLocationParameter holds the location of the component the
	// pipeline processing the event was built for.
	ComponentLocationParameter = "saturn.component.location"

	// PolicyStateParameter holds the state key of the policy currently
	// processing the event. ExecuteNext uses it to find the wrapped step.
	PolicyStateParameter = "saturn.policy.state"
)

// ComponentLocation returns the component location carried by ev, if any.
func ComponentLocation(ev *event.Event) string {
	location, _ := ev.InternalParameter(ComponentLocationParameter).(string)
	return location
}
