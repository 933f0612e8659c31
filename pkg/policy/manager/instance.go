package manager

import (
	"sync"

	"mercator-hq/saturn/pkg/event"
	"mercator-hq/saturn/pkg/policy"
	"mercator-hq/saturn/pkg/policy/composite"
)

// Kinds of cached composites, used as metric labels.
const (
	kindSource    = "source"
	kindOperation = "operation"
)

// retainer is implemented by the composite policies.
type retainer interface {
	Retain() bool
	Dispose()
}

// instance is a live composite known to the manager. The instance map holds
// no reference; the instance removes itself once disposed.
type instance struct {
	key       string
	kind      string
	composite retainer
	source    composite.SourcePolicy
	operation composite.OperationPolicy
}

func (i *instance) retain() bool { return i.composite.Retain() }

func (i *instance) release() { i.composite.Dispose() }

// SourcePolicyInstance is a checked out source policy bound to the
// invocation it was created for.
type SourcePolicyInstance struct {
	policy composite.SourcePolicy
	pp     composite.SourceParametersProcessor
	params policy.PointcutParameters
	once   sync.Once
}

// Process runs the flow for ev through the policies.
func (s *SourcePolicyInstance) Process(ev *event.Event, cb func(composite.SourcePolicyResult)) {
	s.policy.Process(ev, s.pp, cb)
}

// Policy returns the underlying source policy. Instances created for the
// same applicability share it.
func (s *SourcePolicyInstance) Policy() composite.SourcePolicy { return s.policy }

// PointcutParameters returns the parameters the policies were resolved for.
func (s *SourcePolicyInstance) PointcutParameters() policy.PointcutParameters { return s.params }

// Dispose releases the checkout. Further calls do nothing.
func (s *SourcePolicyInstance) Dispose() {
	s.once.Do(s.policy.Dispose)
}

// OperationPolicyInstance is a checked out operation policy bound to the
// operation parameters it was created for.
type OperationPolicyInstance struct {
	policy     composite.OperationPolicy
	parameters map[string]any
	location   string
	params     policy.PointcutParameters
	once       sync.Once
}

// Process runs fn through the policies. cb receives the resulting event on
// success and a *policy.MessagingError on failure.
func (o *OperationPolicyInstance) Process(ev *event.Event, fn composite.OperationExecutionFunction, cb composite.ExecutorCallback) {
	parameters := o.parameters
	o.policy.Process(ev, fn, composite.OperationParametersFunc(func() map[string]any { return parameters }), o.location, cb)
}

// Policy returns the underlying operation policy.
func (o *OperationPolicyInstance) Policy() composite.OperationPolicy { return o.policy }

// PointcutParameters returns the parameters the policies were resolved for.
func (o *OperationPolicyInstance) PointcutParameters() policy.PointcutParameters { return o.params }

// Dispose releases the checkout. Further calls do nothing.
func (o *OperationPolicyInstance) Dispose() {
	o.once.Do(o.policy.Dispose)
}
