package policy

import (
	"errors"
	"fmt"

	"mercator-hq/saturn/pkg/event"
)

// ErrInvalidArgument is returned for invalid engine configuration, such as
// building a composite policy without policies.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrNoNextOperation is returned by ExecuteNext when the event carries no
// policy state, i.e. ExecuteNext was used outside of a policy chain.
var ErrNoNextOperation = errors.New("no next operation registered for policy execution")

// Stage identifies where a failure originated.
type Stage string

const (
	// StagePolicy marks failures raised by a policy chain.
	StagePolicy Stage = "policy"

	// StageFlow marks failures raised by the flow wrapped by source policies.
	StageFlow Stage = "flow"

	// StageOperation marks failures raised by the operation wrapped by operation policies.
	StageOperation Stage = "operation"
)

// MessagingError is the failure returned by policy pipelines.
type MessagingError struct {
	// Stage is where the failure originated.
	Stage Stage

	// PolicyID is the policy whose chain failed. Empty unless Stage is StagePolicy.
	PolicyID string

	// Location is the location of the component the pipeline was built for.
	Location string

	// PolicyFrame is the innermost policy the failure propagated through on its
	// way out of the wrapped step. It is set once.
	PolicyFrame string

	// Event is the event observed by the failing stage.
	Event *event.Event

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *MessagingError) Error() string {
	switch {
	case e.Stage == StagePolicy && e.PolicyID != "":
		return fmt.Sprintf("policy %q failed at %q: %v", e.PolicyID, e.Location, e.Cause)
	case e.Location != "":
		return fmt.Sprintf("%s failed at %q: %v", e.Stage, e.Location, e.Cause)
	default:
		return fmt.Sprintf("%s failed: %v", e.Stage, e.Cause)
	}
}

// Unwrap returns the underlying cause.
func (e *MessagingError) Unwrap() error {
	return e.Cause
}

// WithPolicyFrame returns a copy of the error carrying the policy frame and
// location. If the frame is already set, e is returned unchanged.
func (e *MessagingError) WithPolicyFrame(policyID, location string) *MessagingError {
	if e.PolicyFrame != "" {
		return e
	}
	c := *e
	c.PolicyFrame = policyID
	if c.Location == "" {
		c.Location = location
	}
	return &c
}

// AsMessagingError returns err as a *MessagingError if it is one.
// Unlike errors.As it does not look into wrapped errors: an error that wraps a
// MessagingError is a new failure, not the same one.
func AsMessagingError(err error) (*MessagingError, bool) {
	me, ok := err.(*MessagingError)
	return me, ok
}

// WrapFailure returns err as a *MessagingError, wrapping it into a new one
// attributed to stage if it is not one already.
func WrapFailure(err error, stage Stage, location string, ev *event.Event) *MessagingError {
	if me, ok := AsMessagingError(err); ok {
		return me
	}
	return &MessagingError{
		Stage:    stage,
		Location: location,
		Event:    ev,
		Cause:    err,
	}
}
