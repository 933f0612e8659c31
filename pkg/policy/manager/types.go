package manager

import (
	"errors"
	"time"

	"mercator-hq/saturn/pkg/policy"
	"mercator-hq/saturn/pkg/policy/composite"
)

// ErrClosed is returned by a manager after Close.
var ErrClosed = errors.New("policy manager is closed")

// PolicyProvider supplies the policies applying to a component invocation.
// Returned policies are ordered; the first one is the outermost.
type PolicyProvider interface {
	FindSourceParameterizedPolicies(params policy.PointcutParameters) []policy.Policy
	FindOperationParameterizedPolicies(params policy.PointcutParameters) []policy.Policy

	// IsSourcePoliciesAvailable reports whether any source policy may apply.
	// False short-circuits lookups.
	IsSourcePoliciesAvailable() bool
	IsOperationPoliciesAvailable() bool

	// OnPoliciesChanged registers fn to be called whenever the answers of
	// the provider may have changed.
	OnPoliciesChanged(fn func())
}

// ParametersTransformerResolver resolves the transformer between the
// parameters of an operation kind and the message seen by its policies.
type ParametersTransformerResolver interface {
	ParametersTransformer(id policy.ComponentIdentifier) (composite.OperationParametersTransformer, bool)
}

// ParametersTransformerMap resolves transformers from a map.
type ParametersTransformerMap map[policy.ComponentIdentifier]composite.OperationParametersTransformer

// ParametersTransformer implements ParametersTransformerResolver.
func (m ParametersTransformerMap) ParametersTransformer(id policy.ComponentIdentifier) (composite.OperationParametersTransformer, bool) {
	t, ok := m[id]
	return t, ok
}

// Config configures the caches of a Manager.
type Config struct {
	// TTL bounds how long an applicability answer is reused. Zero disables expiry.
	TTL time.Duration

	// SweepSchedule is the cron spec of the expired entry sweep. Empty
	// disables the sweeper; expired entries are then dropped on lookup only.
	SweepSchedule string

	// SinkCount is the number of sinks of each composite. Zero means runtime.NumCPU().
	SinkCount int
}

// Stats describes the manager caches.
type Stats struct {
	SourceEntries    int
	OperationEntries int
	LiveSource       int
	LiveOperation    int
	Epoch            uint64
	Closed           bool
}
