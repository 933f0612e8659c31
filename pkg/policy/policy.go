package policy

import (
	"fmt"
	"strings"
)

// Policy is a named chain applied around a source or operation.
// Policies are immutable after construction and compared by ID and chain identity.
type Policy struct {
	// ID uniquely identifies the policy among the policies of a deployment.
	ID string

	// Chain is the processing logic of the policy.
	Chain *Chain
}

// New creates a policy. It fails with ErrInvalidArgument if id is empty or chain is nil.
func New(id string, chain *Chain) (Policy, error) {
	if strings.TrimSpace(id) == "" {
		return Policy{}, fmt.Errorf("%w: policy id cannot be empty", ErrInvalidArgument)
	}
	if chain == nil {
		return Policy{}, fmt.Errorf("%w: policy %q has no chain", ErrInvalidArgument, id)
	}
	return Policy{ID: id, Chain: chain}, nil
}

// IDs returns the ordered IDs of policies.
func IDs(policies []Policy) []string {
	ids := make([]string, len(policies))
	for i, p := range policies {
		ids[i] = p.ID
	}
	return ids
}
