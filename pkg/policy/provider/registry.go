package provider

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
	"time"

	"mercator-hq/saturn/pkg/policy"

	"gopkg.in/yaml.v3"
)

// entry is a binding with the policy built from it.
type entry struct {
	binding Binding
	policy  policy.Policy
}

// Registry is a thread-safe store of the built policies of a bindings file.
// Updates replace the whole set atomically.
type Registry struct {
	mu       sync.RWMutex
	entries  []entry
	byID     map[string]int
	version  string
	loadTime time.Time

	hasSource    bool
	hasOperation bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{byID: make(map[string]int)}
	r.version = hashBindings(nil)
	return r
}

// Replace atomically replaces the policy set. policies[i] must be built from
// bindings[i].
func (r *Registry) Replace(bindings []Binding, policies []policy.Policy) error {
	if len(bindings) != len(policies) {
		return fmt.Errorf("%w: %d bindings for %d policies", policy.ErrInvalidArgument, len(bindings), len(policies))
	}

	entries := make([]entry, len(bindings))
	for i := range bindings {
		if bindings[i].ID != policies[i].ID {
			return fmt.Errorf("%w: binding %q built policy %q", policy.ErrInvalidArgument, bindings[i].ID, policies[i].ID)
		}
		entries[i] = entry{binding: bindings[i], policy: policies[i]}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].binding.Order != entries[j].binding.Order {
			return entries[i].binding.Order < entries[j].binding.Order
		}
		return entries[i].binding.ID < entries[j].binding.ID
	})

	byID := make(map[string]int, len(entries))
	var hasSource, hasOperation bool
	for i, e := range entries {
		byID[e.binding.ID] = i
		hasSource = hasSource || e.binding.Source != nil
		hasOperation = hasOperation || e.binding.Operation != nil
	}
	version := hashBindings(bindings)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = entries
	r.byID = byID
	r.hasSource = hasSource
	r.hasOperation = hasOperation
	r.version = version
	r.loadTime = time.Now()
	return nil
}

// Source returns the ordered policies whose source selector matches params.
func (r *Registry) Source(params policy.PointcutParameters) []policy.Policy {
	return r.match(func(b Binding) *Selector { return b.Source }, params)
}

// Operation returns the ordered policies whose operation selector matches params.
func (r *Registry) Operation(params policy.PointcutParameters) []policy.Policy {
	return r.match(func(b Binding) *Selector { return b.Operation }, params)
}

func (r *Registry) match(selector func(Binding) *Selector, params policy.PointcutParameters) []policy.Policy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []policy.Policy
	for _, e := range r.entries {
		if selector(e.binding).Matches(params) {
			matched = append(matched, e.policy)
		}
	}
	return matched
}

// HasSourcePolicies reports whether any binding selects sources.
func (r *Registry) HasSourcePolicies() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hasSource
}

// HasOperationPolicies reports whether any binding selects operations.
func (r *Registry) HasOperationPolicies() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hasOperation
}

// Get returns the binding with the given id.
func (r *Registry) Get(id string) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.byID[id]
	if !ok {
		return Binding{}, false
	}
	return r.entries[i].binding, true
}

// Bindings returns the bindings in application order.
func (r *Registry) Bindings() []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bindings := make([]Binding, len(r.entries))
	for i, e := range r.entries {
		bindings[i] = e.binding
	}
	return bindings
}

// Count returns the number of policies.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Version returns a digest of the bindings. It changes whenever the
// content of the policy set does.
func (r *Registry) Version() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// LoadTime returns when the policy set was last replaced.
func (r *Registry) LoadTime() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadTime
}

// hashBindings digests bindings in file order. yaml.v3 encodes maps with
// sorted keys, so equal bindings hash equally.
func hashBindings(bindings []Binding) string {
	h := sha256.New()
	for _, b := range bindings {
		data, err := yaml.Marshal(b)
		if err != nil {
			fmt.Fprintf(h, "%s\x00%s\x00%d\x00%v", b.ID, b.Template, b.Order, b.Parameters)
			continue
		}
		h.Write(data)
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}
