package provider

import (
	"errors"
	"testing"

	"mercator-hq/saturn/pkg/policy"
	"mercator-hq/saturn/pkg/policy/pointcut"
)

func testPolicy(t *testing.T, id string) policy.Policy {
	t.Helper()
	p, err := policy.New(id, policy.NewChain(nil))
	if err != nil {
		t.Fatalf("policy.New(%q) error = %v", id, err)
	}
	return p
}

func sourceParams(namespace, name string, attrs map[string]string) policy.PointcutParameters {
	component := policy.Component{
		Location:   "flow/source",
		Identifier: policy.ComponentIdentifier{Namespace: namespace, Name: name},
	}
	return pointcut.NewAttributeParameters(component, attrs, nil)
}

func TestSelector_Matches(t *testing.T) {
	tests := []struct {
		name     string
		selector *Selector
		params   policy.PointcutParameters
		want     bool
	}{
		{name: "nil selector", selector: nil, params: sourceParams("http", "listener", nil), want: false},
		{name: "namespace", selector: &Selector{Namespace: "http"}, params: sourceParams("http", "listener", nil), want: true},
		{name: "other namespace", selector: &Selector{Namespace: "jms"}, params: sourceParams("http", "listener", nil), want: false},
		{name: "name", selector: &Selector{Namespace: "http", Name: "listener"}, params: sourceParams("http", "listener", nil), want: true},
		{name: "wildcard name", selector: &Selector{Namespace: "http", Name: "*"}, params: sourceParams("http", "request", nil), want: true},
		{name: "other name", selector: &Selector{Namespace: "http", Name: "request"}, params: sourceParams("http", "listener", nil), want: false},
		{
			name:     "attribute glob",
			selector: &Selector{Namespace: "http", Attributes: map[string]string{"path": "/orders/*"}},
			params:   sourceParams("http", "listener", map[string]string{"path": "/orders/42"}),
			want:     true,
		},
		{
			name:     "attribute mismatch",
			selector: &Selector{Namespace: "http", Attributes: map[string]string{"path": "/orders/*"}},
			params:   sourceParams("http", "listener", map[string]string{"path": "/users/1"}),
			want:     false,
		},
		{
			name:     "attribute missing",
			selector: &Selector{Namespace: "http", Attributes: map[string]string{"path": "*"}},
			params:   sourceParams("http", "listener", nil),
			want:     false,
		},
		{
			name:     "parameters without attributes",
			selector: &Selector{Namespace: "http", Attributes: map[string]string{"path": "*"}},
			params: policy.NewBasePointcutParameters(policy.Component{
				Location:   "flow/source",
				Identifier: policy.ComponentIdentifier{Namespace: "http", Name: "listener"},
			}),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.selector.Matches(tt.params); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegistry_Ordering(t *testing.T) {
	registry := NewRegistry()
	http := &Selector{Namespace: "http"}

	bindings := []Binding{
		{ID: "c", Template: "passthrough", Order: 1, Source: http},
		{ID: "b", Template: "passthrough", Order: 0, Source: http},
		{ID: "a", Template: "passthrough", Order: 1, Source: http},
		{ID: "op", Template: "passthrough", Operation: http},
	}
	policies := make([]policy.Policy, len(bindings))
	for i, b := range bindings {
		policies[i] = testPolicy(t, b.ID)
	}

	if err := registry.Replace(bindings, policies); err != nil {
		t.Fatalf("Replace() error = %v, want nil", err)
	}

	got := policy.IDs(registry.Source(sourceParams("http", "listener", nil)))
	want := []string{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("Source() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Source()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if ops := policy.IDs(registry.Operation(sourceParams("http", "request", nil))); len(ops) != 1 || ops[0] != "op" {
		t.Errorf("Operation() = %v, want [op]", ops)
	}
	if !registry.HasSourcePolicies() || !registry.HasOperationPolicies() {
		t.Error("HasSourcePolicies/HasOperationPolicies = false, want true")
	}
	if registry.Count() != 4 {
		t.Errorf("Count() = %d, want 4", registry.Count())
	}
	if b, ok := registry.Get("a"); !ok || b.Order != 1 {
		t.Errorf("Get(a) = %+v, %v", b, ok)
	}
}

func TestRegistry_Version(t *testing.T) {
	registry := NewRegistry()
	empty := registry.Version()

	bindings := []Binding{{ID: "a", Template: "deny", Source: &Selector{Namespace: "http"}}}
	policies := []policy.Policy{testPolicy(t, "a")}

	if err := registry.Replace(bindings, policies); err != nil {
		t.Fatal(err)
	}
	v1 := registry.Version()
	if v1 == empty {
		t.Error("Version() unchanged after Replace")
	}

	if err := registry.Replace(bindings, policies); err != nil {
		t.Fatal(err)
	}
	if registry.Version() != v1 {
		t.Error("Version() changed for identical bindings")
	}

	changed := []Binding{{ID: "a", Template: "deny", Parameters: map[string]any{"reason": "no"}, Source: &Selector{Namespace: "http"}}}
	if err := registry.Replace(changed, policies); err != nil {
		t.Fatal(err)
	}
	if registry.Version() == v1 {
		t.Error("Version() unchanged after parameters changed")
	}
}

func TestRegistry_ReplaceMismatch(t *testing.T) {
	registry := NewRegistry()

	err := registry.Replace([]Binding{{ID: "a"}}, nil)
	if !errors.Is(err, policy.ErrInvalidArgument) {
		t.Errorf("Replace() error = %v, want ErrInvalidArgument", err)
	}

	err = registry.Replace([]Binding{{ID: "a"}}, []policy.Policy{testPolicy(t, "b")})
	if !errors.Is(err, policy.ErrInvalidArgument) {
		t.Errorf("Replace() error = %v, want ErrInvalidArgument", err)
	}
}
