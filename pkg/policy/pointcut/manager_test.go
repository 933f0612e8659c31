package pointcut

import (
	"errors"
	"testing"

	"mercator-hq/saturn/pkg/policy"
)

var (
	listener = policy.Component{
		Location:   "orders/source",
		Identifier: policy.ComponentIdentifier{Namespace: "http", Name: "listener"},
	}
	request = policy.Component{
		Location:   "orders/request",
		Identifier: policy.ComponentIdentifier{Namespace: "http", Name: "request"},
	}
	scheduler = policy.Component{
		Location:   "jobs/source",
		Identifier: policy.ComponentIdentifier{Namespace: "scheduler", Name: "fixed"},
	}
)

type legacyOperationFactory struct {
	calls int
}

func (f *legacyOperationFactory) SupportsOperationIdentifier(policy.ComponentIdentifier) bool {
	return true
}

func (f *legacyOperationFactory) CreatePolicyPointcutParameters(component policy.Component, _ map[string]any) (policy.PointcutParameters, error) {
	f.calls++
	return policy.NewBasePointcutParameters(component), nil
}

func (f *legacyOperationFactory) CreateSourceAwarePolicyPointcutParameters(policy.Component, policy.PointcutParameters, map[string]any) (policy.PointcutParameters, error) {
	return nil, ErrNotImplemented
}

func TestManager_SourceParameters(t *testing.T) {
	m := NewManager([]SourceFactory{NewAttributeFactory("http", "path", "method")}, nil, nil)

	tests := []struct {
		name      string
		component policy.Component
		attrs     map[string]any
		wantKey   string
	}{
		{
			name:      "supported",
			component: listener,
			attrs:     map[string]any{"path": "/orders", "method": "POST", "ignored": "x"},
			wantKey:   "orders/source|method=POST|path=/orders",
		},
		{
			name:      "fallback",
			component: scheduler,
			attrs:     map[string]any{"path": "/orders"},
			wantKey:   "jobs/source",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := m.CreateSourcePointcutParameters(tt.component, tt.attrs)
			if err != nil {
				t.Fatalf("CreateSourcePointcutParameters() error = %v, want nil", err)
			}
			if params.Key() != tt.wantKey {
				t.Errorf("Key() = %q, want %q", params.Key(), tt.wantKey)
			}
			if params.Component() != tt.component {
				t.Errorf("Component() = %v, want %v", params.Component(), tt.component)
			}
		})
	}
}

func TestManager_AmbiguousFactory(t *testing.T) {
	m := NewManager(
		[]SourceFactory{NewAttributeFactory("http", "path"), NewAttributeFactory("http", "method")},
		[]OperationFactory{NewAttributeFactory("http"), NewAttributeFactory("http")},
		nil,
	)

	if _, err := m.CreateSourcePointcutParameters(listener, nil); !errors.Is(err, ErrAmbiguousFactory) {
		t.Errorf("CreateSourcePointcutParameters() error = %v, want ErrAmbiguousFactory", err)
	}
	if _, err := m.CreateOperationPointcutParameters(request, nil, nil); !errors.Is(err, ErrAmbiguousFactory) {
		t.Errorf("CreateOperationPointcutParameters() error = %v, want ErrAmbiguousFactory", err)
	}
	if _, err := m.CreateSourcePointcutParameters(scheduler, nil); err != nil {
		t.Errorf("CreateSourcePointcutParameters(unclaimed) error = %v, want nil", err)
	}
}

func TestManager_OperationParameters(t *testing.T) {
	m := NewManager(nil, []OperationFactory{NewAttributeFactory("http", "host")}, nil)
	source := NewAttributeParameters(listener, map[string]string{"path": "/orders"}, nil)

	params, err := m.CreateOperationPointcutParameters(request, source, map[string]any{"host": "billing"})
	if err != nil {
		t.Fatalf("CreateOperationPointcutParameters() error = %v, want nil", err)
	}

	ap, ok := params.(*AttributeParameters)
	if !ok {
		t.Fatalf("parameters = %T, want *AttributeParameters", params)
	}
	if ap.Source() != source {
		t.Error("source-aware factory did not receive the source parameters")
	}
	if v, _ := ap.Attribute("host"); v != "billing" {
		t.Errorf("Attribute(host) = %q, want billing", v)
	}
	if want := "orders/request|host=billing|source=orders/source|path=/orders"; ap.Key() != want {
		t.Errorf("Key() = %q, want %q", ap.Key(), want)
	}
}

func TestManager_SourceAwareFallback(t *testing.T) {
	legacy := &legacyOperationFactory{}
	m := NewManager(nil, []OperationFactory{legacy}, nil)

	params, err := m.CreateOperationPointcutParameters(request, policy.NewBasePointcutParameters(listener), nil)
	if err != nil {
		t.Fatalf("CreateOperationPointcutParameters() error = %v, want nil", err)
	}
	if legacy.calls != 1 {
		t.Errorf("two-argument factory calls = %d, want 1", legacy.calls)
	}
	if params.Key() != request.Location {
		t.Errorf("Key() = %q, want %q", params.Key(), request.Location)
	}
}

func TestAttributeParameters_KeyIsOrderIndependent(t *testing.T) {
	a := NewAttributeParameters(listener, map[string]string{"a": "1", "b": "2", "c": "3"}, nil)
	b := NewAttributeParameters(listener, map[string]string{"c": "3", "a": "1", "b": "2"}, nil)

	if a.Key() != b.Key() {
		t.Errorf("Key() differs for equal attributes: %q vs %q", a.Key(), b.Key())
	}
}
