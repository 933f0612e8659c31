package provider

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/saturn/pkg/policy"
	"mercator-hq/saturn/pkg/policy/templates"
)

func newTestProvider(t *testing.T, path string) *FileProvider {
	t.Helper()
	p, err := NewFileProvider(Config{Path: path, Debounce: 20 * time.Millisecond}, templates.NewCatalog(nil, nil), nil)
	if err != nil {
		t.Fatalf("NewFileProvider() error = %v, want nil", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestNewFileProvider_Errors(t *testing.T) {
	if _, err := NewFileProvider(Config{}, templates.NewCatalog(nil, nil), nil); !errors.Is(err, policy.ErrInvalidArgument) {
		t.Errorf("NewFileProvider(no path) error = %v, want ErrInvalidArgument", err)
	}
	if _, err := NewFileProvider(Config{Path: "p.yaml"}, nil, nil); !errors.Is(err, policy.ErrInvalidArgument) {
		t.Errorf("NewFileProvider(no catalog) error = %v, want ErrInvalidArgument", err)
	}
}

func TestFileProvider_Load(t *testing.T) {
	p := newTestProvider(t, writeBindings(t, validBindings))

	var changes atomic.Int32
	p.OnPoliciesChanged(func() { changes.Add(1) })

	if p.IsSourcePoliciesAvailable() {
		t.Error("IsSourcePoliciesAvailable() = true before Load")
	}

	if err := p.Load(); err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if changes.Load() != 1 {
		t.Errorf("changes = %d, want 1", changes.Load())
	}

	if !p.IsSourcePoliciesAvailable() || !p.IsOperationPoliciesAvailable() {
		t.Error("policies not available after Load")
	}

	src := p.FindSourceParameterizedPolicies(sourceParams("http", "listener", nil))
	if ids := policy.IDs(src); len(ids) != 1 || ids[0] != "deny-delete" {
		t.Errorf("FindSourceParameterizedPolicies() = %v, want [deny-delete]", ids)
	}

	op := p.FindOperationParameterizedPolicies(sourceParams("http", "request", map[string]string{"path": "/orders/1"}))
	if ids := policy.IDs(op); len(ids) != 1 || ids[0] != "tag" {
		t.Errorf("FindOperationParameterizedPolicies() = %v, want [tag]", ids)
	}
	if op[0].Chain.PropagateMessageTransformations() {
		t.Error("tag policy propagates transformations, want false")
	}

	// Unchanged content does not notify.
	if err := p.Load(); err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if changes.Load() != 1 {
		t.Errorf("changes = %d after identical reload, want 1", changes.Load())
	}
}

func TestFileProvider_LoadFailureKeepsPolicies(t *testing.T) {
	path := writeBindings(t, validBindings)
	p := newTestProvider(t, path)

	if err := p.Load(); err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	version := p.Registry().Version()

	invalid := "policies:\n  - id: broken\n    template: missing\n    source:\n      namespace: http\n"
	if err := os.WriteFile(path, []byte(invalid), 0o644); err != nil {
		t.Fatal(err)
	}

	err := p.Load()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Load() error = %v, want *ValidationError", err)
	}
	if p.Registry().Version() != version {
		t.Error("failed reload replaced the policies")
	}
	if p.Registry().Count() != 2 {
		t.Errorf("Count() = %d, want 2", p.Registry().Count())
	}
}

func TestFileProvider_Watch(t *testing.T) {
	path := writeBindings(t, validBindings)
	p := newTestProvider(t, path)
	if err := p.Load(); err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	changed := make(chan struct{}, 1)
	p.OnPoliciesChanged(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- p.Watch(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	updated := "policies:\n  - id: only\n    template: passthrough\n    source:\n      namespace: jms\n"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("policies were not reloaded after the file changed")
	}

	if _, ok := p.Registry().Get("only"); !ok {
		t.Error("reloaded registry does not contain the new policy")
	}
	if p.IsOperationPoliciesAvailable() {
		t.Error("IsOperationPoliciesAvailable() = true after reload without operation bindings")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Watch() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch() did not return after cancel")
	}
}

func TestDebouncer(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)

	var calls atomic.Int32
	var last atomic.Int32
	for i := int32(1); i <= 5; i++ {
		v := i
		d.Trigger(func() {
			calls.Add(1)
			last.Store(v)
		})
	}

	time.Sleep(150 * time.Millisecond)
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	if last.Load() != 5 {
		t.Errorf("last = %d, want 5", last.Load())
	}

	d.Stop()
	d.Trigger(func() { calls.Add(1) })
	time.Sleep(80 * time.Millisecond)
	if calls.Load() != 1 {
		t.Errorf("calls after Stop = %d, want 1", calls.Load())
	}
}
