package policy

import (
	"errors"
	"sync/atomic"
	"testing"

	"mercator-hq/saturn/pkg/event"
)

func appendPayload(suffix string) Processor {
	return ProcessorFunc(func(ev *event.Event, done Callback) {
		done(ev.WithPayload(ev.Message().Payload.(string)+suffix), nil)
	})
}

func TestChain_ProcessInOrder(t *testing.T) {
	chain := NewChain([]Processor{appendPayload("a"), appendPayload("b"), appendPayload("c")})

	var got *event.Event
	chain.Process(event.New(nil, event.NewMessage("", nil)), func(result *event.Event, err error) {
		if err != nil {
			t.Fatalf("Process() error = %v, want nil", err)
		}
		got = result
	})

	if got == nil {
		t.Fatal("Process() did not complete")
	}
	if got.Message().Payload != "abc" {
		t.Errorf("payload = %v, want abc", got.Message().Payload)
	}
}

func TestChain_EmptyCompletesWithInput(t *testing.T) {
	ev := event.New(nil, event.NewMessage("x", nil))

	var got *event.Event
	NewChain(nil).Process(ev, func(result *event.Event, err error) { got = result })

	if got != ev {
		t.Error("empty chain did not return its input event")
	}
}

func TestChain_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	var reached atomic.Bool

	chain := NewChain([]Processor{
		appendPayload("a"),
		ProcessorFunc(func(_ *event.Event, done Callback) { done(nil, boom) }),
		ProcessorFunc(func(ev *event.Event, done Callback) {
			reached.Store(true)
			done(ev, nil)
		}),
	})

	var gotErr error
	chain.Process(event.New(nil, event.NewMessage("", nil)), func(_ *event.Event, err error) { gotErr = err })

	if !errors.Is(gotErr, boom) {
		t.Errorf("Process() error = %v, want %v", gotErr, boom)
	}
	if reached.Load() {
		t.Error("processor after the failing one was executed")
	}
}

func TestChain_ErrorHandler(t *testing.T) {
	boom := errors.New("boom")
	failing := ProcessorFunc(func(_ *event.Event, done Callback) { done(nil, boom) })

	tests := []struct {
		name        string
		handler     ErrorHandler
		wantErr     error
		wantPayload any
	}{
		{
			name: "recover",
			handler: func(ev *event.Event, err error) (*event.Event, error) {
				return ev.WithPayload("recovered"), nil
			},
			wantPayload: "recovered",
		},
		{
			name: "rethrow",
			handler: func(ev *event.Event, err error) (*event.Event, error) {
				return nil, errors.Join(errors.New("handled"), err)
			},
			wantErr: boom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := NewChain([]Processor{failing}, WithErrorHandler(tt.handler))

			var got *event.Event
			var gotErr error
			chain.Process(event.New(nil, event.NewMessage("in", nil)), func(result *event.Event, err error) {
				got, gotErr = result, err
			})

			if tt.wantErr != nil {
				if !errors.Is(gotErr, tt.wantErr) {
					t.Errorf("Process() error = %v, want %v", gotErr, tt.wantErr)
				}
				return
			}
			if gotErr != nil {
				t.Fatalf("Process() error = %v, want nil", gotErr)
			}
			if got.Message().Payload != tt.wantPayload {
				t.Errorf("payload = %v, want %v", got.Message().Payload, tt.wantPayload)
			}
		})
	}
}

func TestChain_ProcessingAffinity(t *testing.T) {
	var scheduled atomic.Int32
	executor := ExecutorFunc(func(task func()) {
		scheduled.Add(1)
		task()
	})

	chain := NewChain([]Processor{appendPayload("a")}, WithProcessingAffinity(executor))
	chain.Process(event.New(nil, event.NewMessage("", nil)), func(*event.Event, error) {})

	if got := scheduled.Load(); got != 1 {
		t.Errorf("executor tasks = %d, want 1", got)
	}
}

func TestChain_Defaults(t *testing.T) {
	chain := NewChain(nil)
	if !chain.PropagateMessageTransformations() {
		t.Error("PropagateMessageTransformations() = false, want true by default")
	}

	chain = NewChain(nil, WithMessageTransformationPropagation(false), WithChainName("audit"))
	if chain.PropagateMessageTransformations() {
		t.Error("PropagateMessageTransformations() = true, want false")
	}
	if chain.Name() != "audit" {
		t.Errorf("Name() = %q, want audit", chain.Name())
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("", NewChain(nil)); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("New(empty id) error = %v, want ErrInvalidArgument", err)
	}
	if _, err := New("p", nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("New(nil chain) error = %v, want ErrInvalidArgument", err)
	}
	p, err := New("p", NewChain(nil))
	if err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}
	if ids := IDs([]Policy{p, p}); len(ids) != 2 || ids[0] != "p" {
		t.Errorf("IDs() = %v, want [p p]", ids)
	}
}
