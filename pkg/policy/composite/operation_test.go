package composite

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/saturn/pkg/event"
	"mercator-hq/saturn/pkg/policy"
	"mercator-hq/saturn/pkg/policy/state"
)

func TestCompositeOperationPolicy_Process(t *testing.T) {
	handler := state.NewHandler(nil)
	tr := &trace{}
	c, err := NewCompositeOperationPolicy(
		[]policy.Policy{tracingPolicy(t, "a", handler, tr), tracingPolicy(t, "b", handler, tr)},
		testOptions(handler)...,
	)
	if err != nil {
		t.Fatalf("NewCompositeOperationPolicy() error = %v, want nil", err)
	}
	defer c.Dispose()

	var gotParams map[string]any
	var gotPayload any
	fn := func(params map[string]any, ev *event.Event, cb ExecutorCallback) {
		tr.add("operation")
		gotParams = params
		gotPayload = ev.Message().Payload
		cb.Complete("done")
	}

	ev := newEvent("")
	out := processOperation(t, c, ev, fn, map[string]any{"path": "/orders"})
	if out.err != nil {
		t.Fatalf("Process() error = %v, want nil", out.err)
	}

	result, ok := out.value.(*event.Event)
	if !ok {
		t.Fatalf("Complete() value = %T, want *event.Event", out.value)
	}
	if result.Message().Payload != "done" {
		t.Errorf("result payload = %v, want done", result.Message().Payload)
	}
	if result.Context() != ev.Context() {
		t.Error("result is not bound to the caller's execution context")
	}
	if gotPayload != "ab" {
		t.Errorf("operation payload = %v, want ab", gotPayload)
	}
	if gotParams["path"] != "/orders" {
		t.Errorf("operation parameters = %v, want path=/orders", gotParams)
	}

	want := []string{"a:before", "b:before", "operation", "b:after", "a:after"}
	got := tr.get()
	if len(got) != len(want) {
		t.Fatalf("execution order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("execution order = %v, want %v", got, want)
		}
	}

	if handler.Size() != 0 {
		t.Errorf("state handler Size() = %d after the invocation completed, want 0", handler.Size())
	}
}

func TestCompositeOperationPolicy_CompleteValues(t *testing.T) {
	handler := state.NewHandler(nil)
	c, err := NewCompositeOperationPolicy([]policy.Policy{tracingPolicy(t, "a", handler, &trace{})}, testOptions(handler)...)
	if err != nil {
		t.Fatalf("NewCompositeOperationPolicy() error = %v, want nil", err)
	}
	defer c.Dispose()

	tests := []struct {
		name  string
		value func(ev *event.Event) any
		want  any
	}{
		{name: "payload", value: func(*event.Event) any { return 42 }, want: 42},
		{name: "message", value: func(*event.Event) any { return event.NewMessage("msg", nil) }, want: "msg"},
		{name: "event", value: func(ev *event.Event) any { return ev.WithPayload("event") }, want: "event"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := processOperation(t, c, newEvent(""), func(_ map[string]any, ev *event.Event, cb ExecutorCallback) {
				cb.Complete(tt.value(ev))
			}, nil)
			if out.err != nil {
				t.Fatalf("Process() error = %v, want nil", out.err)
			}
			if got := out.value.(*event.Event).Message().Payload; got != tt.want {
				t.Errorf("payload = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompositeOperationPolicy_Failure(t *testing.T) {
	handler := state.NewHandler(nil)
	c, err := NewCompositeOperationPolicy([]policy.Policy{tracingPolicy(t, "a", handler, &trace{})}, testOptions(handler)...)
	if err != nil {
		t.Fatalf("NewCompositeOperationPolicy() error = %v, want nil", err)
	}
	defer c.Dispose()

	cause := errors.New("connection refused")
	var operationEvent *event.Event
	var octx *OperationPolicyContext

	out := processOperation(t, c, newEvent(""), func(_ map[string]any, ev *event.Event, cb ExecutorCallback) {
		operationEvent = ev
		octx, _ = OperationPolicyContextFrom(ev)
		cb.Error(cause)
	}, nil)

	me, ok := policy.AsMessagingError(out.err)
	if !ok {
		t.Fatalf("Process() error = %T, want *policy.MessagingError", out.err)
	}
	if me.Stage != policy.StageOperation {
		t.Errorf("Stage = %q, want %q", me.Stage, policy.StageOperation)
	}
	if !errors.Is(me, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if me.Event != operationEvent {
		t.Error("failure does not carry the event passed to the operation")
	}
	if me.Location != "orders/request" {
		t.Errorf("Location = %q, want orders/request", me.Location)
	}
	if octx == nil || octx.OperationEvent() != operationEvent {
		t.Error("operation context does not record the operation event")
	}
	if octx != nil && octx.executionFunction() != nil {
		t.Error("execution function not released after completion")
	}
}

func TestCompositeOperationPolicy_SignalsOnce(t *testing.T) {
	handler := state.NewHandler(nil)
	c, err := NewCompositeOperationPolicy([]policy.Policy{tracingPolicy(t, "a", handler, &trace{})}, testOptions(handler)...)
	if err != nil {
		t.Fatalf("NewCompositeOperationPolicy() error = %v, want nil", err)
	}
	defer c.Dispose()

	results := make(chan operationOutcome, 4)
	c.Process(newEvent(""), func(_ map[string]any, _ *event.Event, cb ExecutorCallback) {
		cb.Complete("first")
		cb.Error(errors.New("late"))
		cb.Complete("second")
	}, nil, "", ExecutorCallbackFuncs{
		OnComplete: func(v any) { results <- operationOutcome{value: v} },
		OnError:    func(err error) { results <- operationOutcome{err: err} },
	})

	first := <-results
	if first.err != nil || first.value.(*event.Event).Message().Payload != "first" {
		t.Errorf("first signal = %+v, want completion with first", first)
	}

	select {
	case extra := <-results:
		t.Errorf("received extra signal %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

type bodyTransformer struct{}

func (bodyTransformer) FromParametersToMessage(params map[string]any) event.Message {
	return event.NewMessage(params["body"], nil)
}

func (bodyTransformer) FromMessageToParameters(msg event.Message) map[string]any {
	return map[string]any{"body": msg.Payload}
}

func TestCompositeOperationPolicy_ParametersTransformer(t *testing.T) {
	handler := state.NewHandler(nil)
	c, err := NewCompositeOperationPolicy(
		[]policy.Policy{tracingPolicy(t, "-signed", handler, &trace{})},
		testOptions(handler, WithParametersTransformer(bodyTransformer{}))...,
	)
	if err != nil {
		t.Fatalf("NewCompositeOperationPolicy() error = %v, want nil", err)
	}
	defer c.Dispose()

	var gotBody any
	out := processOperation(t, c, newEvent("ignored"), func(params map[string]any, _ *event.Event, cb ExecutorCallback) {
		gotBody = params["body"]
		cb.Complete(nil)
	}, map[string]any{"body": "payload"})
	if out.err != nil {
		t.Fatalf("Process() error = %v, want nil", out.err)
	}
	if gotBody != "payload-signed" {
		t.Errorf("operation body = %v, want payload-signed", gotBody)
	}
}

func TestCompositeOperationPolicy_ConcurrentBlockingOperations(t *testing.T) {
	handler := state.NewHandler(nil)
	c, err := NewCompositeOperationPolicy(
		[]policy.Policy{tracingPolicy(t, "a", handler, &trace{})},
		testOptions(handler, WithSinkCount(1))...,
	)
	if err != nil {
		t.Fatalf("NewCompositeOperationPolicy() error = %v, want nil", err)
	}
	defer c.Dispose()

	release := make(chan struct{})
	var releaseOnce sync.Once
	unblock := func() { releaseOnce.Do(func() { close(release) }) }
	defer unblock()

	var running atomic.Int32
	fn := func(_ map[string]any, _ *event.Event, cb ExecutorCallback) {
		running.Add(1)
		<-release
		cb.Complete("done")
	}

	const n = 3
	results := make(chan operationOutcome, n)
	for i := 0; i < n; i++ {
		go c.Process(newEvent(""), fn, nil, "orders/request", ExecutorCallbackFuncs{
			OnComplete: func(v any) { results <- operationOutcome{value: v} },
			OnError:    func(err error) { results <- operationOutcome{err: err} },
		})
	}

	waitFor(t, func() bool { return running.Load() == n }, "all operations to start")
	unblock()

	for i := 0; i < n; i++ {
		select {
		case out := <-results:
			if out.err != nil {
				t.Errorf("Process() error = %v, want nil", out.err)
			}
		case <-time.After(waitTimeout):
			t.Fatal("operation policy did not complete")
		}
	}
}

func TestCompositeOperationPolicy_ReentrantProcess(t *testing.T) {
	handler := state.NewHandler(nil)
	c, err := NewCompositeOperationPolicy(
		[]policy.Policy{tracingPolicy(t, "a", handler, &trace{})},
		testOptions(handler, WithSinkCount(1))...,
	)
	if err != nil {
		t.Fatalf("NewCompositeOperationPolicy() error = %v, want nil", err)
	}
	defer c.Dispose()

	inner := func(_ map[string]any, _ *event.Event, cb ExecutorCallback) {
		cb.Complete("inner")
	}
	outer := func(_ map[string]any, _ *event.Event, cb ExecutorCallback) {
		out := processOperation(t, c, newEvent(""), inner, nil)
		if out.err != nil {
			cb.Error(out.err)
			return
		}
		cb.Complete(out.value.(*event.Event).Message().Payload)
	}

	out := processOperation(t, c, newEvent(""), outer, nil)
	if out.err != nil {
		t.Fatalf("Process() error = %v, want nil", out.err)
	}
	result, ok := out.value.(*event.Event)
	if !ok {
		t.Fatalf("Complete() value = %T, want *event.Event", out.value)
	}
	if result.Message().Payload != "inner" {
		t.Errorf("result payload = %v, want inner", result.Message().Payload)
	}
	if got := c.Stats().PipelinesBuilt; got != 1 {
		t.Errorf("PipelinesBuilt = %d, want 1", got)
	}
}

func TestCompositeOperationPolicy_Disposed(t *testing.T) {
	handler := state.NewHandler(nil)
	c, err := NewCompositeOperationPolicy([]policy.Policy{tracingPolicy(t, "a", handler, &trace{})}, testOptions(handler)...)
	if err != nil {
		t.Fatalf("NewCompositeOperationPolicy() error = %v, want nil", err)
	}
	c.Dispose()

	called := false
	out := processOperation(t, c, newEvent(""), func(_ map[string]any, _ *event.Event, cb ExecutorCallback) {
		called = true
		cb.Complete(nil)
	}, nil)

	if !errors.Is(out.err, ErrDisposed) {
		t.Errorf("Process() error = %v, want ErrDisposed", out.err)
	}
	if called {
		t.Error("operation executed on a disposed composite")
	}
}

func TestNoOperationPolicy(t *testing.T) {
	cause := errors.New("boom")
	op := NewNoOperationPolicy(nil)

	out := processOperation(t, op, newEvent(""), func(params map[string]any, _ *event.Event, cb ExecutorCallback) {
		cb.Complete(params["k"])
	}, map[string]any{"k": "v"})
	if out.err != nil || out.value.(*event.Event).Message().Payload != "v" {
		t.Errorf("pass-through outcome = %+v, want payload v", out)
	}

	out = processOperation(t, op, newEvent(""), func(_ map[string]any, _ *event.Event, cb ExecutorCallback) {
		cb.Error(cause)
	}, nil)
	me, ok := policy.AsMessagingError(out.err)
	if !ok || me.Stage != policy.StageOperation || !errors.Is(me, cause) {
		t.Errorf("pass-through error = %v, want operation stage wrapping cause", out.err)
	}
}
