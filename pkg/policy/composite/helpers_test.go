package composite

import (
	"sync"
	"testing"
	"time"

	"mercator-hq/saturn/pkg/event"
	"mercator-hq/saturn/pkg/policy"
	"mercator-hq/saturn/pkg/policy/processor"
	"mercator-hq/saturn/pkg/policy/state"
)

const waitTimeout = 5 * time.Second

// trace records the order in which steps run.
type trace struct {
	mu    sync.Mutex
	steps []string
}

func (tr *trace) add(step string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.steps = append(tr.steps, step)
}

func (tr *trace) get() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.steps...)
}

// tracingPolicy records "<id>:before" and "<id>:after" around ExecuteNext and
// appends its id to the payload on the way in.
func tracingPolicy(t *testing.T, id string, handler *state.Handler, tr *trace) policy.Policy {
	t.Helper()
	chain := policy.NewChain([]policy.Processor{
		policy.ProcessorFunc(func(ev *event.Event, done policy.Callback) {
			tr.add(id + ":before")
			payload, _ := ev.Message().Payload.(string)
			done(ev.WithPayload(payload+id), nil)
		}),
		processor.ExecuteNext(handler),
		policy.ProcessorFunc(func(ev *event.Event, done policy.Callback) {
			tr.add(id + ":after")
			done(ev, nil)
		}),
	})
	p, err := policy.New(id, chain)
	if err != nil {
		t.Fatalf("policy.New(%q) error = %v", id, err)
	}
	return p
}

func failingPolicy(t *testing.T, id string, cause error) policy.Policy {
	t.Helper()
	p, err := policy.New(id, policy.NewChain([]policy.Processor{
		policy.ProcessorFunc(func(_ *event.Event, done policy.Callback) { done(nil, cause) }),
	}))
	if err != nil {
		t.Fatalf("policy.New(%q) error = %v", id, err)
	}
	return p
}

func testOptions(handler *state.Handler, opts ...Option) []Option {
	base := []Option{
		WithProcessorFactory(processor.NewFactory(handler, nil, nil)),
		WithComponent(policy.Component{
			Location:   "orders/source",
			Identifier: policy.ComponentIdentifier{Namespace: "http", Name: "listener"},
		}),
	}
	return append(base, opts...)
}

func newEvent(payload string) *event.Event {
	return event.New(nil, event.NewMessage(payload, nil))
}

// processSource runs one invocation and waits for its result.
func processSource(t *testing.T, sp SourcePolicy, ev *event.Event) SourcePolicyResult {
	t.Helper()
	results := make(chan SourcePolicyResult, 1)
	sp.Process(ev, nil, func(r SourcePolicyResult) { results <- r })
	select {
	case r := <-results:
		return r
	case <-time.After(waitTimeout):
		t.Fatal("source policy did not complete")
		return SourcePolicyResult{}
	}
}

type operationOutcome struct {
	value any
	err   error
}

func processOperation(t *testing.T, op OperationPolicy, ev *event.Event, fn OperationExecutionFunction, params map[string]any) operationOutcome {
	t.Helper()
	results := make(chan operationOutcome, 2)
	op.Process(ev, fn, OperationParametersFunc(func() map[string]any { return params }), "orders/request", ExecutorCallbackFuncs{
		OnComplete: func(v any) { results <- operationOutcome{value: v} },
		OnError:    func(err error) { results <- operationOutcome{err: err} },
	})
	select {
	case r := <-results:
		return r
	case <-time.After(waitTimeout):
		t.Fatal("operation policy did not complete")
		return operationOutcome{}
	}
}

func echoFlow() policy.Processor {
	return policy.ProcessorFunc(func(ev *event.Event, done policy.Callback) { done(ev, nil) })
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
