package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/saturn/pkg/event"
	"mercator-hq/saturn/pkg/policy"
	"mercator-hq/saturn/pkg/policy/composite"
	"mercator-hq/saturn/pkg/policy/notification"
)

// DefaultSimulationTimeout bounds a simulation without an explicit timeout.
const DefaultSimulationTimeout = 10 * time.Second

// Simulation describes one event driven through the policies of a source
// and, optionally, of an operation invoked by the flow.
type Simulation struct {
	Source     policy.Component
	Attributes map[string]any
	Payload    any

	// Operation is invoked by the flow when set. The operation echoes its
	// input event.
	Operation  *policy.Component
	Parameters map[string]any

	Timeout time.Duration
}

// SimulationResult is the outcome of a simulation.
type SimulationResult struct {
	CorrelationID     string                    `json:"correlation_id"`
	SourcePolicies    []string                  `json:"source_policies"`
	OperationPolicies []string                  `json:"operation_policies,omitempty"`
	Payload           any                       `json:"payload,omitempty"`
	Attributes        map[string]any            `json:"attributes,omitempty"`
	Variables         map[string]any            `json:"variables,omitempty"`
	Error             string                    `json:"error,omitempty"`
	Stage             string                    `json:"stage,omitempty"`
	Transitions       []notification.Transition `json:"-"`
	Duration          time.Duration             `json:"duration"`
}

// Simulate runs sim and returns the resulting event and the policy
// transitions it went through.
func (e *Engine) Simulate(ctx context.Context, sim Simulation) (*SimulationResult, error) {
	timeout := sim.Timeout
	if timeout <= 0 {
		timeout = DefaultSimulationTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	correlationID := uuid.NewString()
	e.capture.start(correlationID)
	defer e.capture.stop(correlationID)

	ev := event.New(event.NewContext(ctx, correlationID), event.NewMessage(sim.Payload, sim.Attributes))
	out := &SimulationResult{CorrelationID: correlationID}
	start := time.Now()

	inst, err := e.manager.CreateSourcePolicyInstance(sim.Source, ev, e.simulationFlow(sim, out), nil)
	if err != nil {
		return nil, err
	}
	defer inst.Dispose()
	out.SourcePolicies = appliedPolicies(inst.Policy())

	results := make(chan composite.SourcePolicyResult, 1)
	inst.Process(ev, func(r composite.SourcePolicyResult) { results <- r })

	select {
	case r := <-results:
		if r.IsSuccess() {
			ev.Context().Terminate(r.Success.Result, nil)
			msg := r.Success.Result.Message()
			out.Payload = msg.Payload
			out.Attributes = msg.Attributes
			out.Variables = r.Success.Result.Variables()
		} else {
			ev.Context().Terminate(r.Failure.Err.Event, r.Failure.Err)
			out.Error = r.Failure.Err.Error()
			out.Stage = string(r.Failure.Err.Stage)
		}
	case <-ctx.Done():
		ev.Context().Terminate(nil, ctx.Err())
		return nil, fmt.Errorf("simulation did not complete: %w", ctx.Err())
	}

	out.Duration = since(start)
	out.Transitions = e.capture.stop(correlationID)
	return out, nil
}

func (e *Engine) simulationFlow(sim Simulation, out *SimulationResult) policy.Processor {
	if sim.Operation == nil {
		return policy.ProcessorFunc(func(ev *event.Event, done policy.Callback) {
			done(ev, nil)
		})
	}

	component := *sim.Operation
	echo := func(parameters map[string]any, ev *event.Event, cb composite.ExecutorCallback) {
		cb.Complete(ev.Message().WithAttribute("operation", component.Location))
	}

	return policy.ProcessorFunc(func(ev *event.Event, done policy.Callback) {
		op, err := e.manager.CreateOperationPolicy(component, ev, sim.Parameters)
		if err != nil {
			done(nil, err)
			return
		}
		out.OperationPolicies = appliedPolicies(op.Policy())

		op.Process(ev, echo, composite.ExecutorCallbackFuncs{
			OnComplete: func(value any) {
				op.Dispose()
				result, ok := value.(*event.Event)
				if !ok {
					result = ev.WithPayload(value)
				}
				done(result, nil)
			},
			OnError: func(err error) {
				op.Dispose()
				done(nil, err)
			},
		})
	})
}

// appliedPolicies returns the IDs of the policies a composite runs. Pass
// through policies apply none.
func appliedPolicies(p any) []string {
	c, ok := p.(interface{ Policies() []policy.Policy })
	if !ok {
		return []string{}
	}
	return policy.IDs(c.Policies())
}

// captureListener keeps the transitions of the executions being simulated,
// keyed by correlation ID.
type captureListener struct {
	mu          sync.Mutex
	transitions map[string][]notification.Transition
}

func newCaptureListener() *captureListener {
	return &captureListener{transitions: make(map[string][]notification.Transition)}
}

func (c *captureListener) start(correlationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transitions[correlationID] = nil
}

func (c *captureListener) stop(correlationID string) []notification.Transition {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.transitions[correlationID]
	delete(c.transitions, correlationID)
	return t
}

// OnPolicyTransition implements notification.Listener.
func (c *captureListener) OnPolicyTransition(t notification.Transition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if list, ok := c.transitions[t.CorrelationID]; ok {
		c.transitions[t.CorrelationID] = append(list, t)
	}
}
