package state

import (
	"log/slog"
	"sync"

	"mercator-hq/saturn/pkg/event"
	"mercator-hq/saturn/pkg/policy"
)

// PolicyStateID identifies the state of one policy within one execution.
type PolicyStateID struct {
	ExecutionID string
	PolicyID    string
}

// Handler stores policy state for in-flight executions. It is safe for
// concurrent use.
type Handler struct {
	mu             sync.Mutex
	states         map[PolicyStateID]*event.Event
	nextOperations map[PolicyStateID]policy.Processor
	byExecution    map[string]map[PolicyStateID]struct{}

	logger *slog.Logger
}

var (
	defaultHandler     *Handler
	defaultHandlerOnce sync.Once
)

// Default returns the process-wide handler.
func Default() *Handler {
	defaultHandlerOnce.Do(func() {
		defaultHandler = NewHandler(nil)
	})
	return defaultHandler
}

// NewHandler creates an empty handler.
func NewHandler(logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		states:         make(map[PolicyStateID]*event.Event),
		nextOperations: make(map[PolicyStateID]policy.Processor),
		byExecution:    make(map[string]map[PolicyStateID]struct{}),
		logger:         logger,
	}
}

// UpdateState records ev as the latest event observed by the policy.
func (h *Handler) UpdateState(id PolicyStateID, ev *event.Event) {
	h.mu.Lock()
	h.states[id] = ev
	first := h.track(id)
	h.mu.Unlock()

	if first {
		h.destroyOnTermination(id.ExecutionID, ev.Context())
	}
}

// GetLatestState returns the latest event recorded for id.
func (h *Handler) GetLatestState(id PolicyStateID) (*event.Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ev, ok := h.states[id]
	return ev, ok
}

// UpdateNextOperation records the step wrapped by the policy. ctx is the
// execution context whose termination releases the entry.
func (h *Handler) UpdateNextOperation(id PolicyStateID, ctx *event.Context, next policy.Processor) {
	h.mu.Lock()
	h.nextOperations[id] = next
	first := h.track(id)
	h.mu.Unlock()

	if first {
		h.destroyOnTermination(id.ExecutionID, ctx)
	}
}

// RetrieveNextOperation returns the step wrapped by the policy, if recorded.
func (h *Handler) RetrieveNextOperation(id PolicyStateID) (policy.Processor, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	next, ok := h.nextOperations[id]
	return next, ok
}

// RemoveNextOperation forgets the step wrapped by the policy.
func (h *Handler) RemoveNextOperation(id PolicyStateID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.nextOperations, id)
}

// DestroyState removes every entry of an execution. It is idempotent.
func (h *Handler) DestroyState(executionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids, ok := h.byExecution[executionID]
	if !ok {
		return
	}
	for id := range ids {
		delete(h.states, id)
		delete(h.nextOperations, id)
	}
	delete(h.byExecution, executionID)

	h.logger.Debug("policy state destroyed",
		"execution_id", executionID,
		"entries", len(ids),
	)
}

// Size returns the number of executions with state.
func (h *Handler) Size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.byExecution)
}

// track indexes id under its execution and reports whether this is the first
// entry of the execution. Must be called with h.mu held.
func (h *Handler) track(id PolicyStateID) bool {
	ids, ok := h.byExecution[id.ExecutionID]
	if !ok {
		ids = make(map[PolicyStateID]struct{})
		h.byExecution[id.ExecutionID] = ids
	}
	ids[id] = struct{}{}
	return !ok
}

// destroyOnTermination releases the execution state when ctx terminates,
// which happens at the latest when its root terminates. It must be called
// without h.mu held: OnTerminated runs the callback inline when the context
// already terminated.
func (h *Handler) destroyOnTermination(executionID string, ctx *event.Context) {
	if ctx == nil {
		return
	}
	ctx.OnTerminated(func(*event.Event, error) {
		h.DestroyState(executionID)
	})
}
