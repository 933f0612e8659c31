package event

import (
	"context"
	"maps"
)

// Event is an immutable unit of data processed by policies and flows.
type Event struct {
	ctx       *Context
	message   Message
	variables map[string]any
	internal  map[string]any
}

// New creates an event within the given execution context.
func New(ctx *Context, msg Message) *Event {
	if ctx == nil {
		ctx = NewContext(context.Background(), "")
	}
	return &Event{ctx: ctx, message: msg}
}

// Context returns the execution context of the event.
func (e *Event) Context() *Context { return e.ctx }

// ID returns the execution ID of the event's context.
func (e *Event) ID() string { return e.ctx.ID() }

// Message returns the event message.
func (e *Event) Message() Message { return e.message }

// Variable returns a flow variable.
func (e *Event) Variable(name string) (any, bool) {
	v, ok := e.variables[name]
	return v, ok
}

// Variables returns a copy of all flow variables.
func (e *Event) Variables() map[string]any {
	return maps.Clone(e.variables)
}

// InternalParameter returns an engine-reserved parameter.
func (e *Event) InternalParameter(key string) any {
	return e.internal[key]
}

// WithMessage returns a copy of the event carrying msg.
func (e *Event) WithMessage(msg Message) *Event {
	c := *e
	c.message = msg
	return &c
}

// WithPayload returns a copy of the event with a new payload.
func (e *Event) WithPayload(payload any) *Event {
	return e.WithMessage(e.message.WithPayload(payload))
}

// WithVariable returns a copy of the event with the variable set.
func (e *Event) WithVariable(name string, value any) *Event {
	vars := make(map[string]any, len(e.variables)+1)
	maps.Copy(vars, e.variables)
	vars[name] = value

	c := *e
	c.variables = vars
	return &c
}

// WithVariables returns a copy of the event whose variables are replaced by vars.
func (e *Event) WithVariables(vars map[string]any) *Event {
	c := *e
	c.variables = maps.Clone(vars)
	return &c
}

// ClearVariables returns a copy of the event with no variables.
func (e *Event) ClearVariables() *Event {
	c := *e
	c.variables = nil
	return &c
}

// WithInternalParameter returns a copy of the event with an engine parameter set.
func (e *Event) WithInternalParameter(key string, value any) *Event {
	internal := make(map[string]any, len(e.internal)+1)
	maps.Copy(internal, e.internal)
	internal[key] = value

	c := *e
	c.internal = internal
	return &c
}

// WithContext returns a copy of the event bound to another execution context.
func (e *Event) WithContext(ctx *Context) *Event {
	c := *e
	c.ctx = ctx
	return &c
}
