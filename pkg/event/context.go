package event

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// TerminationCallback is invoked when a Context terminates.
// result is the final event of the execution, err its failure (if any).
type TerminationCallback func(result *Event, err error)

// Context is the lifecycle of one execution.
//
// Child contexts are created for nested executions. Terminating a context
// terminates all of its children first, so callbacks registered on the root
// always run after every nested execution has finished.
type Context struct {
	id            string
	correlationID string
	parent        *Context
	ctx           context.Context

	mu         sync.Mutex
	attributes map[any]any
	callbacks  []TerminationCallback
	children   []*Context
	terminated bool
	result     *Event
	err        error
}

// NewContext creates a root execution context.
// If correlationID is empty the generated execution ID is used.
func NewContext(ctx context.Context, correlationID string) *Context {
	if ctx == nil {
		ctx = context.Background()
	}

	id := uuid.NewString()
	if correlationID == "" {
		correlationID = id
	}

	return &Context{
		id:            id,
		correlationID: correlationID,
		ctx:           ctx,
		attributes:    make(map[any]any),
	}
}

// NewChild creates a nested execution context sharing the correlation ID.
// A child created after the parent terminated is terminated immediately.
func (c *Context) NewChild() *Context {
	child := &Context{
		id:            c.id + "_" + uuid.NewString(),
		correlationID: c.correlationID,
		parent:        c,
		ctx:           c.ctx,
		attributes:    make(map[any]any),
	}

	c.mu.Lock()
	if c.terminated {
		result, err := c.result, c.err
		c.mu.Unlock()
		child.Terminate(result, err)
		return child
	}
	c.children = append(c.children, child)
	c.mu.Unlock()

	return child
}

// ID returns the unique execution ID.
func (c *Context) ID() string { return c.id }

// CorrelationID returns the correlation ID shared by the whole execution tree.
func (c *Context) CorrelationID() string { return c.correlationID }

// Parent returns the parent context, or nil for a root context.
func (c *Context) Parent() *Context { return c.parent }

// Root returns the outermost context of the execution tree.
func (c *Context) Root() *Context {
	root := c
	for root.parent != nil {
		root = root.parent
	}
	return root
}

// Context returns the Go context the execution was started with.
func (c *Context) Context() context.Context { return c.ctx }

// Attribute returns an execution-scoped attribute.
func (c *Context) Attribute(key any) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attributes[key]
}

// SetAttribute stores an execution-scoped attribute.
func (c *Context) SetAttribute(key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attributes[key] = value
}

// LoadOrStoreAttribute returns the existing attribute for key if present.
// Otherwise it stores and returns value. loaded reports whether the value
// was already present.
func (c *Context) LoadOrStoreAttribute(key, value any) (actual any, loaded bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.attributes[key]; ok {
		return existing, true
	}
	c.attributes[key] = value
	return value, false
}

// OnTerminated registers a callback run when the context terminates.
// If the context already terminated the callback runs immediately.
func (c *Context) OnTerminated(cb TerminationCallback) {
	c.mu.Lock()
	if c.terminated {
		result, err := c.result, c.err
		c.mu.Unlock()
		cb(result, err)
		return
	}
	c.callbacks = append(c.callbacks, cb)
	c.mu.Unlock()
}

// Terminate signals the end of the execution. Only the first call has effect.
func (c *Context) Terminate(result *Event, err error) {
	c.mu.Lock()
	if c.terminated {
		c.mu.Unlock()
		return
	}
	c.terminated = true
	c.result = result
	c.err = err
	children := c.children
	callbacks := c.callbacks
	c.children = nil
	c.callbacks = nil
	c.mu.Unlock()

	for _, child := range children {
		child.Terminate(result, err)
	}
	for _, cb := range callbacks {
		cb(result, err)
	}
	if c.parent != nil {
		c.parent.removeChild(c)
	}
}

// removeChild detaches a terminated child so a long-lived parent only keeps
// the children still running.
func (c *Context) removeChild(child *Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, ch := range c.children {
		if ch == child {
			c.children = slices.Delete(c.children, i, i+1)
			return
		}
	}
}

// IsTerminated reports whether Terminate has been called.
func (c *Context) IsTerminated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminated
}
