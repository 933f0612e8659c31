package policy

import "mercator-hq/saturn/pkg/event"

// ErrorHandler handles a failure raised inside a chain.
// Returning a nil error recovers the chain with the returned event.
type ErrorHandler func(ev *event.Event, err error) (*event.Event, error)

// Chain is the ordered list of processors making up a policy.
type Chain struct {
	name         string
	processors   []Processor
	errorHandler ErrorHandler
	affinity     Executor
	propagate    bool
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithChainName sets a descriptive name used in logs.
func WithChainName(name string) ChainOption {
	return func(c *Chain) { c.name = name }
}

// WithErrorHandler installs a handler invoked when a processor fails.
func WithErrorHandler(h ErrorHandler) ChainOption {
	return func(c *Chain) { c.errorHandler = h }
}

// WithProcessingAffinity runs the chain on the given executor.
func WithProcessingAffinity(e Executor) ChainOption {
	return func(c *Chain) { c.affinity = e }
}

// WithMessageTransformationPropagation controls whether message changes made by
// the chain before ExecuteNext are visible to the wrapped step. Defaults to true.
func WithMessageTransformationPropagation(propagate bool) ChainOption {
	return func(c *Chain) { c.propagate = propagate }
}

// NewChain creates a chain running processors in order.
func NewChain(processors []Processor, opts ...ChainOption) *Chain {
	c := &Chain{
		processors: append([]Processor(nil), processors...),
		propagate:  true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the chain name.
func (c *Chain) Name() string { return c.name }

// Len returns the number of processors in the chain.
func (c *Chain) Len() int { return len(c.processors) }

// PropagateMessageTransformations reports whether the wrapped step observes the
// message as transformed by this chain.
func (c *Chain) PropagateMessageTransformations() bool { return c.propagate }

// Process runs the processors in order, feeding each one the result of the
// previous one. The first failure stops the chain and is passed to the error
// handler, if any.
func (c *Chain) Process(ev *event.Event, done Callback) {
	if c.affinity == nil {
		c.processFrom(0, ev, done)
		return
	}
	c.affinity.Execute(func() { c.processFrom(0, ev, done) })
}

func (c *Chain) processFrom(i int, ev *event.Event, done Callback) {
	if i == len(c.processors) {
		done(ev, nil)
		return
	}

	c.processors[i].Process(ev, func(result *event.Event, err error) {
		if err != nil {
			c.handleError(ev, err, done)
			return
		}
		c.processFrom(i+1, result, done)
	})
}

func (c *Chain) handleError(ev *event.Event, err error, done Callback) {
	if c.errorHandler == nil {
		done(nil, err)
		return
	}

	recovered, herr := c.errorHandler(ev, err)
	if herr != nil {
		done(nil, herr)
		return
	}
	done(recovered, nil)
}
