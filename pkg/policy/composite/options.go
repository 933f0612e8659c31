package composite

import (
	"log/slog"
	"runtime"

	"mercator-hq/saturn/pkg/policy"
	"mercator-hq/saturn/pkg/policy/processor"
)

// Option configures a composite policy.
type Option func(*options)

type options struct {
	factory     processor.Factory
	sinkCount   int
	params      policy.PointcutParameters
	component   policy.Component
	transformer OperationParametersTransformer
	onDisposed  func()
	logger      *slog.Logger
}

func newOptions(opts []Option) *options {
	o := &options{
		sinkCount: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.factory == nil {
		o.factory = processor.NewFactory(nil, nil, o.logger)
	}
	if o.sinkCount <= 0 {
		o.sinkCount = runtime.NumCPU()
	}
	if o.component.Location == "" && o.params != nil {
		o.component = o.params.Component()
	}
	return o
}

// WithProcessorFactory sets the factory creating policy processors.
// Defaults to a processor.DefaultFactory using state.Default().
func WithProcessorFactory(f processor.Factory) Option {
	return func(o *options) { o.factory = f }
}

// WithSinkCount sets the number of sinks. Defaults to runtime.NumCPU().
func WithSinkCount(n int) Option {
	return func(o *options) { o.sinkCount = n }
}

// WithPointcutParameters sets the parameters the policies were resolved for.
func WithPointcutParameters(p policy.PointcutParameters) Option {
	return func(o *options) { o.params = p }
}

// WithComponent sets the component the composite is applied to.
func WithComponent(c policy.Component) Option {
	return func(o *options) { o.component = c }
}

// WithParametersTransformer sets the transformer between operation
// parameters and messages. Only used by operation policies.
func WithParametersTransformer(t OperationParametersTransformer) Option {
	return func(o *options) { o.transformer = t }
}

// WithOnDisposed registers a function called once the composite is
// actually disposed.
func WithOnDisposed(fn func()) Option {
	return func(o *options) { o.onDisposed = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}
