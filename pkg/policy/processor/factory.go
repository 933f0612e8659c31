package processor

import (
	"log/slog"

	"mercator-hq/saturn/pkg/policy"
	"mercator-hq/saturn/pkg/policy/notification"
	"mercator-hq/saturn/pkg/policy/state"
)

// Factory creates the processors applying a policy around the next step.
type Factory interface {
	CreateSourcePolicy(p policy.Policy, next policy.Processor) policy.Processor
	CreateOperationPolicy(p policy.Policy, next policy.Processor) policy.Processor
}

// DefaultFactory creates SourcePolicyProcessor and OperationPolicyProcessor
// instances sharing one state handler and notifier.
type DefaultFactory struct {
	handler  *state.Handler
	notifier *notification.Notifier
	logger   *slog.Logger
}

// NewFactory creates a factory. A nil handler selects state.Default(); a nil
// notifier disables transition notifications.
func NewFactory(handler *state.Handler, notifier *notification.Notifier, logger *slog.Logger) *DefaultFactory {
	if handler == nil {
		handler = state.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		handler:  handler,
		notifier: notifier,
		logger:   logger,
	}
}

// CreateSourcePolicy implements Factory.
func (f *DefaultFactory) CreateSourcePolicy(p policy.Policy, next policy.Processor) policy.Processor {
	return NewSourcePolicyProcessor(p, next, f.handler, f.notifier, f.logger)
}

// CreateOperationPolicy implements Factory.
func (f *DefaultFactory) CreateOperationPolicy(p policy.Policy, next policy.Processor) policy.Processor {
	return NewOperationPolicyProcessor(p, next, f.handler, f.notifier, f.logger)
}
