package pointcut

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"mercator-hq/saturn/pkg/policy"
)

var (
	// ErrAmbiguousFactory is returned when more than one factory supports a component.
	ErrAmbiguousFactory = errors.New("more than one pointcut parameters factory supports the component")

	// ErrNotImplemented is returned by optional factory methods a factory
	// does not support.
	ErrNotImplemented = errors.New("not implemented")
)

// SourceFactory creates pointcut parameters for source invocations.
type SourceFactory interface {
	SupportsSourceIdentifier(id policy.ComponentIdentifier) bool
	CreatePolicyPointcutParameters(component policy.Component, attributes map[string]any) (policy.PointcutParameters, error)
}

// OperationFactory creates pointcut parameters for operation invocations.
type OperationFactory interface {
	SupportsOperationIdentifier(id policy.ComponentIdentifier) bool
	CreatePolicyPointcutParameters(component policy.Component, parameters map[string]any) (policy.PointcutParameters, error)
}

// SourceAwareOperationFactory is an OperationFactory that also uses the
// pointcut parameters of the source. Returning ErrNotImplemented falls back to
// CreatePolicyPointcutParameters.
type SourceAwareOperationFactory interface {
	OperationFactory
	CreateSourceAwarePolicyPointcutParameters(component policy.Component, source policy.PointcutParameters, parameters map[string]any) (policy.PointcutParameters, error)
}

// Manager resolves the factory of each component kind and creates its
// parameters. Factory lookups are cached per identifier.
type Manager struct {
	sourceFactories    []SourceFactory
	operationFactories []OperationFactory

	mu              sync.RWMutex
	sourceLookup    map[policy.ComponentIdentifier]SourceFactory
	operationLookup map[policy.ComponentIdentifier]OperationFactory

	logger *slog.Logger
}

// NewManager creates a manager for the given factories.
func NewManager(sourceFactories []SourceFactory, operationFactories []OperationFactory, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sourceFactories:    append([]SourceFactory(nil), sourceFactories...),
		operationFactories: append([]OperationFactory(nil), operationFactories...),
		sourceLookup:       make(map[policy.ComponentIdentifier]SourceFactory),
		operationLookup:    make(map[policy.ComponentIdentifier]OperationFactory),
		logger:             logger,
	}
}

// CreateSourcePointcutParameters creates the parameters of a source invocation.
func (m *Manager) CreateSourcePointcutParameters(component policy.Component, attributes map[string]any) (policy.PointcutParameters, error) {
	factory, err := m.sourceFactory(component.Identifier)
	if err != nil {
		return nil, err
	}
	if factory == nil {
		return policy.NewBasePointcutParameters(component), nil
	}

	params, err := factory.CreatePolicyPointcutParameters(component, attributes)
	if err != nil {
		return nil, fmt.Errorf("create source pointcut parameters for %s: %w", component.Location, err)
	}
	return params, nil
}

// CreateOperationPointcutParameters creates the parameters of an operation
// invocation. source may be nil when the operation does not run on behalf of
// a source.
func (m *Manager) CreateOperationPointcutParameters(component policy.Component, source policy.PointcutParameters, parameters map[string]any) (policy.PointcutParameters, error) {
	factory, err := m.operationFactory(component.Identifier)
	if err != nil {
		return nil, err
	}
	if factory == nil {
		return policy.NewBasePointcutParameters(component), nil
	}

	if aware, ok := factory.(SourceAwareOperationFactory); ok && source != nil {
		params, err := aware.CreateSourceAwarePolicyPointcutParameters(component, source, parameters)
		if err == nil {
			return params, nil
		}
		if !errors.Is(err, ErrNotImplemented) {
			return nil, fmt.Errorf("create operation pointcut parameters for %s: %w", component.Location, err)
		}
	}

	params, err := factory.CreatePolicyPointcutParameters(component, parameters)
	if err != nil {
		return nil, fmt.Errorf("create operation pointcut parameters for %s: %w", component.Location, err)
	}
	return params, nil
}

func (m *Manager) sourceFactory(id policy.ComponentIdentifier) (SourceFactory, error) {
	m.mu.RLock()
	factory, ok := m.sourceLookup[id]
	m.mu.RUnlock()
	if ok {
		return factory, nil
	}

	var matches []SourceFactory
	for _, f := range m.sourceFactories {
		if f.SupportsSourceIdentifier(id) {
			matches = append(matches, f)
		}
	}
	if len(matches) > 1 {
		return nil, fmt.Errorf("%w: %d source factories support %s", ErrAmbiguousFactory, len(matches), id)
	}
	if len(matches) == 1 {
		factory = matches[0]
	}

	m.mu.Lock()
	m.sourceLookup[id] = factory
	m.mu.Unlock()

	return factory, nil
}

func (m *Manager) operationFactory(id policy.ComponentIdentifier) (OperationFactory, error) {
	m.mu.RLock()
	factory, ok := m.operationLookup[id]
	m.mu.RUnlock()
	if ok {
		return factory, nil
	}

	var matches []OperationFactory
	for _, f := range m.operationFactories {
		if f.SupportsOperationIdentifier(id) {
			matches = append(matches, f)
		}
	}
	if len(matches) > 1 {
		return nil, fmt.Errorf("%w: %d operation factories support %s", ErrAmbiguousFactory, len(matches), id)
	}
	if len(matches) == 1 {
		factory = matches[0]
	}

	m.mu.Lock()
	m.operationLookup[id] = factory
	m.mu.Unlock()

	return factory, nil
}
