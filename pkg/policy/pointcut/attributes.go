package pointcut

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"mercator-hq/saturn/pkg/policy"
)

// AttributeParameters are pointcut parameters made of selected string
// attributes of the invocation.
type AttributeParameters struct {
	component  policy.Component
	attributes map[string]string
	source     policy.PointcutParameters
	key        string
}

// NewAttributeParameters creates parameters for component. source may be nil.
func NewAttributeParameters(component policy.Component, attributes map[string]string, source policy.PointcutParameters) *AttributeParameters {
	p := &AttributeParameters{
		component:  component,
		attributes: maps.Clone(attributes),
		source:     source,
	}
	p.key = p.buildKey()
	return p
}

// Component returns the component.
func (p *AttributeParameters) Component() policy.Component { return p.component }

// Attribute returns a selected attribute.
func (p *AttributeParameters) Attribute(name string) (string, bool) {
	v, ok := p.attributes[name]
	return v, ok
}

// Attributes returns a copy of the selected attributes.
func (p *AttributeParameters) Attributes() map[string]string {
	return maps.Clone(p.attributes)
}

// Source returns the parameters of the source the operation runs for, if any.
func (p *AttributeParameters) Source() policy.PointcutParameters { return p.source }

// Key returns the location followed by the attributes sorted by name.
func (p *AttributeParameters) Key() string { return p.key }

func (p *AttributeParameters) buildKey() string {
	var sb strings.Builder
	sb.WriteString(p.component.Location)
	for _, name := range slices.Sorted(maps.Keys(p.attributes)) {
		sb.WriteString("|")
		sb.WriteString(name)
		sb.WriteString("=")
		sb.WriteString(p.attributes[name])
	}
	if p.source != nil {
		sb.WriteString("|source=")
		sb.WriteString(p.source.Key())
	}
	return sb.String()
}

// AttributeFactory creates AttributeParameters for the components of one
// namespace, keeping only the configured attribute names.
type AttributeFactory struct {
	namespace string
	names     []string
}

// NewAttributeFactory creates a factory for components of namespace.
func NewAttributeFactory(namespace string, names ...string) *AttributeFactory {
	return &AttributeFactory{
		namespace: namespace,
		names:     append([]string(nil), names...),
	}
}

// SupportsSourceIdentifier implements SourceFactory.
func (f *AttributeFactory) SupportsSourceIdentifier(id policy.ComponentIdentifier) bool {
	return id.Namespace == f.namespace
}

// SupportsOperationIdentifier implements OperationFactory.
func (f *AttributeFactory) SupportsOperationIdentifier(id policy.ComponentIdentifier) bool {
	return id.Namespace == f.namespace
}

// CreatePolicyPointcutParameters implements SourceFactory and OperationFactory.
func (f *AttributeFactory) CreatePolicyPointcutParameters(component policy.Component, values map[string]any) (policy.PointcutParameters, error) {
	return NewAttributeParameters(component, f.selectAttributes(values), nil), nil
}

// CreateSourceAwarePolicyPointcutParameters implements SourceAwareOperationFactory.
func (f *AttributeFactory) CreateSourceAwarePolicyPointcutParameters(component policy.Component, source policy.PointcutParameters, values map[string]any) (policy.PointcutParameters, error) {
	return NewAttributeParameters(component, f.selectAttributes(values), source), nil
}

func (f *AttributeFactory) selectAttributes(values map[string]any) map[string]string {
	selected := make(map[string]string, len(f.names))
	for _, name := range f.names {
		if v, ok := values[name]; ok && v != nil {
			selected[name] = fmt.Sprint(v)
		}
	}
	return selected
}
