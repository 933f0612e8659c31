package policy

// ComponentIdentifier names the kind of a component, e.g. {http, listener}.
type ComponentIdentifier struct {
	Namespace string
	Name      string
}

// String returns "namespace:name".
func (id ComponentIdentifier) String() string {
	return id.Namespace + ":" + id.Name
}

// Component is a concrete source or operation in a deployment.
type Component struct {
	// Location uniquely identifies the component, e.g. "orders/source".
	Location string

	// Identifier is the component kind.
	Identifier ComponentIdentifier
}

// PointcutParameters describes a component invocation for the purpose of
// deciding which policies apply to it.
//
// Key must return a stable string such that two parameters describing the
// same applicability return the same key.
type PointcutParameters interface {
	Component() Component
	Key() string
}

// BasePointcutParameters carries only the component. It is used when no
// pointcut parameters factory supports the component.
type BasePointcutParameters struct {
	component Component
}

// NewBasePointcutParameters creates parameters for component.
func NewBasePointcutParameters(component Component) BasePointcutParameters {
	return BasePointcutParameters{component: component}
}

// Component returns the component.
func (p BasePointcutParameters) Component() Component { return p.component }

// Key returns the component location.
func (p BasePointcutParameters) Key() string { return p.component.Location }
