package provider

import (
	"path"

	"mercator-hq/saturn/pkg/policy"
)

// attributeSource is implemented by pointcut parameters carrying attributes,
// such as pointcut.AttributeParameters.
type attributeSource interface {
	Attribute(name string) (string, bool)
}

// Matches reports whether the selector applies to params.
func (s *Selector) Matches(params policy.PointcutParameters) bool {
	if s == nil || params == nil {
		return false
	}

	id := params.Component().Identifier
	if id.Namespace != s.Namespace {
		return false
	}
	if s.Name != "" && s.Name != "*" && s.Name != id.Name {
		return false
	}
	if len(s.Attributes) == 0 {
		return true
	}

	attrs, ok := params.(attributeSource)
	if !ok {
		return false
	}
	for name, pattern := range s.Attributes {
		v, ok := attrs.Attribute(name)
		if !ok {
			return false
		}
		if matched, err := path.Match(pattern, v); err != nil || !matched {
			return false
		}
	}
	return true
}
