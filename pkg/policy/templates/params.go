package templates

import (
	"fmt"
	"time"
)

// Parameters are the template parameters of a policy binding.
type Parameters map[string]any

// params reads Parameters for one template, recording the first error.
type params struct {
	template string
	values   Parameters
	err      error
}

func (p *params) fail(name, format string, args ...any) {
	if p.err == nil {
		p.err = &ParameterError{Template: p.template, Parameter: name, Message: fmt.Sprintf(format, args...)}
	}
}

func (p *params) value(name string) (any, bool) {
	v, ok := p.values[name]
	return v, ok && v != nil
}

func (p *params) requiredString(name string) string {
	if _, ok := p.value(name); !ok {
		p.fail(name, "is required")
		return ""
	}
	return p.string(name, "")
}

func (p *params) string(name, def string) string {
	v, ok := p.value(name)
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprint(v)
	}
	return s
}

func (p *params) float(name string, def float64) float64 {
	v, ok := p.value(name)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		p.fail(name, "must be a number, got %T", v)
		return def
	}
}

func (p *params) int(name string, def int) int {
	f := p.float(name, float64(def))
	if f != float64(int(f)) {
		p.fail(name, "must be an integer, got %v", f)
	}
	return int(f)
}

func (p *params) oneOf(name, def string, allowed ...string) string {
	s := p.string(name, def)
	for _, a := range allowed {
		if s == a {
			return s
		}
	}
	p.fail(name, "must be one of %v, got %q", allowed, s)
	return def
}

func (p *params) duration(name string, def time.Duration) time.Duration {
	v, ok := p.value(name)
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		p.fail(name, "must be a duration string, got %T", v)
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		p.fail(name, "invalid duration %q: %v", s, err)
		return def
	}
	return d
}
