package templates

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"mercator-hq/saturn/pkg/policy"
	"mercator-hq/saturn/pkg/policy/processor"
	"mercator-hq/saturn/pkg/policy/state"
)

// Template builds the chain processors of one policy.
// next continues to the step wrapped by the policy.
type Template func(b *BuildContext) ([]policy.Processor, error)

// BuildContext is what a template sees while building a policy.
type BuildContext struct {
	PolicyID string
	Next     policy.Processor
	Logger   *slog.Logger
	Now      func() time.Time

	params *params
}

// String returns a string parameter, or def when absent.
func (b *BuildContext) String(name, def string) string { return b.params.string(name, def) }

// RequiredString returns a string parameter that must be present.
func (b *BuildContext) RequiredString(name string) string { return b.params.requiredString(name) }

// Int returns an integer parameter, or def when absent.
func (b *BuildContext) Int(name string, def int) int { return b.params.int(name, def) }

// Float returns a numeric parameter, or def when absent.
func (b *BuildContext) Float(name string, def float64) float64 { return b.params.float(name, def) }

// Duration returns a duration parameter, or def when absent.
func (b *BuildContext) Duration(name string, def time.Duration) time.Duration {
	return b.params.duration(name, def)
}

// OneOf returns a string parameter restricted to allowed values.
func (b *BuildContext) OneOf(name, def string, allowed ...string) string {
	return b.params.oneOf(name, def, allowed...)
}

// Value returns a raw parameter.
func (b *BuildContext) Value(name string) (any, bool) { return b.params.value(name) }

// Err returns the first parameter error.
func (b *BuildContext) Err() error { return b.params.err }

// Catalog holds the templates policies can be built from.
type Catalog struct {
	handler *state.Handler
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.RWMutex
	templates map[string]Template
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithClock sets the clock used by time based templates.
func WithClock(now func() time.Time) CatalogOption {
	return func(c *Catalog) { c.now = now }
}

// NewCatalog creates a catalog holding the built-in templates. handler must
// be the handler used by the policy processors; nil means state.Default().
func NewCatalog(handler *state.Handler, logger *slog.Logger, opts ...CatalogOption) *Catalog {
	if handler == nil {
		handler = state.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Catalog{
		handler:   handler,
		logger:    logger,
		now:       time.Now,
		templates: make(map[string]Template),
	}
	for _, opt := range opts {
		opt(c)
	}

	for name, t := range builtins() {
		c.templates[name] = t
	}
	return c
}

// Register adds or replaces a template.
func (c *Catalog) Register(name string, t Template) error {
	if name == "" || t == nil {
		return fmt.Errorf("%w: template name and function are required", policy.ErrInvalidArgument)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.templates[name] = t
	return nil
}

// Has reports whether the catalog holds the template.
func (c *Catalog) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.templates[name]
	return ok
}

// Templates returns the sorted template names.
func (c *Catalog) Templates() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.templates))
	for name := range c.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build creates the policy id from the template.
func (c *Catalog) Build(id, template string, values Parameters, propagate bool) (policy.Policy, error) {
	c.mu.RLock()
	t, ok := c.templates[template]
	c.mu.RUnlock()
	if !ok {
		return policy.Policy{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, template)
	}

	b := &BuildContext{
		PolicyID: id,
		Next:     processor.ExecuteNext(c.handler),
		Logger:   c.logger.With("policy_id", id, "template", template),
		Now:      c.now,
		params:   &params{template: template, values: values},
	}

	processors, err := t(b)
	if err == nil {
		err = b.Err()
	}
	if err != nil {
		return policy.Policy{}, fmt.Errorf("failed to build policy %q: %w", id, err)
	}

	chain := policy.NewChain(processors,
		policy.WithChainName(id+"/"+template),
		policy.WithMessageTransformationPropagation(propagate),
	)
	return policy.New(id, chain)
}
