package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/saturn/pkg/policy"
	"mercator-hq/saturn/pkg/policy/templates"
)

// Config configures a FileProvider.
type Config struct {
	// Path is the bindings file.
	Path string

	// Debounce is the quiet period before a file change triggers a reload.
	Debounce time.Duration

	// MaxFileSize bounds the bindings file. Zero means DefaultMaxFileSize.
	MaxFileSize int64
}

// FileProvider supplies the policies declared in a bindings file. Policies
// are built from the template catalog and kept in a Registry.
type FileProvider struct {
	config   Config
	catalog  *templates.Catalog
	registry *Registry
	logger   *slog.Logger

	loadMu sync.Mutex

	mu        sync.RWMutex
	listeners []func()
	watcher   *FileWatcher
	closed    bool
}

// NewFileProvider creates a provider for cfg.Path. Call Load before use.
func NewFileProvider(cfg Config, catalog *templates.Catalog, logger *slog.Logger) (*FileProvider, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: bindings file path is required", policy.ErrInvalidArgument)
	}
	if catalog == nil {
		return nil, fmt.Errorf("%w: template catalog is required", policy.ErrInvalidArgument)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &FileProvider{
		config:   cfg,
		catalog:  catalog,
		registry: NewRegistry(),
		logger:   logger.With("component", "policy_provider"),
	}, nil
}

// Load reads, validates and builds the bindings file, then replaces the
// policy set. On failure the current policies stay active. Listeners are
// notified when the policy set changed.
func (p *FileProvider) Load() error {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()

	bindings, err := LoadBindings(p.config.Path, p.config.MaxFileSize)
	if err != nil {
		return err
	}

	policies, err := BuildPolicies(bindings, p.catalog)
	if err != nil {
		return err
	}

	previous := p.registry.Version()
	if err := p.registry.Replace(bindings, policies); err != nil {
		return err
	}

	version := p.registry.Version()
	p.logger.Info("policy bindings loaded",
		"path", p.config.Path,
		"policies", len(policies),
		"version", version,
	)

	if version != previous {
		p.notify()
	}
	return nil
}

// BuildPolicies validates bindings and builds their policies.
func BuildPolicies(bindings []Binding, catalog *templates.Catalog) ([]policy.Policy, error) {
	if err := ValidateBindings(bindings, catalog); err != nil {
		return nil, err
	}

	errs := &ErrorList{}
	policies := make([]policy.Policy, 0, len(bindings))
	for i, b := range bindings {
		pol, err := catalog.Build(b.ID, b.Template, b.Parameters, b.Propagate())
		if err != nil {
			errs.Add(&ValidationError{
				PolicyID:  b.ID,
				FieldPath: fmt.Sprintf("policies[%d].parameters", i),
				Message:   "failed to build policy",
				Cause:     err,
			})
			continue
		}
		policies = append(policies, pol)
	}
	if err := errs.ToError(); err != nil {
		return nil, err
	}
	return policies, nil
}

// FindSourceParameterizedPolicies returns the ordered policies applying to a source.
func (p *FileProvider) FindSourceParameterizedPolicies(params policy.PointcutParameters) []policy.Policy {
	return p.registry.Source(params)
}

// FindOperationParameterizedPolicies returns the ordered policies applying to an operation.
func (p *FileProvider) FindOperationParameterizedPolicies(params policy.PointcutParameters) []policy.Policy {
	return p.registry.Operation(params)
}

// IsSourcePoliciesAvailable reports whether any policy may apply to a source.
func (p *FileProvider) IsSourcePoliciesAvailable() bool {
	return p.registry.HasSourcePolicies()
}

// IsOperationPoliciesAvailable reports whether any policy may apply to an operation.
func (p *FileProvider) IsOperationPoliciesAvailable() bool {
	return p.registry.HasOperationPolicies()
}

// OnPoliciesChanged registers fn to be called after the policy set changed.
func (p *FileProvider) OnPoliciesChanged(fn func()) {
	if fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

func (p *FileProvider) notify() {
	p.mu.RLock()
	listeners := append([]func(){}, p.listeners...)
	p.mu.RUnlock()

	for _, fn := range listeners {
		fn()
	}
}

// Registry returns the registry holding the loaded policies.
func (p *FileProvider) Registry() *Registry {
	return p.registry
}

// Watch reloads the bindings file whenever it changes. It blocks until ctx
// is cancelled or Close is called.
func (p *FileProvider) Watch(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("provider is closed")
	}
	if p.watcher != nil {
		p.mu.Unlock()
		return ErrWatcherRunning
	}
	watcher, err := NewFileWatcher(FileWatcherConfig{
		Path:             p.config.Path,
		DebounceInterval: p.config.Debounce,
	}, p.logger)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	p.watcher = watcher
	p.mu.Unlock()

	return watcher.Watch(ctx, p.Load)
}

// Close stops watching. The loaded policies stay available.
func (p *FileProvider) Close() error {
	p.mu.Lock()
	p.closed = true
	watcher := p.watcher
	p.mu.Unlock()

	if watcher != nil {
		return watcher.Stop()
	}
	return nil
}
