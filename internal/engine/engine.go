package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/journal"
	"mercator-hq/saturn/pkg/policy/git"
	"mercator-hq/saturn/pkg/policy/manager"
	"mercator-hq/saturn/pkg/policy/notification"
	"mercator-hq/saturn/pkg/policy/pointcut"
	"mercator-hq/saturn/pkg/policy/processor"
	"mercator-hq/saturn/pkg/policy/provider"
	"mercator-hq/saturn/pkg/policy/state"
	"mercator-hq/saturn/pkg/policy/templates"
	"mercator-hq/saturn/pkg/telemetry/health"
	"mercator-hq/saturn/pkg/telemetry/metrics"
)

// Options contains the optional collaborators of an Engine.
type Options struct {
	// Collector receives engine metrics. May be nil.
	Collector *metrics.Collector

	// Listeners receive every policy transition, e.g. the telemetry listeners.
	Listeners []notification.Listener
}

// Engine is an assembled policy engine.
type Engine struct {
	config    *config.Config
	logger    *slog.Logger
	collector *metrics.Collector

	handler  *state.Handler
	catalog  *templates.Catalog
	provider *provider.FileProvider
	manager  *manager.Manager
	capture  *captureListener

	repo    *git.Repository
	watcher *git.Watcher

	store     *journal.Store
	recorder  *journal.Recorder
	scheduler *journal.Scheduler
}

// New assembles an engine and loads the bindings file. With policy.git
// enabled the repository is cloned first and the bindings file is read from
// the clone. The caller must Close the engine.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		config:    cfg,
		logger:    logger,
		collector: opts.Collector,
		handler:   state.NewHandler(logger),
		capture:   newCaptureListener(),
	}

	bindingsPath := cfg.Policy.FilePath
	if cfg.Policy.Git.Enabled {
		repo, err := git.NewRepository(&cfg.Policy.Git, logger)
		if err != nil {
			return nil, err
		}
		if err := repo.Clone(context.Background()); err != nil {
			return nil, err
		}
		e.repo = repo
		bindingsPath = repo.BindingsPath()
	}

	listeners := append([]notification.Listener{e.capture}, opts.Listeners...)
	if cfg.Journal.Enabled {
		store, err := journal.Open(cfg.Journal, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		e.store = store
		e.recorder = journal.NewRecorder(store, journal.RecorderConfig{
			BufferSize:   cfg.Journal.BufferSize,
			WriteTimeout: cfg.Journal.WriteTimeout,
		}, opts.Collector, logger)
		e.scheduler = journal.NewScheduler(store, cfg.Journal.Retention, opts.Collector, logger)
		listeners = append(listeners, e.recorder)
	}
	notifier := notification.NewNotifier(logger, listeners...)

	e.catalog = templates.NewCatalog(e.handler, logger)

	p, err := provider.NewFileProvider(provider.Config{
		Path:     bindingsPath,
		Debounce: cfg.Policy.Debounce,
	}, e.catalog, logger)
	if err != nil {
		e.closeJournal()
		return nil, err
	}
	if err := p.Load(); err != nil {
		e.closeJournal()
		return nil, fmt.Errorf("failed to load policy bindings: %w", err)
	}
	e.provider = p

	m, err := manager.NewManager(p, pointcutManager(cfg.Engine.PointcutFactories, logger), manager.Config{
		TTL:           cfg.Engine.Cache.TTL,
		SweepSchedule: cfg.Engine.Cache.SweepSchedule,
		SinkCount:     cfg.Engine.SinkCount,
	},
		manager.WithProcessorFactory(processor.NewFactory(e.handler, notifier, logger)),
		manager.WithMetrics(opts.Collector),
		manager.WithLogger(logger),
	)
	if err != nil {
		p.Close()
		e.closeJournal()
		return nil, err
	}
	e.manager = m

	return e, nil
}

func pointcutManager(factories []config.PointcutFactoryConfig, logger *slog.Logger) *pointcut.Manager {
	var sources []pointcut.SourceFactory
	var operations []pointcut.OperationFactory
	for _, f := range factories {
		af := pointcut.NewAttributeFactory(f.Namespace, f.Attributes...)
		sources = append(sources, af)
		operations = append(operations, af)
	}
	return pointcut.NewManager(sources, operations, logger)
}

// Start starts the bindings watchers (file or repository polling, when
// enabled) and the journal retention scheduler. They stop when ctx is done.
func (e *Engine) Start(ctx context.Context) error {
	switch {
	case e.repo != nil && e.config.Policy.Git.PollInterval > 0:
		e.watcher = git.NewWatcher(e.repo, e.config.Policy.Git.PollInterval, e.provider.Load, e.logger)
		if err := e.watcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to watch policy repository: %w", err)
		}
	case e.repo == nil && e.config.Policy.Watch:
		if err := e.provider.Watch(ctx); err != nil {
			return fmt.Errorf("failed to watch policy bindings: %w", err)
		}
	}
	if e.scheduler != nil {
		if err := e.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start journal retention: %w", err)
		}
	}
	return nil
}

// RegisterHealthChecks registers the readiness checks of the engine.
func (e *Engine) RegisterHealthChecks(checker *health.Checker) {
	checker.RegisterCheck("policies", func(ctx context.Context) error {
		if e.provider.Registry().LoadTime().IsZero() {
			return errors.New("policy bindings not loaded")
		}
		return nil
	})
	checker.RegisterCheck("manager", func(ctx context.Context) error {
		if e.manager.Stats().Closed {
			return manager.ErrClosed
		}
		return nil
	})
	if e.repo != nil {
		checker.RegisterCheck("policy_repository", func(ctx context.Context) error {
			_, err := e.repo.CurrentCommit()
			return err
		})
	}
	if e.store != nil {
		checker.RegisterCheck("journal", e.store.Ping)
	}
}

// Manager returns the policy manager.
func (e *Engine) Manager() *manager.Manager { return e.manager }

// Provider returns the policy provider.
func (e *Engine) Provider() *provider.FileProvider { return e.provider }

// Catalog returns the template catalog.
func (e *Engine) Catalog() *templates.Catalog { return e.catalog }

// Journal returns the journal store, or nil when the journal is disabled.
func (e *Engine) Journal() *journal.Store { return e.store }

// Repository returns the bindings repository, or nil outside Git mode.
func (e *Engine) Repository() *git.Repository { return e.repo }

// Close stops the engine. Queued journal records are written before the
// store is closed.
func (e *Engine) Close() error {
	var errs []error
	if e.watcher != nil && e.watcher.IsRunning() {
		if err := e.watcher.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.manager.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.provider.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.closeJournal(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (e *Engine) closeJournal() error {
	if e.store == nil {
		return nil
	}
	if e.scheduler != nil {
		e.scheduler.Stop()
	}
	if e.recorder != nil {
		e.recorder.Close()
	}
	return e.store.Close()
}

func since(start time.Time) time.Duration {
	return time.Since(start).Round(time.Microsecond)
}
