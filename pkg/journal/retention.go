package journal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/telemetry/metrics"
)

// Scheduler prunes the journal on a cron schedule.
type Scheduler struct {
	store     *Store
	config    config.RetentionConfig
	collector *metrics.Collector
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewScheduler creates a retention scheduler. collector may be nil.
func NewScheduler(store *Store, cfg config.RetentionConfig, collector *metrics.Collector, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:     store,
		config:    cfg,
		collector: collector,
		logger:    logger.With("component", "journal.scheduler"),
		now:       time.Now,
		cron:      cron.New(),
	}
}

// Start schedules pruning. An empty schedule or a retention of 0 days keeps
// records forever and starts nothing. The scheduler stops when ctx is done.
//
// Common cron expressions:
//   - "0 3 * * *"    - Daily at 3 AM
//   - "0 */6 * * *"  - Every 6 hours
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.Schedule == "" || s.config.Days <= 0 {
		s.logger.Info("journal retention disabled")
		return nil
	}
	if s.running {
		return nil
	}

	if _, err := cron.ParseStandard(s.config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.config.Schedule, err)
	}

	_, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.run(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("journal retention scheduler started",
		"schedule", s.config.Schedule,
		"retention_days", s.config.Days,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	deleted, err := s.Prune(ctx)
	if err != nil {
		s.logger.Error("scheduled journal pruning failed", "error", err)
		return
	}
	s.logger.Debug("scheduled journal pruning completed", "deleted_count", deleted)
}

// Prune deletes records older than the retention period.
func (s *Scheduler) Prune(ctx context.Context) (int64, error) {
	if s.config.Days <= 0 {
		return 0, nil
	}

	cutoff := s.now().Add(-time.Duration(s.config.Days) * 24 * time.Hour)
	deleted, err := s.store.Prune(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	s.collector.RecordJournalPruned(deleted)
	if deleted > 0 {
		s.logger.Info("journal records pruned",
			"deleted_count", deleted,
			"cutoff", cutoff,
		)
	}
	return deleted, nil
}

// Stop stops the scheduler and waits for a running job to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("journal retention scheduler stopped")
}

// IsRunning reports whether pruning is scheduled.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled pruning time, or nil when not running.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
