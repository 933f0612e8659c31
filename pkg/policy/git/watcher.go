package git

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// ReloadFunc reloads the bindings file from the working tree. A non-nil
// error rolls the working tree back to the last good commit.
type ReloadFunc func() error

// Watcher polls a Repository and reloads the bindings when a new commit
// changes the bindings file.
type Watcher struct {
	repo     *Repository
	interval time.Duration
	reload   ReloadFunc
	logger   *slog.Logger

	checkMu sync.Mutex

	mu          sync.RWMutex
	running     bool
	stopCh      chan struct{}
	doneCh      chan struct{}
	lastSHA     string
	rejectedSHA string
	stats       WatcherStats
}

// NewWatcher creates a watcher polling every interval.
func NewWatcher(repo *Repository, interval time.Duration, reload ReloadFunc, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		repo:     repo,
		interval: interval,
		reload:   reload,
		logger:   logger.With("component", "policy_git_watcher"),
	}
}

// Start records the current commit as the last good one and starts polling.
// Polling stops when ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if w.interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", w.interval)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	commit, err := w.repo.CurrentCommit()
	if err != nil {
		return fmt.Errorf("failed to get initial commit: %w", err)
	}

	w.lastSHA = commit.SHA
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	w.logger.Info("watcher started",
		"poll_interval", w.interval,
		"initial_commit", commit.ShortSHA(),
	)

	go w.pollLoop(ctx, w.stopCh, w.doneCh)
	return nil
}

// Stop stops polling and waits for an in-flight check to finish.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher not running")
	}
	w.running = false
	close(w.stopCh)
	done := w.doneCh
	w.mu.Unlock()

	<-done
	w.logger.Info("watcher stopped")
	return nil
}

// IsRunning returns true if the watcher is polling.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

func (w *Watcher) pollLoop(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			return
		case <-stop:
			return
		case <-ticker.C:
			if err := w.Check(ctx); err != nil {
				w.logger.Error("error checking for changes", "error", err)
			}
		}
	}
}

// Check fetches the remote once and reloads when the bindings file changed.
// A commit whose bindings failed to load is skipped until the remote moves.
func (w *Watcher) Check(ctx context.Context) error {
	w.checkMu.Lock()
	defer w.checkMu.Unlock()

	w.mu.Lock()
	w.stats.Polls++
	lastSHA, rejected := w.lastSHA, w.rejectedSHA
	w.mu.Unlock()

	if lastSHA == "" {
		commit, err := w.repo.CurrentCommit()
		if err != nil {
			return err
		}
		lastSHA = commit.SHA
	}

	remoteSHA, err := w.repo.Fetch(ctx)
	if err != nil {
		return err
	}
	if remoteSHA == lastSHA || remoteSHA == rejected {
		return nil
	}

	result, err := w.repo.Update(remoteSHA)
	if err != nil {
		return err
	}

	w.logger.Info("detected changes",
		"from_sha", shortSHA(result.FromSHA),
		"to_sha", shortSHA(result.ToSHA),
		"changed_files", len(result.ChangedFiles),
	)

	if !slices.Contains(result.ChangedFiles, w.repo.BindingsFile()) {
		w.mu.Lock()
		w.stats.SkippedChanges++
		w.lastSHA = remoteSHA
		w.mu.Unlock()
		return nil
	}

	return w.performReload(lastSHA, remoteSHA)
}

func (w *Watcher) performReload(lastSHA, newSHA string) error {
	err := w.reload()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.LastReloadTime = time.Now()

	if err == nil {
		w.stats.SuccessfulReloads++
		w.lastSHA = newSHA
		w.rejectedSHA = ""
		w.logger.Info("reloaded policy bindings",
			"from_sha", shortSHA(lastSHA),
			"to_sha", shortSHA(newSHA),
		)
		return nil
	}

	w.stats.FailedReloads++
	w.rejectedSHA = newSHA
	w.logger.Error("policy bindings rejected, rolling back",
		"error", err,
		"rejected_sha", shortSHA(newSHA),
		"rollback_to", shortSHA(lastSHA),
	)

	if rollbackErr := w.repo.Rollback(lastSHA); rollbackErr != nil {
		return fmt.Errorf("reload failed: %w (rollback: %v)", err, rollbackErr)
	}
	w.stats.Rollbacks++
	return fmt.Errorf("reload failed, rolled back to %s: %w", shortSHA(lastSHA), err)
}

// LastCommitSHA returns the commit the bindings were last loaded from.
func (w *Watcher) LastCommitSHA() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastSHA
}

// Stats returns a copy of the watcher statistics.
func (w *Watcher) Stats() WatcherStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}
