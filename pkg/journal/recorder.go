package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/policy/notification"
	"mercator-hq/saturn/pkg/telemetry/metrics"
)

// RecorderConfig contains configuration for the asynchronous recorder.
type RecorderConfig struct {
	// BufferSize is the capacity of the write queue.
	// Default: 1000
	BufferSize int

	// WriteTimeout bounds each insert.
	// Default: 5s
	WriteTimeout time.Duration
}

// Recorder writes transitions to a Store from a background goroutine.
// It implements notification.Listener.
type Recorder struct {
	store     *Store
	config    RecorderConfig
	records   chan Record
	collector *metrics.Collector
	logger    *slog.Logger
	wg        sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

var _ notification.Listener = (*Recorder)(nil)

// NewRecorder creates a recorder and starts its writer. collector may be nil.
func NewRecorder(store *Store, cfg RecorderConfig, collector *metrics.Collector, logger *slog.Logger) *Recorder {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = config.DefaultJournalBufferSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = config.DefaultJournalWriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		store:     store,
		config:    cfg,
		records:   make(chan Record, cfg.BufferSize),
		collector: collector,
		logger:    logger.With("component", "journal.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	return r
}

// OnPolicyTransition implements notification.Listener.
func (r *Recorder) OnPolicyTransition(t notification.Transition) {
	r.Enqueue(FromTransition(t))
}

// Enqueue queues rec for writing and reports whether it was accepted. A
// record is dropped when the queue is full or the recorder is closed.
func (r *Recorder) Enqueue(rec Record) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.collector.RecordJournalWrite("dropped")
		return false
	}

	select {
	case r.records <- rec:
		return true
	default:
		r.collector.RecordJournalWrite("dropped")
		r.logger.Warn("journal buffer full, dropping transition",
			"execution_id", rec.ExecutionID,
			"policy_id", rec.PolicyID,
			"phase", rec.Phase,
		)
		return false
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for rec := range r.records {
		ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
		err := r.store.Record(ctx, rec)
		cancel()

		if err != nil {
			r.collector.RecordJournalWrite("error")
			r.logger.Error("failed to write journal record",
				"record_id", rec.ID,
				"execution_id", rec.ExecutionID,
				"error", err,
			)
			continue
		}
		r.collector.RecordJournalWrite("success")
	}
}

// Close stops accepting records and waits until the queued ones are written.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.records)
	r.mu.Unlock()

	r.wg.Wait()
}
