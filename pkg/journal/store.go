package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"mercator-hq/saturn/pkg/config"
)

// Store persists transition records in a SQLite database.
type Store struct {
	db     *sql.DB
	driver string
	path   string
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// Open opens (creating if needed) the journal database described by cfg and
// initializes its schema. Zero values in cfg fall back to the config defaults.
func Open(cfg config.JournalConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "journal.store")

	if cfg.Driver == "" {
		cfg.Driver = config.DefaultJournalDriver
	}
	if cfg.Path == "" {
		cfg.Path = config.DefaultJournalPath
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = config.DefaultJournalMaxOpenConns
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = config.DefaultJournalBusyTimeout
	}

	switch cfg.Driver {
	case "sqlite", "sqlite3":
	default:
		return nil, newStorageError(cfg.Driver, "open", fmt.Errorf("unsupported driver %q", cfg.Driver))
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, newStorageError(cfg.Driver, "open", err)
		}
	}

	db, err := sql.Open(cfg.Driver, cfg.Path)
	if err != nil {
		return nil, newStorageError(cfg.Driver, "open", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)

	s := &Store{
		db:     db,
		driver: cfg.Driver,
		path:   cfg.Path,
		logger: logger,
	}

	if err := s.initialize(cfg.BusyTimeout); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("journal store initialized",
		"driver", cfg.Driver,
		"path", cfg.Path,
		"max_open_conns", cfg.MaxOpenConns,
	)

	return s, nil
}

func (s *Store) initialize(busyTimeout time.Duration) error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return newStorageError(s.driver, "enable_wal", err)
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeout.Milliseconds())); err != nil {
		return newStorageError(s.driver, "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(schema); err != nil {
		return newStorageError(s.driver, "create_schema", err)
	}

	if _, err := s.db.Exec(insertSchemaVersion, SchemaVersion); err != nil {
		return newStorageError(s.driver, "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(getSchemaVersion).Scan(&version); err != nil {
		return newStorageError(s.driver, "get_schema_version", err)
	}
	if version != SchemaVersion {
		return newStorageError(s.driver, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.db.PingContext(ctx); err != nil {
		return newStorageError(s.driver, "ping", err)
	}
	return nil
}

// Record inserts rec.
func (s *Store) Record(ctx context.Context, rec Record) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	_, err := s.db.ExecContext(ctx, insertTransition,
		rec.ID, rec.ExecutionID, nullString(rec.CorrelationID), rec.PolicyID, rec.Kind, rec.Phase,
		nullString(rec.Location), nullString(rec.Outcome), nullString(rec.Stage), nullString(rec.Error),
		rec.RecordedAt.UnixNano(),
	)
	if err != nil {
		return newStorageError(s.driver, "record", err)
	}
	return nil
}

// QueryByExecution returns the records of one execution in recording order.
func (s *Store) QueryByExecution(ctx context.Context, executionID string) ([]Record, error) {
	return s.query(ctx, selectColumns+" WHERE execution_id = ? ORDER BY recorded_at, rowid", executionID)
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return s.Query(ctx, Query{Limit: min(limit, MaxLimit)})
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, newStorageError(s.driver, "query", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, newStorageError(s.driver, "scan", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, newStorageError(s.driver, "query", err)
	}
	return records, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transitions").Scan(&count); err != nil {
		return 0, newStorageError(s.driver, "count", err)
	}
	return count, nil
}

// Prune deletes records recorded before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM transitions WHERE recorded_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, newStorageError(s.driver, "prune", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, newStorageError(s.driver, "prune", err)
	}
	return n, nil
}

// Close closes the database. Further calls return ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.db.Close(); err != nil {
		return newStorageError(s.driver, "close", err)
	}
	s.logger.Info("journal store closed")
	return nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var rec Record
	var correlationID, location, outcome, stage, msg sql.NullString
	var recordedAt int64
	err := rows.Scan(
		&rec.ID, &rec.ExecutionID, &correlationID, &rec.PolicyID, &rec.Kind, &rec.Phase,
		&location, &outcome, &stage, &msg, &recordedAt,
	)
	if err != nil {
		return Record{}, err
	}

	rec.CorrelationID = correlationID.String
	rec.Location = location.String
	rec.Outcome = outcome.String
	rec.Stage = stage.String
	rec.Error = msg.String
	rec.RecordedAt = time.Unix(0, recordedAt)
	return rec, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
