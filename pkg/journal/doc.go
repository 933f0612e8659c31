// Package journal persists policy layer transitions in SQLite.
//
// A Recorder is a notification.Listener: it converts every transition into a
// Record and hands it to a background writer, so policy execution never waits
// on the database. Records that do not fit in the buffer are dropped and
// counted.
//
// # Usage
//
//	store, err := journal.Open(cfg.Journal, logger)
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	recorder := journal.NewRecorder(store, journal.RecorderConfig{
//		BufferSize:   cfg.Journal.BufferSize,
//		WriteTimeout: cfg.Journal.WriteTimeout,
//	}, collector, logger)
//	defer recorder.Close()
//
//	notifier := notification.NewNotifier(logger, recorder)
//
// # Drivers
//
// Two database/sql drivers are linked in: "sqlite" (modernc.org/sqlite, pure
// Go, the default) and "sqlite3" (github.com/mattn/go-sqlite3, requires cgo).
//
// # Querying
//
//	since := time.Now().Add(-time.Hour)
//	records, err := store.Query(ctx, journal.Query{
//		PolicyID: "rate-limit",
//		Outcome:  journal.OutcomeFailure,
//		Since:    &since,
//	})
//
// Results are newest first unless Ascending is set. QueryByExecution returns
// the transitions of one execution in the order they were recorded.
//
// # Retention
//
// A Scheduler deletes records older than the configured number of days on a
// cron schedule:
//
//	scheduler := journal.NewScheduler(store, cfg.Journal.Retention, collector, logger)
//	if err := scheduler.Start(ctx); err != nil {
//		return err
//	}
//	defer scheduler.Stop()
package journal
