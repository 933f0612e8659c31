package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/saturn/pkg/cli"
	"mercator-hq/saturn/pkg/journal"
)

var journalFlags struct {
	execution string
	limit     int
	format    string
	policy    string
	outcome   string
	since     time.Duration
	prune     bool
	days      int
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the policy transition journal",
	Long: `Query the policy transition journal.

Without --execution the most recent transitions are listed, newest first.
With --execution the transitions of one execution are listed in the order
they were recorded. --policy, --outcome and --since filter the recent
transitions. --prune deletes transitions older than the retention
period before querying.

Examples:
  # Show the 20 most recent transitions
  saturn journal --limit 20

  # Show failures of one policy during the last hour
  saturn journal --policy rate-limit --outcome failure --since 1h

  # Show one execution as CSV
  saturn journal --execution 3f1c... --format csv

  # Apply retention now, keeping 3 days
  saturn journal --prune --days 3`,
	RunE: queryJournal,
}

func init() {
	rootCmd.AddCommand(journalCmd)

	journalCmd.Flags().StringVarP(&journalFlags.execution, "execution", "e", "", "execution ID to show")
	journalCmd.Flags().IntVarP(&journalFlags.limit, "limit", "n", 100, "maximum number of recent transitions")
	journalCmd.Flags().StringVar(&journalFlags.policy, "policy", "", "only transitions of this policy ID")
	journalCmd.Flags().StringVar(&journalFlags.outcome, "outcome", "", "only transitions with this outcome: success, failure")
	journalCmd.Flags().DurationVar(&journalFlags.since, "since", 0, "only transitions recorded within this duration")
	journalCmd.Flags().StringVar(&journalFlags.format, "format", "text", "output format: text, json, csv")
	journalCmd.Flags().BoolVar(&journalFlags.prune, "prune", false, "delete transitions older than the retention period")
	journalCmd.Flags().IntVar(&journalFlags.days, "days", 0, "override journal.retention.days for --prune")
}

func queryJournal(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(journalFlags.format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := slog.New(slog.DiscardHandler)
	if verbose {
		if logger, err = newLogger(cfg); err != nil {
			return err
		}
	}

	store, err := journal.Open(cfg.Journal, logger)
	if err != nil {
		return cli.NewCommandError("journal", err)
	}
	defer store.Close()

	ctx := context.Background()
	out := cmd.OutOrStdout()

	if journalFlags.prune {
		retention := cfg.Journal.Retention
		if journalFlags.days > 0 {
			retention.Days = journalFlags.days
		}
		deleted, err := journal.NewScheduler(store, retention, nil, logger).Prune(ctx)
		if err != nil {
			return cli.NewCommandError("journal", err)
		}
		if format == cli.FormatText {
			fmt.Fprintf(out, "✓ Pruned %d transitions older than %d days\n", deleted, retention.Days)
		}
	}

	var records []journal.Record
	if journalFlags.execution != "" {
		records, err = store.QueryByExecution(ctx, journalFlags.execution)
	} else {
		records, err = store.Query(ctx, journalQuery())
	}
	if err != nil {
		return cli.NewCommandError("journal", err)
	}

	if format == cli.FormatJSON {
		if records == nil {
			records = []journal.Record{}
		}
		return cli.NewFormatter(format).FormatTo(out, records)
	}
	return cli.NewFormatter(format).FormatTo(out, recordTable(records))
}

func journalQuery() journal.Query {
	q := journal.Query{
		PolicyID: journalFlags.policy,
		Outcome:  journalFlags.outcome,
		Limit:    min(max(journalFlags.limit, 0), journal.MaxLimit),
	}
	if journalFlags.since > 0 {
		since := time.Now().Add(-journalFlags.since)
		q.Since = &since
	}
	return q
}
