package main

import (
	"time"

	"mercator-hq/saturn/pkg/journal"
)

// recordTable renders journal records with the cli formatters.
type recordTable []journal.Record

func (t recordTable) Header() []string {
	return []string{"recorded_at", "execution_id", "policy_id", "kind", "phase", "location", "outcome", "stage", "error"}
}

func (t recordTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		rows = append(rows, []string{
			r.RecordedAt.UTC().Format(time.RFC3339Nano),
			r.ExecutionID,
			r.PolicyID,
			r.Kind,
			r.Phase,
			r.Location,
			r.Outcome,
			r.Stage,
			r.Error,
		})
	}
	return rows
}
