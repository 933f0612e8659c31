package journal

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestQuery_Validate(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Hour)

	tests := []struct {
		name    string
		query   Query
		wantErr string
	}{
		{name: "empty", query: Query{}},
		{name: "full", query: Query{PolicyID: "p1", Kind: "source", Phase: "after", Outcome: OutcomeFailure, Since: &earlier, Until: &now, Limit: 10}},
		{name: "negative limit", query: Query{Limit: -1}, wantErr: "limit"},
		{name: "limit too large", query: Query{Limit: MaxLimit + 1}, wantErr: "limit"},
		{name: "negative offset", query: Query{Offset: -1}, wantErr: "offset"},
		{name: "inverted range", query: Query{Since: &now, Until: &earlier}, wantErr: "since"},
		{name: "bad kind", query: Query{Kind: "sink"}, wantErr: "kind"},
		{name: "bad phase", query: Query{Phase: "during"}, wantErr: "phase"},
		{name: "bad outcome", query: Query{Outcome: "maybe"}, wantErr: "outcome"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			var qerr *QueryError
			if !errors.As(err, &qerr) {
				t.Fatalf("Validate() error = %v, want *QueryError", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestBuildWhereClause(t *testing.T) {
	since := time.Unix(0, 42)

	where, args := buildWhereClause(Query{PolicyID: "p1", Outcome: OutcomeSuccess, Since: &since})
	if where != "policy_id = ? AND outcome = ? AND recorded_at >= ?" {
		t.Errorf("where = %q", where)
	}
	if len(args) != 3 || args[2] != int64(42) {
		t.Errorf("args = %v", args)
	}

	where, args = buildWhereClause(Query{})
	if where != "" || len(args) != 0 {
		t.Errorf("empty query: where = %q, args = %v", where, args)
	}
}

func TestStore_Query(t *testing.T) {
	store := openStore(t, "sqlite")
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	failed := record("exec-2", "p2", "after", base.Add(3*time.Second))
	failed.Outcome = OutcomeFailure
	failed.Stage = "policy"

	succeeded := record("exec-1", "p1", "after", base.Add(time.Second))
	succeeded.Outcome = OutcomeSuccess

	first := record("exec-1", "p1", "before", base)

	for _, rec := range []Record{
		first,
		succeeded,
		record("exec-2", "p2", "before", base.Add(2*time.Second)),
		failed,
	} {
		if err := store.Record(ctx, rec); err != nil {
			t.Fatalf("Record() error = %v, want nil", err)
		}
	}

	since := base.Add(2 * time.Second)
	until := base.Add(time.Second)

	tests := []struct {
		name      string
		query     Query
		wantCount int
		wantFirst string
	}{
		{name: "all newest first", query: Query{}, wantCount: 4, wantFirst: failed.ID},
		{name: "ascending", query: Query{Ascending: true}, wantCount: 4, wantFirst: first.ID},
		{name: "by policy", query: Query{PolicyID: "p1"}, wantCount: 2, wantFirst: succeeded.ID},
		{name: "failures", query: Query{Outcome: OutcomeFailure}, wantCount: 1, wantFirst: failed.ID},
		{name: "since", query: Query{Since: &since}, wantCount: 2, wantFirst: failed.ID},
		{name: "until", query: Query{Until: &until}, wantCount: 2, wantFirst: succeeded.ID},
		{name: "limit and offset", query: Query{Limit: 1, Offset: 1}, wantCount: 1},
		{name: "no match", query: Query{ExecutionID: "missing"}, wantCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Query(ctx, tt.query)
			if err != nil {
				t.Fatalf("Query() error = %v, want nil", err)
			}
			if len(got) != tt.wantCount {
				t.Fatalf("Query() returned %d records, want %d", len(got), tt.wantCount)
			}
			if tt.wantFirst != "" && got[0].ID != tt.wantFirst {
				t.Errorf("first record = %s, want %s", got[0].ID, tt.wantFirst)
			}
		})
	}

	if _, err := store.Query(ctx, Query{Kind: "sink"}); err == nil {
		t.Error("Query() with invalid kind: error = nil, want error")
	}
}
