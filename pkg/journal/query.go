package journal

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultLimit is the number of records returned when a query sets none.
	DefaultLimit = 100

	// MaxLimit is the largest number of records a single query returns.
	MaxLimit = 10000
)

// Query filters journal records. Empty fields match everything.
type Query struct {
	ExecutionID   string
	CorrelationID string
	PolicyID      string
	Kind          string // "source" or "operation"
	Phase         string // "before" or "after"
	Outcome       string // "success" or "failure"

	// Since and Until bound recorded_at, both inclusive.
	Since *time.Time
	Until *time.Time

	Limit  int
	Offset int

	// Ascending returns the oldest records first. The default is newest first.
	Ascending bool
}

// QueryError is returned for an invalid Query.
type QueryError struct {
	Query Query
	Cause error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return fmt.Sprintf("invalid journal query: %v", e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *QueryError) Unwrap() error {
	return e.Cause
}

// Validate checks the query parameters.
func (q Query) Validate() error {
	if q.Limit < 0 || q.Limit > MaxLimit {
		return &QueryError{Query: q, Cause: fmt.Errorf("limit must be between 0 and %d, got %d", MaxLimit, q.Limit)}
	}
	if q.Offset < 0 {
		return &QueryError{Query: q, Cause: fmt.Errorf("offset must be >= 0, got %d", q.Offset)}
	}
	if q.Since != nil && q.Until != nil && q.Since.After(*q.Until) {
		return &QueryError{Query: q, Cause: fmt.Errorf("since must not be after until")}
	}
	switch q.Kind {
	case "", "source", "operation":
	default:
		return &QueryError{Query: q, Cause: fmt.Errorf("invalid kind %q", q.Kind)}
	}
	switch q.Phase {
	case "", "before", "after":
	default:
		return &QueryError{Query: q, Cause: fmt.Errorf("invalid phase %q", q.Phase)}
	}
	switch q.Outcome {
	case "", OutcomeSuccess, OutcomeFailure:
	default:
		return &QueryError{Query: q, Cause: fmt.Errorf("invalid outcome %q", q.Outcome)}
	}
	return nil
}

// Query returns the records matching q.
func (s *Store) Query(ctx context.Context, q Query) ([]Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	where, args := buildWhereClause(q)

	var sb strings.Builder
	sb.WriteString(selectColumns)
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}
	if q.Ascending {
		sb.WriteString(" ORDER BY recorded_at, rowid")
	} else {
		sb.WriteString(" ORDER BY recorded_at DESC, rowid DESC")
	}

	limit := q.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	sb.WriteString(" LIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)

	return s.query(ctx, sb.String(), args...)
}

func buildWhereClause(q Query) (string, []any) {
	var conditions []string
	var args []any

	eq := func(column, value string) {
		if value != "" {
			conditions = append(conditions, column+" = ?")
			args = append(args, value)
		}
	}
	eq("execution_id", q.ExecutionID)
	eq("correlation_id", q.CorrelationID)
	eq("policy_id", q.PolicyID)
	eq("kind", q.Kind)
	eq("phase", q.Phase)
	eq("outcome", q.Outcome)

	if q.Since != nil {
		conditions = append(conditions, "recorded_at >= ?")
		args = append(args, q.Since.UnixNano())
	}
	if q.Until != nil {
		conditions = append(conditions, "recorded_at <= ?")
		args = append(args, q.Until.UnixNano())
	}

	return strings.Join(conditions, " AND "), args
}
