package journal

import (
	"time"

	"github.com/google/uuid"

	"mercator-hq/saturn/pkg/policy"
	"mercator-hq/saturn/pkg/policy/notification"
)

// Outcomes of a completed policy layer.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Record is one persisted policy transition.
type Record struct {
	ID            string    `json:"id"`
	ExecutionID   string    `json:"execution_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	PolicyID      string    `json:"policy_id"`
	Kind          string    `json:"kind"`     // "source" or "operation"
	Phase         string    `json:"phase"`    // "before" or "after"
	Location      string    `json:"location"` // component location
	Outcome       string    `json:"outcome,omitempty"`
	Stage         string    `json:"stage,omitempty"`
	Error         string    `json:"error,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// FromTransition converts a transition into a record with a fresh ID.
// Outcome, Stage and Error are only set for after transitions.
func FromTransition(t notification.Transition) Record {
	rec := Record{
		ID:            uuid.NewString(),
		ExecutionID:   t.ExecutionID,
		CorrelationID: t.CorrelationID,
		PolicyID:      t.PolicyID,
		Kind:          string(t.Kind),
		Phase:         string(t.Phase),
		Location:      t.Location,
		RecordedAt:    t.Timestamp,
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}

	if t.Phase != notification.PhaseAfter {
		return rec
	}

	rec.Outcome = OutcomeSuccess
	if t.Err != nil {
		rec.Outcome = OutcomeFailure
		rec.Error = t.Err.Error()
		rec.Stage = string(policy.StagePolicy)
		if me, ok := policy.AsMessagingError(t.Err); ok {
			rec.Stage = string(me.Stage)
		}
	}
	return rec
}
