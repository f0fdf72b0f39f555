package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JobStatus captures the simulation job lifecycle. Transitions are
// monotonic except for an explicit reset back to PENDING.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusDone       JobStatus = "DONE"
	JobStatusFailed     JobStatus = "FAILED"
)

// JobOutcome is the computed result payload stored on a finished job. A
// zero value (no ComputedAt) is persisted as NULL.
type JobOutcome struct {
	Amount     float64       `json:"amount"`
	DryRun     bool          `json:"dry_run"`
	Breakdown  []OutcomeLine `json:"breakdown,omitempty"`
	Note       string        `json:"note,omitempty"`
	ComputedAt time.Time     `json:"computed_at"`
}

// IsZero reports whether no outcome has been computed.
func (o JobOutcome) IsZero() bool {
	return o.ComputedAt.IsZero()
}

// Value marshals the outcome to JSON, storing NULL for the zero value.
func (o JobOutcome) Value() (driver.Value, error) {
	if o.IsZero() {
		return nil, nil
	}
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("marshal job outcome: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the outcome struct.
func (o *JobOutcome) Scan(value interface{}) error {
	if value == nil {
		*o = JobOutcome{}
		return nil
	}
	var data []byte
	switch raw := value.(type) {
	case []byte:
		data = raw
	case string:
		data = []byte(raw)
	default:
		return fmt.Errorf("unsupported type %T for JobOutcome", value)
	}
	if len(data) == 0 {
		*o = JobOutcome{}
		return nil
	}
	if err := json.Unmarshal(data, o); err != nil {
		return fmt.Errorf("unmarshal job outcome: %w", err)
	}
	return nil
}

// SimulationJob is one member's unit of work for a scenario. Identity is
// (scenario_id, member_id): reruns reset these rows instead of inserting
// fresh ones, so job history never duplicates.
type SimulationJob struct {
	ID           string     `db:"id" json:"id"`
	ScenarioID   string     `db:"scenario_id" json:"scenario_id"`
	ClassroomID  string     `db:"classroom_id" json:"classroom_id"`
	MemberID     string     `db:"member_id" json:"member_id"`
	DryRun       bool       `db:"dry_run" json:"dry_run"`
	Status       JobStatus  `db:"status" json:"status"`
	Result       JobOutcome `db:"result" json:"result,omitempty"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	CreatedBy    string     `db:"created_by" json:"created_by"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	StartedAt    *time.Time `db:"started_at" json:"started_at,omitempty"`
	FinishedAt   *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}
