package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SubmissionInputs holds a member's input variables persisted as JSONB.
type SubmissionInputs map[string]interface{}

// Number returns the named input as float64 when present and numeric.
func (in SubmissionInputs) Number(name string) (float64, bool) {
	raw, ok := in[name]
	if !ok {
		return 0, false
	}
	return asNumber(raw)
}

// Value marshals inputs to JSON for persistence.
func (in SubmissionInputs) Value() (driver.Value, error) {
	if in == nil {
		in = SubmissionInputs{}
	}
	data, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal submission inputs: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the inputs map.
func (in *SubmissionInputs) Scan(value interface{}) error {
	if value == nil {
		*in = SubmissionInputs{}
		return nil
	}
	var data []byte
	switch raw := value.(type) {
	case []byte:
		data = raw
	case string:
		data = []byte(raw)
	default:
		return fmt.Errorf("unsupported type %T for SubmissionInputs", value)
	}
	if len(data) == 0 {
		*in = SubmissionInputs{}
		return nil
	}
	if err := json.Unmarshal(data, in); err != nil {
		return fmt.Errorf("unmarshal submission inputs: %w", err)
	}
	return nil
}

// Submission is a member's input set for a scenario. Immutable once present;
// jobs treat it as read-only input.
type Submission struct {
	ID          string           `db:"id" json:"id"`
	ScenarioID  string           `db:"scenario_id" json:"scenario_id"`
	ClassroomID string           `db:"classroom_id" json:"classroom_id"`
	MemberID    string           `db:"member_id" json:"member_id"`
	Inputs      SubmissionInputs `db:"inputs" json:"inputs"`
	SubmittedAt time.Time        `db:"submitted_at" json:"submitted_at"`
}
