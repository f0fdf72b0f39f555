package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// LedgerBreakdown records how an entry's amount was derived.
type LedgerBreakdown struct {
	Scheme OutcomeScheme `json:"scheme"`
	Lines  []OutcomeLine `json:"lines,omitempty"`
	Note   string        `json:"note,omitempty"`
}

// Value marshals the breakdown to JSON for persistence.
func (b LedgerBreakdown) Value() (driver.Value, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshal ledger breakdown: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the breakdown struct.
func (b *LedgerBreakdown) Scan(value interface{}) error {
	if value == nil {
		*b = LedgerBreakdown{}
		return nil
	}
	var data []byte
	switch raw := value.(type) {
	case []byte:
		data = raw
	case string:
		data = []byte(raw)
	default:
		return fmt.Errorf("unsupported type %T for LedgerBreakdown", value)
	}
	if len(data) == 0 {
		*b = LedgerBreakdown{}
		return nil
	}
	if err := json.Unmarshal(data, b); err != nil {
		return fmt.Errorf("unmarshal ledger breakdown: %w", err)
	}
	return nil
}

// LedgerEntry is the durable computed outcome, unique per
// (scenario_id, member_id). Never mutated in place; a rerun deletes the
// scenario's entries before recreating them.
type LedgerEntry struct {
	ID          string          `db:"id" json:"id"`
	ScenarioID  string          `db:"scenario_id" json:"scenario_id"`
	ClassroomID string          `db:"classroom_id" json:"classroom_id"`
	MemberID    string          `db:"member_id" json:"member_id"`
	Amount      float64         `db:"amount" json:"amount"`
	Breakdown   LedgerBreakdown `db:"breakdown" json:"breakdown"`
	PostedAt    time.Time       `db:"posted_at" json:"posted_at"`
}
