package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// OutcomeScheme represents how a submission is converted into a payout.
type OutcomeScheme string

const (
	// OutcomeSchemeWeighted pays base plus weighted submission inputs.
	OutcomeSchemeWeighted OutcomeScheme = "WEIGHTED"
	// OutcomeSchemeFixed pays the base amount for every submission.
	OutcomeSchemeFixed OutcomeScheme = "FIXED"
)

// OutcomeParams holds the formula parameters persisted as JSONB.
type OutcomeParams struct {
	BaseAmount float64 `json:"base_amount"`
	// Weights maps submission input names to payout weights.
	Weights map[string]float64 `json:"weights,omitempty"`
	// ScaleVariable optionally names a numeric scenario variable applied
	// as a global multiplier.
	ScaleVariable string   `json:"scale_variable,omitempty"`
	MinPayout     *float64 `json:"min_payout,omitempty"`
	MaxPayout     *float64 `json:"max_payout,omitempty"`
}

// Value marshals params to JSON for persistence.
func (p OutcomeParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal outcome params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *OutcomeParams) Scan(value interface{}) error {
	if value == nil {
		*p = OutcomeParams{}
		return nil
	}
	var data []byte
	switch raw := value.(type) {
	case []byte:
		data = raw
	case string:
		data = []byte(raw)
	default:
		return fmt.Errorf("unsupported type %T for OutcomeParams", value)
	}
	if len(data) == 0 {
		*p = OutcomeParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal outcome params: %w", err)
	}
	return nil
}

// ScenarioOutcome is the grading/payout formula bound to a scenario. One
// record per scenario; it must exist before jobs may run.
type ScenarioOutcome struct {
	ID         string        `db:"id" json:"id"`
	ScenarioID string        `db:"scenario_id" json:"scenario_id"`
	Scheme     OutcomeScheme `db:"scheme" json:"scheme"`
	Params     OutcomeParams `db:"params" json:"params"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updated_at"`
}

// OutcomeLine is one input's contribution to a computed payout.
type OutcomeLine struct {
	Input        string  `json:"input"`
	Value        float64 `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}
