package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// VariableType enumerates the supported scenario variable types.
type VariableType string

const (
	VariableTypeNumber  VariableType = "number"
	VariableTypeText    VariableType = "text"
	VariableTypeBoolean VariableType = "boolean"
)

// ScenarioVariable is a single typed variable definition with its value.
type ScenarioVariable struct {
	Name  string       `json:"name"`
	Type  VariableType `json:"type"`
	Value interface{}  `json:"value"`
}

// ScenarioVariables is the ordered variable set persisted as JSONB.
type ScenarioVariables []ScenarioVariable

// Validate checks names are unique and values match their declared type.
func (v ScenarioVariables) Validate() error {
	seen := make(map[string]struct{}, len(v))
	for i, item := range v {
		if item.Name == "" {
			return fmt.Errorf("variable %d: name is required", i)
		}
		if _, ok := seen[item.Name]; ok {
			return fmt.Errorf("variable %q: duplicate name", item.Name)
		}
		seen[item.Name] = struct{}{}
		switch item.Type {
		case VariableTypeNumber:
			if _, ok := asNumber(item.Value); !ok {
				return fmt.Errorf("variable %q: value is not a number", item.Name)
			}
		case VariableTypeText:
			if _, ok := item.Value.(string); !ok {
				return fmt.Errorf("variable %q: value is not text", item.Name)
			}
		case VariableTypeBoolean:
			if _, ok := item.Value.(bool); !ok {
				return fmt.Errorf("variable %q: value is not a boolean", item.Name)
			}
		default:
			return fmt.Errorf("variable %q: unknown type %q", item.Name, item.Type)
		}
	}
	return nil
}

// Number returns the named variable as float64 when present and numeric.
func (v ScenarioVariables) Number(name string) (float64, bool) {
	for _, item := range v {
		if item.Name == name && item.Type == VariableTypeNumber {
			return asNumber(item.Value)
		}
	}
	return 0, false
}

// Value marshals variables to JSON for persistence.
func (v ScenarioVariables) Value() (driver.Value, error) {
	if v == nil {
		v = ScenarioVariables{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal scenario variables: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the variable set.
func (v *ScenarioVariables) Scan(value interface{}) error {
	if value == nil {
		*v = ScenarioVariables{}
		return nil
	}
	var data []byte
	switch raw := value.(type) {
	case []byte:
		data = raw
	case string:
		data = []byte(raw)
	default:
		return fmt.Errorf("unsupported type %T for ScenarioVariables", value)
	}
	if len(data) == 0 {
		*v = ScenarioVariables{}
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal scenario variables: %w", err)
	}
	return nil
}

func asNumber(value interface{}) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Scenario is a gradable simulation exercise scoped to a classroom and week.
type Scenario struct {
	ID          string            `db:"id" json:"id"`
	OrgID       string            `db:"org_id" json:"org_id"`
	ClassroomID string            `db:"classroom_id" json:"classroom_id"`
	Title       string            `db:"title" json:"title"`
	Description *string           `db:"description" json:"description,omitempty"`
	Week        int               `db:"week" json:"week"`
	Variables   ScenarioVariables `db:"variables" json:"variables"`
	IsPublished bool              `db:"is_published" json:"is_published"`
	IsClosed    bool              `db:"is_closed" json:"is_closed"`
	PublishedBy *string           `db:"published_by" json:"published_by,omitempty"`
	PublishedAt *time.Time        `db:"published_at" json:"published_at,omitempty"`
	CreatedBy   string            `db:"created_by" json:"created_by"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// Active reports whether the scenario is the classroom's active scenario.
func (s *Scenario) Active() bool {
	return s.IsPublished && !s.IsClosed
}

// Editable reports whether field edits are still allowed. Edits are blocked
// once the scenario is both published and closed.
func (s *Scenario) Editable() bool {
	return !(s.IsPublished && s.IsClosed)
}
