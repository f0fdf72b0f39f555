package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/simlab-api/internal/models"
)

// OutcomeRepository persists the per-scenario grading/payout formula.
type OutcomeRepository struct {
	db *sqlx.DB
}

// NewOutcomeRepository constructs the repository.
func NewOutcomeRepository(db *sqlx.DB) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

// Upsert writes the formula, one row per scenario.
func (r *OutcomeRepository) Upsert(ctx context.Context, outcome *models.ScenarioOutcome) error {
	if outcome.ID == "" {
		outcome.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if outcome.CreatedAt.IsZero() {
		outcome.CreatedAt = now
	}
	outcome.UpdatedAt = now
	const query = `INSERT INTO scenario_outcomes (id, scenario_id, scheme, params, created_at, updated_at)
VALUES (:id, :scenario_id, :scheme, :params, :created_at, :updated_at)
ON CONFLICT (scenario_id) DO UPDATE SET scheme = EXCLUDED.scheme, params = EXCLUDED.params, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, outcome); err != nil {
		return fmt.Errorf("upsert scenario outcome: %w", err)
	}
	return nil
}

// GetByScenario returns the scenario's formula. sql.ErrNoRows when unset.
func (r *OutcomeRepository) GetByScenario(ctx context.Context, scenarioID string) (*models.ScenarioOutcome, error) {
	const query = `SELECT id, scenario_id, scheme, params, created_at, updated_at FROM scenario_outcomes WHERE scenario_id = $1`
	var outcome models.ScenarioOutcome
	if err := r.db.GetContext(ctx, &outcome, query, scenarioID); err != nil {
		return nil, fmt.Errorf("get scenario outcome: %w", err)
	}
	return &outcome, nil
}
