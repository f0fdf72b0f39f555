package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/simlab-api/internal/models"
)

const scenarioColumns = `id, org_id, classroom_id, title, description, week, variables, is_published, is_closed, published_by, published_at, created_by, created_at, updated_at`

// ScenarioRepository persists scenarios and enforces the single-active
// invariant at write time.
type ScenarioRepository struct {
	db *sqlx.DB
}

// NewScenarioRepository constructs the repository.
func NewScenarioRepository(db *sqlx.DB) *ScenarioRepository {
	return &ScenarioRepository{db: db}
}

// Create inserts a new scenario row with generated defaults.
func (r *ScenarioRepository) Create(ctx context.Context, scenario *models.Scenario) error {
	if scenario.ID == "" {
		scenario.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if scenario.CreatedAt.IsZero() {
		scenario.CreatedAt = now
	}
	scenario.UpdatedAt = now
	const query = `INSERT INTO scenarios (id, org_id, classroom_id, title, description, week, variables, is_published, is_closed, published_by, published_at, created_by, created_at, updated_at)
VALUES (:id, :org_id, :classroom_id, :title, :description, :week, :variables, :is_published, :is_closed, :published_by, :published_at, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, scenario); err != nil {
		return fmt.Errorf("create scenario: %w", err)
	}
	return nil
}

// Update rewrites the editable fields of a scenario.
func (r *ScenarioRepository) Update(ctx context.Context, scenario *models.Scenario) error {
	scenario.UpdatedAt = time.Now().UTC()
	const query = `UPDATE scenarios SET title = :title, description = :description, week = :week, variables = :variables, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, scenario); err != nil {
		return fmt.Errorf("update scenario: %w", err)
	}
	return nil
}

// GetByID returns a scenario, optionally scoped to an organization.
func (r *ScenarioRepository) GetByID(ctx context.Context, id, orgID string) (*models.Scenario, error) {
	query := `SELECT ` + scenarioColumns + ` FROM scenarios WHERE id = $1`
	args := []interface{}{id}
	if orgID != "" {
		query += ` AND org_id = $2`
		args = append(args, orgID)
	}
	var scenario models.Scenario
	if err := r.db.GetContext(ctx, &scenario, query, args...); err != nil {
		return nil, fmt.Errorf("get scenario: %w", err)
	}
	return &scenario, nil
}

// FindActiveByClassroom returns the classroom's published, not closed
// scenario. sql.ErrNoRows when there is none.
func (r *ScenarioRepository) FindActiveByClassroom(ctx context.Context, classroomID string) (*models.Scenario, error) {
	const query = `SELECT ` + scenarioColumns + ` FROM scenarios WHERE classroom_id = $1 AND is_published = TRUE AND is_closed = FALSE`
	var scenario models.Scenario
	if err := r.db.GetContext(ctx, &scenario, query, classroomID); err != nil {
		return nil, fmt.Errorf("find active scenario: %w", err)
	}
	return &scenario, nil
}

// Publish flips is_published under the single-active guard. The NOT EXISTS
// clause makes the check and the write one atomic statement, so two
// concurrent publishes in a classroom cannot both succeed. Returns false
// when no row qualified.
func (r *ScenarioRepository) Publish(ctx context.Context, id, actorID string, at time.Time) (bool, error) {
	const query = `UPDATE scenarios SET is_published = TRUE, published_by = $2, published_at = $3, updated_at = $3
WHERE id = $1 AND is_published = FALSE AND is_closed = FALSE
AND NOT EXISTS (
	SELECT 1 FROM scenarios other
	WHERE other.classroom_id = scenarios.classroom_id
	AND other.id <> scenarios.id
	AND other.is_published = TRUE AND other.is_closed = FALSE
)`
	res, err := r.db.ExecContext(ctx, query, id, actorID, at)
	if err != nil {
		return false, fmt.Errorf("publish scenario: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("publish scenario: %w", err)
	}
	return affected > 0, nil
}

// Unpublish clears is_published while the scenario is still open.
func (r *ScenarioRepository) Unpublish(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `UPDATE scenarios SET is_published = FALSE, published_by = NULL, published_at = NULL, updated_at = $2
WHERE id = $1 AND is_published = TRUE AND is_closed = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("unpublish scenario: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unpublish scenario: %w", err)
	}
	return affected > 0, nil
}

// Close marks the scenario terminal for grading.
func (r *ScenarioRepository) Close(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `UPDATE scenarios SET is_closed = TRUE, updated_at = $2 WHERE id = $1 AND is_closed = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("close scenario: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("close scenario: %w", err)
	}
	return affected > 0, nil
}

// ListByClassroom returns the classroom's scenarios, newest week first.
func (r *ScenarioRepository) ListByClassroom(ctx context.Context, classroomID string) ([]models.Scenario, error) {
	const query = `SELECT ` + scenarioColumns + ` FROM scenarios WHERE classroom_id = $1 ORDER BY week DESC, created_at DESC`
	var scenarios []models.Scenario
	if err := r.db.SelectContext(ctx, &scenarios, query, classroomID); err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	return scenarios, nil
}
