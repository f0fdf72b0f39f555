package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/simlab-api/internal/models"
)

const submissionColumns = `id, scenario_id, classroom_id, member_id, inputs, submitted_at`

// SubmissionRepository persists member submissions. Rows are immutable; the
// unique (scenario_id, member_id) index rejects resubmission.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create inserts a submission row.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO submissions (id, scenario_id, classroom_id, member_id, inputs, submitted_at)
VALUES (:id, :scenario_id, :classroom_id, :member_id, :inputs, :submitted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// Get returns one member's submission. sql.ErrNoRows when absent.
func (r *SubmissionRepository) Get(ctx context.Context, classroomID, scenarioID, memberID string) (*models.Submission, error) {
	const query = `SELECT ` + submissionColumns + ` FROM submissions WHERE classroom_id = $1 AND scenario_id = $2 AND member_id = $3`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, classroomID, scenarioID, memberID); err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return &submission, nil
}

// ListByScenario returns all submissions for a scenario in submission order.
func (r *SubmissionRepository) ListByScenario(ctx context.Context, classroomID, scenarioID string) ([]models.Submission, error) {
	const query = `SELECT ` + submissionColumns + ` FROM submissions WHERE classroom_id = $1 AND scenario_id = $2 ORDER BY submitted_at ASC, id ASC`
	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, classroomID, scenarioID); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}
