package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/simlab-api/internal/models"
)

const jobColumns = `id, scenario_id, classroom_id, member_id, dry_run, status, result, error_message, created_by, created_at, started_at, finished_at`

// JobRepository persists simulation jobs. Job identity is
// (scenario_id, member_id); inserts are idempotent on that key.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository constructs the repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Upsert inserts a job for the (scenario, member) pair if absent. An
// existing row keeps its status and result; only the dry_run flag follows
// the latest request.
func (r *JobRepository) Upsert(ctx context.Context, job *models.SimulationJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO simulation_jobs (id, scenario_id, classroom_id, member_id, dry_run, status, result, error_message, created_by, created_at, started_at, finished_at)
VALUES (:id, :scenario_id, :classroom_id, :member_id, :dry_run, :status, :result, :error_message, :created_by, :created_at, :started_at, :finished_at)
ON CONFLICT (scenario_id, member_id) DO UPDATE SET dry_run = EXCLUDED.dry_run`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("upsert simulation job: %w", err)
	}
	return nil
}

// GetByID returns a job row by its identifier.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.SimulationJob, error) {
	const query = `SELECT ` + jobColumns + ` FROM simulation_jobs WHERE id = $1`
	var job models.SimulationJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, fmt.Errorf("get simulation job: %w", err)
	}
	return &job, nil
}

// ListByScenario returns all jobs for a scenario in creation order.
func (r *JobRepository) ListByScenario(ctx context.Context, scenarioID string) ([]models.SimulationJob, error) {
	const query = `SELECT ` + jobColumns + ` FROM simulation_jobs WHERE scenario_id = $1 ORDER BY created_at ASC, id ASC`
	var jobs []models.SimulationJob
	if err := r.db.SelectContext(ctx, &jobs, query, scenarioID); err != nil {
		return nil, fmt.Errorf("list simulation jobs: %w", err)
	}
	return jobs, nil
}

// ListPending fetches up to limit pending jobs, oldest first with id as the
// deterministic tie-break.
func (r *JobRepository) ListPending(ctx context.Context, limit int) ([]models.SimulationJob, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT ` + jobColumns + ` FROM simulation_jobs WHERE status = 'PENDING' ORDER BY created_at ASC, id ASC LIMIT $1`
	var jobs []models.SimulationJob
	if err := r.db.SelectContext(ctx, &jobs, query, limit); err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}
	return jobs, nil
}

// Claim transitions a single job PENDING -> PROCESSING. The status
// condition makes the claim atomic: of two concurrent workers exactly one
// sees an affected row.
func (r *JobRepository) Claim(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `UPDATE simulation_jobs SET status = 'PROCESSING', started_at = $2, error_message = NULL WHERE id = $1 AND status = 'PENDING'`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	return affected > 0, nil
}

// MarkDone records the computed outcome and finishes the job. Guarded on
// PROCESSING so a reset that raced the worker is not overwritten.
func (r *JobRepository) MarkDone(ctx context.Context, id string, outcome models.JobOutcome, at time.Time) error {
	const query = `UPDATE simulation_jobs SET status = 'DONE', result = $2, error_message = NULL, finished_at = $3 WHERE id = $1 AND status = 'PROCESSING'`
	if _, err := r.db.ExecContext(ctx, query, id, outcome, at); err != nil {
		return fmt.Errorf("mark job done: %w", err)
	}
	return nil
}

// MarkFailed records the failure detail for inspection.
func (r *JobRepository) MarkFailed(ctx context.Context, id, message string, at time.Time) error {
	const query = `UPDATE simulation_jobs SET status = 'FAILED', error_message = $2, finished_at = $3 WHERE id = $1 AND status = 'PROCESSING'`
	if _, err := r.db.ExecContext(ctx, query, id, message, at); err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	return nil
}

// ResetForScenario returns every job of the scenario to PENDING with result
// and error cleared. Rows are kept, which is what makes rerun idempotent.
func (r *JobRepository) ResetForScenario(ctx context.Context, scenarioID string) (int64, error) {
	const query = `UPDATE simulation_jobs SET status = 'PENDING', result = NULL, error_message = NULL, started_at = NULL, finished_at = NULL WHERE scenario_id = $1`
	res, err := r.db.ExecContext(ctx, query, scenarioID)
	if err != nil {
		return 0, fmt.Errorf("reset simulation jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset simulation jobs: %w", err)
	}
	return affected, nil
}

// CountByStatus counts a scenario's jobs in the given status. Used to keep
// reruns from overlapping an in-flight batch.
func (r *JobRepository) CountByStatus(ctx context.Context, scenarioID string, status models.JobStatus) (int, error) {
	const query = `SELECT COUNT(*) FROM simulation_jobs WHERE scenario_id = $1 AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, scenarioID, status); err != nil {
		return 0, fmt.Errorf("count jobs by status: %w", err)
	}
	return count, nil
}

// ReclaimStale returns jobs stuck in PROCESSING since before the cutoff to
// PENDING so a later poll re-selects them after a worker crash.
func (r *JobRepository) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `UPDATE simulation_jobs SET status = 'PENDING', started_at = NULL WHERE status = 'PROCESSING' AND started_at IS NOT NULL AND started_at < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return affected, nil
}
