package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/simlab-api/internal/models"
	appErrors "github.com/noah-isme/simlab-api/pkg/errors"
)

type jobStore interface {
	Upsert(ctx context.Context, job *models.SimulationJob) error
	GetByID(ctx context.Context, id string) (*models.SimulationJob, error)
	ListByScenario(ctx context.Context, scenarioID string) ([]models.SimulationJob, error)
	ListPending(ctx context.Context, limit int) ([]models.SimulationJob, error)
	Claim(ctx context.Context, id string, at time.Time) (bool, error)
	MarkDone(ctx context.Context, id string, outcome models.JobOutcome, at time.Time) error
	MarkFailed(ctx context.Context, id, message string, at time.Time) error
	ResetForScenario(ctx context.Context, scenarioID string) (int64, error)
	CountByStatus(ctx context.Context, scenarioID string, status models.JobStatus) (int, error)
	ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// JobService is the read side of the job pipeline. Writes go through the
// simulation service only.
type JobService struct {
	repo   jobStore
	logger *zap.Logger
}

// NewJobService constructs the job service.
func NewJobService(repo jobStore, logger *zap.Logger) *JobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobService{repo: repo, logger: logger}
}

// Get returns a job by id.
func (s *JobService) Get(ctx context.Context, id string) (*models.SimulationJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job")
	}
	return job, nil
}

// ListByScenario returns the scenario's jobs in creation order.
func (s *JobService) ListByScenario(ctx context.Context, scenarioID string) ([]models.SimulationJob, error) {
	jobs, err := s.repo.ListByScenario(ctx, scenarioID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list jobs")
	}
	return jobs, nil
}
