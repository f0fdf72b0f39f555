package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/simlab-api/internal/models"
	appErrors "github.com/noah-isme/simlab-api/pkg/errors"
)

type submissionStore interface {
	Create(ctx context.Context, submission *models.Submission) error
	Get(ctx context.Context, classroomID, scenarioID, memberID string) (*models.Submission, error)
	ListByScenario(ctx context.Context, classroomID, scenarioID string) ([]models.Submission, error)
}

type enrollmentChecker interface {
	IsUserEnrolled(ctx context.Context, classroomID, memberID string) (bool, error)
}

type activeScenarioReader interface {
	GetActive(ctx context.Context, classroomID string) (*models.Scenario, error)
}

// CreateSubmissionRequest carries a member's inputs for the active scenario.
type CreateSubmissionRequest struct {
	Inputs models.SubmissionInputs `json:"inputs" validate:"required"`
}

// SubmissionService accepts member submissions against the classroom's
// active scenario. Submissions are immutable: one per member per scenario.
type SubmissionService struct {
	repo      submissionStore
	scenarios activeScenarioReader
	access    enrollmentChecker
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubmissionService constructs the submission service.
func NewSubmissionService(repo submissionStore, scenarios activeScenarioReader, access enrollmentChecker, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{repo: repo, scenarios: scenarios, access: access, validator: validate, logger: logger}
}

// Create records the member's inputs against the classroom's active
// scenario. The unique (scenario, member) index is the authority on
// duplicates; the pre-check only gives a friendlier answer on the common
// path.
func (s *SubmissionService) Create(ctx context.Context, classroomID string, req CreateSubmissionRequest, memberID string) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	if len(req.Inputs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "inputs must not be empty")
	}
	enrolled, err := s.access.IsUserEnrolled(ctx, classroomID, memberID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "member is not enrolled in this classroom")
	}
	scenario, err := s.scenarios.GetActive(ctx, classroomID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.Get(ctx, classroomID, scenario.ID, memberID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "submission already exists for this scenario")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check submission")
	}
	submission := &models.Submission{
		ScenarioID:  scenario.ID,
		ClassroomID: classroomID,
		MemberID:    memberID,
		Inputs:      req.Inputs,
	}
	if err := s.repo.Create(ctx, submission); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "submission already exists for this scenario")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission")
	}
	return submission, nil
}

// Get returns the member's own submission for a scenario.
func (s *SubmissionService) Get(ctx context.Context, classroomID, scenarioID, memberID string) (*models.Submission, error) {
	submission, err := s.repo.Get(ctx, classroomID, scenarioID, memberID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	return submission, nil
}

// ListByScenario returns a scenario's submissions for its classroom admin.
func (s *SubmissionService) ListByScenario(ctx context.Context, classroomID, scenarioID string) ([]models.Submission, error) {
	submissions, err := s.repo.ListByScenario(ctx, classroomID, scenarioID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return submissions, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
