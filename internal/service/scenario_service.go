package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/simlab-api/internal/models"
	appErrors "github.com/noah-isme/simlab-api/pkg/errors"
)

type scenarioStore interface {
	Create(ctx context.Context, scenario *models.Scenario) error
	Update(ctx context.Context, scenario *models.Scenario) error
	GetByID(ctx context.Context, id, orgID string) (*models.Scenario, error)
	FindActiveByClassroom(ctx context.Context, classroomID string) (*models.Scenario, error)
	Publish(ctx context.Context, id, actorID string, at time.Time) (bool, error)
	Unpublish(ctx context.Context, id string, at time.Time) (bool, error)
	Close(ctx context.Context, id string, at time.Time) (bool, error)
	ListByClassroom(ctx context.Context, classroomID string) ([]models.Scenario, error)
}

type adminAccessChecker interface {
	ValidateAdminAccess(ctx context.Context, classroomID, actorID, orgID string) error
}

// VariableRequest is one typed variable definition in scenario payloads.
type VariableRequest struct {
	Name  string              `json:"name" validate:"required"`
	Type  models.VariableType `json:"type" validate:"required"`
	Value interface{}         `json:"value"`
}

// CreateScenarioRequest carries the fields for a new scenario.
type CreateScenarioRequest struct {
	ClassroomID string            `json:"classroom_id" validate:"required"`
	Title       string            `json:"title" validate:"required"`
	Description *string           `json:"description"`
	Week        int               `json:"week" validate:"required,min=1"`
	Variables   []VariableRequest `json:"variables" validate:"dive"`
}

// UpdateScenarioRequest carries editable scenario fields. Variables are
// optional; nil leaves the stored set untouched.
type UpdateScenarioRequest struct {
	Title       string             `json:"title" validate:"required"`
	Description *string            `json:"description"`
	Week        int                `json:"week" validate:"required,min=1"`
	Variables   *[]VariableRequest `json:"variables" validate:"omitempty,dive"`
}

// ScenarioService owns the scenario lifecycle: create, edit, publish,
// unpublish, close, and the variables cache the worker reads from.
type ScenarioService struct {
	repo      scenarioStore
	access    adminAccessChecker
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScenarioService constructs the scenario service.
func NewScenarioService(repo scenarioStore, access adminAccessChecker, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *ScenarioService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScenarioService{
		repo:      repo,
		access:    access,
		cache:     cache,
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger,
	}
}

func variablesCacheKey(scenarioID string) string {
	return "scenario:variables:" + scenarioID
}

// Create validates the variable definitions and persists the scenario in
// its editable, unpublished state.
func (s *ScenarioService) Create(ctx context.Context, req CreateScenarioRequest, actorID, orgID string) (*models.Scenario, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scenario payload")
	}
	if err := s.access.ValidateAdminAccess(ctx, req.ClassroomID, actorID, orgID); err != nil {
		return nil, err
	}
	variables := toVariables(req.Variables)
	if err := variables.Validate(); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	scenario := &models.Scenario{
		OrgID:       orgID,
		ClassroomID: req.ClassroomID,
		Title:       req.Title,
		Description: req.Description,
		Week:        req.Week,
		Variables:   variables,
		CreatedBy:   actorID,
	}
	if err := s.repo.Create(ctx, scenario); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create scenario")
	}
	return scenario, nil
}

// Update rewrites editable fields. Edits are refused once the scenario is
// both published and closed. A variable rewrite revalidates the set and
// invalidates the cached copy before anything can read it stale.
func (s *ScenarioService) Update(ctx context.Context, id string, req UpdateScenarioRequest, actorID, orgID string) (*models.Scenario, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scenario payload")
	}
	scenario, err := s.getScenario(ctx, id, orgID)
	if err != nil {
		return nil, err
	}
	if err := s.access.ValidateAdminAccess(ctx, scenario.ClassroomID, actorID, orgID); err != nil {
		return nil, err
	}
	if !scenario.Editable() {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "scenario is published and closed, edits are not allowed")
	}
	scenario.Title = req.Title
	scenario.Description = req.Description
	scenario.Week = req.Week
	variablesChanged := false
	if req.Variables != nil {
		variables := toVariables(*req.Variables)
		if err := variables.Validate(); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		scenario.Variables = variables
		variablesChanged = true
	}
	if err := s.repo.Update(ctx, scenario); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update scenario")
	}
	if variablesChanged {
		_ = s.cache.Invalidate(ctx, variablesCacheKey(scenario.ID))
	}
	return scenario, nil
}

// Publish makes the scenario the classroom's active scenario. The
// repository guard is the authority; the pre-checks exist to classify the
// failure and to carry the conflicting scenario's id and title.
func (s *ScenarioService) Publish(ctx context.Context, id, actorID, orgID string) (*models.Scenario, error) {
	scenario, err := s.getScenario(ctx, id, orgID)
	if err != nil {
		return nil, err
	}
	if err := s.access.ValidateAdminAccess(ctx, scenario.ClassroomID, actorID, orgID); err != nil {
		return nil, err
	}
	if scenario.IsPublished {
		return nil, appErrors.ErrAlreadyPublished
	}
	if scenario.IsClosed {
		return nil, appErrors.ErrAlreadyClosed
	}
	if conflictErr := s.activeConflict(ctx, scenario); conflictErr != nil {
		return nil, conflictErr
	}
	ok, err := s.repo.Publish(ctx, scenario.ID, actorID, time.Now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish scenario")
	}
	if !ok {
		// Lost a race since the pre-check; classify against fresh state.
		fresh, freshErr := s.getScenario(ctx, id, orgID)
		if freshErr != nil {
			return nil, freshErr
		}
		switch {
		case fresh.IsClosed:
			return nil, appErrors.ErrAlreadyClosed
		case fresh.IsPublished:
			return nil, appErrors.ErrAlreadyPublished
		default:
			if conflictErr := s.activeConflict(ctx, fresh); conflictErr != nil {
				return nil, conflictErr
			}
			return nil, appErrors.ErrActiveScenarioConflict
		}
	}
	return s.getScenario(ctx, id, orgID)
}

// Unpublish withdraws a published, still open scenario.
func (s *ScenarioService) Unpublish(ctx context.Context, id, actorID, orgID string) (*models.Scenario, error) {
	scenario, err := s.getScenario(ctx, id, orgID)
	if err != nil {
		return nil, err
	}
	if err := s.access.ValidateAdminAccess(ctx, scenario.ClassroomID, actorID, orgID); err != nil {
		return nil, err
	}
	if scenario.IsClosed {
		return nil, appErrors.ErrAlreadyClosed
	}
	if !scenario.IsPublished {
		return nil, appErrors.ErrNotPublished
	}
	ok, err := s.repo.Unpublish(ctx, scenario.ID, time.Now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unpublish scenario")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "scenario state changed concurrently")
	}
	return s.getScenario(ctx, id, orgID)
}

// Close ends the scenario's grading lifecycle. Terminal.
func (s *ScenarioService) Close(ctx context.Context, id, actorID, orgID string) (*models.Scenario, error) {
	scenario, err := s.getScenario(ctx, id, orgID)
	if err != nil {
		return nil, err
	}
	if err := s.access.ValidateAdminAccess(ctx, scenario.ClassroomID, actorID, orgID); err != nil {
		return nil, err
	}
	if scenario.IsClosed {
		return nil, appErrors.ErrAlreadyClosed
	}
	ok, err := s.repo.Close(ctx, scenario.ID, time.Now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close scenario")
	}
	if !ok {
		return nil, appErrors.ErrAlreadyClosed
	}
	return s.getScenario(ctx, id, orgID)
}

// GetByID returns the scenario scoped to an organization.
func (s *ScenarioService) GetByID(ctx context.Context, id, orgID string) (*models.Scenario, error) {
	return s.getScenario(ctx, id, orgID)
}

// GetActive returns the classroom's published, not closed scenario.
func (s *ScenarioService) GetActive(ctx context.Context, classroomID string) (*models.Scenario, error) {
	scenario, err := s.repo.FindActiveByClassroom(ctx, classroomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active scenario for classroom")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active scenario")
	}
	return scenario, nil
}

// List returns a classroom's scenarios.
func (s *ScenarioService) List(ctx context.Context, classroomID string) ([]models.Scenario, error) {
	scenarios, err := s.repo.ListByClassroom(ctx, classroomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list scenarios")
	}
	return scenarios, nil
}

// Variables serves the scenario's variables through the read-through
// cache. Workers call this on every job; the cache entry is invalidated on
// each variable mutation, so a hit is never stale.
func (s *ScenarioService) Variables(ctx context.Context, scenarioID string) (models.ScenarioVariables, error) {
	key := variablesCacheKey(scenarioID)
	var cached models.ScenarioVariables
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}
	scenario, err := s.getScenario(ctx, scenarioID, "")
	if err != nil {
		return nil, err
	}
	if err := scenario.Variables.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "stored scenario variables are invalid")
	}
	_ = s.cache.Set(ctx, key, scenario.Variables, s.cacheTTL)
	return scenario.Variables, nil
}

func (s *ScenarioService) getScenario(ctx context.Context, id, orgID string) (*models.Scenario, error) {
	scenario, err := s.repo.GetByID(ctx, id, orgID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "scenario not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scenario")
	}
	return scenario, nil
}

func (s *ScenarioService) activeConflict(ctx context.Context, scenario *models.Scenario) error {
	active, err := s.repo.FindActiveByClassroom(ctx, scenario.ClassroomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active scenario")
	}
	if active.ID == scenario.ID {
		return nil
	}
	return appErrors.WithDetails(appErrors.ErrActiveScenarioConflict, "", map[string]string{
		"scenario_id":    active.ID,
		"scenario_title": active.Title,
	})
}

func toVariables(reqs []VariableRequest) models.ScenarioVariables {
	variables := make(models.ScenarioVariables, 0, len(reqs))
	for _, req := range reqs {
		variables = append(variables, models.ScenarioVariable{Name: req.Name, Type: req.Type, Value: req.Value})
	}
	return variables
}
