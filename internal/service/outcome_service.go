package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/simlab-api/internal/models"
	appErrors "github.com/noah-isme/simlab-api/pkg/errors"
)

type outcomeStore interface {
	Upsert(ctx context.Context, outcome *models.ScenarioOutcome) error
	GetByScenario(ctx context.Context, scenarioID string) (*models.ScenarioOutcome, error)
}

type scenarioReader interface {
	GetByID(ctx context.Context, id, orgID string) (*models.Scenario, error)
}

// UpsertOutcomeRequest carries the grading formula for a scenario.
type UpsertOutcomeRequest struct {
	Scheme models.OutcomeScheme `json:"scheme" validate:"required,oneof=WEIGHTED FIXED"`
	Params models.OutcomeParams `json:"params"`
}

// OutcomeService manages the per-scenario payout formula.
type OutcomeService struct {
	repo      outcomeStore
	scenarios scenarioReader
	access    adminAccessChecker
	validator *validator.Validate
	logger    *zap.Logger
}

// NewOutcomeService constructs the outcome service.
func NewOutcomeService(repo outcomeStore, scenarios scenarioReader, access adminAccessChecker, validate *validator.Validate, logger *zap.Logger) *OutcomeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutcomeService{repo: repo, scenarios: scenarios, access: access, validator: validate, logger: logger}
}

// Upsert sets or replaces the scenario's formula. The formula stays
// editable for the whole open lifecycle; a closed scenario's formula is
// frozen with it.
func (s *OutcomeService) Upsert(ctx context.Context, scenarioID string, req UpsertOutcomeRequest, actorID, orgID string) (*models.ScenarioOutcome, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid outcome payload")
	}
	if err := validateOutcomeParams(req.Scheme, req.Params); err != nil {
		return nil, err
	}
	scenario, err := s.loadScenario(ctx, scenarioID, orgID)
	if err != nil {
		return nil, err
	}
	if err := s.access.ValidateAdminAccess(ctx, scenario.ClassroomID, actorID, orgID); err != nil {
		return nil, err
	}
	if scenario.IsClosed {
		return nil, appErrors.ErrAlreadyClosed
	}
	outcome := &models.ScenarioOutcome{
		ScenarioID: scenario.ID,
		Scheme:     req.Scheme,
		Params:     req.Params,
	}
	if err := s.repo.Upsert(ctx, outcome); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save outcome")
	}
	return outcome, nil
}

// Get returns the scenario's formula, OUTCOME_NOT_SET when missing.
func (s *OutcomeService) Get(ctx context.Context, scenarioID, orgID string) (*models.ScenarioOutcome, error) {
	if _, err := s.loadScenario(ctx, scenarioID, orgID); err != nil {
		return nil, err
	}
	outcome, err := s.repo.GetByScenario(ctx, scenarioID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrOutcomeNotSet
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load outcome")
	}
	return outcome, nil
}

func (s *OutcomeService) loadScenario(ctx context.Context, id, orgID string) (*models.Scenario, error) {
	scenario, err := s.scenarios.GetByID(ctx, id, orgID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "scenario not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scenario")
	}
	return scenario, nil
}

func validateOutcomeParams(scheme models.OutcomeScheme, params models.OutcomeParams) error {
	if params.BaseAmount < 0 {
		return appErrors.Clone(appErrors.ErrValidation, "base_amount must not be negative")
	}
	if params.MinPayout != nil && params.MaxPayout != nil && *params.MinPayout > *params.MaxPayout {
		return appErrors.Clone(appErrors.ErrValidation, "min_payout exceeds max_payout")
	}
	switch scheme {
	case models.OutcomeSchemeWeighted:
		if len(params.Weights) == 0 {
			return appErrors.Clone(appErrors.ErrValidation, "weighted scheme requires at least one weight")
		}
	case models.OutcomeSchemeFixed:
		if len(params.Weights) > 0 {
			return appErrors.Clone(appErrors.ErrValidation, "fixed scheme does not accept weights")
		}
	}
	return nil
}
