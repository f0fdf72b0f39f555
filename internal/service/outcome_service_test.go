package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/simlab-api/internal/models"
	appErrors "github.com/noah-isme/simlab-api/pkg/errors"
)

func newOutcomeServiceForTest(store *outcomeStoreStub, scenario *models.Scenario) *OutcomeService {
	return NewOutcomeService(store, &scenarioReaderStub{scenario: scenario}, &accessStub{}, nil, zap.NewNop())
}

func TestOutcomeServiceUpsertWeighted(t *testing.T) {
	store := &outcomeStoreStub{}
	scenario := &models.Scenario{ID: "scn-1", OrgID: "org-1", ClassroomID: "class-1"}
	svc := newOutcomeServiceForTest(store, scenario)

	outcome, err := svc.Upsert(context.Background(), "scn-1", UpsertOutcomeRequest{
		Scheme: models.OutcomeSchemeWeighted,
		Params: models.OutcomeParams{BaseAmount: 10, Weights: map[string]float64{"yield": 2}},
	}, "admin-1", "org-1")
	require.NoError(t, err)
	require.Equal(t, models.OutcomeSchemeWeighted, outcome.Scheme)
	require.NotNil(t, store.outcome)
}

func TestOutcomeServiceUpsertWeightedRequiresWeights(t *testing.T) {
	scenario := &models.Scenario{ID: "scn-1", OrgID: "org-1", ClassroomID: "class-1"}
	svc := newOutcomeServiceForTest(&outcomeStoreStub{}, scenario)

	_, err := svc.Upsert(context.Background(), "scn-1", UpsertOutcomeRequest{
		Scheme: models.OutcomeSchemeWeighted,
		Params: models.OutcomeParams{BaseAmount: 10},
	}, "admin-1", "org-1")
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestOutcomeServiceUpsertRejectsInvertedClamp(t *testing.T) {
	scenario := &models.Scenario{ID: "scn-1", OrgID: "org-1", ClassroomID: "class-1"}
	svc := newOutcomeServiceForTest(&outcomeStoreStub{}, scenario)

	min, max := 100.0, 50.0
	_, err := svc.Upsert(context.Background(), "scn-1", UpsertOutcomeRequest{
		Scheme: models.OutcomeSchemeFixed,
		Params: models.OutcomeParams{BaseAmount: 10, MinPayout: &min, MaxPayout: &max},
	}, "admin-1", "org-1")
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestOutcomeServiceUpsertRejectedOnClosedScenario(t *testing.T) {
	scenario := &models.Scenario{ID: "scn-1", OrgID: "org-1", ClassroomID: "class-1", IsPublished: true, IsClosed: true}
	svc := newOutcomeServiceForTest(&outcomeStoreStub{}, scenario)

	_, err := svc.Upsert(context.Background(), "scn-1", UpsertOutcomeRequest{
		Scheme: models.OutcomeSchemeFixed,
		Params: models.OutcomeParams{BaseAmount: 10},
	}, "admin-1", "org-1")
	require.ErrorIs(t, err, appErrors.ErrAlreadyClosed)
}

func TestOutcomeServiceGetUnset(t *testing.T) {
	scenario := &models.Scenario{ID: "scn-1", OrgID: "org-1", ClassroomID: "class-1"}
	svc := newOutcomeServiceForTest(&outcomeStoreStub{}, scenario)

	_, err := svc.Get(context.Background(), "scn-1", "org-1")
	require.ErrorIs(t, err, appErrors.ErrOutcomeNotSet)
}
