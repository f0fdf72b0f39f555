package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/simlab-api/internal/models"
	appErrors "github.com/noah-isme/simlab-api/pkg/errors"
)

type activeScenarioStub struct {
	scenario *models.Scenario
	err      error
}

func (s *activeScenarioStub) GetActive(ctx context.Context, classroomID string) (*models.Scenario, error) {
	if s.err != nil {
		return nil, s.err
	}
	copy := *s.scenario
	return &copy, nil
}

type enrollmentStub struct {
	enrolled bool
}

func (s *enrollmentStub) IsUserEnrolled(ctx context.Context, classroomID, memberID string) (bool, error) {
	return s.enrolled, nil
}

func newSubmissionServiceForTest(store *submissionStoreStub, scenario *models.Scenario, enrolled bool) *SubmissionService {
	reader := &activeScenarioStub{scenario: scenario}
	if scenario == nil {
		reader.err = appErrors.Clone(appErrors.ErrNotFound, "no active scenario for classroom")
	}
	return NewSubmissionService(store, reader, &enrollmentStub{enrolled: enrolled}, nil, zap.NewNop())
}

func TestSubmissionServiceCreate(t *testing.T) {
	store := &submissionStoreStub{}
	scenario := &models.Scenario{ID: "scn-1", ClassroomID: "class-1", IsPublished: true}
	svc := newSubmissionServiceForTest(store, scenario, true)

	submission, err := svc.Create(context.Background(), "class-1", CreateSubmissionRequest{
		Inputs: models.SubmissionInputs{"yield": 3.0},
	}, "member-1")
	require.NoError(t, err)
	require.Equal(t, "scn-1", submission.ScenarioID)
	require.Equal(t, "member-1", submission.MemberID)
	require.Len(t, store.submissions, 1)
}

func TestSubmissionServiceCreateRejectsUnenrolled(t *testing.T) {
	scenario := &models.Scenario{ID: "scn-1", ClassroomID: "class-1", IsPublished: true}
	svc := newSubmissionServiceForTest(&submissionStoreStub{}, scenario, false)

	_, err := svc.Create(context.Background(), "class-1", CreateSubmissionRequest{
		Inputs: models.SubmissionInputs{"yield": 3.0},
	}, "member-1")
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestSubmissionServiceCreateRequiresActiveScenario(t *testing.T) {
	svc := newSubmissionServiceForTest(&submissionStoreStub{}, nil, true)

	_, err := svc.Create(context.Background(), "class-1", CreateSubmissionRequest{
		Inputs: models.SubmissionInputs{"yield": 3.0},
	}, "member-1")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestSubmissionServiceCreateIsImmutable(t *testing.T) {
	store := &submissionStoreStub{}
	scenario := &models.Scenario{ID: "scn-1", ClassroomID: "class-1", IsPublished: true}
	svc := newSubmissionServiceForTest(store, scenario, true)

	_, err := svc.Create(context.Background(), "class-1", CreateSubmissionRequest{
		Inputs: models.SubmissionInputs{"yield": 3.0},
	}, "member-1")
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "class-1", CreateSubmissionRequest{
		Inputs: models.SubmissionInputs{"yield": 7.0},
	}, "member-1")
	require.ErrorIs(t, err, appErrors.ErrConflict)
	require.Len(t, store.submissions, 1)
}

func TestSubmissionServiceCreateRejectsEmptyInputs(t *testing.T) {
	scenario := &models.Scenario{ID: "scn-1", ClassroomID: "class-1", IsPublished: true}
	svc := newSubmissionServiceForTest(&submissionStoreStub{}, scenario, true)

	_, err := svc.Create(context.Background(), "class-1", CreateSubmissionRequest{
		Inputs: models.SubmissionInputs{},
	}, "member-1")
	require.ErrorIs(t, err, appErrors.ErrValidation)
}
