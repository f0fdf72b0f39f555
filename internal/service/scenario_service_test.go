package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/simlab-api/internal/models"
	appErrors "github.com/noah-isme/simlab-api/pkg/errors"
)

type scenarioStoreStub struct {
	scenarios map[string]*models.Scenario
	seq       int
}

func newScenarioStoreStub() *scenarioStoreStub {
	return &scenarioStoreStub{scenarios: make(map[string]*models.Scenario)}
}

func (s *scenarioStoreStub) add(scenario *models.Scenario) *models.Scenario {
	if scenario.ID == "" {
		s.seq++
		scenario.ID = fmt.Sprintf("scn-%d", s.seq)
	}
	stored := *scenario
	s.scenarios[scenario.ID] = &stored
	return &stored
}

func (s *scenarioStoreStub) Create(ctx context.Context, scenario *models.Scenario) error {
	s.seq++
	scenario.ID = fmt.Sprintf("scn-%d", s.seq)
	scenario.CreatedAt = time.Now().UTC()
	stored := *scenario
	s.scenarios[scenario.ID] = &stored
	return nil
}

func (s *scenarioStoreStub) Update(ctx context.Context, scenario *models.Scenario) error {
	stored, ok := s.scenarios[scenario.ID]
	if !ok {
		return sql.ErrNoRows
	}
	stored.Title = scenario.Title
	stored.Description = scenario.Description
	stored.Week = scenario.Week
	stored.Variables = scenario.Variables
	return nil
}

func (s *scenarioStoreStub) GetByID(ctx context.Context, id, orgID string) (*models.Scenario, error) {
	scenario, ok := s.scenarios[id]
	if !ok || (orgID != "" && scenario.OrgID != orgID) {
		return nil, sql.ErrNoRows
	}
	copy := *scenario
	return &copy, nil
}

func (s *scenarioStoreStub) FindActiveByClassroom(ctx context.Context, classroomID string) (*models.Scenario, error) {
	for i := 1; i <= s.seq; i++ {
		scenario, ok := s.scenarios[fmt.Sprintf("scn-%d", i)]
		if ok && scenario.ClassroomID == classroomID && scenario.Active() {
			copy := *scenario
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *scenarioStoreStub) Publish(ctx context.Context, id, actorID string, at time.Time) (bool, error) {
	scenario, ok := s.scenarios[id]
	if !ok || scenario.IsPublished || scenario.IsClosed {
		return false, nil
	}
	for _, other := range s.scenarios {
		if other.ID != id && other.ClassroomID == scenario.ClassroomID && other.Active() {
			return false, nil
		}
	}
	scenario.IsPublished = true
	scenario.PublishedBy = &actorID
	scenario.PublishedAt = &at
	return true, nil
}

func (s *scenarioStoreStub) Unpublish(ctx context.Context, id string, at time.Time) (bool, error) {
	scenario, ok := s.scenarios[id]
	if !ok || !scenario.IsPublished || scenario.IsClosed {
		return false, nil
	}
	scenario.IsPublished = false
	scenario.PublishedBy = nil
	scenario.PublishedAt = nil
	return true, nil
}

func (s *scenarioStoreStub) Close(ctx context.Context, id string, at time.Time) (bool, error) {
	scenario, ok := s.scenarios[id]
	if !ok || scenario.IsClosed {
		return false, nil
	}
	scenario.IsClosed = true
	return true, nil
}

func (s *scenarioStoreStub) ListByClassroom(ctx context.Context, classroomID string) ([]models.Scenario, error) {
	var out []models.Scenario
	for _, scenario := range s.scenarios {
		if scenario.ClassroomID == classroomID {
			out = append(out, *scenario)
		}
	}
	return out, nil
}

type cacheRepoStub struct {
	values  map[string][]byte
	deletes []string
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{values: make(map[string][]byte)}
}

func (s *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := s.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.values[key] = raw
	return nil
}

func (s *cacheRepoStub) Delete(ctx context.Context, key string) error {
	s.deletes = append(s.deletes, key)
	delete(s.values, key)
	return nil
}

func newScenarioServiceForTest(store *scenarioStoreStub, cacheRepo CacheRepository) *ScenarioService {
	var cacheSvc *CacheService
	if cacheRepo != nil {
		cacheSvc = NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	} else {
		cacheSvc = NewCacheService(nil, nil, time.Minute, zap.NewNop(), false)
	}
	return NewScenarioService(store, &accessStub{}, cacheSvc, time.Minute, nil, zap.NewNop())
}

func TestScenarioServiceCreateRejectsDuplicateVariables(t *testing.T) {
	svc := newScenarioServiceForTest(newScenarioStoreStub(), nil)

	_, err := svc.Create(context.Background(), CreateScenarioRequest{
		ClassroomID: "class-1",
		Title:       "Week 1",
		Week:        1,
		Variables: []VariableRequest{
			{Name: "price", Type: models.VariableTypeNumber, Value: 4.0},
			{Name: "price", Type: models.VariableTypeNumber, Value: 5.0},
		},
	}, "admin-1", "org-1")
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestScenarioServicePublishConflictCarriesActiveDetails(t *testing.T) {
	store := newScenarioStoreStub()
	active := store.add(&models.Scenario{OrgID: "org-1", ClassroomID: "class-1", Title: "Week 2 Auction", Week: 2, IsPublished: true})
	next := store.add(&models.Scenario{OrgID: "org-1", ClassroomID: "class-1", Title: "Week 3 Market", Week: 3})
	svc := newScenarioServiceForTest(store, nil)

	_, err := svc.Publish(context.Background(), next.ID, "admin-1", "org-1")
	require.ErrorIs(t, err, appErrors.ErrActiveScenarioConflict)

	appErr := appErrors.FromError(err)
	require.Equal(t, active.ID, appErr.Details["scenario_id"])
	require.Equal(t, "Week 2 Auction", appErr.Details["scenario_title"])
}

func TestScenarioServicePublishAlreadyPublished(t *testing.T) {
	store := newScenarioStoreStub()
	scenario := store.add(&models.Scenario{OrgID: "org-1", ClassroomID: "class-1", Title: "Week 1", Week: 1, IsPublished: true})
	svc := newScenarioServiceForTest(store, nil)

	_, err := svc.Publish(context.Background(), scenario.ID, "admin-1", "org-1")
	require.ErrorIs(t, err, appErrors.ErrAlreadyPublished)
}

func TestScenarioServicePublishThenUnpublish(t *testing.T) {
	store := newScenarioStoreStub()
	scenario := store.add(&models.Scenario{OrgID: "org-1", ClassroomID: "class-1", Title: "Week 1", Week: 1})
	svc := newScenarioServiceForTest(store, nil)

	published, err := svc.Publish(context.Background(), scenario.ID, "admin-1", "org-1")
	require.NoError(t, err)
	require.True(t, published.IsPublished)

	unpublished, err := svc.Unpublish(context.Background(), scenario.ID, "admin-1", "org-1")
	require.NoError(t, err)
	require.False(t, unpublished.IsPublished)

	_, err = svc.Unpublish(context.Background(), scenario.ID, "admin-1", "org-1")
	require.ErrorIs(t, err, appErrors.ErrNotPublished)
}

func TestScenarioServiceCloseIsTerminal(t *testing.T) {
	store := newScenarioStoreStub()
	scenario := store.add(&models.Scenario{OrgID: "org-1", ClassroomID: "class-1", Title: "Week 1", Week: 1, IsPublished: true})
	svc := newScenarioServiceForTest(store, nil)

	closed, err := svc.Close(context.Background(), scenario.ID, "admin-1", "org-1")
	require.NoError(t, err)
	require.True(t, closed.IsClosed)

	_, err = svc.Close(context.Background(), scenario.ID, "admin-1", "org-1")
	require.ErrorIs(t, err, appErrors.ErrAlreadyClosed)

	_, err = svc.Unpublish(context.Background(), scenario.ID, "admin-1", "org-1")
	require.ErrorIs(t, err, appErrors.ErrAlreadyClosed)
}

func TestScenarioServiceUpdateRejectedOncePublishedAndClosed(t *testing.T) {
	store := newScenarioStoreStub()
	scenario := store.add(&models.Scenario{OrgID: "org-1", ClassroomID: "class-1", Title: "Week 1", Week: 1, IsPublished: true, IsClosed: true})
	svc := newScenarioServiceForTest(store, nil)

	_, err := svc.Update(context.Background(), scenario.ID, UpdateScenarioRequest{Title: "Renamed", Week: 1}, "admin-1", "org-1")
	require.ErrorIs(t, err, appErrors.ErrStateConflict)
}

func TestScenarioServiceVariablesCacheInvalidatedOnUpdate(t *testing.T) {
	store := newScenarioStoreStub()
	scenario := store.add(&models.Scenario{
		OrgID: "org-1", ClassroomID: "class-1", Title: "Week 1", Week: 1,
		Variables: models.ScenarioVariables{{Name: "price", Type: models.VariableTypeNumber, Value: 4.0}},
	})
	cacheRepo := newCacheRepoStub()
	svc := newScenarioServiceForTest(store, cacheRepo)

	variables, err := svc.Variables(context.Background(), scenario.ID)
	require.NoError(t, err)
	require.Len(t, variables, 1)
	require.Contains(t, cacheRepo.values, "scenario:variables:"+scenario.ID)

	newVars := []VariableRequest{{Name: "price", Type: models.VariableTypeNumber, Value: 9.0}}
	_, err = svc.Update(context.Background(), scenario.ID, UpdateScenarioRequest{Title: "Week 1", Week: 1, Variables: &newVars}, "admin-1", "org-1")
	require.NoError(t, err)
	require.Contains(t, cacheRepo.deletes, "scenario:variables:"+scenario.ID)

	variables, err = svc.Variables(context.Background(), scenario.ID)
	require.NoError(t, err)
	price, ok := variables.Number("price")
	require.True(t, ok)
	require.Equal(t, 9.0, price)
}

func TestScenarioServiceGetActiveNone(t *testing.T) {
	svc := newScenarioServiceForTest(newScenarioStoreStub(), nil)

	_, err := svc.GetActive(context.Background(), "class-1")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}
