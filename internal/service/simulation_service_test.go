package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/simlab-api/internal/models"
	"github.com/noah-isme/simlab-api/pkg/config"
	appErrors "github.com/noah-isme/simlab-api/pkg/errors"
)

type opsLog struct {
	mu  sync.Mutex
	ops []string
}

func (l *opsLog) record(op string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = append(l.ops, op)
}

type jobStoreStub struct {
	log   *opsLog
	jobs  map[string]*models.SimulationJob
	byKey map[string]string
	seq   int
}

func newJobStoreStub(log *opsLog) *jobStoreStub {
	return &jobStoreStub{log: log, jobs: make(map[string]*models.SimulationJob), byKey: make(map[string]string)}
}

func jobKey(scenarioID, memberID string) string {
	return scenarioID + "|" + memberID
}

func (s *jobStoreStub) Upsert(ctx context.Context, job *models.SimulationJob) error {
	key := jobKey(job.ScenarioID, job.MemberID)
	if id, ok := s.byKey[key]; ok {
		s.jobs[id].DryRun = job.DryRun
		*job = *s.jobs[id]
		return nil
	}
	s.seq++
	job.ID = fmt.Sprintf("job-%d", s.seq)
	job.Status = models.JobStatusPending
	job.CreatedAt = time.Now().UTC()
	stored := *job
	s.jobs[job.ID] = &stored
	s.byKey[key] = job.ID
	return nil
}

func (s *jobStoreStub) GetByID(ctx context.Context, id string) (*models.SimulationJob, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *job
	return &copy, nil
}

func (s *jobStoreStub) ListByScenario(ctx context.Context, scenarioID string) ([]models.SimulationJob, error) {
	var out []models.SimulationJob
	for i := 1; i <= s.seq; i++ {
		if job, ok := s.jobs[fmt.Sprintf("job-%d", i)]; ok && job.ScenarioID == scenarioID {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (s *jobStoreStub) ListPending(ctx context.Context, limit int) ([]models.SimulationJob, error) {
	var out []models.SimulationJob
	for i := 1; i <= s.seq && len(out) < limit; i++ {
		if job, ok := s.jobs[fmt.Sprintf("job-%d", i)]; ok && job.Status == models.JobStatusPending {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (s *jobStoreStub) Claim(ctx context.Context, id string, at time.Time) (bool, error) {
	job, ok := s.jobs[id]
	if !ok || job.Status != models.JobStatusPending {
		return false, nil
	}
	job.Status = models.JobStatusProcessing
	job.StartedAt = &at
	return true, nil
}

func (s *jobStoreStub) MarkDone(ctx context.Context, id string, outcome models.JobOutcome, at time.Time) error {
	job, ok := s.jobs[id]
	if !ok || job.Status != models.JobStatusProcessing {
		return nil
	}
	s.log.record("job_done:" + id)
	job.Status = models.JobStatusDone
	job.Result = outcome
	job.FinishedAt = &at
	return nil
}

func (s *jobStoreStub) MarkFailed(ctx context.Context, id, message string, at time.Time) error {
	job, ok := s.jobs[id]
	if !ok || job.Status != models.JobStatusProcessing {
		return nil
	}
	job.Status = models.JobStatusFailed
	job.ErrorMessage = &message
	job.FinishedAt = &at
	return nil
}

func (s *jobStoreStub) ResetForScenario(ctx context.Context, scenarioID string) (int64, error) {
	s.log.record("jobs_reset")
	var count int64
	for _, job := range s.jobs {
		if job.ScenarioID != scenarioID {
			continue
		}
		job.Status = models.JobStatusPending
		job.Result = models.JobOutcome{}
		job.ErrorMessage = nil
		job.StartedAt = nil
		job.FinishedAt = nil
		count++
	}
	return count, nil
}

func (s *jobStoreStub) CountByStatus(ctx context.Context, scenarioID string, status models.JobStatus) (int, error) {
	count := 0
	for _, job := range s.jobs {
		if job.ScenarioID == scenarioID && job.Status == status {
			count++
		}
	}
	return count, nil
}

func (s *jobStoreStub) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	for _, job := range s.jobs {
		if job.Status == models.JobStatusProcessing && job.StartedAt != nil && job.StartedAt.Before(cutoff) {
			job.Status = models.JobStatusPending
			job.StartedAt = nil
			count++
		}
	}
	return count, nil
}

type ledgerStoreStub struct {
	log     *opsLog
	entries map[string]*models.LedgerEntry
}

func newLedgerStoreStub(log *opsLog) *ledgerStoreStub {
	return &ledgerStoreStub{log: log, entries: make(map[string]*models.LedgerEntry)}
}

func (s *ledgerStoreStub) Upsert(ctx context.Context, entry *models.LedgerEntry) error {
	s.log.record("ledger_upsert:" + entry.MemberID)
	if entry.ID == "" {
		entry.ID = "led-" + entry.MemberID
	}
	if entry.PostedAt.IsZero() {
		entry.PostedAt = time.Now().UTC()
	}
	stored := *entry
	s.entries[jobKey(entry.ScenarioID, entry.MemberID)] = &stored
	return nil
}

func (s *ledgerStoreStub) Get(ctx context.Context, scenarioID, memberID string) (*models.LedgerEntry, error) {
	entry, ok := s.entries[jobKey(scenarioID, memberID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *entry
	return &copy, nil
}

func (s *ledgerStoreStub) ListByScenario(ctx context.Context, scenarioID string) ([]models.LedgerEntry, error) {
	var out []models.LedgerEntry
	for _, entry := range s.entries {
		if entry.ScenarioID == scenarioID {
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (s *ledgerStoreStub) DeleteForScenario(ctx context.Context, scenarioID string) (int64, error) {
	s.log.record("ledger_delete")
	var count int64
	for key, entry := range s.entries {
		if entry.ScenarioID == scenarioID {
			delete(s.entries, key)
			count++
		}
	}
	return count, nil
}

type submissionStoreStub struct {
	submissions []models.Submission
}

func (s *submissionStoreStub) Create(ctx context.Context, submission *models.Submission) error {
	s.submissions = append(s.submissions, *submission)
	return nil
}

func (s *submissionStoreStub) Get(ctx context.Context, classroomID, scenarioID, memberID string) (*models.Submission, error) {
	for _, submission := range s.submissions {
		if submission.ClassroomID == classroomID && submission.ScenarioID == scenarioID && submission.MemberID == memberID {
			copy := submission
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *submissionStoreStub) ListByScenario(ctx context.Context, classroomID, scenarioID string) ([]models.Submission, error) {
	var out []models.Submission
	for _, submission := range s.submissions {
		if submission.ClassroomID == classroomID && submission.ScenarioID == scenarioID {
			out = append(out, submission)
		}
	}
	return out, nil
}

type outcomeStoreStub struct {
	outcome *models.ScenarioOutcome
}

func (s *outcomeStoreStub) Upsert(ctx context.Context, outcome *models.ScenarioOutcome) error {
	s.outcome = outcome
	return nil
}

func (s *outcomeStoreStub) GetByScenario(ctx context.Context, scenarioID string) (*models.ScenarioOutcome, error) {
	if s.outcome == nil {
		return nil, sql.ErrNoRows
	}
	copy := *s.outcome
	return &copy, nil
}

type scenarioReaderStub struct {
	scenario *models.Scenario
}

func (s *scenarioReaderStub) GetByID(ctx context.Context, id, orgID string) (*models.Scenario, error) {
	if s.scenario == nil || s.scenario.ID != id {
		return nil, sql.ErrNoRows
	}
	copy := *s.scenario
	return &copy, nil
}

type variablesStub struct {
	variables models.ScenarioVariables
}

func (s *variablesStub) Variables(ctx context.Context, scenarioID string) (models.ScenarioVariables, error) {
	return s.variables, nil
}

type accessStub struct {
	err error
}

func (s *accessStub) ValidateAdminAccess(ctx context.Context, classroomID, actorID, orgID string) error {
	return s.err
}

type simFixture struct {
	svc         *SimulationService
	jobs        *jobStoreStub
	ledger      *ledgerStoreStub
	submissions *submissionStoreStub
	outcomes    *outcomeStoreStub
	scenario    *models.Scenario
	log         *opsLog
}

func newSimFixture(t *testing.T) *simFixture {
	t.Helper()
	log := &opsLog{}
	scenario := &models.Scenario{
		ID:          "scn-1",
		OrgID:       "org-1",
		ClassroomID: "class-1",
		Title:       "Week 3 Market",
		Week:        3,
		IsPublished: true,
		Variables: models.ScenarioVariables{
			{Name: "multiplier", Type: models.VariableTypeNumber, Value: 2.0},
		},
	}
	fixture := &simFixture{
		jobs:        newJobStoreStub(log),
		ledger:      newLedgerStoreStub(log),
		submissions: &submissionStoreStub{},
		outcomes: &outcomeStoreStub{outcome: &models.ScenarioOutcome{
			ID:         "out-1",
			ScenarioID: "scn-1",
			Scheme:     models.OutcomeSchemeWeighted,
			Params: models.OutcomeParams{
				BaseAmount: 10,
				Weights:    map[string]float64{"yield": 2, "quality": 1},
			},
		}},
		scenario: scenario,
		log:      log,
	}
	fixture.svc = NewSimulationService(
		fixture.jobs,
		fixture.ledger,
		fixture.submissions,
		fixture.outcomes,
		&scenarioReaderStub{scenario: scenario},
		&variablesStub{variables: scenario.Variables},
		&accessStub{},
		nil,
		config.SimulationConfig{PreviewLimit: 5, PollBatchSize: 20, ProcessingTimeout: 10 * time.Minute},
		zap.NewNop(),
	)
	return fixture
}

func (f *simFixture) addSubmission(memberID string, inputs models.SubmissionInputs) {
	f.submissions.submissions = append(f.submissions.submissions, models.Submission{
		ID:          "sub-" + memberID,
		ScenarioID:  f.scenario.ID,
		ClassroomID: f.scenario.ClassroomID,
		MemberID:    memberID,
		Inputs:      inputs,
		SubmittedAt: time.Now().UTC(),
	})
}

func TestComputeOutcomeWeighted(t *testing.T) {
	formula := &models.ScenarioOutcome{
		Scheme: models.OutcomeSchemeWeighted,
		Params: models.OutcomeParams{BaseAmount: 10, Weights: map[string]float64{"yield": 2, "quality": 1}},
	}
	inputs := models.SubmissionInputs{"yield": 3.0, "quality": 4.0}

	outcome, err := computeOutcome(formula, inputs, nil, false, time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, 20.0, outcome.Amount)
	require.Len(t, outcome.Breakdown, 2)
	require.Equal(t, "quality", outcome.Breakdown[0].Input)
	require.Equal(t, "yield", outcome.Breakdown[1].Input)
	require.Equal(t, 6.0, outcome.Breakdown[1].Contribution)
}

func TestComputeOutcomeScaleAndClamp(t *testing.T) {
	max := 25.0
	formula := &models.ScenarioOutcome{
		Scheme: models.OutcomeSchemeWeighted,
		Params: models.OutcomeParams{
			BaseAmount:    10,
			Weights:       map[string]float64{"yield": 2},
			ScaleVariable: "multiplier",
			MaxPayout:     &max,
		},
	}
	variables := models.ScenarioVariables{{Name: "multiplier", Type: models.VariableTypeNumber, Value: 2.0}}
	inputs := models.SubmissionInputs{"yield": 5.0}

	// (10 + 10) * 2 = 40, clamped to 25.
	outcome, err := computeOutcome(formula, inputs, variables, false, time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, 25.0, outcome.Amount)
	require.Equal(t, "clamped to max payout", outcome.Note)
}

func TestComputeOutcomeMissingInputFails(t *testing.T) {
	formula := &models.ScenarioOutcome{
		Scheme: models.OutcomeSchemeWeighted,
		Params: models.OutcomeParams{Weights: map[string]float64{"yield": 2}},
	}

	_, err := computeOutcome(formula, models.SubmissionInputs{}, nil, false, time.Now().UTC())
	require.Error(t, err)
	require.Contains(t, err.Error(), "yield")
}

func TestComputeOutcomeFixed(t *testing.T) {
	formula := &models.ScenarioOutcome{
		Scheme: models.OutcomeSchemeFixed,
		Params: models.OutcomeParams{BaseAmount: 50},
	}

	outcome, err := computeOutcome(formula, models.SubmissionInputs{"ignored": 1.0}, nil, true, time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, 50.0, outcome.Amount)
	require.True(t, outcome.DryRun)
	require.Empty(t, outcome.Breakdown)
}

func TestComputeOutcomeRoundsToCents(t *testing.T) {
	formula := &models.ScenarioOutcome{
		Scheme: models.OutcomeSchemeWeighted,
		Params: models.OutcomeParams{Weights: map[string]float64{"yield": 0.001}},
	}

	outcome, err := computeOutcome(formula, models.SubmissionInputs{"yield": 125.0}, nil, false, time.Now().UTC())
	require.NoError(t, err)
	// 0.125 rounds to the even cent.
	require.Equal(t, 0.12, outcome.Amount)
}

func TestProcessJobWritesLedgerThenDone(t *testing.T) {
	f := newSimFixture(t)
	f.outcomes.outcome.Params.ScaleVariable = ""
	f.addSubmission("member-1", models.SubmissionInputs{"yield": 3.0, "quality": 4.0})

	jobs, err := f.svc.Run(context.Background(), "scn-1", "admin-1", "org-1", false)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	claimed, err := f.svc.ProcessJob(context.Background(), jobs[0].ID)
	require.NoError(t, err)
	require.True(t, claimed)

	job, err := f.jobs.GetByID(context.Background(), jobs[0].ID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusDone, job.Status)
	require.Equal(t, 20.0, job.Result.Amount)

	entry, err := f.ledger.Get(context.Background(), "scn-1", "member-1")
	require.NoError(t, err)
	require.Equal(t, 20.0, entry.Amount)

	// Ledger write precedes the DONE transition.
	require.Equal(t, []string{"ledger_upsert:member-1", "job_done:" + jobs[0].ID}, f.log.ops)
}

func TestProcessJobDryRunSkipsLedger(t *testing.T) {
	f := newSimFixture(t)
	f.addSubmission("member-1", models.SubmissionInputs{"yield": 3.0, "quality": 4.0})

	jobs, err := f.svc.Run(context.Background(), "scn-1", "admin-1", "org-1", true)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	claimed, err := f.svc.ProcessJob(context.Background(), jobs[0].ID)
	require.NoError(t, err)
	require.True(t, claimed)

	job, err := f.jobs.GetByID(context.Background(), jobs[0].ID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusDone, job.Status)
	require.True(t, job.Result.DryRun)

	_, err = f.ledger.Get(context.Background(), "scn-1", "member-1")
	require.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestProcessJobSecondClaimIsNoop(t *testing.T) {
	f := newSimFixture(t)
	f.addSubmission("member-1", models.SubmissionInputs{"yield": 3.0, "quality": 4.0})

	jobs, err := f.svc.Run(context.Background(), "scn-1", "admin-1", "org-1", false)
	require.NoError(t, err)

	claimed, err := f.svc.ProcessJob(context.Background(), jobs[0].ID)
	require.NoError(t, err)
	require.True(t, claimed)

	claimed, err = f.svc.ProcessJob(context.Background(), jobs[0].ID)
	require.NoError(t, err)
	require.False(t, claimed)

	entries, err := f.ledger.ListByScenario(context.Background(), "scn-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestProcessPendingJobsIsolatesFailures(t *testing.T) {
	f := newSimFixture(t)
	f.addSubmission("member-1", models.SubmissionInputs{"yield": 3.0, "quality": 4.0})
	f.addSubmission("member-2", models.SubmissionInputs{"yield": 1.0}) // missing "quality"
	f.addSubmission("member-3", models.SubmissionInputs{"yield": 2.0, "quality": 2.0})

	_, err := f.svc.Run(context.Background(), "scn-1", "admin-1", "org-1", false)
	require.NoError(t, err)

	summary, err := f.svc.ProcessPendingJobs(context.Background(), 20)
	require.NoError(t, err)
	require.Equal(t, 3, summary.Selected)
	require.Equal(t, 2, summary.Succeeded)
	require.Equal(t, 1, summary.Failed)

	entries, err := f.ledger.ListByScenario(context.Background(), "scn-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	failed, err := f.jobs.CountByStatus(context.Background(), "scn-1", models.JobStatusFailed)
	require.NoError(t, err)
	require.Equal(t, 1, failed)
}

func TestRunRequiresPublishedScenario(t *testing.T) {
	f := newSimFixture(t)
	f.scenario.IsPublished = false

	_, err := f.svc.Run(context.Background(), "scn-1", "admin-1", "org-1", false)
	require.ErrorIs(t, err, appErrors.ErrNotPublished)
}

func TestRunRequiresOutcome(t *testing.T) {
	f := newSimFixture(t)
	f.outcomes.outcome = nil

	_, err := f.svc.Run(context.Background(), "scn-1", "admin-1", "org-1", false)
	require.ErrorIs(t, err, appErrors.ErrOutcomeNotSet)
}

func TestRunIsIdempotentOnJobRows(t *testing.T) {
	f := newSimFixture(t)
	f.addSubmission("member-1", models.SubmissionInputs{"yield": 3.0, "quality": 4.0})
	f.addSubmission("member-2", models.SubmissionInputs{"yield": 1.0, "quality": 1.0})

	first, err := f.svc.Run(context.Background(), "scn-1", "admin-1", "org-1", false)
	require.NoError(t, err)
	second, err := f.svc.Run(context.Background(), "scn-1", "admin-1", "org-1", false)
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Len(t, second, 2)
	require.Equal(t, first[0].ID, second[0].ID)
}

func TestRerunRefusedWhileProcessing(t *testing.T) {
	f := newSimFixture(t)
	f.addSubmission("member-1", models.SubmissionInputs{"yield": 3.0, "quality": 4.0})

	jobs, err := f.svc.Run(context.Background(), "scn-1", "admin-1", "org-1", false)
	require.NoError(t, err)

	claimed, err := f.jobs.Claim(context.Background(), jobs[0].ID, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, claimed)

	_, err = f.svc.Rerun(context.Background(), "scn-1", "admin-1", "org-1")
	require.ErrorIs(t, err, appErrors.ErrStateConflict)
}

func TestRerunDeletesLedgerBeforeResettingJobs(t *testing.T) {
	f := newSimFixture(t)
	f.addSubmission("member-1", models.SubmissionInputs{"yield": 3.0, "quality": 4.0})

	jobs, err := f.svc.Run(context.Background(), "scn-1", "admin-1", "org-1", false)
	require.NoError(t, err)
	_, err = f.svc.ProcessJob(context.Background(), jobs[0].ID)
	require.NoError(t, err)

	f.log.ops = nil
	rerunJobs, err := f.svc.Rerun(context.Background(), "scn-1", "admin-1", "org-1")
	require.NoError(t, err)
	require.Len(t, rerunJobs, 1)
	require.Equal(t, models.JobStatusPending, rerunJobs[0].Status)

	entries, err := f.ledger.ListByScenario(context.Background(), "scn-1")
	require.NoError(t, err)
	require.Empty(t, entries)

	require.GreaterOrEqual(t, len(f.log.ops), 2)
	require.Equal(t, "ledger_delete", f.log.ops[0])
	require.Equal(t, "jobs_reset", f.log.ops[1])
}

func TestPreviewCapsEntriesAndPersistsNothing(t *testing.T) {
	f := newSimFixture(t)
	for i := 1; i <= 7; i++ {
		f.addSubmission(fmt.Sprintf("member-%d", i), models.SubmissionInputs{"yield": float64(i), "quality": 1.0})
	}

	entries, err := f.svc.Preview(context.Background(), "scn-1", "admin-1", "org-1")
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for _, entry := range entries {
		require.NotNil(t, entry.Outcome)
		require.True(t, entry.Outcome.DryRun)
	}

	jobs, err := f.jobs.ListByScenario(context.Background(), "scn-1")
	require.NoError(t, err)
	require.Empty(t, jobs)

	ledger, err := f.ledger.ListByScenario(context.Background(), "scn-1")
	require.NoError(t, err)
	require.Empty(t, ledger)
}

func TestPreviewReportsPerMemberErrors(t *testing.T) {
	f := newSimFixture(t)
	f.addSubmission("member-1", models.SubmissionInputs{"yield": 3.0, "quality": 4.0})
	f.addSubmission("member-2", models.SubmissionInputs{"quality": 4.0}) // missing "yield"

	entries, err := f.svc.Preview(context.Background(), "scn-1", "admin-1", "org-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.NotNil(t, entries[0].Outcome)
	require.Empty(t, entries[0].Error)
	require.Nil(t, entries[1].Outcome)
	require.Contains(t, entries[1].Error, "yield")
}
