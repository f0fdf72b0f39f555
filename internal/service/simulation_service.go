package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/simlab-api/internal/models"
	"github.com/noah-isme/simlab-api/pkg/config"
	appErrors "github.com/noah-isme/simlab-api/pkg/errors"
	pkgjobs "github.com/noah-isme/simlab-api/pkg/jobs"
)

type variablesProvider interface {
	Variables(ctx context.Context, scenarioID string) (models.ScenarioVariables, error)
}

type jobDispatcher interface {
	Enqueue(job pkgjobs.Job) error
}

// PreviewEntry is one member's computed result from a dry preview. Nothing
// about a preview is persisted.
type PreviewEntry struct {
	MemberID string             `json:"member_id"`
	Outcome  *models.JobOutcome `json:"outcome,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// BatchSummary reports one poll pass over pending jobs.
type BatchSummary struct {
	Selected  int `json:"selected"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// SimulationService runs the job pipeline: claiming pending jobs, computing
// outcomes, writing the ledger, and the run/rerun/preview orchestration.
// The in-memory queue accelerates delivery; the database poller is the
// source of truth, so a lost queue message only delays a job.
type SimulationService struct {
	jobs        jobStore
	ledger      ledgerStore
	submissions submissionStore
	outcomes    outcomeStore
	scenarios   scenarioReader
	variables   variablesProvider
	access      adminAccessChecker
	metrics     *MetricsService
	cfg         config.SimulationConfig
	logger      *zap.Logger

	dispatcher jobDispatcher
}

// NewSimulationService constructs the simulation service. The dispatcher is
// attached separately because the queue's handler is this service.
func NewSimulationService(
	jobs jobStore,
	ledger ledgerStore,
	submissions submissionStore,
	outcomes outcomeStore,
	scenarios scenarioReader,
	variables variablesProvider,
	access adminAccessChecker,
	metrics *MetricsService,
	cfg config.SimulationConfig,
	logger *zap.Logger,
) *SimulationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SimulationService{
		jobs:        jobs,
		ledger:      ledger,
		submissions: submissions,
		outcomes:    outcomes,
		scenarios:   scenarios,
		variables:   variables,
		access:      access,
		metrics:     metrics,
		cfg:         cfg,
		logger:      logger,
	}
}

// AttachDispatcher wires the delivery queue once it exists.
func (s *SimulationService) AttachDispatcher(d jobDispatcher) {
	s.dispatcher = d
}

// ProcessJob claims and executes a single job. Returns whether the claim
// succeeded; a false claim means another worker got there first, which is
// not an error. A computation failure marks the job FAILED and is returned
// so batch callers can count it.
func (s *SimulationService) ProcessJob(ctx context.Context, jobID string) (bool, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, appErrors.Clone(appErrors.ErrNotFound, "job not found")
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job")
	}

	claimed, err := s.jobs.Claim(ctx, job.ID, time.Now().UTC())
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to claim job")
	}
	if !claimed {
		return false, nil
	}

	start := time.Now()
	outcome, err := s.executeClaimed(ctx, job)
	duration := time.Since(start)
	if err != nil {
		s.metrics.ObserveJob(false, duration)
		s.logger.Warn("simulation job failed",
			zap.String("job_id", job.ID),
			zap.String("scenario_id", job.ScenarioID),
			zap.String("member_id", job.MemberID),
			zap.Error(err))
		if markErr := s.jobs.MarkFailed(ctx, job.ID, err.Error(), time.Now().UTC()); markErr != nil {
			s.logger.Error("failed to mark job failed", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return true, err
	}

	if err := s.jobs.MarkDone(ctx, job.ID, outcome, time.Now().UTC()); err != nil {
		s.metrics.ObserveJob(false, duration)
		return true, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finish job")
	}
	s.metrics.ObserveJob(true, duration)
	s.logger.Info("simulation job done",
		zap.String("job_id", job.ID),
		zap.String("scenario_id", job.ScenarioID),
		zap.String("member_id", job.MemberID),
		zap.Bool("dry_run", job.DryRun),
		zap.Float64("amount", outcome.Amount))
	return true, nil
}

// executeClaimed loads the job's inputs, computes the outcome, and for real
// runs writes the ledger. The ledger write happens before the job flips to
// DONE, so DONE always implies a persisted entry. The ledger upsert key
// makes a replay after a crash overwrite instead of double-credit.
func (s *SimulationService) executeClaimed(ctx context.Context, job *models.SimulationJob) (models.JobOutcome, error) {
	formula, err := s.outcomes.GetByScenario(ctx, job.ScenarioID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.JobOutcome{}, appErrors.ErrOutcomeNotSet
		}
		return models.JobOutcome{}, fmt.Errorf("load outcome: %w", err)
	}
	submission, err := s.submissions.Get(ctx, job.ClassroomID, job.ScenarioID, job.MemberID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.JobOutcome{}, fmt.Errorf("submission missing for member %s", job.MemberID)
		}
		return models.JobOutcome{}, fmt.Errorf("load submission: %w", err)
	}
	variables, err := s.variables.Variables(ctx, job.ScenarioID)
	if err != nil {
		return models.JobOutcome{}, fmt.Errorf("load variables: %w", err)
	}

	outcome, err := computeOutcome(formula, submission.Inputs, variables, job.DryRun, time.Now().UTC())
	if err != nil {
		return models.JobOutcome{}, err
	}

	if !job.DryRun {
		entry := &models.LedgerEntry{
			ScenarioID:  job.ScenarioID,
			ClassroomID: job.ClassroomID,
			MemberID:    job.MemberID,
			Amount:      outcome.Amount,
			Breakdown: models.LedgerBreakdown{
				Scheme: formula.Scheme,
				Lines:  outcome.Breakdown,
				Note:   outcome.Note,
			},
		}
		if err := s.ledger.Upsert(ctx, entry); err != nil {
			return models.JobOutcome{}, fmt.Errorf("write ledger entry: %w", err)
		}
		s.metrics.RecordLedgerWrite()
	}
	return outcome, nil
}

// ProcessPendingJobs claims and runs up to limit pending jobs. A failing
// job never blocks the rest of the batch.
func (s *SimulationService) ProcessPendingJobs(ctx context.Context, limit int) (BatchSummary, error) {
	pending, err := s.jobs.ListPending(ctx, limit)
	if err != nil {
		return BatchSummary{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending jobs")
	}
	summary := BatchSummary{Selected: len(pending)}
	for _, job := range pending {
		claimed, err := s.ProcessJob(ctx, job.ID)
		switch {
		case !claimed:
			summary.Skipped++
		case err != nil:
			summary.Failed++
		default:
			summary.Succeeded++
		}
	}
	return summary, nil
}

// Preview computes outcomes for a capped sample of submissions without
// touching jobs or the ledger.
func (s *SimulationService) Preview(ctx context.Context, scenarioID, actorID, orgID string) ([]PreviewEntry, error) {
	scenario, err := s.loadScenario(ctx, scenarioID, orgID)
	if err != nil {
		return nil, err
	}
	if err := s.access.ValidateAdminAccess(ctx, scenario.ClassroomID, actorID, orgID); err != nil {
		return nil, err
	}
	formula, err := s.outcomes.GetByScenario(ctx, scenario.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrOutcomeNotSet
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load outcome")
	}
	variables, err := s.variables.Variables(ctx, scenario.ID)
	if err != nil {
		return nil, err
	}
	submissions, err := s.submissions.ListByScenario(ctx, scenario.ClassroomID, scenario.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	limit := s.cfg.PreviewLimit
	if limit <= 0 {
		limit = 5
	}
	if len(submissions) > limit {
		submissions = submissions[:limit]
	}

	entries := make([]PreviewEntry, 0, len(submissions))
	now := time.Now().UTC()
	for _, submission := range submissions {
		entry := PreviewEntry{MemberID: submission.MemberID}
		outcome, err := computeOutcome(formula, submission.Inputs, variables, true, now)
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.Outcome = &outcome
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Run materializes one job per submission and pushes them onto the queue.
// Requires a published scenario with its formula set. Idempotent: a second
// run re-enqueues pending rows and leaves finished ones alone.
func (s *SimulationService) Run(ctx context.Context, scenarioID, actorID, orgID string, dryRun bool) ([]models.SimulationJob, error) {
	scenario, err := s.prepareRun(ctx, scenarioID, actorID, orgID)
	if err != nil {
		return nil, err
	}
	jobs, err := s.materialize(ctx, scenario, dryRun, actorID)
	if err != nil {
		return nil, err
	}
	s.dispatch(jobs)
	return jobs, nil
}

// Rerun wipes the scenario's ledger, resets its jobs to PENDING, picks up
// submissions that arrived since the last run, and requeues everything. It
// refuses to start while any job is still PROCESSING. Once the ledger is
// deleted, any later failure is returned as fatal; the poller finishes the
// reset rows either way.
func (s *SimulationService) Rerun(ctx context.Context, scenarioID, actorID, orgID string) ([]models.SimulationJob, error) {
	scenario, err := s.prepareRun(ctx, scenarioID, actorID, orgID)
	if err != nil {
		return nil, err
	}
	processing, err := s.jobs.CountByStatus(ctx, scenario.ID, models.JobStatusProcessing)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count jobs")
	}
	if processing > 0 {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "jobs are still processing, rerun refused")
	}

	deleted, err := s.ledger.DeleteForScenario(ctx, scenario.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete ledger entries")
	}
	reset, err := s.jobs.ResetForScenario(ctx, scenario.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset jobs")
	}
	s.logger.Info("scenario rerun started",
		zap.String("scenario_id", scenario.ID),
		zap.Int64("ledger_deleted", deleted),
		zap.Int64("jobs_reset", reset))

	jobs, err := s.materialize(ctx, scenario, false, actorID)
	if err != nil {
		return nil, err
	}
	s.dispatch(jobs)
	return jobs, nil
}

// StartPolling launches the background loop that reclaims stale PROCESSING
// jobs and drains pending work. Stops when ctx is cancelled.
func (s *SimulationService) StartPolling(ctx context.Context) {
	interval := s.cfg.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.pollOnce(ctx)
			}
		}
	}()
}

func (s *SimulationService) pollOnce(ctx context.Context) {
	if s.cfg.ProcessingTimeout > 0 {
		cutoff := time.Now().UTC().Add(-s.cfg.ProcessingTimeout)
		reclaimed, err := s.jobs.ReclaimStale(ctx, cutoff)
		if err != nil {
			s.logger.Error("failed to reclaim stale jobs", zap.Error(err))
		} else if reclaimed > 0 {
			s.logger.Warn("reclaimed stale jobs", zap.Int64("count", reclaimed))
		}
	}
	summary, err := s.ProcessPendingJobs(ctx, s.cfg.PollBatchSize)
	if err != nil {
		s.logger.Error("pending job poll failed", zap.Error(err))
		return
	}
	if summary.Selected > 0 {
		s.logger.Info("pending job poll",
			zap.Int("selected", summary.Selected),
			zap.Int("succeeded", summary.Succeeded),
			zap.Int("failed", summary.Failed),
			zap.Int("skipped", summary.Skipped))
	}
}

func (s *SimulationService) prepareRun(ctx context.Context, scenarioID, actorID, orgID string) (*models.Scenario, error) {
	scenario, err := s.loadScenario(ctx, scenarioID, orgID)
	if err != nil {
		return nil, err
	}
	if err := s.access.ValidateAdminAccess(ctx, scenario.ClassroomID, actorID, orgID); err != nil {
		return nil, err
	}
	if !scenario.IsPublished {
		return nil, appErrors.ErrNotPublished
	}
	if _, err := s.outcomes.GetByScenario(ctx, scenario.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrOutcomeNotSet
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load outcome")
	}
	return scenario, nil
}

func (s *SimulationService) materialize(ctx context.Context, scenario *models.Scenario, dryRun bool, actorID string) ([]models.SimulationJob, error) {
	submissions, err := s.submissions.ListByScenario(ctx, scenario.ClassroomID, scenario.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	for _, submission := range submissions {
		job := &models.SimulationJob{
			ScenarioID:  scenario.ID,
			ClassroomID: scenario.ClassroomID,
			MemberID:    submission.MemberID,
			DryRun:      dryRun,
			Status:      models.JobStatusPending,
			CreatedBy:   actorID,
		}
		if err := s.jobs.Upsert(ctx, job); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create job")
		}
	}
	jobs, err := s.jobs.ListByScenario(ctx, scenario.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list jobs")
	}
	return jobs, nil
}

// dispatch pushes pending jobs onto the in-memory queue. Delivery failures
// are only logged: the poller re-selects anything that never made it.
func (s *SimulationService) dispatch(jobs []models.SimulationJob) {
	if s.dispatcher == nil {
		return
	}
	for _, job := range jobs {
		if job.Status != models.JobStatusPending {
			continue
		}
		if err := s.dispatcher.Enqueue(pkgjobs.Job{ID: job.ID, Type: "simulation"}); err != nil {
			s.logger.Warn("failed to enqueue job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

func (s *SimulationService) loadScenario(ctx context.Context, id, orgID string) (*models.Scenario, error) {
	scenario, err := s.scenarios.GetByID(ctx, id, orgID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "scenario not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scenario")
	}
	return scenario, nil
}

// computeOutcome evaluates the formula against one submission. Pure.
//
// WEIGHTED pays base_amount plus the sum over weights of weight times the
// member's numeric input; a missing or non-numeric input for a weighted
// name fails the computation. FIXED pays base_amount. When scale_variable
// names a numeric scenario variable the total is multiplied by it. The
// result is clamped to [min_payout, max_payout] and rounded to cents with
// banker's rounding.
func computeOutcome(formula *models.ScenarioOutcome, inputs models.SubmissionInputs, variables models.ScenarioVariables, dryRun bool, at time.Time) (models.JobOutcome, error) {
	params := formula.Params
	amount := params.BaseAmount
	var lines []models.OutcomeLine
	note := ""

	switch formula.Scheme {
	case models.OutcomeSchemeWeighted:
		names := make([]string, 0, len(params.Weights))
		for name := range params.Weights {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			value, ok := inputs.Number(name)
			if !ok {
				return models.JobOutcome{}, fmt.Errorf("input %q is missing or not numeric", name)
			}
			weight := params.Weights[name]
			contribution := value * weight
			amount += contribution
			lines = append(lines, models.OutcomeLine{
				Input:        name,
				Value:        value,
				Weight:       weight,
				Contribution: contribution,
			})
		}
	case models.OutcomeSchemeFixed:
		note = "fixed payout"
	default:
		return models.JobOutcome{}, fmt.Errorf("unknown outcome scheme %q", formula.Scheme)
	}

	if params.ScaleVariable != "" {
		scale, ok := variables.Number(params.ScaleVariable)
		if !ok {
			return models.JobOutcome{}, fmt.Errorf("scale variable %q is missing or not numeric", params.ScaleVariable)
		}
		amount *= scale
	}

	if params.MinPayout != nil && amount < *params.MinPayout {
		amount = *params.MinPayout
		note = "clamped to min payout"
	}
	if params.MaxPayout != nil && amount > *params.MaxPayout {
		amount = *params.MaxPayout
		note = "clamped to max payout"
	}

	return models.JobOutcome{
		Amount:     roundCents(amount),
		DryRun:     dryRun,
		Breakdown:  lines,
		Note:       note,
		ComputedAt: at,
	}, nil
}

func roundCents(amount float64) float64 {
	return math.RoundToEven(amount*100) / 100
}
