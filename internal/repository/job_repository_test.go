package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/simlab-api/internal/models"
)

func TestJobRepositoryUpsertKeepsExistingStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewJobRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (scenario_id, member_id) DO UPDATE SET dry_run = EXCLUDED.dry_run`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	job := &models.SimulationJob{
		ScenarioID:  "scn-1",
		ClassroomID: "class-1",
		MemberID:    "member-1",
		CreatedBy:   "admin-1",
	}
	err := repo.Upsert(context.Background(), job)
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)
	require.Equal(t, models.JobStatusPending, job.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryClaimWinsOnce(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewJobRepository(db)

	at := time.Now().UTC()
	claimQuery := regexp.QuoteMeta(`UPDATE simulation_jobs SET status = 'PROCESSING', started_at = $2, error_message = NULL WHERE id = $1 AND status = 'PENDING'`)

	mock.ExpectExec(claimQuery).WithArgs("job-1", at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(claimQuery).WithArgs("job-1", at).WillReturnResult(sqlmock.NewResult(0, 0))

	first, err := repo.Claim(context.Background(), "job-1", at)
	require.NoError(t, err)
	require.True(t, first)

	second, err := repo.Claim(context.Background(), "job-1", at)
	require.NoError(t, err)
	require.False(t, second)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryResetForScenarioClearsResults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewJobRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE simulation_jobs SET status = 'PENDING', result = NULL, error_message = NULL, started_at = NULL, finished_at = NULL WHERE scenario_id = $1`)).
		WithArgs("scn-1").
		WillReturnResult(sqlmock.NewResult(0, 4))

	affected, err := repo.ResetForScenario(context.Background(), "scn-1")
	require.NoError(t, err)
	require.EqualValues(t, 4, affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryListPendingOrdersOldestFirst(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewJobRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "scenario_id", "classroom_id", "member_id", "dry_run", "status", "result", "error_message", "created_by", "created_at", "started_at", "finished_at"}).
		AddRow("job-1", "scn-1", "class-1", "member-1", false, models.JobStatusPending, nil, nil, "admin-1", now.Add(-time.Minute), nil, nil).
		AddRow("job-2", "scn-1", "class-1", "member-2", false, models.JobStatusPending, nil, nil, "admin-1", now, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE status = 'PENDING' ORDER BY created_at ASC, id ASC LIMIT $1`)).
		WithArgs(10).
		WillReturnRows(rows)

	jobs, err := repo.ListPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, "job-1", jobs[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryReclaimStale(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewJobRepository(db)

	cutoff := time.Now().UTC().Add(-10 * time.Minute)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE simulation_jobs SET status = 'PENDING', started_at = NULL WHERE status = 'PROCESSING' AND started_at IS NOT NULL AND started_at < $1`)).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 2))

	reclaimed, err := repo.ReclaimStale(context.Background(), cutoff)
	require.NoError(t, err)
	require.EqualValues(t, 2, reclaimed)
	require.NoError(t, mock.ExpectationsWereMet())
}
