package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/simlab-api/internal/models"
)

func TestLedgerRepositoryUpsertOverwritesOnConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (scenario_id, member_id) DO UPDATE SET amount = EXCLUDED.amount, breakdown = EXCLUDED.breakdown, posted_at = EXCLUDED.posted_at`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := &models.LedgerEntry{
		ScenarioID:  "scn-1",
		ClassroomID: "class-1",
		MemberID:    "member-1",
		Amount:      125.50,
		Breakdown:   models.LedgerBreakdown{Scheme: models.OutcomeSchemeWeighted},
	}
	err := repo.Upsert(context.Background(), entry)
	require.NoError(t, err)
	require.NotEmpty(t, entry.ID)
	require.False(t, entry.PostedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryGetMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM ledger_entries WHERE scenario_id = $1 AND member_id = $2`)).
		WithArgs("scn-1", "member-9").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "scn-1", "member-9")
	require.Error(t, err)
	require.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryDeleteForScenario(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM ledger_entries WHERE scenario_id = $1`)).
		WithArgs("scn-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	deleted, err := repo.DeleteForScenario(context.Background(), "scn-1")
	require.NoError(t, err)
	require.EqualValues(t, 3, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryListByScenarioOrdersByMember(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "scenario_id", "classroom_id", "member_id", "amount", "breakdown", "posted_at"}).
		AddRow("led-1", "scn-1", "class-1", "member-1", 100.00, []byte(`{"scheme":"FIXED"}`), now).
		AddRow("led-2", "scn-1", "class-1", "member-2", 100.00, []byte(`{"scheme":"FIXED"}`), now)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM ledger_entries WHERE scenario_id = $1 ORDER BY member_id ASC`)).
		WithArgs("scn-1").
		WillReturnRows(rows)

	entries, err := repo.ListByScenario(context.Background(), "scn-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, models.OutcomeSchemeFixed, entries[0].Breakdown.Scheme)
	require.NoError(t, mock.ExpectationsWereMet())
}
