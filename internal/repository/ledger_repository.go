package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/simlab-api/internal/models"
)

const ledgerColumns = `id, scenario_id, classroom_id, member_id, amount, breakdown, posted_at`

// LedgerRepository persists computed outcomes, at most one entry per
// (scenario, member).
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository constructs the repository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Upsert writes the entry, idempotent on the (scenario_id, member_id) key.
// A replay of the same job overwrites rather than double-credits.
func (r *LedgerRepository) Upsert(ctx context.Context, entry *models.LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.PostedAt.IsZero() {
		entry.PostedAt = time.Now().UTC()
	}
	const query = `INSERT INTO ledger_entries (id, scenario_id, classroom_id, member_id, amount, breakdown, posted_at)
VALUES (:id, :scenario_id, :classroom_id, :member_id, :amount, :breakdown, :posted_at)
ON CONFLICT (scenario_id, member_id) DO UPDATE SET amount = EXCLUDED.amount, breakdown = EXCLUDED.breakdown, posted_at = EXCLUDED.posted_at`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("upsert ledger entry: %w", err)
	}
	return nil
}

// Get returns the entry for the pair. sql.ErrNoRows when absent.
func (r *LedgerRepository) Get(ctx context.Context, scenarioID, memberID string) (*models.LedgerEntry, error) {
	const query = `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE scenario_id = $1 AND member_id = $2`
	var entry models.LedgerEntry
	if err := r.db.GetContext(ctx, &entry, query, scenarioID, memberID); err != nil {
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	return &entry, nil
}

// ListByScenario returns all entries of a scenario ordered by member.
func (r *LedgerRepository) ListByScenario(ctx context.Context, scenarioID string) ([]models.LedgerEntry, error) {
	const query = `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE scenario_id = $1 ORDER BY member_id ASC`
	var entries []models.LedgerEntry
	if err := r.db.SelectContext(ctx, &entries, query, scenarioID); err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, nil
}

// DeleteForScenario removes all of a scenario's entries. First step of a
// rerun; must succeed before jobs are reset.
func (r *LedgerRepository) DeleteForScenario(ctx context.Context, scenarioID string) (int64, error) {
	const query = `DELETE FROM ledger_entries WHERE scenario_id = $1`
	res, err := r.db.ExecContext(ctx, query, scenarioID)
	if err != nil {
		return 0, fmt.Errorf("delete ledger entries: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete ledger entries: %w", err)
	}
	return affected, nil
}
