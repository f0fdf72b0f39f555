package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/simlab-api/internal/models"
	appErrors "github.com/noah-isme/simlab-api/pkg/errors"
	"github.com/noah-isme/simlab-api/pkg/export"
)

type ledgerStore interface {
	Upsert(ctx context.Context, entry *models.LedgerEntry) error
	Get(ctx context.Context, scenarioID, memberID string) (*models.LedgerEntry, error)
	ListByScenario(ctx context.Context, scenarioID string) ([]models.LedgerEntry, error)
	DeleteForScenario(ctx context.Context, scenarioID string) (int64, error)
}

// LedgerService reads the durable outcome records and renders exports.
// Writes happen only inside the job pipeline.
type LedgerService struct {
	repo   ledgerStore
	logger *zap.Logger
}

// NewLedgerService constructs the ledger service.
func NewLedgerService(repo ledgerStore, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{repo: repo, logger: logger}
}

// Get returns one member's entry for a scenario.
func (s *LedgerService) Get(ctx context.Context, scenarioID, memberID string) (*models.LedgerEntry, error) {
	entry, err := s.repo.Get(ctx, scenarioID, memberID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "ledger entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ledger entry")
	}
	return entry, nil
}

// ListByScenario returns the scenario's entries ordered by member.
func (s *LedgerService) ListByScenario(ctx context.Context, scenarioID string) ([]models.LedgerEntry, error) {
	entries, err := s.repo.ListByScenario(ctx, scenarioID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ledger entries")
	}
	return entries, nil
}

// ExportCSV renders the scenario's entries as a CSV document.
func (s *LedgerService) ExportCSV(ctx context.Context, scenarioID string) ([]byte, error) {
	entries, err := s.ListByScenario(ctx, scenarioID)
	if err != nil {
		return nil, err
	}
	table := export.Table{
		Headers: []string{"member_id", "amount", "scheme", "note", "posted_at"},
		Rows:    make([][]string, 0, len(entries)),
	}
	for _, entry := range entries {
		table.Rows = append(table.Rows, []string{
			entry.MemberID,
			strconv.FormatFloat(entry.Amount, 'f', 2, 64),
			string(entry.Breakdown.Scheme),
			entry.Breakdown.Note,
			entry.PostedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	data, err := export.RenderCSV(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render ledger export")
	}
	return data, nil
}
