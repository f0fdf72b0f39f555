package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/simlab-api/internal/models"
	appErrors "github.com/noah-isme/simlab-api/pkg/errors"
)

func TestLedgerServiceGetMissing(t *testing.T) {
	svc := NewLedgerService(newLedgerStoreStub(&opsLog{}), zap.NewNop())

	_, err := svc.Get(context.Background(), "scn-1", "member-1")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestLedgerServiceExportCSV(t *testing.T) {
	store := newLedgerStoreStub(&opsLog{})
	require.NoError(t, store.Upsert(context.Background(), &models.LedgerEntry{
		ScenarioID:  "scn-1",
		ClassroomID: "class-1",
		MemberID:    "member-1",
		Amount:      20,
		Breakdown:   models.LedgerBreakdown{Scheme: models.OutcomeSchemeWeighted},
		PostedAt:    time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}))
	svc := NewLedgerService(store, zap.NewNop())

	data, err := svc.ExportCSV(context.Background(), "scn-1")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "member_id,amount,scheme,note,posted_at", lines[0])
	require.Contains(t, lines[1], "member-1,20.00,WEIGHTED")
}
