package services

import (
	"context"
	"testing"
	"time"

	"github.com/dropvault/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportService_RevenueReport(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.seed(t, "u1", 0)

	_, err := f.ledger.AdjustBalance(ctx, admin, AdjustRequest{
		UserID: "u1", Amount: 500, Type: models.EntryTypePurchaseCurrency, Description: "pack",
	})
	require.NoError(t, err)
	_, err = f.ledger.AdjustBalance(ctx, admin, AdjustRequest{
		UserID: "u1", Amount: -100, Type: models.EntryTypeAdminAdjustment, Description: "fix",
	})
	require.NoError(t, err)

	f.store.AddLegacyRecord("l1", models.RawRecord{"userId": "u1", "amount": 5.0, "type": "purchase", "cost": 9.99})
	f.store.AddLegacyRecord("l2", models.RawRecord{"userId": "u2", "amount": 1.0, "type": "purchase", "cost": 0.5, "createdAt": map[string]any{"_seconds": 1.0}})
	f.store.AddLegacyRecord("l3", models.RawRecord{"userId": "u2", "type": "gift"})
	f.store.AddLegacyRecord("l4", models.RawRecord{"type": "purchase", "cost": 100.0})

	report, err := NewReportService(f.store).RevenueReport(ctx, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, int64(1049), report.TotalCents)
	assert.Equal(t, 3, report.PurchaseCount)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 3, report.ByType[models.EntryTypePurchaseCurrency])
	assert.Equal(t, 2, report.ByType[models.EntryTypeAdminAdjustment])
}

func TestReportService_RevenueReportSince(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.seed(t, "u1", 0)

	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	old := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	f.store.AddLegacyRecord("2019", models.RawRecord{"userId": "u1", "type": "purchase", "cost": 9.99, "timestamp": old.UnixMilli()})
	f.store.AddLegacyRecord("2019-seconds", models.RawRecord{"userId": "u1", "type": "purchase", "cost": 4.0, "createdAt": map[string]any{"seconds": old.Unix()}})
	f.store.AddLegacyRecord("2026", models.RawRecord{"userId": "u1", "type": "purchase", "cost": 1.25, "timestamp": recent})
	f.store.AddLegacyRecord("undated", models.RawRecord{"userId": "u1", "type": "purchase", "cost": 0.5})

	report, err := NewReportService(f.store).RevenueReport(ctx, since)
	require.NoError(t, err)

	assert.Equal(t, int64(175), report.TotalCents)
	assert.Equal(t, 2, report.PurchaseCount)
	assert.Zero(t, report.Skipped)
}

func TestReportService_EmptyStore(t *testing.T) {
	f := newLedgerFixture(t)

	report, err := NewReportService(f.store).RevenueReport(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, report.TotalCents)
	assert.Zero(t, report.Skipped)
	assert.Empty(t, report.ByType)
}
