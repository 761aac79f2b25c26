package services

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/dropvault/backend/internal/models"
	"github.com/dropvault/backend/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type legacyClock struct{ ms int64 }

func (c legacyClock) ToMillis() int64 { return c.ms }

func TestNormalize(t *testing.T) {
	t.Run("legacy purchase with cost", func(t *testing.T) {
		tx, err := Normalize(models.RawRecord{"userId": "u1", "amount": 5.0, "type": "purchase", "cost": 9.99}, "t1")
		require.NoError(t, err)
		assert.Equal(t, models.EntryTypePurchaseCurrency, tx.Type)
		assert.Equal(t, "purchase", tx.Description)
		assert.Equal(t, 5.0, tx.Amount)
		assert.Equal(t, int64(999), RevenueCents(tx))
	})

	t.Run("unknown type coerces to admin adjustment", func(t *testing.T) {
		tx, err := Normalize(models.RawRecord{"userId": "u1", "type": "unknown_legacy"}, "t2")
		require.NoError(t, err)
		assert.Equal(t, models.EntryTypeAdminAdjustment, tx.Type)
		assert.Equal(t, "unknown_legacy", tx.Description)
		assert.Equal(t, 0.0, tx.Amount)
		assert.Equal(t, int64(0), tx.Timestamp)
	})

	t.Run("canonical record round-trips", func(t *testing.T) {
		cost := 4.5
		want := models.Transaction{
			ID: "t3", UserID: "u1", Amount: 10, Type: models.EntryTypeDailyReward,
			RelatedDropID: "drop-9", Description: "reward", Timestamp: 1700000000123,
			Cost: &cost, Currency: "USD",
		}
		raw := models.RawRecord{
			"userId": "u1", "amount": 10.0, "type": "daily_reward", "relatedDropId": "drop-9",
			"description": "reward", "timestamp": 1700000000123.0, "cost": 4.5, "currency": "USD",
		}
		got, err := Normalize(raw, "t3")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("canonical types pass through", func(t *testing.T) {
		for _, typ := range []models.EntryType{
			models.EntryTypePurchaseCurrency, models.EntryTypeUnlockContent,
			models.EntryTypeAdminAdjustment, models.EntryTypeDailyReward,
		} {
			tx, err := Normalize(models.RawRecord{"userId": "u1", "type": string(typ)}, "x")
			require.NoError(t, err)
			assert.Equal(t, typ, tx.Type)
		}
	})

	t.Run("legacy related id names", func(t *testing.T) {
		tx, err := Normalize(models.RawRecord{"userId": "u1", "type": "unlock_content", "relatedContentId": "c1"}, "x")
		require.NoError(t, err)
		assert.Equal(t, "c1", tx.RelatedDropID)

		tx, err = Normalize(models.RawRecord{"userId": "u1", "type": "unlock_content", "dropId": "d1"}, "x")
		require.NoError(t, err)
		assert.Equal(t, "d1", tx.RelatedDropID)
	})

	t.Run("invalid identity fields", func(t *testing.T) {
		cases := map[string]models.RawRecord{
			"missing user":      {"type": "purchase"},
			"empty user":        {"userId": "", "type": "purchase"},
			"numeric user":      {"userId": 7.0, "type": "purchase"},
			"missing type":      {"userId": "u1"},
			"string amount":     {"userId": "u1", "type": "purchase", "amount": "5"},
			"non-finite amount": {"userId": "u1", "type": "purchase", "amount": math.Inf(1)},
		}
		for name, raw := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := Normalize(raw, "bad")
				assert.True(t, types.IsCode(err, types.ErrValidation))
			})
		}
	})
}

func TestNormalize_Timestamp(t *testing.T) {
	at := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)

	cases := []struct {
		name  string
		value any
		want  int64
	}{
		{"epoch millis float", 1700000000000.0, 1700000000000},
		{"epoch millis int64", int64(1700000000000), 1700000000000},
		{"json number", json.Number("1700000000001"), 1700000000001},
		{"time value", at, at.UnixMilli()},
		{"millis converter", legacyClock{ms: 42}, 42},
		{"seconds object", map[string]any{"seconds": 1700000000.0, "nanoseconds": 5.0}, 1700000000000},
		{"underscore seconds", map[string]any{"_seconds": json.Number("1700000000"), "_nanoseconds": 0.0}, 1700000000000},
		{"fractional seconds ignored", map[string]any{"seconds": 1.5}, 0},
		{"string", "2023-11-14", 0},
		{"nan", math.NaN(), 0},
		{"millis beyond int64", 1e300, 0},
		{"negative millis beyond int64", -1e19, 0},
		{"json number beyond int64", json.Number("1e30"), 0},
		{"seconds beyond int64 millis", map[string]any{"seconds": 1e17}, 0},
		{"nil", nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx, err := Normalize(models.RawRecord{"userId": "u1", "type": "purchase", "timestamp": tc.value}, "x")
			require.NoError(t, err)
			assert.Equal(t, tc.want, tx.Timestamp)
		})
	}

	t.Run("falls back to createdAt", func(t *testing.T) {
		tx, err := Normalize(models.RawRecord{"userId": "u1", "type": "purchase", "createdAt": map[string]any{"_seconds": 10.0}}, "x")
		require.NoError(t, err)
		assert.Equal(t, int64(10000), tx.Timestamp)
	})
}

func TestRevenueCents(t *testing.T) {
	cost := func(v float64) *float64 { return &v }

	assert.Equal(t, int64(999), RevenueCents(models.Transaction{Type: models.EntryTypePurchaseCurrency, Cost: cost(9.99)}))
	assert.Equal(t, int64(1), RevenueCents(models.Transaction{Type: models.EntryTypePurchaseCurrency, Cost: cost(0.005)}))
	assert.Equal(t, int64(0), RevenueCents(models.Transaction{Type: models.EntryTypePurchaseCurrency}))
	assert.Equal(t, int64(0), RevenueCents(models.Transaction{Type: models.EntryTypePurchaseCurrency, Cost: cost(math.NaN())}))
	assert.Equal(t, int64(0), RevenueCents(models.Transaction{Type: models.EntryTypeUnlockContent, Cost: cost(9.99)}))
}

func TestEntryRecord(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	entry := &models.LedgerEntry{
		ID: "e1", UserID: "u1", Amount: -20, Type: models.EntryTypeUnlockContent,
		Description: "Unlocked x", RelatedContentID: "c1", Timestamp: at,
	}

	tx, err := Normalize(EntryRecord(entry), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Transaction{
		ID: "e1", UserID: "u1", Amount: -20, Type: models.EntryTypeUnlockContent,
		RelatedDropID: "c1", Description: "Unlocked x", Timestamp: at.UnixMilli(),
	}, tx)
}
