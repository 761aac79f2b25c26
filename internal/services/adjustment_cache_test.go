package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dropvault/backend/internal/models"
	"github.com/dropvault/backend/internal/types"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyedRequest(amount int64) AdjustRequest {
	return AdjustRequest{
		UserID: "u1", Amount: amount, Type: models.EntryTypePurchaseCurrency, Description: "pack", IdempotencyKey: "k1",
	}
}

func TestAdjustmentCache(t *testing.T) {
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		redisClient, mock := redismock.NewClientMock()
		cache := NewAdjustmentCache(redisClient, time.Hour)

		mock.ExpectGet("adjust:u1:k1").RedisNil()
		_, ok := cache.Get(ctx, keyedRequest(40))
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("put then hit", func(t *testing.T) {
		redisClient, mock := redismock.NewClientMock()
		cache := NewAdjustmentCache(redisClient, time.Hour)
		result := &AdjustResult{NewBalance: 40, EntryID: "e1"}
		data, err := json.Marshal(cachedAdjustment{Amount: 40, Type: models.EntryTypePurchaseCurrency, Result: *result})
		require.NoError(t, err)

		mock.ExpectSet("adjust:u1:k1", data, time.Hour).SetVal("OK")
		cache.Put(ctx, keyedRequest(40), result)

		mock.ExpectGet("adjust:u1:k1").SetVal(string(data))
		cached, ok := cache.Get(ctx, keyedRequest(40))
		require.True(t, ok)
		assert.Equal(t, int64(40), cached.NewBalance)
		assert.Equal(t, "e1", cached.EntryID)
		assert.True(t, cached.Replayed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("different amount under the same key is a miss", func(t *testing.T) {
		redisClient, mock := redismock.NewClientMock()
		cache := NewAdjustmentCache(redisClient, time.Hour)

		mock.ExpectGet("adjust:u1:k1").SetVal(`{"amount":7,"type":"purchase_currency","result":{"newBalance":7,"entryId":"e1"}}`)
		_, ok := cache.Get(ctx, keyedRequest(-50))
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redis failure is a miss", func(t *testing.T) {
		redisClient, mock := redismock.NewClientMock()
		cache := NewAdjustmentCache(redisClient, time.Hour)

		mock.ExpectGet("adjust:u1:k1").SetErr(errors.New("connection refused"))
		_, ok := cache.Get(ctx, keyedRequest(40))
		assert.False(t, ok)
	})

	t.Run("nil cache is inert", func(t *testing.T) {
		var cache *AdjustmentCache
		_, ok := cache.Get(ctx, keyedRequest(40))
		assert.False(t, ok)
		cache.Put(ctx, keyedRequest(40), &AdjustResult{})
	})
}

func TestLedgerService_AdjustBalanceCachedReplay(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	redisClient, mock := redismock.NewClientMock()
	f.ledger.WithCache(NewAdjustmentCache(redisClient, time.Hour))

	mock.ExpectGet("adjust:u1:order-1").SetVal(`{"amount":75,"type":"purchase_currency","result":{"newBalance":75,"entryId":"e-prior"}}`)

	// the account is unknown to the store, so only the cache can answer
	result, err := f.ledger.AdjustBalance(ctx, admin, AdjustRequest{
		UserID: "u1", Amount: 75, Type: models.EntryTypePurchaseCurrency, Description: "pack", IdempotencyKey: "order-1",
	})
	require.NoError(t, err)
	assert.True(t, result.Replayed)
	assert.Equal(t, "e-prior", result.EntryID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerService_AdjustBalanceCacheMismatchReachesLedger(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.seed(t, "u1", 0)
	redisClient, mock := redismock.NewClientMock()
	f.ledger.WithCache(NewAdjustmentCache(redisClient, time.Hour))

	first := keyedRequest(7)
	data, err := json.Marshal(cachedAdjustment{Amount: 7, Type: first.Type, Result: AdjustResult{NewBalance: 7}})
	require.NoError(t, err)
	// the write-back after the first call is unexpected and only logged
	mock.ExpectGet("adjust:u1:k1").RedisNil()
	_, err = f.ledger.AdjustBalance(ctx, admin, first)
	require.NoError(t, err)

	mock.ExpectGet("adjust:u1:k1").SetVal(string(data))
	_, err = f.ledger.AdjustBalance(ctx, admin, keyedRequest(-50))
	assert.True(t, types.IsCode(err, types.ErrConflict), "got %v", err)
	assert.Equal(t, int64(7), f.balance(t, "u1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
