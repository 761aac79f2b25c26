package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dropvault/backend/internal/models"
	"github.com/dropvault/backend/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAccount(t *testing.T, store *MemoryStore, userID string, balance int64) {
	t.Helper()
	created, err := store.CreateAccount(context.Background(), &models.Account{UserID: userID, Balance: balance, CreatedAt: time.Now()})
	require.NoError(t, err)
	require.True(t, created)
}

func credit(ctx context.Context, tx Tx, userID string, amount int64) error {
	acct, err := tx.GetAccount(ctx, userID)
	if err != nil {
		return err
	}
	return tx.UpdateBalance(ctx, acct, acct.Balance+amount)
}

func TestMemoryStore_RunInTx(t *testing.T) {
	ctx := context.Background()

	t.Run("buffers writes until commit", func(t *testing.T) {
		store := NewMemoryStore(RetryPolicy{MaxAttempts: 1})
		seedAccount(t, store, "u1", 100)

		err := store.RunInTx(ctx, func(tx Tx) error {
			if err := credit(ctx, tx, "u1", 50); err != nil {
				return err
			}
			outside, err := store.GetAccount(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, int64(100), outside.Balance)

			inside, err := tx.GetAccount(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, int64(150), inside.Balance)
			return nil
		})
		require.NoError(t, err)

		acct, err := store.GetAccount(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(150), acct.Balance)
		assert.Equal(t, int64(1), acct.Version)
	})

	t.Run("failed body leaves no trace", func(t *testing.T) {
		store := NewMemoryStore(RetryPolicy{MaxAttempts: 1})
		seedAccount(t, store, "u1", 100)

		err := store.RunInTx(ctx, func(tx Tx) error {
			if err := credit(ctx, tx, "u1", 50); err != nil {
				return err
			}
			if err := tx.InsertEntry(ctx, &models.LedgerEntry{ID: "e1", UserID: "u1", Amount: 50}); err != nil {
				return err
			}
			return types.NewError(types.ErrValidation, "abort")
		})
		assert.True(t, types.IsCode(err, types.ErrValidation))

		acct, _ := store.GetAccount(ctx, "u1")
		assert.Equal(t, int64(100), acct.Balance)
		entries, _ := store.ListEntries(ctx, "u1", 10)
		assert.Empty(t, entries)
	})

	t.Run("interleaved writer forces a retry", func(t *testing.T) {
		store := NewMemoryStore(RetryPolicy{MaxAttempts: 3})
		seedAccount(t, store, "u1", 100)

		attempts := 0
		err := store.RunInTx(ctx, func(tx Tx) error {
			attempts++
			acct, err := tx.GetAccount(ctx, "u1")
			if err != nil {
				return err
			}
			if attempts == 1 {
				require.NoError(t, store.RunInTx(ctx, func(inner Tx) error { return credit(ctx, inner, "u1", 1) }))
			}
			return tx.UpdateBalance(ctx, acct, acct.Balance+10)
		})
		require.NoError(t, err)
		assert.Equal(t, 2, attempts)

		acct, _ := store.GetAccount(ctx, "u1")
		assert.Equal(t, int64(111), acct.Balance)
	})

	t.Run("exhausted retries surface as conflict", func(t *testing.T) {
		store := NewMemoryStore(RetryPolicy{MaxAttempts: 2})
		seedAccount(t, store, "u1", 100)

		err := store.RunInTx(ctx, func(tx Tx) error {
			acct, err := tx.GetAccount(ctx, "u1")
			if err != nil {
				return err
			}
			require.NoError(t, store.RunInTx(ctx, func(inner Tx) error { return credit(ctx, inner, "u1", 1) }))
			return tx.UpdateBalance(ctx, acct, acct.Balance+10)
		})
		assert.True(t, types.IsCode(err, types.ErrConflict))

		acct, _ := store.GetAccount(ctx, "u1")
		assert.Equal(t, int64(102), acct.Balance)
	})

	t.Run("concurrent credits are never lost", func(t *testing.T) {
		store := NewMemoryStore(RetryPolicy{MaxAttempts: 1000})
		seedAccount(t, store, "u1", 0)

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, store.RunInTx(ctx, func(tx Tx) error { return credit(ctx, tx, "u1", 2) }))
			}()
		}
		wg.Wait()

		acct, _ := store.GetAccount(ctx, "u1")
		assert.Equal(t, int64(100), acct.Balance)
		assert.Equal(t, int64(50), acct.Version)
	})

	t.Run("cancelled context is unavailable", func(t *testing.T) {
		store := NewMemoryStore(DefaultRetryPolicy())
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := store.RunInTx(cancelled, func(tx Tx) error { return nil })
		assert.True(t, types.IsCode(err, types.ErrStoreUnavailable))
	})
}

func TestMemoryStore_Entitlements(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(RetryPolicy{MaxAttempts: 1})
	seedAccount(t, store, "u1", 0)

	err := store.RunInTx(ctx, func(tx Tx) error {
		owned, err := tx.HasEntitlement(ctx, "u1", "c1")
		require.NoError(t, err)
		assert.False(t, owned)

		require.NoError(t, tx.GrantEntitlement(ctx, &models.Entitlement{UserID: "u1", ContentID: "c1", UnlockedAt: time.Now()}))

		owned, err = tx.HasEntitlement(ctx, "u1", "c1")
		require.NoError(t, err)
		assert.True(t, owned)
		return nil
	})
	require.NoError(t, err)

	ids, err := store.ListEntitlements(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids)

	t.Run("second grant of the same content conflicts", func(t *testing.T) {
		err := store.RunInTx(ctx, func(tx Tx) error {
			return tx.GrantEntitlement(ctx, &models.Entitlement{UserID: "u1", ContentID: "c1", UnlockedAt: time.Now()})
		})
		assert.True(t, types.IsCode(err, types.ErrConflict))
	})
}

func TestMemoryStore_Notifications(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(DefaultRetryPolicy())
	now := time.Now()

	require.NoError(t, store.CreateNotification(ctx, &models.Notification{ID: "n1", Target: models.Target{UserIDs: []string{"a", "b"}}, CreatedAt: now}))
	require.NoError(t, store.CreateNotification(ctx, &models.Notification{ID: "n2", Target: models.Target{Global: true}, CreatedAt: now.Add(time.Second)}))

	list, err := store.ListNotificationsFor(ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "n2", list[0].ID)

	list, err = store.ListNotificationsFor(ctx, "c", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "n2", list[0].ID)

	require.NoError(t, store.AddNotificationReader(ctx, "n1", "a"))
	require.NoError(t, store.AddNotificationReader(ctx, "n1", "a"))
	n, err := store.GetNotification(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, n.ReadBy)

	assert.ErrorIs(t, store.AddNotificationReader(ctx, "missing", "a"), ErrNotFound)

	unread, err := store.CountUnreadFor(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
	unread, err = store.CountUnreadFor(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, unread)
	unread, err = store.CountUnreadFor(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}

func TestMemoryStore_IncrementAccessCount(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(DefaultRetryPolicy())
	require.NoError(t, store.CreateContent(ctx, &models.ContentItem{ID: "c1", ContentURL: "https://cdn/x", UnlockCost: 5}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.IncrementAccessCount(ctx, "c1", 1))
		}()
	}
	wg.Wait()

	item, err := store.GetContent(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(20), item.AccessCount)
	assert.ErrorIs(t, store.IncrementAccessCount(ctx, "missing", 1), ErrNotFound)
}
