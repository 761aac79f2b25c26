package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/dropvault/backend/internal/models"
	"github.com/dropvault/backend/internal/types"
)

// MemoryStore implements Store in process memory. Transactions read
// snapshots, buffer their writes and validate the versions they observed at
// commit, so the store lock is never held while a transaction body runs.
type MemoryStore struct {
	mu            sync.RWMutex
	accounts      map[string]*models.Account
	entries       map[string][]*models.LedgerEntry
	content       map[string]*models.ContentItem
	entitlements  map[string]map[string]time.Time
	notifications map[string]*models.Notification
	legacy        []LegacyRecord
	retry         RetryPolicy
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(retry RetryPolicy) *MemoryStore {
	return &MemoryStore{
		accounts:      make(map[string]*models.Account),
		entries:       make(map[string][]*models.LedgerEntry),
		content:       make(map[string]*models.ContentItem),
		entitlements:  make(map[string]map[string]time.Time),
		notifications: make(map[string]*models.Notification),
		retry:         retry,
	}
}

func (s *MemoryStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.retry.run(ctx, func() error {
		if err := ctx.Err(); err != nil {
			return types.WrapError(types.ErrStoreUnavailable, "transaction aborted", err)
		}
		tx := &memoryTx{
			store:    s,
			reads:    make(map[string]int64),
			balances: make(map[string]int64),
		}
		if err := fn(tx); err != nil {
			return err
		}
		return tx.commit()
	})
}

func (s *MemoryStore) CreateAccount(ctx context.Context, acct *models.Account) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[acct.UserID]; exists {
		return false, nil
	}
	stored := *acct
	stored.Version = 0
	stored.UpdatedAt = stored.CreatedAt
	s.accounts[acct.UserID] = &stored
	return true, nil
}

func (s *MemoryStore) GetAccount(ctx context.Context, userID string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, exists := s.accounts[userID]
	if !exists {
		return nil, ErrNotFound
	}
	accountCopy := *acct
	return &accountCopy, nil
}

func (s *MemoryStore) ListEntries(ctx context.Context, userID string, limit int) ([]*models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		return []*models.LedgerEntry{}, nil
	}
	entries := s.entries[userID]
	result := make([]*models.LedgerEntry, 0, min(limit, len(entries)))
	for i := len(entries) - 1; i >= 0 && len(result) < limit; i-- {
		entryCopy := *entries[i]
		result = append(result, &entryCopy)
	}
	return result, nil
}

func (s *MemoryStore) ListEntriesSince(ctx context.Context, since time.Time) ([]*models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*models.LedgerEntry{}
	for _, entries := range s.entries {
		for _, entry := range entries {
			if !entry.Timestamp.Before(since) {
				entryCopy := *entry
				result = append(result, &entryCopy)
			}
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

func (s *MemoryStore) CreateContent(ctx context.Context, item *models.ContentItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.content[item.ID]; exists {
		return types.Errorf(types.ErrValidation, "content %s already exists", item.ID)
	}
	stored := *item
	stored.AccessCount = 0
	s.content[item.ID] = &stored
	return nil
}

func (s *MemoryStore) GetContent(ctx context.Context, contentID string) (*models.ContentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.content[contentID]
	if !exists {
		return nil, ErrNotFound
	}
	itemCopy := *item
	return &itemCopy, nil
}

func (s *MemoryStore) IncrementAccessCount(ctx context.Context, contentID string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.content[contentID]
	if !exists {
		return ErrNotFound
	}
	item.AccessCount += delta
	return nil
}

func (s *MemoryStore) HasEntitlement(ctx context.Context, userID, contentID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, owned := s.entitlements[userID][contentID]
	return owned, nil
}

func (s *MemoryStore) ListEntitlements(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owned := s.entitlements[userID]
	contentIDs := make([]string, 0, len(owned))
	for contentID := range owned {
		contentIDs = append(contentIDs, contentID)
	}
	sort.Slice(contentIDs, func(i, j int) bool {
		return owned[contentIDs[i]].Before(owned[contentIDs[j]]) ||
			(owned[contentIDs[i]].Equal(owned[contentIDs[j]]) && contentIDs[i] < contentIDs[j])
	})
	return contentIDs, nil
}

func (s *MemoryStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *n
	stored.Target.UserIDs = slices.Clone(n.Target.UserIDs)
	stored.ReadBy = []string{}
	s.notifications[n.ID] = &stored
	return nil
}

func (s *MemoryStore) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, exists := s.notifications[id]
	if !exists {
		return nil, ErrNotFound
	}
	return copyNotification(n), nil
}

func (s *MemoryStore) AddNotificationReader(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, exists := s.notifications[id]
	if !exists {
		return ErrNotFound
	}
	if !slices.Contains(n.ReadBy, userID) {
		n.ReadBy = append(n.ReadBy, userID)
	}
	return nil
}

func (s *MemoryStore) ListNotificationsFor(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*models.Notification{}
	for _, n := range s.notifications {
		if n.Target.Includes(userID) {
			result = append(result, copyNotification(n))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *MemoryStore) CountUnreadFor(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	unread := 0
	for _, n := range s.notifications {
		if n.Target.Includes(userID) && !slices.Contains(n.ReadBy, userID) {
			unread++
		}
	}
	return unread, nil
}

// AddLegacyRecord seeds a historical record for reporting
func (s *MemoryStore) AddLegacyRecord(id string, record models.RawRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.legacy = append(s.legacy, LegacyRecord{ID: id, Record: record})
}

func (s *MemoryStore) ListLegacyRecords(ctx context.Context) ([]LegacyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.legacy), nil
}

func copyNotification(n *models.Notification) *models.Notification {
	notificationCopy := *n
	notificationCopy.Target.UserIDs = slices.Clone(n.Target.UserIDs)
	notificationCopy.ReadBy = slices.Clone(n.ReadBy)
	return &notificationCopy
}

type memoryTx struct {
	store    *MemoryStore
	reads    map[string]int64 // account versions observed
	balances map[string]int64 // pending balance writes
	entries  []*models.LedgerEntry
	grants   []*models.Entitlement
}

func (t *memoryTx) GetAccount(ctx context.Context, userID string) (*models.Account, error) {
	acct, err := t.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if version, seen := t.reads[userID]; seen && version != acct.Version {
		return nil, fmt.Errorf("%w: account %s changed during transaction", ErrTxConflict, userID)
	}
	t.reads[userID] = acct.Version
	if pending, ok := t.balances[userID]; ok {
		acct.Balance = pending
	}
	return acct, nil
}

func (t *memoryTx) UpdateBalance(ctx context.Context, acct *models.Account, newBalance int64) error {
	if version, seen := t.reads[acct.UserID]; !seen || version != acct.Version {
		return fmt.Errorf("%w: optimistic lock failed for account %s", ErrTxConflict, acct.UserID)
	}
	t.balances[acct.UserID] = newBalance
	return nil
}

func (t *memoryTx) InsertEntry(ctx context.Context, entry *models.LedgerEntry) error {
	entryCopy := *entry
	t.entries = append(t.entries, &entryCopy)
	return nil
}

func (t *memoryTx) FindEntryByIdempotencyKey(ctx context.Context, userID, key string) (*models.LedgerEntry, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	if entry := t.store.findByKey(userID, key); entry != nil {
		entryCopy := *entry
		return &entryCopy, nil
	}
	return nil, ErrNotFound
}

func (t *memoryTx) GetContent(ctx context.Context, contentID string) (*models.ContentItem, error) {
	return t.store.GetContent(ctx, contentID)
}

func (t *memoryTx) HasEntitlement(ctx context.Context, userID, contentID string) (bool, error) {
	for _, grant := range t.grants {
		if grant.UserID == userID && grant.ContentID == contentID {
			return true, nil
		}
	}
	return t.store.HasEntitlement(ctx, userID, contentID)
}

func (t *memoryTx) GrantEntitlement(ctx context.Context, e *models.Entitlement) error {
	grant := *e
	t.grants = append(t.grants, &grant)
	return nil
}

// commit validates every observed version and applies buffered writes
// atomically. Any write that raced this transaction turns into a conflict.
func (t *memoryTx) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for userID, version := range t.reads {
		acct, exists := s.accounts[userID]
		if !exists || acct.Version != version {
			return fmt.Errorf("%w: account %s changed before commit", ErrTxConflict, userID)
		}
	}
	for _, entry := range t.entries {
		if entry.IdempotencyKey != "" && s.findByKey(entry.UserID, entry.IdempotencyKey) != nil {
			return fmt.Errorf("%w: idempotency key %s already committed", ErrTxConflict, entry.IdempotencyKey)
		}
	}
	for _, grant := range t.grants {
		if _, owned := s.entitlements[grant.UserID][grant.ContentID]; owned {
			return fmt.Errorf("%w: content %s already granted to %s", ErrTxConflict, grant.ContentID, grant.UserID)
		}
	}

	now := time.Now().UTC()
	for userID, balance := range t.balances {
		acct := s.accounts[userID]
		acct.Balance = balance
		acct.Version++
		acct.UpdatedAt = now
	}
	for _, entry := range t.entries {
		s.entries[entry.UserID] = append(s.entries[entry.UserID], entry)
	}
	for _, grant := range t.grants {
		if s.entitlements[grant.UserID] == nil {
			s.entitlements[grant.UserID] = make(map[string]time.Time)
		}
		s.entitlements[grant.UserID][grant.ContentID] = grant.UnlockedAt
	}
	return nil
}

func (s *MemoryStore) findByKey(userID, key string) *models.LedgerEntry {
	for _, entry := range s.entries[userID] {
		if entry.IdempotencyKey == key {
			return entry
		}
	}
	return nil
}
