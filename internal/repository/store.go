package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dropvault/backend/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrTxConflict marks a transaction attempt that lost a concurrent write
	// race. RunInTx retries it; callers never see it directly.
	ErrTxConflict = errors.New("transaction conflict")
)

// Tx is the view of the store inside one serializable transaction.
// Reads through a Tx take part in conflict detection.
type Tx interface {
	GetAccount(ctx context.Context, userID string) (*models.Account, error)

	// UpdateBalance writes newBalance if acct.Version is still current
	UpdateBalance(ctx context.Context, acct *models.Account, newBalance int64) error

	InsertEntry(ctx context.Context, entry *models.LedgerEntry) error
	FindEntryByIdempotencyKey(ctx context.Context, userID, key string) (*models.LedgerEntry, error)

	GetContent(ctx context.Context, contentID string) (*models.ContentItem, error)
	HasEntitlement(ctx context.Context, userID, contentID string) (bool, error)
	GrantEntitlement(ctx context.Context, entitlement *models.Entitlement) error
}

// Store is the document store shared by the ledger, the entitlement gate and
// the notifier. Only the ledger mutates balances, only unlocks mutate
// entitlements and only the notifier mutates read state.
type Store interface {
	// RunInTx runs fn in a serializable transaction, retrying it on
	// conflicts until the retry policy is exhausted.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error

	CreateAccount(ctx context.Context, acct *models.Account) (bool, error)
	GetAccount(ctx context.Context, userID string) (*models.Account, error)
	ListEntries(ctx context.Context, userID string, limit int) ([]*models.LedgerEntry, error)
	ListEntriesSince(ctx context.Context, since time.Time) ([]*models.LedgerEntry, error)

	CreateContent(ctx context.Context, item *models.ContentItem) error
	GetContent(ctx context.Context, contentID string) (*models.ContentItem, error)
	IncrementAccessCount(ctx context.Context, contentID string, delta int64) error
	HasEntitlement(ctx context.Context, userID, contentID string) (bool, error)
	ListEntitlements(ctx context.Context, userID string) ([]string, error)

	CreateNotification(ctx context.Context, n *models.Notification) error
	GetNotification(ctx context.Context, id string) (*models.Notification, error)
	AddNotificationReader(ctx context.Context, id, userID string) error
	ListNotificationsFor(ctx context.Context, userID string, limit int) ([]*models.Notification, error)

	// CountUnreadFor counts notifications addressed to userID that userID
	// has not read, across the whole audience rather than one page.
	CountUnreadFor(ctx context.Context, userID string) (int, error)

	ListLegacyRecords(ctx context.Context) ([]LegacyRecord, error)
}

// LegacyRecord is a historical transaction persisted before the ledger
// schema existed, kept verbatim.
type LegacyRecord struct {
	ID     string
	Record models.RawRecord
}
