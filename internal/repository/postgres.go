package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropvault/backend/internal/models"
	"github.com/dropvault/backend/internal/types"
	"github.com/lib/pq"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateUniqueViolation      = "23505"
	sqlClassConnectionException  = "08"
)

// PostgresStore implements Store on PostgreSQL
type PostgresStore struct {
	db    *sql.DB
	retry RetryPolicy
}

// NewPostgresStore wraps an open database handle
func NewPostgresStore(db *sql.DB, retry RetryPolicy) *PostgresStore {
	return &PostgresStore{
		db:    db,
		retry: retry,
	}
}

func (s *PostgresStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.retry.run(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err != nil {
			return classifyError(err)
		}
		defer tx.Rollback()

		if err := fn(&postgresTx{tx: tx}); err != nil {
			return classifyError(err)
		}

		if err := tx.Commit(); err != nil {
			return classifyError(err)
		}
		return nil
	})
}

func (s *PostgresStore) CreateAccount(ctx context.Context, acct *models.Account) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (user_id, balance, version, created_at, updated_at)
		VALUES ($1, $2, 0, $3, $3)
		ON CONFLICT (user_id) DO NOTHING`,
		acct.UserID, acct.Balance, acct.CreatedAt)
	if err != nil {
		return false, classifyError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, classifyError(err)
	}
	return rowsAffected == 1, nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, userID string) (*models.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, `
		SELECT user_id, balance, version, created_at, updated_at
		FROM accounts
		WHERE user_id = $1`, userID))
}

func (s *PostgresStore) ListEntries(ctx context.Context, userID string, limit int) ([]*models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, classifyError(err)
	}
	return scanEntries(rows)
}

func (s *PostgresStore) ListEntriesSince(ctx context.Context, since time.Time) ([]*models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE created_at >= $1
		ORDER BY created_at`, since)
	if err != nil {
		return nil, classifyError(err)
	}
	return scanEntries(rows)
}

func (s *PostgresStore) CreateContent(ctx context.Context, item *models.ContentItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO content_items (id, title, content_url, unlock_cost, access_count, created_at)
		VALUES ($1, $2, $3, $4, 0, $5)`,
		item.ID, item.Title, item.ContentURL, item.UnlockCost, item.CreatedAt)
	if isUniqueViolation(err) {
		return types.Errorf(types.ErrValidation, "content %s already exists", item.ID)
	}
	return classifyError(err)
}

func (s *PostgresStore) GetContent(ctx context.Context, contentID string) (*models.ContentItem, error) {
	return getContent(ctx, s.db, contentID)
}

// IncrementAccessCount applies a store-side increment, no read-modify-write
func (s *PostgresStore) IncrementAccessCount(ctx context.Context, contentID string, delta int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE content_items
		SET access_count = access_count + $1
		WHERE id = $2`, delta, contentID)
	if err != nil {
		return classifyError(err)
	}
	return requireRow(result)
}

func (s *PostgresStore) HasEntitlement(ctx context.Context, userID, contentID string) (bool, error) {
	return hasEntitlement(ctx, s.db, userID, contentID)
}

func (s *PostgresStore) ListEntitlements(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT content_id
		FROM entitlements
		WHERE user_id = $1
		ORDER BY unlocked_at`, userID)
	if err != nil {
		return nil, classifyError(err)
	}
	defer rows.Close()

	contentIDs := []string{}
	for rows.Next() {
		var contentID string
		if err := rows.Scan(&contentID); err != nil {
			return nil, err
		}
		contentIDs = append(contentIDs, contentID)
	}
	return contentIDs, classifyError(rows.Err())
}

func (s *PostgresStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	userIDs := n.Target.UserIDs
	if userIDs == nil {
		userIDs = []string{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, title, message, type, target_global, target_user_ids, link, created_at, read_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '{}')`,
		n.ID, n.Title, n.Message, n.Type, n.Target.Global, pq.Array(userIDs), nullString(n.Link), n.CreatedAt)
	return classifyError(err)
}

func (s *PostgresStore) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	return scanNotification(s.db.QueryRowContext(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE id = $1`, id))
}

// AddNotificationReader unions userID into read_by in a single statement
func (s *PostgresStore) AddNotificationReader(ctx context.Context, id, userID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET read_by = CASE WHEN $2 = ANY(read_by) THEN read_by ELSE array_append(read_by, $2) END
		WHERE id = $1`, id, userID)
	if err != nil {
		return classifyError(err)
	}
	return requireRow(result)
}

func (s *PostgresStore) ListNotificationsFor(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE target_global OR $1 = ANY(target_user_ids)
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, classifyError(err)
	}
	defer rows.Close()

	notifications := []*models.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, classifyError(rows.Err())
}

func (s *PostgresStore) CountUnreadFor(ctx context.Context, userID string) (int, error) {
	var unread int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM notifications
		WHERE (target_global OR $1 = ANY(target_user_ids))
		  AND NOT ($1 = ANY(read_by))`, userID).Scan(&unread)
	if err != nil {
		return 0, classifyError(err)
	}
	return unread, nil
}

// ListLegacyRecords returns every imported record. Record timestamps live in
// the payload in several historical shapes, so filtering happens after
// normalization.
func (s *PostgresStore) ListLegacyRecords(ctx context.Context) ([]LegacyRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, payload
		FROM legacy_transactions
		ORDER BY id`)
	if err != nil {
		return nil, classifyError(err)
	}
	defer rows.Close()

	records := []LegacyRecord{}
	for rows.Next() {
		var rec LegacyRecord
		if err := rows.Scan(&rec.ID, &rec.Record); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, classifyError(rows.Err())
}

type postgresTx struct {
	tx *sql.Tx
}

// GetAccount locks the account row so concurrent writers queue behind it
func (t *postgresTx) GetAccount(ctx context.Context, userID string) (*models.Account, error) {
	return scanAccount(t.tx.QueryRowContext(ctx, `
		SELECT user_id, balance, version, created_at, updated_at
		FROM accounts
		WHERE user_id = $1
		FOR UPDATE`, userID))
}

func (t *postgresTx) UpdateBalance(ctx context.Context, acct *models.Account, newBalance int64) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE user_id = $3 AND version = $4`,
		newBalance, time.Now().UTC(), acct.UserID, acct.Version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: optimistic lock failed for account %s", ErrTxConflict, acct.UserID)
	}
	return nil
}

func (t *postgresTx) InsertEntry(ctx context.Context, entry *models.LedgerEntry) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, user_id, amount, type, description, related_content_id, actor, idempotency_key, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.UserID, entry.Amount, entry.Type, entry.Description,
		nullString(entry.RelatedContentID), entry.Actor, nullString(entry.IdempotencyKey),
		entry.BalanceAfter, entry.Timestamp)
	if isUniqueViolation(err) {
		// A concurrent call committed the same idempotency key first; the
		// retry will find and replay it.
		return fmt.Errorf("%w: %v", ErrTxConflict, err)
	}
	return err
}

func (t *postgresTx) FindEntryByIdempotencyKey(ctx context.Context, userID, key string) (*models.LedgerEntry, error) {
	return scanEntry(t.tx.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE user_id = $1 AND idempotency_key = $2`, userID, key))
}

func (t *postgresTx) GetContent(ctx context.Context, contentID string) (*models.ContentItem, error) {
	return getContent(ctx, t.tx, contentID)
}

func (t *postgresTx) HasEntitlement(ctx context.Context, userID, contentID string) (bool, error) {
	return hasEntitlement(ctx, t.tx, userID, contentID)
}

func (t *postgresTx) GrantEntitlement(ctx context.Context, e *models.Entitlement) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO entitlements (user_id, content_id, unlocked_at)
		VALUES ($1, $2, $3)`,
		e.UserID, e.ContentID, e.UnlockedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrTxConflict, err)
	}
	return err
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

const entryColumns = `id, user_id, amount, type, description, COALESCE(related_content_id, ''), actor, COALESCE(idempotency_key, ''), balance_after, created_at`

const notificationColumns = `id, title, message, type, target_global, target_user_ids, COALESCE(link, ''), created_at, read_by`

func getContent(ctx context.Context, q queryer, contentID string) (*models.ContentItem, error) {
	var item models.ContentItem
	err := q.QueryRowContext(ctx, `
		SELECT id, title, content_url, unlock_cost, access_count, created_at
		FROM content_items
		WHERE id = $1`, contentID).
		Scan(&item.ID, &item.Title, &item.ContentURL, &item.UnlockCost, &item.AccessCount, &item.CreatedAt)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &item, nil
}

func hasEntitlement(ctx context.Context, q queryer, userID, contentID string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM entitlements WHERE user_id = $1 AND content_id = $2)`,
		userID, contentID).Scan(&exists)
	if err != nil {
		return false, classifyError(err)
	}
	return exists, nil
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var acct models.Account
	if err := row.Scan(&acct.UserID, &acct.Balance, &acct.Version, &acct.CreatedAt, &acct.UpdatedAt); err != nil {
		return nil, notFoundOr(err)
	}
	return &acct, nil
}

func scanEntry(row rowScanner) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := row.Scan(&entry.ID, &entry.UserID, &entry.Amount, &entry.Type, &entry.Description,
		&entry.RelatedContentID, &entry.Actor, &entry.IdempotencyKey, &entry.BalanceAfter, &entry.Timestamp)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &entry, nil
}

func scanEntries(rows *sql.Rows) ([]*models.LedgerEntry, error) {
	defer rows.Close()

	entries := []*models.LedgerEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, classifyError(rows.Err())
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	var n models.Notification
	var userIDs, readBy pq.StringArray
	err := row.Scan(&n.ID, &n.Title, &n.Message, &n.Type, &n.Target.Global, &userIDs, &n.Link, &n.CreatedAt, &readBy)
	if err != nil {
		return nil, notFoundOr(err)
	}
	n.Target.UserIDs = []string(userIDs)
	n.ReadBy = []string(readBy)
	return &n, nil
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return classifyError(err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func notFoundOr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return classifyError(err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == sqlStateUniqueViolation
}

// classifyError maps driver failures onto retryable conflicts or store
// unavailability. Errors it does not recognise pass through unchanged.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var ledgerErr *types.LedgerError
	if errors.As(err, &ledgerErr) || errors.Is(err, ErrTxConflict) || errors.Is(err, ErrNotFound) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		switch {
		case code == sqlStateSerializationFailure || code == sqlStateDeadlockDetected:
			return fmt.Errorf("%w: %v", ErrTxConflict, err)
		case strings.HasPrefix(code, sqlClassConnectionException):
			return types.WrapError(types.ErrStoreUnavailable, "database connection failed", err)
		}
		return err
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return types.WrapError(types.ErrStoreUnavailable, "database unavailable", err)
	}
	return err
}
