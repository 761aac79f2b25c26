package models

import (
	"time"
)

// EntryType classifies a ledger entry
type EntryType string

const (
	EntryTypePurchaseCurrency EntryType = "purchase_currency"
	EntryTypeUnlockContent    EntryType = "unlock_content"
	EntryTypeAdminAdjustment  EntryType = "admin_adjustment"
	EntryTypeDailyReward      EntryType = "daily_reward"
)

// Valid reports whether t is one of the four canonical entry types
func (t EntryType) Valid() bool {
	switch t {
	case EntryTypePurchaseCurrency, EntryTypeUnlockContent, EntryTypeAdminAdjustment, EntryTypeDailyReward:
		return true
	}
	return false
}

// LedgerEntry is one immutable audit record of a balance change.
// BalanceAfter is the account balance immediately after Amount was applied.
type LedgerEntry struct {
	ID               string    `json:"id" db:"id"`
	UserID           string    `json:"userId" db:"user_id"`
	Amount           int64     `json:"amount" db:"amount"`
	Type             EntryType `json:"type" db:"type"`
	Description      string    `json:"description" db:"description"`
	RelatedContentID string    `json:"relatedContentId,omitempty" db:"related_content_id"`
	Actor            string    `json:"actor" db:"actor"`
	IdempotencyKey   string    `json:"-" db:"idempotency_key"`
	Timestamp        time.Time `json:"timestamp" db:"created_at"`
	BalanceAfter     int64     `json:"balanceAfter" db:"balance_after"`
}

type Account struct {
	UserID    string    `json:"userId" db:"user_id"`
	Balance   int64     `json:"balance" db:"balance"`
	Version   int64     `json:"-" db:"version"` // for optimistic locking
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
