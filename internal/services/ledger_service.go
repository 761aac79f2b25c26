package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/dropvault/backend/internal/audit"
	"github.com/dropvault/backend/internal/config"
	"github.com/dropvault/backend/internal/models"
	"github.com/dropvault/backend/internal/repository"
	"github.com/dropvault/backend/internal/types"
	"github.com/google/uuid"
)

// Ledger idempotency keys share one namespace per account. Keys written by the
// service itself and keys supplied by clients get distinct prefixes so a client
// can never claim or replay an internal event.
const (
	clientKeyPrefix      = "client:"
	unlockKeyPrefix      = "unlock:"
	dailyRewardKeyPrefix = "daily_reward:"
)

// AdjustRequest is a manual balance change requested by an administrator
type AdjustRequest struct {
	UserID         string           `json:"userId" validate:"required,max=128"`
	Amount         int64            `json:"amount" validate:"required"`
	Type           models.EntryType `json:"type" validate:"required"`
	Description    string           `json:"description" validate:"required,max=500"`
	IdempotencyKey string           `json:"idempotencyKey,omitempty" validate:"max=128"`
}

type AdjustResult struct {
	NewBalance int64  `json:"newBalance"`
	EntryID    string `json:"entryId"`
	Replayed   bool   `json:"replayed,omitempty"`
}

// LedgerService owns every balance mutation. Each mutation reads the balance,
// writes the new balance and appends one ledger entry in a single store
// transaction.
type LedgerService struct {
	store     repository.Store
	cache     *AdjustmentCache
	audit     *audit.AuditLogger
	metrics   *Metrics
	validator *ValidationHelper
	cfg       *config.LedgerConfig
	now       func() time.Time
}

func NewLedgerService(store repository.Store, auditLogger *audit.AuditLogger, metrics *Metrics, cfg *config.LedgerConfig) *LedgerService {
	return &LedgerService{
		store:     store,
		audit:     auditLogger,
		metrics:   metrics,
		validator: NewValidationHelper(),
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithCache enables the Redis replay cache for keyed adjustments
func (s *LedgerService) WithCache(cache *AdjustmentCache) *LedgerService {
	s.cache = cache
	return s
}

func (s *LedgerService) AdjustBalance(ctx context.Context, actor models.Principal, req AdjustRequest) (*AdjustResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.validate(req); err != nil {
		return nil, err
	}
	if !req.Type.Valid() {
		return nil, types.Errorf(types.ErrValidation, "unknown entry type %q", req.Type)
	}

	if req.IdempotencyKey != "" {
		if cached, ok := s.cache.Get(ctx, req); ok {
			log.Printf("[LEDGER] replayed adjustment %s for %s from cache", cached.EntryID, req.UserID)
			return cached, nil
		}
	}

	var storeKey string
	if req.IdempotencyKey != "" {
		storeKey = clientKeyPrefix + req.IdempotencyKey
	}
	entry := &models.LedgerEntry{
		UserID:         req.UserID,
		Amount:         req.Amount,
		Type:           req.Type,
		Description:    req.Description,
		Actor:          actor.UserID,
		IdempotencyKey: storeKey,
	}

	var result *AdjustResult
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		if storeKey != "" {
			prior, err := tx.FindEntryByIdempotencyKey(ctx, req.UserID, storeKey)
			if err == nil {
				if prior.Amount != req.Amount || prior.Type != req.Type {
					return types.Errorf(types.ErrConflict,
						"idempotency key %q was already used for a different adjustment", req.IdempotencyKey)
				}
				result = &AdjustResult{NewBalance: prior.BalanceAfter, EntryID: prior.ID, Replayed: true}
				return nil
			}
			if !errors.Is(err, repository.ErrNotFound) {
				return err
			}
		}

		committed, err := s.applyEntry(ctx, tx, entry)
		if err != nil {
			return err
		}
		result = &AdjustResult{NewBalance: committed.BalanceAfter, EntryID: committed.ID}
		return nil
	})
	if err != nil {
		err = storeError(err, "account")
		s.metrics.ObserveAdjustment(string(req.Type), statusLabel(err))
		s.audit.LogRejected(req.UserID, actor.UserID, "BALANCE_ADJUSTMENT", err)
		return nil, err
	}

	if result.Replayed {
		log.Printf("[LEDGER] replayed adjustment %s for %s", result.EntryID, req.UserID)
	} else {
		s.metrics.ObserveAdjustment(string(req.Type), statusLabel(nil))
		s.audit.LogAdjustment(result.EntryID, req.UserID, actor.UserID, req.Amount, result.NewBalance, string(req.Type))
	}
	if req.IdempotencyKey != "" {
		s.cache.Put(ctx, req, result)
	}
	return result, nil
}

// applyEntry debits or credits the account inside tx and appends entry with
// its balance snapshot. It runs once per transaction attempt.
func (s *LedgerService) applyEntry(ctx context.Context, tx repository.Tx, entry *models.LedgerEntry) (*models.LedgerEntry, error) {
	acct, err := tx.GetAccount(ctx, entry.UserID)
	if err != nil {
		return nil, err
	}

	if entry.Amount > 0 && acct.Balance > math.MaxInt64-entry.Amount {
		return nil, types.NewError(types.ErrValidation, "adjustment overflows balance")
	}
	newBalance := acct.Balance + entry.Amount
	if newBalance < 0 {
		return nil, types.Errorf(types.ErrInsufficientFunds,
			"balance %d cannot cover %d", acct.Balance, -entry.Amount)
	}

	if err := tx.UpdateBalance(ctx, acct, newBalance); err != nil {
		return nil, err
	}

	committed := *entry
	committed.ID = uuid.New().String()
	committed.Timestamp = s.now()
	committed.BalanceAfter = newBalance
	if err := tx.InsertEntry(ctx, &committed); err != nil {
		return nil, err
	}
	return &committed, nil
}

// OpenAccount creates the principal's account with a zero balance. Opening an
// existing account is a no-op.
func (s *LedgerService) OpenAccount(ctx context.Context, principal models.Principal) (*models.Account, bool, error) {
	if !principal.Authenticated() {
		return nil, false, types.NewError(types.ErrUnauthorized, "authentication required")
	}

	now := s.now()
	created, err := s.store.CreateAccount(ctx, &models.Account{
		UserID:    principal.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, false, storeError(err, "account")
	}
	if created {
		log.Printf("[LEDGER] opened account %s", principal.UserID)
		s.audit.LogOperation(principal.UserID, principal.UserID, "ACCOUNT_OPENED", "balance 0")
	}

	acct, err := s.store.GetAccount(ctx, principal.UserID)
	if err != nil {
		return nil, false, storeError(err, "account")
	}
	return acct, created, nil
}

func (s *LedgerService) GetAccount(ctx context.Context, principal models.Principal, userID string) (*models.Account, error) {
	if err := authorizeAccountView(principal, userID); err != nil {
		return nil, err
	}
	acct, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, storeError(err, "account")
	}
	return acct, nil
}

// ListEntries returns the newest entries of an account first
func (s *LedgerService) ListEntries(ctx context.Context, principal models.Principal, userID string, limit int) ([]*models.LedgerEntry, error) {
	if err := authorizeAccountView(principal, userID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetAccount(ctx, userID); err != nil {
		return nil, storeError(err, "account")
	}

	entries, err := s.store.ListEntries(ctx, userID, s.pageSize(limit))
	if err != nil {
		return nil, storeError(err, "account")
	}
	return entries, nil
}

// ClaimDailyReward credits the configured reward at most once per UTC day
func (s *LedgerService) ClaimDailyReward(ctx context.Context, principal models.Principal) (*AdjustResult, error) {
	if !principal.Authenticated() {
		return nil, types.NewError(types.ErrUnauthorized, "authentication required")
	}

	today := s.now().Format(time.DateOnly)
	entry := &models.LedgerEntry{
		UserID:         principal.UserID,
		Amount:         s.cfg.DailyRewardAmount,
		Type:           models.EntryTypeDailyReward,
		Description:    "Daily reward " + today,
		Actor:          principal.UserID,
		IdempotencyKey: dailyRewardKeyPrefix + today,
	}

	var committed *models.LedgerEntry
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetAccount(ctx, principal.UserID); err != nil {
			return err
		}
		_, err := tx.FindEntryByIdempotencyKey(ctx, principal.UserID, entry.IdempotencyKey)
		if err == nil {
			return types.Errorf(types.ErrAlreadyClaimed, "daily reward already claimed for %s", today)
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		committed, err = s.applyEntry(ctx, tx, entry)
		return err
	})
	if err != nil {
		err = storeError(err, "account")
		s.metrics.ObserveAdjustment(string(models.EntryTypeDailyReward), statusLabel(err))
		return nil, err
	}

	s.metrics.ObserveAdjustment(string(models.EntryTypeDailyReward), statusLabel(nil))
	s.audit.LogAdjustment(committed.ID, principal.UserID, principal.UserID, committed.Amount, committed.BalanceAfter, string(committed.Type))
	return &AdjustResult{NewBalance: committed.BalanceAfter, EntryID: committed.ID}, nil
}

func (s *LedgerService) pageSize(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultPageSize
	}
	return min(limit, s.cfg.MaxPageSize)
}

func requireAdmin(p models.Principal) error {
	if !p.Authenticated() {
		return types.NewError(types.ErrUnauthorized, "authentication required")
	}
	if !p.IsAdmin() {
		return types.NewError(types.ErrForbidden, "admin role required")
	}
	return nil
}

// authorizeAccountView lets principals read their own account and admins read any
func authorizeAccountView(p models.Principal, userID string) error {
	if !p.Authenticated() {
		return types.NewError(types.ErrUnauthorized, "authentication required")
	}
	if p.UserID != userID && !p.IsAdmin() {
		return types.NewError(types.ErrForbidden, "cannot view another account")
	}
	return nil
}

// notFound types a missing record inside a transaction body, leaving
// conflicts untouched so the store can retry them.
func notFound(err error, resource string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return types.WrapError(types.ErrNotFound, resource+" not found", err)
	}
	return err
}

// storeError converts repository sentinels into typed ledger errors
func storeError(err error, resource string) error {
	var ledgerErr *types.LedgerError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ledgerErr):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return types.WrapError(types.ErrNotFound, resource+" not found", err)
	default:
		return types.WrapError(types.ErrInternal, fmt.Sprintf("%s store operation failed", resource), err)
	}
}
