package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/dropvault/backend/internal/audit"
	"github.com/dropvault/backend/internal/config"
	"github.com/dropvault/backend/internal/models"
	"github.com/dropvault/backend/internal/repository"
	"github.com/dropvault/backend/internal/types"
)

type CreateContentRequest struct {
	ID         string `json:"id" validate:"required,max=128"`
	Title      string `json:"title" validate:"max=200"`
	ContentURL string `json:"contentUrl" validate:"required,url"`
	UnlockCost int64  `json:"unlockCost" validate:"gte=0"`
}

type UnlockResult struct {
	NewBalance   int64  `json:"newBalance"`
	EntryID      string `json:"entryId,omitempty"`
	AlreadyOwned bool   `json:"alreadyOwned"`
}

// EntitlementService is the only place a content URL is disclosed. It never
// changes balances except through the ledger inside UnlockContent.
type EntitlementService struct {
	store     repository.Store
	ledger    *LedgerService
	audit     *audit.AuditLogger
	metrics   *Metrics
	validator *ValidationHelper
	cfg       *config.LedgerConfig
}

func NewEntitlementService(store repository.Store, ledger *LedgerService, auditLogger *audit.AuditLogger, metrics *Metrics, cfg *config.LedgerConfig) *EntitlementService {
	return &EntitlementService{
		store:     store,
		ledger:    ledger,
		audit:     auditLogger,
		metrics:   metrics,
		validator: NewValidationHelper(),
		cfg:       cfg,
	}
}

// AuthorizeContentAccess returns the content URL if the principal owns the
// content. A missing account or content item is NOT_FOUND before ownership
// is considered.
func (s *EntitlementService) AuthorizeContentAccess(ctx context.Context, principal models.Principal, contentID string) (string, error) {
	if !principal.Authenticated() {
		return "", types.NewError(types.ErrUnauthorized, "authentication required")
	}
	if contentID == "" {
		return "", types.NewError(types.ErrValidation, "content id is required")
	}

	if _, err := s.store.GetAccount(ctx, principal.UserID); err != nil {
		return "", s.deny(storeError(err, "account"))
	}
	item, err := s.store.GetContent(ctx, contentID)
	if err != nil {
		return "", s.deny(storeError(err, "content"))
	}

	owned, err := s.store.HasEntitlement(ctx, principal.UserID, contentID)
	if err != nil {
		return "", s.deny(storeError(err, "entitlement"))
	}
	if !owned {
		return "", s.deny(types.Errorf(types.ErrForbidden, "content %s is not unlocked", contentID))
	}

	s.metrics.ObserveAccess("granted")
	return item.ContentURL, nil
}

func (s *EntitlementService) deny(err error) error {
	s.metrics.ObserveAccess(statusLabel(err))
	return err
}

// RecordAccessEvent bumps the content's access counter in the store
func (s *EntitlementService) RecordAccessEvent(ctx context.Context, contentID string) error {
	if err := s.store.IncrementAccessCount(ctx, contentID, 1); err != nil {
		s.metrics.IncAccessEventFailure()
		return storeError(err, "content")
	}
	return nil
}

// TrackAccess records an access event in the background. It is detached from
// the request so a finished or cancelled response does not drop the count;
// failures are only logged.
func (s *EntitlementService) TrackAccess(contentID string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), s.accessEventTimeout())
		defer cancel()

		if err := s.RecordAccessEvent(ctx, contentID); err != nil {
			log.Printf("[GATE] failed to record access event for %s: %v", contentID, err)
		}
	}()
	return done
}

func (s *EntitlementService) accessEventTimeout() time.Duration {
	if s.cfg == nil || s.cfg.AccessEventTimeout <= 0 {
		return 2 * time.Second
	}
	return s.cfg.AccessEventTimeout
}

// UnlockContent debits the unlock cost and grants the entitlement in one
// transaction. Unlocking owned content succeeds without a second debit.
func (s *EntitlementService) UnlockContent(ctx context.Context, principal models.Principal, contentID string) (*UnlockResult, error) {
	if !principal.Authenticated() {
		return nil, types.NewError(types.ErrUnauthorized, "authentication required")
	}
	if contentID == "" {
		return nil, types.NewError(types.ErrValidation, "content id is required")
	}

	var (
		result *UnlockResult
		cost   int64
	)
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		acct, err := tx.GetAccount(ctx, principal.UserID)
		if err != nil {
			return notFound(err, "account")
		}
		item, err := tx.GetContent(ctx, contentID)
		if err != nil {
			return notFound(err, "content")
		}
		cost = item.UnlockCost

		owned, err := tx.HasEntitlement(ctx, principal.UserID, contentID)
		if err != nil {
			return err
		}
		if owned {
			result = &UnlockResult{NewBalance: acct.Balance, AlreadyOwned: true}
			return nil
		}

		result = &UnlockResult{NewBalance: acct.Balance}
		if item.UnlockCost > 0 {
			entry, err := s.ledger.applyEntry(ctx, tx, &models.LedgerEntry{
				UserID:           principal.UserID,
				Amount:           -item.UnlockCost,
				Type:             models.EntryTypeUnlockContent,
				Description:      unlockDescription(item),
				RelatedContentID: contentID,
				Actor:            principal.UserID,
				IdempotencyKey:   unlockKeyPrefix + contentID,
			})
			if err != nil {
				return err
			}
			result = &UnlockResult{NewBalance: entry.BalanceAfter, EntryID: entry.ID}
		}

		return tx.GrantEntitlement(ctx, &models.Entitlement{
			UserID:     principal.UserID,
			ContentID:  contentID,
			UnlockedAt: s.ledger.now(),
		})
	})
	if err != nil {
		err = storeError(err, "content")
		s.metrics.ObserveUnlock(statusLabel(err))
		s.audit.LogRejected(principal.UserID, principal.UserID, "CONTENT_UNLOCK", err)
		return nil, err
	}

	if result.AlreadyOwned {
		s.metrics.ObserveUnlock("already_owned")
		return result, nil
	}
	s.metrics.ObserveUnlock(statusLabel(nil))
	s.audit.LogUnlock(result.EntryID, principal.UserID, contentID, cost)
	log.Printf("[GATE] %s unlocked %s for %d", principal.UserID, contentID, cost)
	return result, nil
}

func unlockDescription(item *models.ContentItem) string {
	if item.Title != "" {
		return "Unlocked " + item.Title
	}
	return "Unlocked content " + item.ID
}

// ListUnlocked returns the content IDs the principal owns, oldest unlock first
func (s *EntitlementService) ListUnlocked(ctx context.Context, principal models.Principal) ([]string, error) {
	if !principal.Authenticated() {
		return nil, types.NewError(types.ErrUnauthorized, "authentication required")
	}
	contentIDs, err := s.store.ListEntitlements(ctx, principal.UserID)
	if err != nil {
		return nil, storeError(err, "entitlement")
	}
	return contentIDs, nil
}

func (s *EntitlementService) CreateContent(ctx context.Context, actor models.Principal, req CreateContentRequest) (*models.ContentItem, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.validate(req); err != nil {
		return nil, err
	}

	item := &models.ContentItem{
		ID:         req.ID,
		Title:      req.Title,
		ContentURL: req.ContentURL,
		UnlockCost: req.UnlockCost,
		CreatedAt:  s.ledger.now(),
	}
	if err := s.store.CreateContent(ctx, item); err != nil {
		return nil, storeError(err, "content")
	}

	s.audit.LogOperation("", actor.UserID, "CONTENT_CREATED", item.ID)
	return item, nil
}

// GetContent returns the public view of a content item
func (s *EntitlementService) GetContent(ctx context.Context, contentID string) (*models.ContentItem, error) {
	item, err := s.store.GetContent(ctx, contentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, types.Errorf(types.ErrNotFound, "content %s not found", contentID)
		}
		return nil, storeError(err, "content")
	}
	return item, nil
}
