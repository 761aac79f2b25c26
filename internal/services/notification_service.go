package services

import (
	"context"
	"log"
	"time"

	"github.com/dropvault/backend/internal/config"
	"github.com/dropvault/backend/internal/models"
	"github.com/dropvault/backend/internal/repository"
	"github.com/dropvault/backend/internal/types"
	"github.com/google/uuid"
)

type PublishRequest struct {
	Title   string                  `json:"title" validate:"required,max=200"`
	Message string                  `json:"message" validate:"required,max=2000"`
	Type    models.NotificationType `json:"type" validate:"required"`
	Target  *models.Target          `json:"target" validate:"required"`
	Link    string                  `json:"link,omitempty" validate:"omitempty,max=500"`
}

// NotificationView is a notification as seen by one recipient
type NotificationView struct {
	*models.Notification
	Read bool `json:"read"`
}

// NotificationService records notifications once and resolves the audience
// when a recipient reads, so there are no per-recipient copies.
type NotificationService struct {
	store     repository.Store
	metrics   *Metrics
	validator *ValidationHelper
	cfg       *config.LedgerConfig
}

func NewNotificationService(store repository.Store, metrics *Metrics, cfg *config.LedgerConfig) *NotificationService {
	return &NotificationService{
		store:     store,
		metrics:   metrics,
		validator: NewValidationHelper(),
		cfg:       cfg,
	}
}

// Publish stores a notification. A non-global target with no user IDs is
// accepted and reaches nobody.
func (s *NotificationService) Publish(ctx context.Context, actor models.Principal, req PublishRequest) (string, error) {
	if err := requireAdmin(actor); err != nil {
		return "", err
	}
	if err := s.validator.validate(req); err != nil {
		return "", err
	}
	if !req.Type.Valid() {
		return "", types.Errorf(types.ErrValidation, "unknown notification type %q", req.Type)
	}

	n := &models.Notification{
		ID:        uuid.New().String(),
		Title:     req.Title,
		Message:   req.Message,
		Type:      req.Type,
		Target:    *req.Target,
		Link:      req.Link,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return "", storeError(err, "notification")
	}

	if !n.Target.Global && len(n.Target.UserIDs) == 0 {
		log.Printf("[NOTIFY] notification %s has no recipients", n.ID)
	}
	s.metrics.IncNotificationPublished()
	return n.ID, nil
}

// MarkRead adds the principal to the read set. Repeating it changes nothing.
// A notification outside the principal's audience is reported as not found.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID string, principal models.Principal) error {
	if !principal.Authenticated() {
		return types.NewError(types.ErrUnauthorized, "authentication required")
	}
	if notificationID == "" {
		return types.NewError(types.ErrValidation, "notification id is required")
	}

	n, err := s.store.GetNotification(ctx, notificationID)
	if err != nil {
		return storeError(err, "notification")
	}
	if !n.Target.Includes(principal.UserID) {
		return types.NewError(types.ErrNotFound, "notification not found")
	}

	if err := s.store.AddNotificationReader(ctx, notificationID, principal.UserID); err != nil {
		return storeError(err, "notification")
	}
	return nil
}

// ListForPrincipal returns the notifications addressed to the principal,
// newest first, each with its read flag.
func (s *NotificationService) ListForPrincipal(ctx context.Context, principal models.Principal, limit int) ([]NotificationView, error) {
	if !principal.Authenticated() {
		return nil, types.NewError(types.ErrUnauthorized, "authentication required")
	}

	notifications, err := s.store.ListNotificationsFor(ctx, principal.UserID, s.pageSize(limit))
	if err != nil {
		return nil, storeError(err, "notification")
	}

	views := make([]NotificationView, 0, len(notifications))
	for _, n := range notifications {
		// the store query already filters; Includes keeps the audience rule in one place
		if !n.Target.Includes(principal.UserID) {
			continue
		}
		views = append(views, NotificationView{Notification: n, Read: n.IsReadBy(principal.UserID)})
	}
	return views, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, principal models.Principal) (int, error) {
	if !principal.Authenticated() {
		return 0, types.NewError(types.ErrUnauthorized, "authentication required")
	}

	unread, err := s.store.CountUnreadFor(ctx, principal.UserID)
	if err != nil {
		return 0, storeError(err, "notification")
	}
	return unread, nil
}

func (s *NotificationService) pageSize(limit int) int {
	if limit <= 0 {
		if s.cfg == nil {
			return 50
		}
		return s.cfg.DefaultPageSize
	}
	return min(limit, s.maxPageSize())
}

func (s *NotificationService) maxPageSize() int {
	if s.cfg == nil {
		return 200
	}
	return s.cfg.MaxPageSize
}
