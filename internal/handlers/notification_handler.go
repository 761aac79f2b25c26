package handlers

import (
	"net/http"

	"github.com/dropvault/backend/internal/services"
	"github.com/go-chi/chi/v5"
)

type NotificationHandler struct {
	service *services.NotificationService
}

func NewNotificationHandler(service *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// Publish records a notification
// @Summary Publish notification (admin)
// @Description A target with global=false and no userIds is accepted and reaches nobody.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.PublishRequest true "Notification"
// @Success 201 {object} object{id=string}
// @Failure 400 {object} services.ErrorResponse
// @Router /admin/notifications [post]
func (h *NotificationHandler) Publish(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req services.PublishRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := h.service.Publish(r.Context(), p, req)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// List returns the caller's notifications
// @Summary List notifications
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Success 200 {array} services.NotificationView
// @Router /notifications [get]
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	views, err := h.service.ListForPrincipal(r.Context(), p, limit)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// UnreadCount counts unread notifications
// @Summary Unread notification count
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{unread=int}
// @Router /notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	unread, err := h.service.UnreadCount(r.Context(), p)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": unread})
}

// MarkRead marks a notification read
// @Summary Mark notification read
// @Tags Notifications
// @Security BearerAuth
// @Param notificationId path string true "Notification ID"
// @Success 204
// @Failure 404 {object} services.ErrorResponse
// @Router /notifications/{notificationId}/read [post]
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkRead(r.Context(), chi.URLParam(r, "notificationId"), p); err != nil {
		services.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
