package handlers

import (
	"net/http"

	"github.com/dropvault/backend/internal/services"
	"github.com/go-chi/chi/v5"
)

type ContentHandler struct {
	gate *services.EntitlementService
}

func NewContentHandler(gate *services.EntitlementService) *ContentHandler {
	return &ContentHandler{gate: gate}
}

// GetContent returns a content item without its location
// @Summary Get content
// @Tags Content
// @Produce json
// @Security BearerAuth
// @Param contentId path string true "Content ID"
// @Success 200 {object} models.ContentItem
// @Failure 404 {object} services.ErrorResponse
// @Router /content/{contentId} [get]
func (h *ContentHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	item, err := h.gate.GetContent(r.Context(), chi.URLParam(r, "contentId"))
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// AccessContent discloses the content location to an owner
// @Summary Access content
// @Description Returns the content URL if the caller has unlocked it and records an access event.
// @Tags Content
// @Produce json
// @Security BearerAuth
// @Param contentId path string true "Content ID"
// @Success 200 {object} object{contentUrl=string}
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /content/{contentId}/access [get]
func (h *ContentHandler) AccessContent(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	contentID := chi.URLParam(r, "contentId")

	url, err := h.gate.AuthorizeContentAccess(r.Context(), p, contentID)
	if err != nil {
		services.WriteError(w, err)
		return
	}

	h.gate.TrackAccess(contentID)
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, map[string]string{"contentUrl": url})
}

// UnlockContent pays for a content item
// @Summary Unlock content
// @Description Debit the unlock cost and grant access in one step. Unlocking owned content charges nothing.
// @Tags Content
// @Produce json
// @Security BearerAuth
// @Param contentId path string true "Content ID"
// @Success 200 {object} services.UnlockResult
// @Failure 404 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /content/{contentId}/unlock [post]
func (h *ContentHandler) UnlockContent(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	result, err := h.gate.UnlockContent(r.Context(), p, chi.URLParam(r, "contentId"))
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListUnlocked lists the caller's content
// @Summary List unlocked content
// @Tags Content
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{contentIds=[]string}
// @Router /content/unlocked [get]
func (h *ContentHandler) ListUnlocked(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	contentIDs, err := h.gate.ListUnlocked(r.Context(), p)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contentIds": contentIDs})
}

// CreateContent adds a catalog item
// @Summary Create content (admin)
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.CreateContentRequest true "Content item"
// @Success 201 {object} models.ContentItem
// @Failure 400 {object} services.ErrorResponse
// @Router /admin/content [post]
func (h *ContentHandler) CreateContent(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req services.CreateContentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := h.gate.CreateContent(r.Context(), p, req)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}
