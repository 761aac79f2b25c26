package handlers

import (
	"net/http"

	"github.com/dropvault/backend/internal/services"
	"github.com/go-chi/chi/v5"
)

type LedgerHandler struct {
	service *services.LedgerService
}

func NewLedgerHandler(service *services.LedgerService) *LedgerHandler {
	return &LedgerHandler{service: service}
}

// OpenAccount opens the caller's account
// @Summary Open account
// @Description Create the caller's account with a zero balance. Idempotent.
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Account
// @Success 201 {object} models.Account
// @Failure 401 {object} services.ErrorResponse
// @Router /accounts [post]
func (h *LedgerHandler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	acct, created, err := h.service.OpenAccount(r.Context(), p)
	if err != nil {
		services.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, acct)
}

// GetMyAccount returns the caller's balance
// @Summary Get own account
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Account
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/me [get]
func (h *LedgerHandler) GetMyAccount(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	h.getAccount(w, r, p.UserID)
}

// GetAccount returns any account
// @Summary Get account (admin)
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Account owner"
// @Success 200 {object} models.Account
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/accounts/{userId} [get]
func (h *LedgerHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	h.getAccount(w, r, chi.URLParam(r, "userId"))
}

func (h *LedgerHandler) getAccount(w http.ResponseWriter, r *http.Request, userID string) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	acct, err := h.service.GetAccount(r.Context(), p, userID)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// ListMyEntries returns the caller's ledger history
// @Summary List own ledger entries
// @Description Newest first
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Success 200 {array} models.LedgerEntry
// @Failure 400 {object} services.ErrorResponse
// @Router /accounts/me/entries [get]
func (h *LedgerHandler) ListMyEntries(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	h.listEntries(w, r, p.UserID)
}

// ListEntries returns any account's ledger history
// @Summary List ledger entries (admin)
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Account owner"
// @Param limit query int false "Page size"
// @Success 200 {array} models.LedgerEntry
// @Router /admin/accounts/{userId}/entries [get]
func (h *LedgerHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	h.listEntries(w, r, chi.URLParam(r, "userId"))
}

func (h *LedgerHandler) listEntries(w http.ResponseWriter, r *http.Request, userID string) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	entries, err := h.service.ListEntries(r.Context(), p, userID, limit)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// AdjustBalance applies a manual balance change
// @Summary Adjust balance (admin)
// @Description Credit or debit an account and record a ledger entry. Requests carrying an idempotencyKey apply once.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.AdjustRequest true "Adjustment"
// @Success 200 {object} services.AdjustResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /admin/adjustments [post]
func (h *LedgerHandler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req services.AdjustRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.AdjustBalance(r.Context(), p, req)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ClaimDailyReward credits the daily reward
// @Summary Claim daily reward
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.AdjustResult
// @Failure 409 {object} services.ErrorResponse
// @Router /rewards/daily [post]
func (h *LedgerHandler) ClaimDailyReward(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	result, err := h.service.ClaimDailyReward(r.Context(), p)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
