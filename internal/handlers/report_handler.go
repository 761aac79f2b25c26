package handlers

import (
	"net/http"
	"time"

	"github.com/dropvault/backend/internal/services"
	"github.com/dropvault/backend/internal/types"
)

type ReportHandler struct {
	service *services.ReportService
}

func NewReportHandler(service *services.ReportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// Revenue aggregates revenue from ledger and legacy records
// @Summary Revenue report (admin)
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param since query string false "RFC3339 lower bound, defaults to 30 days ago"
// @Success 200 {object} services.Report
// @Failure 400 {object} services.ErrorResponse
// @Router /admin/reports/revenue [get]
func (h *ReportHandler) Revenue(w http.ResponseWriter, r *http.Request) {
	since := time.Now().UTC().AddDate(0, 0, -30)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			services.WriteError(w, types.NewError(types.ErrValidation, "since must be an RFC3339 timestamp"))
			return
		}
		since = parsed
	}

	report, err := h.service.RevenueReport(r.Context(), since)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
