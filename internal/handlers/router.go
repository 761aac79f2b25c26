package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	mW "github.com/dropvault/backend/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Handlers struct {
	Ledger       *LedgerHandler
	Content      *ContentHandler
	Notification *NotificationHandler
	Report       *ReportHandler
}

// NewRouter wires every route. metrics may be nil.
func NewRouter(h Handlers, metrics http.Handler) chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Post("/accounts", h.Ledger.OpenAccount)
			r.Get("/accounts/me", h.Ledger.GetMyAccount)
			r.Get("/accounts/me/entries", h.Ledger.ListMyEntries)
			r.Post("/rewards/daily", h.Ledger.ClaimDailyReward)

			r.Get("/content/unlocked", h.Content.ListUnlocked)
			r.Get("/content/{contentId}", h.Content.GetContent)
			r.Get("/content/{contentId}/access", h.Content.AccessContent)
			r.Post("/content/{contentId}/unlock", h.Content.UnlockContent)

			r.Get("/notifications", h.Notification.List)
			r.Get("/notifications/unread-count", h.Notification.UnreadCount)
			r.Post("/notifications/{notificationId}/read", h.Notification.MarkRead)

			// Admin endpoints
			r.Route("/admin", func(r chi.Router) {
				r.Use(mW.RequireAdmin)

				r.Post("/adjustments", h.Ledger.AdjustBalance)
				r.Get("/accounts/{userId}", h.Ledger.GetAccount)
				r.Get("/accounts/{userId}/entries", h.Ledger.ListEntries)
				r.Post("/content", h.Content.CreateContent)
				r.Post("/notifications", h.Notification.Publish)
				r.Get("/reports/revenue", h.Report.Revenue)
			})
		})
	})

	return r
}
