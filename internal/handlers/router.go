package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"talent/internal/auth"
	"talent/internal/config"
	"talent/internal/middleware"
	"talent/internal/validator"
	"talent/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	cfg      config.Config
	policy   Policy
	reports  Reports
	content  Content
	sessions Sessions
	hub      *websocket.Hub
	validate *validator.Validator
	logger   *slog.Logger
}

func New(cfg config.Config, policy Policy, reports Reports, content Content, sessions Sessions, hub *websocket.Hub, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		cfg:      cfg,
		policy:   policy,
		reports:  reports,
		content:  content,
		sessions: sessions,
		hub:      hub,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(h.cfg.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Use(middleware.Identify(h.cfg.JWTSecret, h.sessions, h.logger))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Get("/booths-info", h.BoothsInfo)
	router.Get("/c/{token}", h.PublicCard)
	router.Get("/c/{token}/ws", h.CardFeed)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/admin/login", h.AdminLogin)
		r.Post("/booth/login", h.BoothLogin)
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
	})

	router.With(middleware.RequireRole(auth.RoleBooth, auth.RoleAdmin)).Get("/b/{token}", h.BoothCard)
	router.Route("/api", func(r chi.Router) {
		// The booth identity is checked after the payload so malformed
		// requests report 400 first.
		r.Post("/booth-apply", h.BoothApply)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(auth.RoleAdmin))
			r.Post("/admin-apply", h.AdminApply)
			r.Post("/admin-set-balance", h.AdminSetBalance)
			r.Post("/label", h.SetLabel)
		})
	})

	router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireRole(auth.RoleAdmin))
		r.Get("/cards", h.ListCards)
		r.Post("/cards/upsert", h.UpsertCard)
		r.Post("/cards/import", h.ImportCards)
		r.Get("/cards/{token}", h.GetCard)
		r.Get("/cards/{token}/history", h.CardHistory)
		r.Get("/cards/{token}/qr", h.CardQR)
		r.Delete("/cards/{token}", h.DeleteCard)
		r.Get("/booths", h.ListBooths)
		r.Post("/booths", h.CreateBooth)
		r.Put("/booths/{username}", h.UpdateBooth)
		r.Delete("/booths/{username}", h.DeleteBooth)
		r.Get("/settings/booths-info", h.GetBoothsInfoSettings)
		r.Put("/settings/booths-info", h.PutBoothsInfoSettings)
		r.Get("/export/transactions.csv", h.ExportTransactions)
		r.Get("/reconcile", h.Reconcile)
		r.Get("/audit", h.ListAudit)
	})
	return router
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
