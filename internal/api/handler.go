// Package api provides HTTP handlers for the PressAssist API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/screentech/pressassist/internal/config"
	"github.com/screentech/pressassist/internal/session"
)

// Handler provides common handler utilities.
type Handler struct {
	mgr         *session.Manager
	cfg         *config.Config
	rateLimiter *RateLimiter
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(mgr *session.Manager, cfg *config.Config) *Handler {
	return &Handler{
		mgr:         mgr,
		cfg:         cfg,
		rateLimiter: NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration),
	}
}

// RegisterRoutes registers all API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/session", h.HandleSessionState)
		r.Post("/session/connect", h.HandleConnect)
		r.Post("/session/disconnect", h.HandleDisconnect)
		r.Post("/session/clear", h.HandleClearHistory)
		r.Get("/knowledge", h.HandleKnowledge)
		r.Post("/messages/{messageID}/verify", h.HandleVerifyFix)
		r.Post("/chat", h.HandleChat)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
