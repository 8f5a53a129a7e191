package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the risk analysis routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/analyze", h.HandleAnalyze)
}
