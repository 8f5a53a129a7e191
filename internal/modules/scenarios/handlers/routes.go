package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the scenario routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/scenarios", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/{id}/test", h.HandleTest)
	})
}
