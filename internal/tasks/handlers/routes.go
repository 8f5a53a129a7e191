package handlers

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers async task routes on the given router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/analyze-async", h.HandleSubmit)
	r.Get("/task/{id}", h.HandleGet)
}
