// Package handlers provides HTTP handlers for saved portfolios.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/risklens/risklens/internal/modules/portfolio"
	"github.com/risklens/risklens/internal/modules/risk"
	riskhandlers "github.com/risklens/risklens/internal/modules/risk/handlers"
)

// Handler handles saved-portfolio HTTP requests.
type Handler struct {
	repo        *portfolio.Repository
	riskService *risk.Service
	log         zerolog.Logger
}

func NewHandler(repo *portfolio.Repository, riskService *risk.Service, log zerolog.Logger) *Handler {
	return &Handler{
		repo:        repo,
		riskService: riskService,
		log:         log.With().Str("handler", "portfolio").Logger(),
	}
}

// SaveRequest is the body of POST and PUT portfolio endpoints.
type SaveRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Positions   []risk.Position `json:"positions"`
}

// HandleList handles GET /api/portfolios.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.List()
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list portfolios")
		h.writeError(w, http.StatusInternalServerError, "failed to list portfolios")
		return
	}
	if list == nil {
		list = []*portfolio.Saved{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"portfolios": list})
}

// HandleCreate handles POST /api/portfolios.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	saved, err := h.repo.Create(req.Name, req.Description, req.Positions)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, saved)
}

// HandleGet handles GET /api/portfolios/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	saved, err := h.repo.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeRepoError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, saved)
}

// HandleUpdate handles PUT /api/portfolios/{id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	saved, err := h.repo.Update(chi.URLParam(r, "id"), req.Name, req.Description, req.Positions)
	if err != nil {
		h.writeRepoError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, saved)
}

// HandleDelete handles DELETE /api/portfolios/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Delete(chi.URLParam(r, "id")); err != nil {
		h.writeRepoError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAnalyze handles POST /api/portfolios/{id}/analyze: runs the
// full risk analysis on a saved portfolio.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	saved, err := h.repo.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeRepoError(w, err)
		return
	}

	period := r.URL.Query().Get("period")
	result, err := h.riskService.Analyze(risk.Portfolio{Positions: saved.Positions}, risk.Options{Period: period})
	if err != nil {
		h.log.Error().Err(err).Str("portfolio", saved.ID).Msg("saved portfolio analysis failed")
		h.writeError(w, riskhandlers.StatusFor(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writeRepoError(w http.ResponseWriter, err error) {
	if errors.Is(err, portfolio.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.log.Error().Err(err).Msg("portfolio repository error")
	h.writeError(w, http.StatusInternalServerError, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
