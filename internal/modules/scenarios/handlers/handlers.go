// Package handlers provides HTTP handlers for stress-test scenarios.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/risklens/risklens/internal/modules/scenarios"
)

// Handler handles scenario HTTP requests.
type Handler struct {
	registry *scenarios.Registry
	log      zerolog.Logger
}

func NewHandler(registry *scenarios.Registry, log zerolog.Logger) *Handler {
	return &Handler{
		registry: registry,
		log:      log.With().Str("handler", "scenarios").Logger(),
	}
}

// HandleList handles GET /api/scenarios.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"scenarios": h.registry.List(),
	})
}

// TestRequest is the body of POST /api/scenarios/{id}/test. Either a
// whole-portfolio value or itemized holdings can be stressed.
type TestRequest struct {
	PortfolioValue float64             `json:"portfolio_value,omitempty"`
	Holdings       []scenarios.Holding `json:"holdings,omitempty"`
}

// TestResponse is the projected impact of a scenario.
type TestResponse struct {
	Scenario scenarios.HistoricalScenario `json:"scenario"`
	Impact   scenarios.Impact             `json:"impact"`
}

// HandleTest handles POST /api/scenarios/{id}/test.
func (h *Handler) HandleTest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	scenario, err := h.registry.Get(id)
	if err != nil {
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var req TestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	holdings := req.Holdings
	if len(holdings) == 0 {
		if req.PortfolioValue <= 0 {
			h.writeError(w, http.StatusBadRequest, "portfolio_value or holdings required")
			return
		}
		holdings = []scenarios.Holding{{Ticker: "PORTFOLIO", Value: req.PortfolioValue}}
	}

	h.writeJSON(w, http.StatusOK, TestResponse{
		Scenario: scenario,
		Impact:   h.registry.Project(scenario.Factor(), holdings),
	})
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
