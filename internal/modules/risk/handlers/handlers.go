// Package handlers provides HTTP handlers for portfolio risk analysis.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/risklens/risklens/internal/modules/risk"
	"github.com/risklens/risklens/internal/modules/scenarios"
	"github.com/risklens/risklens/internal/riskerr"
)

// Handler handles risk analysis HTTP requests.
type Handler struct {
	service *risk.Service
	log     zerolog.Logger
}

func NewHandler(service *risk.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "risk").Logger(),
	}
}

// assetClasses are the accepted position classifications.
var assetClasses = map[string]struct{}{
	"Equity": {},
	"Bond":   {},
	"Cash":   {},
}

// AnalyzeRequest is the body of POST /api/analyze and
// POST /api/analyze-async. MarketShock and FactorShocks define an
// optional custom stress scenario; historical crisis ids are not
// accepted here — they drive the standalone scenario projection, not
// risk decomposition.
type AnalyzeRequest struct {
	Positions []risk.Position `json:"positions"`
	Period    string          `json:"period,omitempty"`

	MarketShock  float64            `json:"market_shock,omitempty"`
	FactorShocks map[string]float64 `json:"factor_shocks,omitempty"`

	// ScenarioID is decoded only so it can be rejected with a useful
	// message instead of being silently dropped.
	ScenarioID string `json:"scenario_id,omitempty"`
}

// Validate enforces the request constraints before any market data is
// fetched.
func (req AnalyzeRequest) Validate() error {
	if len(req.Positions) == 0 {
		return riskerr.ErrEmptyTickerList
	}
	if req.ScenarioID != "" {
		return errors.New("scenario_id is not accepted here: project historical crises via /api/scenarios/{id}/test")
	}
	for _, pos := range req.Positions {
		if pos.Ticker == "" {
			return errors.New("position ticker cannot be empty")
		}
		if pos.Quantity <= 0 {
			return fmt.Errorf("position %s: quantity must be positive", pos.Ticker)
		}
		if pos.AssetClass != "" {
			if _, ok := assetClasses[pos.AssetClass]; !ok {
				return fmt.Errorf("position %s: unknown asset class %q", pos.Ticker, pos.AssetClass)
			}
		}
	}
	return nil
}

// Scenario builds the custom factor scenario, nil when no shocks are
// requested.
func (req AnalyzeRequest) Scenario() *scenarios.FactorScenario {
	if req.MarketShock == 0 && len(req.FactorShocks) == 0 {
		return nil
	}
	return &scenarios.FactorScenario{
		Name:         "custom",
		MarketShock:  req.MarketShock,
		TickerShocks: req.FactorShocks,
	}
}

// Options converts the request body into analysis options.
func (req AnalyzeRequest) Options() risk.Options {
	return risk.Options{Period: req.Period, Scenario: req.Scenario()}
}

// HandleAnalyze handles POST /api/analyze.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.Analyze(risk.Portfolio{Positions: req.Positions}, req.Options())
	if err != nil {
		h.log.Error().Err(err).Msg("analysis failed")
		h.writeError(w, StatusFor(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// StatusFor maps analysis errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, riskerr.ErrEmptyTickerList),
		errors.Is(err, riskerr.ErrNoValidPositions):
		return http.StatusBadRequest
	case errors.Is(err, riskerr.ErrUnknownScenario):
		return http.StatusNotFound
	case errors.Is(err, riskerr.ErrDataUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
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
