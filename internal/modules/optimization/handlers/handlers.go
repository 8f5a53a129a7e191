// Package handlers provides HTTP handlers for portfolio optimization.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/risklens/risklens/internal/marketdata"
	"github.com/risklens/risklens/internal/modules/optimization"
	riskhandlers "github.com/risklens/risklens/internal/modules/risk/handlers"
)

// Handler handles optimization HTTP requests.
type Handler struct {
	builder   *marketdata.Builder
	optimizer *optimization.Optimizer
	log       zerolog.Logger
}

func NewHandler(builder *marketdata.Builder, optimizer *optimization.Optimizer, log zerolog.Logger) *Handler {
	return &Handler{
		builder:   builder,
		optimizer: optimizer,
		log:       log.With().Str("handler", "optimization").Logger(),
	}
}

// OptimizeRequest is the body of POST /api/optimize.
type OptimizeRequest struct {
	Tickers  []string `json:"tickers"`
	Period   string   `json:"period,omitempty"`
	Strategy string   `json:"strategy,omitempty"`

	// IncludeFrontier adds the swept efficient frontier to the
	// response.
	IncludeFrontier bool `json:"include_frontier,omitempty"`

	// CurrentHoldings, when present, turns the optimized weights into
	// rebalancing trades: ticker to current dollar value.
	CurrentHoldings map[string]float64 `json:"current_holdings,omitempty"`
}

// OptimizeResponse carries the optimized allocation plus optional
// frontier and trade plan.
type OptimizeResponse struct {
	Result   *optimization.Result        `json:"result"`
	Frontier *optimization.Frontier      `json:"frontier,omitempty"`
	Trades   *optimization.RebalancePlan `json:"trades,omitempty"`
}

// HandleOptimize handles POST /api/optimize.
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	period, err := marketdata.ParsePeriod(req.Period)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	strategy := optimization.Strategy(req.Strategy)
	if strategy == "" {
		strategy = optimization.StrategyMaxSharpe
	}

	ds, err := h.builder.Build(req.Tickers, period)
	if err != nil {
		h.writeError(w, riskhandlers.StatusFor(err), err.Error())
		return
	}

	result, err := h.optimizer.Optimize(ds, strategy)
	if err != nil {
		h.log.Error().Err(err).Str("strategy", string(strategy)).Msg("optimization failed")
		h.writeError(w, riskhandlers.StatusFor(err), err.Error())
		return
	}

	resp := OptimizeResponse{Result: result}
	if req.IncludeFrontier {
		frontier, err := h.optimizer.EfficientFrontier(ds)
		if err != nil {
			h.writeError(w, riskhandlers.StatusFor(err), err.Error())
			return
		}
		resp.Frontier = frontier
	}
	if len(req.CurrentHoldings) > 0 {
		resp.Trades = optimization.Rebalance(req.CurrentHoldings, result.Weights, ds.CurrentPrices)
	}

	h.writeJSON(w, http.StatusOK, resp)
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
