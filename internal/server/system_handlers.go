package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/risklens/risklens/internal/database"
	"github.com/risklens/risklens/internal/marketdata"
)

// SystemHandlers handles health and ticker validation endpoints.
type SystemHandlers struct {
	builder     *marketdata.Builder
	databases   []*database.DB
	startupTime time.Time
	log         zerolog.Logger
}

func NewSystemHandlers(log zerolog.Logger, builder *marketdata.Builder, databases []*database.DB) *SystemHandlers {
	return &SystemHandlers{
		builder:     builder,
		databases:   databases,
		startupTime: time.Now(),
		log:         log.With().Str("component", "system_handlers").Logger(),
	}
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status      string            `json:"status"` // "healthy" or "degraded"
	UptimeHours float64           `json:"uptime_hours"`
	CPUPercent  float64           `json:"cpu_percent"`
	RAMPercent  float64           `json:"ram_percent"`
	Databases   map[string]string `json:"databases"`
}

// ValidateTickerResponse is the body of GET /api/validate-ticker/{ticker}.
type ValidateTickerResponse struct {
	Ticker string  `json:"ticker"`
	Valid  bool    `json:"valid"`
	Name   string  `json:"name,omitempty"`
	Price  float64 `json:"price,omitempty"`
}

// HandleHealth reports process and database health.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	cpuPercent, ramPercent := h.systemStats()

	status := "healthy"
	databases := make(map[string]string, len(h.databases))
	for _, db := range h.databases {
		if err := db.Conn().PingContext(r.Context()); err != nil {
			h.log.Error().Err(err).Str("database", db.Name()).Msg("database ping failed")
			databases[db.Name()] = "unreachable"
			status = "degraded"
			continue
		}
		databases[db.Name()] = "ok"
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, HealthResponse{
		Status:      status,
		UptimeHours: time.Since(h.startupTime).Hours(),
		CPUPercent:  cpuPercent,
		RAMPercent:  ramPercent,
		Databases:   databases,
	})
}

// HandleValidateTicker checks whether a ticker resolves to a quoted price.
func (h *SystemHandlers) HandleValidateTicker(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	if ticker == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ticker required"})
		return
	}

	quote, valid := h.builder.ValidateTicker(ticker)
	resp := ValidateTickerResponse{Ticker: ticker, Valid: valid}
	if valid {
		resp.Name = quote.Name
		resp.Price = quote.Price
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// systemStats samples CPU over a short window to keep the endpoint fast.
func (h *SystemHandlers) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("failed to sample CPU usage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("failed to read memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}
