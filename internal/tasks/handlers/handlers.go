// Package handlers provides HTTP handlers for asynchronous analysis
// tasks.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/risklens/risklens/internal/modules/risk"
	riskhandlers "github.com/risklens/risklens/internal/modules/risk/handlers"
	"github.com/risklens/risklens/internal/tasks"
)

// Handler handles async task HTTP requests.
type Handler struct {
	worker *tasks.Worker
	store  *tasks.Store
	log    zerolog.Logger
}

func NewHandler(worker *tasks.Worker, store *tasks.Store, log zerolog.Logger) *Handler {
	return &Handler{
		worker: worker,
		store:  store,
		log:    log.With().Str("handler", "tasks").Logger(),
	}
}

// HandleSubmit handles POST /api/analyze-async: queues an analysis and
// returns the task id for polling. The body is the same shape as the
// synchronous analyze endpoint, custom shock scenario included.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req riskhandlers.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.worker.Submit(tasks.Request{
		Portfolio: risk.Portfolio{Positions: req.Positions},
		Period:    req.Period,
		Scenario:  req.Scenario(),
	})
	if err != nil {
		h.log.Error().Err(err).Msg("failed to queue task")
		h.writeError(w, http.StatusInternalServerError, "failed to queue task")
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]any{
		"task_id": task.ID,
		"status":  task.Status,
	})
}

// HandleGet handles GET /api/task/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	task, err := h.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, tasks.ErrTaskNotFound) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("failed to load task")
		h.writeError(w, http.StatusInternalServerError, "failed to load task")
		return
	}
	h.writeJSON(w, http.StatusOK, task)
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
