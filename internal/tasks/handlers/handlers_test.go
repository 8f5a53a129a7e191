package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/risklens/risklens/internal/database"
	"github.com/risklens/risklens/internal/modules/risk"
	"github.com/risklens/risklens/internal/modules/scenarios"
	"github.com/risklens/risklens/internal/tasks"
)

func newTestRouter(t *testing.T, analyze tasks.AnalyzeFunc) (chi.Router, *tasks.Worker) {
	t.Helper()

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "tasks.db"),
		Name: "tasks",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := tasks.NewStore(db, zerolog.Nop())
	require.NoError(t, err)

	worker := tasks.NewWorker(store, analyze, 10*time.Millisecond, zerolog.Nop())
	go worker.Run()
	t.Cleanup(worker.Stop)

	h := NewHandler(worker, store, zerolog.Nop())
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r, worker
}

func analyzeBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"positions": []map[string]any{
			{"ticker": "AAPL", "quantity": 10},
		},
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestSubmitReturnsTaskID(t *testing.T) {
	router, _ := newTestRouter(t, func(ctx context.Context, req tasks.Request) (*risk.Result, error) {
		return &risk.Result{TotalValue: 1500}, nil
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/analyze-async", analyzeBody(t)))

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp["task_id"])
	assert.Equal(t, string(tasks.StatusPending), resp["status"])
}

func TestSubmitRejectsEmptyPositions(t *testing.T) {
	router, _ := newTestRouter(t, func(ctx context.Context, req tasks.Request) (*risk.Result, error) {
		return nil, fmt.Errorf("should not run")
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/analyze-async",
		bytes.NewBufferString(`{"positions": []}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitRejectsHistoricalScenarioID(t *testing.T) {
	// Historical crises are projected through the scenarios endpoints;
	// the queue only takes custom factor shocks.
	router, _ := newTestRouter(t, func(ctx context.Context, req tasks.Request) (*risk.Result, error) {
		return nil, fmt.Errorf("should not run")
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/analyze-async",
		bytes.NewBufferString(`{"positions": [{"ticker": "AAPL", "quantity": 1}], "scenario_id": "covid_crash"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitCarriesScenarioToWorker(t *testing.T) {
	got := make(chan *scenarios.FactorScenario, 1)
	router, _ := newTestRouter(t, func(ctx context.Context, req tasks.Request) (*risk.Result, error) {
		got <- req.Scenario
		return &risk.Result{TotalValue: 1}, nil
	})

	body := `{
		"positions": [{"ticker": "AAPL", "quantity": 10}],
		"market_shock": -0.20,
		"factor_shocks": {"AAPL": -0.35}
	}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/analyze-async", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case scenario := <-got:
		require.NotNil(t, scenario)
		assert.InDelta(t, -0.20, scenario.MarketShock, 1e-9)
		assert.InDelta(t, -0.35, scenario.TickerShocks["AAPL"], 1e-9)
	case <-time.After(5 * time.Second):
		t.Fatal("task never reached the worker")
	}
}

func TestPollTaskUntilSuccess(t *testing.T) {
	router, _ := newTestRouter(t, func(ctx context.Context, req tasks.Request) (*risk.Result, error) {
		return &risk.Result{TotalValue: 1500}, nil
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/analyze-async", analyzeBody(t)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var submitted map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&submitted))
	id := submitted["task_id"]

	deadline := time.Now().Add(5 * time.Second)
	var task tasks.Task
	for {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/task/"+id, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&task))
		if task.Status.Terminal() {
			break
		}
		require.True(t, time.Now().Before(deadline), "task never finished, status %s", task.Status)
		time.Sleep(10 * time.Millisecond)
	}

	assert.Equal(t, tasks.StatusSuccess, task.Status)
	require.NotNil(t, task.Result)
	assert.InDelta(t, 1500.0, task.Result.TotalValue, 1e-9)
}

func TestGetUnknownTaskReturns404(t *testing.T) {
	router, _ := newTestRouter(t, func(ctx context.Context, req tasks.Request) (*risk.Result, error) {
		return nil, nil
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/task/no-such-task", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
