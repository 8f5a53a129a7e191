package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/risklens/risklens/internal/config"
	"github.com/risklens/risklens/internal/database"
	"github.com/risklens/risklens/internal/marketdata"
	"github.com/risklens/risklens/internal/modules/montecarlo"
	"github.com/risklens/risklens/internal/modules/optimization"
	"github.com/risklens/risklens/internal/modules/performance"
	"github.com/risklens/risklens/internal/modules/portfolio"
	"github.com/risklens/risklens/internal/modules/risk"
	"github.com/risklens/risklens/internal/modules/scenarios"
	"github.com/risklens/risklens/internal/tasks"
)

type fakeProvider struct {
	history map[string][]marketdata.Bar
}

func (f *fakeProvider) History(tickers []string, period string) (map[string][]marketdata.Bar, error) {
	out := make(map[string][]marketdata.Bar)
	for _, t := range tickers {
		if bars, ok := f.history[t]; ok {
			out[t] = bars
		}
	}
	return out, nil
}

func (f *fakeProvider) Metadata(ticker string) (marketdata.Metadata, error) {
	return marketdata.Metadata{Sector: "Technology", Country: "United States", Industry: "Software"}, nil
}

func (f *fakeProvider) Quote(ticker string) (marketdata.Quote, error) {
	bars, ok := f.history[ticker]
	if !ok || len(bars) == 0 {
		return marketdata.Quote{}, fmt.Errorf("unknown ticker %s", ticker)
	}
	return marketdata.Quote{Ticker: ticker, Name: ticker + " Inc", Price: bars[len(bars)-1].Close}, nil
}

func series(base float64, phase float64, n int) []marketdata.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]marketdata.Bar, n)
	for i := 0; i < n; i++ {
		bars[i] = marketdata.Bar{
			Date:  start.AddDate(0, 0, i),
			Close: base * (1 + 0.05*math.Sin(phase+float64(i)/4)),
		}
	}
	return bars
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	provider := &fakeProvider{history: map[string][]marketdata.Bar{
		"AAPL":  series(180, 0, 80),
		"MSFT":  series(400, 1.3, 80),
		"^GSPC": series(5000, 2.1, 80),
	}}
	builder := marketdata.NewBuilder(provider, zerolog.Nop())

	analyzer := performance.NewAnalyzer(0.04, zerolog.Nop())
	simulator := montecarlo.NewSimulator(zerolog.Nop())
	registry := scenarios.DefaultRegistry(zerolog.Nop())
	riskService := risk.NewService(builder, analyzer, simulator, risk.Config{
		BenchmarkTicker: "^GSPC",
		RiskFreeRate:    0.04,
		Simulations:     500,
	}, zerolog.Nop())
	optimizer := optimization.NewOptimizer(0.045, zerolog.Nop())

	dir := t.TempDir()
	portfolioDB, err := database.New(database.Config{Path: filepath.Join(dir, "portfolios.db"), Name: "portfolios"})
	require.NoError(t, err)
	t.Cleanup(func() { portfolioDB.Close() })
	tasksDB, err := database.New(database.Config{Path: filepath.Join(dir, "tasks.db"), Name: "tasks"})
	require.NoError(t, err)
	t.Cleanup(func() { tasksDB.Close() })

	repo, err := portfolio.NewRepository(portfolioDB, zerolog.Nop())
	require.NoError(t, err)
	store, err := tasks.NewStore(tasksDB, zerolog.Nop())
	require.NoError(t, err)

	worker := tasks.NewWorker(store, func(ctx context.Context, req tasks.Request) (*risk.Result, error) {
		return riskService.Analyze(req.Portfolio, risk.Options{Period: req.Period})
	}, time.Second, zerolog.Nop())
	go worker.Run()
	t.Cleanup(worker.Stop)

	return New(Config{
		Log: zerolog.Nop(),
		Cfg: &config.Config{Port: 0, DevMode: true, DataDir: dir},

		PortfolioDB: portfolioDB,
		TasksDB:     tasksDB,

		Builder:     builder,
		RiskService: riskService,
		Registry:    registry,
		Optimizer:   optimizer,
		Portfolios:  repo,
		Worker:      worker,
		TaskStore:   store,
	})
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "ok", resp.Databases["portfolios"])
	assert.Equal(t, "ok", resp.Databases["tasks"])
}

func TestValidateTicker(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/validate-ticker/AAPL", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ValidateTickerResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Valid)
	assert.Positive(t, resp.Price)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/validate-ticker/NOPE", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Valid)
}

func TestAnalyzeEndToEnd(t *testing.T) {
	srv := newTestServer(t)

	body := bytes.NewBufferString(`{
		"positions": [
			{"ticker": "AAPL", "quantity": 10},
			{"ticker": "MSFT", "quantity": 5}
		]
	}`)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyze", body))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result risk.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Positive(t, result.TotalValue)
	assert.Positive(t, result.VaR95)
	assert.Len(t, result.Positions, 2)
}

func TestAnalyzeRejectsEmptyPortfolio(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyze",
		bytes.NewBufferString(`{"positions": []}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScenarioCatalog(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scenarios", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Scenarios []scenarios.HistoricalScenario `json:"scenarios"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Scenarios, 4)
}

func TestPortfolioCRUDOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	create := bytes.NewBufferString(`{
		"name": "Core",
		"positions": [{"ticker": "AAPL", "quantity": 10}]
	}`)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/portfolios", create))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var saved portfolio.Saved
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&saved))
	require.NotEmpty(t, saved.ID)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/portfolios/"+saved.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/portfolios/"+saved.ID, nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/portfolios/"+saved.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
