package scenarios

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/risklens/risklens/internal/riskerr"
)

func TestDefaultRegistryCatalog(t *testing.T) {
	r := DefaultRegistry(zerolog.Nop())

	list := r.List()
	require.Len(t, list, 4)

	ids := make([]string, len(list))
	for i, s := range list {
		ids[i] = s.ID
	}
	assert.Equal(t, []string{"2008_financial_crisis", "black_monday", "covid_crash", "dotcom_bubble"}, ids)
}

func TestGetUnknownScenario(t *testing.T) {
	r := DefaultRegistry(zerolog.Nop())

	_, err := r.Get("flash_crash")
	assert.ErrorIs(t, err, riskerr.ErrUnknownScenario)

	s, err := r.Get("COVID_CRASH")
	require.NoError(t, err)
	assert.Equal(t, "covid_crash", s.ID)
}

func TestProjectHistoricalScenario(t *testing.T) {
	r := DefaultRegistry(zerolog.Nop())
	covid, err := r.Get("covid_crash")
	require.NoError(t, err)

	impact := r.Project(covid.Factor(), []Holding{
		{Ticker: "AAPL", Value: 60000},
		{Ticker: "MSFT", Value: 40000},
	})

	assert.InDelta(t, 100000, impact.TotalValue, 1e-9)
	assert.InDelta(t, 66000, impact.ShockedValue, 1e-9)
	assert.InDelta(t, -34000, impact.Loss, 1e-9)
	assert.InDelta(t, -34.0, impact.LossPct, 1e-9)
	assert.Empty(t, impact.Warnings)
}

func TestProjectTickerOverrides(t *testing.T) {
	r := DefaultRegistry(zerolog.Nop())

	impact := r.Project(FactorScenario{
		Name:        "tech selloff",
		MarketShock: -0.10,
		TickerShocks: map[string]float64{
			"AAPL": -0.30,
			"GHST": -0.50,
		},
	}, []Holding{
		{Ticker: "AAPL", Value: 50000},
		{Ticker: "KO", Value: 50000},
	})

	require.Len(t, impact.Positions, 2)
	assert.InDelta(t, -15000, impact.Positions[0].Loss, 1e-9)
	assert.InDelta(t, -5000, impact.Positions[1].Loss, 1e-9)
	assert.InDelta(t, -20.0, impact.LossPct, 1e-9)

	require.Len(t, impact.Warnings, 1)
	assert.Contains(t, impact.Warnings[0], "GHST")
}

func TestProjectEmptyHoldings(t *testing.T) {
	r := DefaultRegistry(zerolog.Nop())

	impact := r.Project(FactorScenario{Name: "x", MarketShock: -0.5}, nil)
	assert.Zero(t, impact.TotalValue)
	assert.Zero(t, impact.LossPct)
}
