// Package scenarios projects portfolio losses under hypothetical market
// shocks, either custom factor moves or replayed historical crises.
package scenarios

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/risklens/risklens/internal/riskerr"
)

// FactorScenario is a custom shock: a uniform market move plus optional
// per-ticker overrides. Shocks are fractional returns, e.g. -0.20.
type FactorScenario struct {
	Name         string             `json:"name"`
	MarketShock  float64            `json:"market_shock"`
	TickerShocks map[string]float64 `json:"ticker_shocks,omitempty"`
}

// HistoricalScenario replays a named market crisis as a uniform shock.
type HistoricalScenario struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	MarketShock float64 `json:"market_shock"`

	DateRange    [2]string `json:"date_range"`
	DurationDays int       `json:"duration_days"`
	Severity     string    `json:"severity"`
}

// Registry holds the historical scenario catalog. It is injectable so
// tests can run against a fixed set.
type Registry struct {
	scenarios map[string]HistoricalScenario
	log       zerolog.Logger
}

// DefaultRegistry returns the built-in crisis catalog.
func DefaultRegistry(logger zerolog.Logger) *Registry {
	r := &Registry{
		scenarios: make(map[string]HistoricalScenario),
		log:       logger.With().Str("component", "scenarios").Logger(),
	}
	for _, s := range []HistoricalScenario{
		{
			ID:           "2008_financial_crisis",
			Name:         "2008 Financial Crisis",
			Description:  "Global financial meltdown triggered by subprime mortgage collapse",
			MarketShock:  -0.38,
			DateRange:    [2]string{"2008-09-01", "2009-03-31"},
			DurationDays: 212,
			Severity:     "extreme",
		},
		{
			ID:           "covid_crash",
			Name:         "COVID-19 Crash",
			Description:  "Pandemic-induced market crash in early 2020",
			MarketShock:  -0.34,
			DateRange:    [2]string{"2020-02-19", "2020-03-23"},
			DurationDays: 33,
			Severity:     "severe",
		},
		{
			ID:           "dotcom_bubble",
			Name:         "Dot-com Bubble Burst",
			Description:  "Technology stock collapse from 2000-2002",
			MarketShock:  -0.49,
			DateRange:    [2]string{"2000-03-01", "2002-10-01"},
			DurationDays: 945,
			Severity:     "extreme",
		},
		{
			ID:           "black_monday",
			Name:         "1987 Black Monday",
			Description:  "Largest single-day percentage decline in stock market history",
			MarketShock:  -0.22,
			DateRange:    [2]string{"1987-10-19", "1987-10-19"},
			DurationDays: 1,
			Severity:     "severe",
		},
	} {
		r.scenarios[s.ID] = s
	}
	return r
}

// List returns the catalog sorted by id.
func (r *Registry) List() []HistoricalScenario {
	out := make([]HistoricalScenario, 0, len(r.scenarios))
	for _, s := range r.scenarios {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get looks up a scenario by id, case-insensitively.
func (r *Registry) Get(id string) (HistoricalScenario, error) {
	s, ok := r.scenarios[strings.ToLower(id)]
	if !ok {
		return HistoricalScenario{}, fmt.Errorf("%w: %q", riskerr.ErrUnknownScenario, id)
	}
	return s, nil
}

// Factor converts a historical scenario to the factor form used by the
// projection engine.
func (s HistoricalScenario) Factor() FactorScenario {
	return FactorScenario{Name: s.Name, MarketShock: s.MarketShock}
}

// PositionImpact is the projected effect of a scenario on one position.
// Loss carries the shock's sign: negative for a decline.
type PositionImpact struct {
	Ticker       string  `json:"ticker"`
	Shock        float64 `json:"shock"`
	CurrentValue float64 `json:"current_value"`
	ShockedValue float64 `json:"shocked_value"`
	Loss         float64 `json:"loss"`
}

// Impact is the projected portfolio result of a scenario. Loss and
// LossPct are signed the way the shock is: a 34% crash on $100k
// projects a Loss of -34000 and a LossPct of -34.
type Impact struct {
	Scenario     string           `json:"scenario"`
	TotalValue   float64          `json:"total_value"`
	ShockedValue float64          `json:"shocked_value"`
	Loss         float64          `json:"loss"`
	LossPct      float64          `json:"loss_pct"`
	Positions    []PositionImpact `json:"positions"`

	// Warnings lists tickers whose overrides did not match any
	// position; the override is ignored.
	Warnings []string `json:"warnings,omitempty"`
}

// Holding is a valued position fed into the projection.
type Holding struct {
	Ticker string  `json:"ticker"`
	Value  float64 `json:"value"`
}

// Project applies a scenario to the holdings. Per-ticker overrides win
// over the market-wide shock; overrides for tickers not in the
// portfolio produce a warning rather than an error.
func (r *Registry) Project(scenario FactorScenario, holdings []Holding) Impact {
	held := make(map[string]struct{}, len(holdings))
	for _, h := range holdings {
		held[h.Ticker] = struct{}{}
	}

	var warnings []string
	for ticker := range scenario.TickerShocks {
		if _, ok := held[ticker]; !ok {
			warnings = append(warnings, fmt.Sprintf("shock for %s ignored: not in portfolio", ticker))
		}
	}
	sort.Strings(warnings)

	impact := Impact{Scenario: scenario.Name, Warnings: warnings}
	for _, h := range holdings {
		shock := scenario.MarketShock
		if override, ok := scenario.TickerShocks[h.Ticker]; ok {
			shock = override
		}
		shocked := h.Value * (1 + shock)
		impact.Positions = append(impact.Positions, PositionImpact{
			Ticker:       h.Ticker,
			Shock:        shock,
			CurrentValue: h.Value,
			ShockedValue: shocked,
			Loss:         shocked - h.Value,
		})
		impact.TotalValue += h.Value
		impact.ShockedValue += shocked
	}
	impact.Loss = impact.ShockedValue - impact.TotalValue
	if impact.TotalValue > 0 {
		impact.LossPct = impact.Loss / impact.TotalValue * 100
	}

	r.log.Debug().
		Str("scenario", scenario.Name).
		Float64("loss", impact.Loss).
		Msg("scenario projected")

	return impact
}
