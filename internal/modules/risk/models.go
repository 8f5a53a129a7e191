// Package risk assembles the full portfolio risk report: volatility,
// value at risk, Euler risk attribution and the supporting analytics.
package risk

import (
	"time"

	"github.com/risklens/risklens/internal/modules/montecarlo"
	"github.com/risklens/risklens/internal/modules/performance"
	"github.com/risklens/risklens/internal/modules/scenarios"
)

// Position is one holding in an analysis request.
type Position struct {
	Ticker        string  `json:"ticker"`
	Quantity      float64 `json:"quantity"`
	AssetClass    string  `json:"asset_class,omitempty"`
	PurchasePrice float64 `json:"purchase_price,omitempty"`
}

// Portfolio is the analysis input.
type Portfolio struct {
	Positions []Position `json:"positions"`
}

// Tickers returns the tickers of all positions, duplicates included.
func (p Portfolio) Tickers() []string {
	out := make([]string, 0, len(p.Positions))
	for _, pos := range p.Positions {
		out = append(out, pos.Ticker)
	}
	return out
}

// PositionRisk is the per-position slice of the risk report.
type PositionRisk struct {
	Ticker       string  `json:"ticker"`
	Quantity     float64 `json:"quantity"`
	CurrentPrice float64 `json:"current_price"`
	Value        float64 `json:"value"`
	Weight       float64 `json:"weight"`

	// Volatility is the position's own annualized volatility.
	Volatility float64 `json:"volatility"`

	// RiskContributionPct is the position's share of total portfolio
	// risk; contributions sum to 100 across positions.
	RiskContributionPct float64 `json:"risk_contribution_pct"`

	// MarginalRisk is the derivative of portfolio volatility with
	// respect to the position's weight.
	MarginalRisk float64 `json:"marginal_risk"`
}

// RiskDriver names a top contributor to portfolio risk.
type RiskDriver struct {
	Name            string  `json:"name"`
	ContributionPct float64 `json:"contribution_pct"`
}

// Explanation is the plain-language reading of the risk numbers.
type Explanation struct {
	Summary    string       `json:"summary"`
	RiskLevel  string       `json:"risk_level"`
	TopDrivers []RiskDriver `json:"top_drivers"`
}

// Exposure is the portfolio's weight in one sector or country bucket.
type Exposure struct {
	Label  string  `json:"label"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
}

// BenchmarkBlock compares the portfolio to the market index.
type BenchmarkBlock struct {
	Ticker               string  `json:"ticker"`
	AnnualizedReturn     float64 `json:"annualized_return"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	Alpha                float64 `json:"alpha"`
	Beta                 float64 `json:"beta"`
	Correlation          float64 `json:"correlation"`
	Trend                string  `json:"trend,omitempty"`
}

// GrowthComparison tracks a hypothetical $10,000 in the portfolio and
// the benchmark over their shared dates.
type GrowthComparison struct {
	Dates     []time.Time `json:"dates"`
	Portfolio []float64   `json:"portfolio"`
	Benchmark []float64   `json:"benchmark"`
}

// Result is the complete risk report.
type Result struct {
	TotalValue           float64 `json:"total_value"`
	VolatilityAnnualized float64 `json:"volatility_annualized"`

	// VaR95 is the 1-day parametric value at risk in dollars.
	VaR95 float64 `json:"var_95"`

	Positions   []PositionRisk `json:"positions"`
	Explanation Explanation    `json:"explanation"`

	Performance performance.Metrics           `json:"performance"`
	Correlation performance.CorrelationMatrix `json:"correlation_matrix"`
	Drawdown    performance.Drawdown          `json:"drawdown"`

	Benchmark     *BenchmarkBlock        `json:"benchmark,omitempty"`
	Growth        *GrowthComparison      `json:"growth_of_10k,omitempty"`
	MonteCarlo    *montecarlo.Result     `json:"monte_carlo,omitempty"`
	VaRComparison *montecarlo.Comparison `json:"var_comparison,omitempty"`

	SectorExposure  []Exposure `json:"sector_exposure,omitempty"`
	CountryExposure []Exposure `json:"country_exposure,omitempty"`

	// DroppedTickers lists request tickers excluded for lack of data.
	DroppedTickers []string `json:"dropped_tickers,omitempty"`

	// Warnings carries non-fatal degradations such as an unreachable
	// benchmark or ignored scenario shocks.
	Warnings []string `json:"warnings,omitempty"`
}

// Options tunes a single analysis run.
type Options struct {
	Period string

	// Scenario, when set, shifts expected returns before VaR is
	// computed.
	Scenario *scenarios.FactorScenario

	// SkipMonteCarlo drops the simulation block, used by callers that
	// only need the parametric numbers.
	SkipMonteCarlo bool
}
