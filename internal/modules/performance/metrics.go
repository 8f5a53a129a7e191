// Package performance computes return-based portfolio metrics: risk
// adjusted ratios, drawdowns, benchmark regression and correlations.
package performance

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/risklens/risklens/pkg/formulas"
)

// Analyzer computes performance metrics from daily return series.
type Analyzer struct {
	riskFreeRate float64
	log          zerolog.Logger
}

func NewAnalyzer(riskFreeRate float64, logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		riskFreeRate: riskFreeRate,
		log:          logger.With().Str("component", "performance").Logger(),
	}
}

// Metrics is the annualized summary of a daily return series.
type Metrics struct {
	AnnualizedReturn     float64 `json:"annualized_return"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	SortinoRatio         float64 `json:"sortino_ratio"`
	BestDay              float64 `json:"best_day"`
	WorstDay             float64 `json:"worst_day"`
	PositiveDays         int     `json:"positive_days"`
	NegativeDays         int     `json:"negative_days"`
}

// Compute summarizes a daily portfolio return series.
func (a *Analyzer) Compute(returns []float64) Metrics {
	if len(returns) == 0 {
		return Metrics{}
	}

	annReturn := formulas.Mean(returns) * formulas.TradingDaysPerYear
	annVol := formulas.AnnualizedVolatility(returns)

	best, worst := returns[0], returns[0]
	positive, negative := 0, 0
	for _, r := range returns {
		if r > best {
			best = r
		}
		if r < worst {
			worst = r
		}
		if r > 0 {
			positive++
		} else if r < 0 {
			negative++
		}
	}

	return Metrics{
		AnnualizedReturn:     annReturn,
		AnnualizedVolatility: annVol,
		SharpeRatio:          a.Sharpe(returns),
		SortinoRatio:         a.Sortino(returns),
		BestDay:              best,
		WorstDay:             worst,
		PositiveDays:         positive,
		NegativeDays:         negative,
	}
}

// Sharpe returns the annualized excess return per unit of volatility,
// or zero for a flat series.
func (a *Analyzer) Sharpe(returns []float64) float64 {
	annVol := formulas.AnnualizedVolatility(returns)
	if annVol == 0 {
		return 0
	}
	annReturn := formulas.Mean(returns) * formulas.TradingDaysPerYear
	return (annReturn - a.riskFreeRate) / annVol
}

// Sortino penalizes only downside deviation, the annualized standard
// deviation of the negative-return subset. A series with no negative
// days has no downside to measure, so it degrades to the Sharpe ratio.
func (a *Analyzer) Sortino(returns []float64) float64 {
	var negatives []float64
	for _, r := range returns {
		if r < 0 {
			negatives = append(negatives, r)
		}
	}
	if len(negatives) == 0 {
		return a.Sharpe(returns)
	}
	downside := formulas.StdDev(negatives) * math.Sqrt(formulas.TradingDaysPerYear)
	if downside == 0 || math.IsNaN(downside) {
		return a.Sharpe(returns)
	}
	annReturn := formulas.Mean(returns) * formulas.TradingDaysPerYear
	return (annReturn - a.riskFreeRate) / downside
}

// GrowthPoint is one step in a hypothetical investment path.
type GrowthPoint struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
}

// GrowthOf tracks the value of an initial investment compounded through
// the return series, starting at the initial amount itself.
func (a *Analyzer) GrowthOf(initial float64, returns []float64) []GrowthPoint {
	out := make([]GrowthPoint, 0, len(returns)+1)
	out = append(out, GrowthPoint{Index: 0, Value: initial})
	value := initial
	for i, r := range returns {
		value *= 1 + r
		out = append(out, GrowthPoint{Index: i + 1, Value: value})
	}
	return out
}
