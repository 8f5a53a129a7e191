package performance

import (
	"time"

	"github.com/markcheno/go-talib"

	"github.com/risklens/risklens/internal/marketdata"
	"github.com/risklens/risklens/pkg/formulas"
)

const trendWindow = 50

// BenchmarkStats compares the portfolio against a market index.
type BenchmarkStats struct {
	Ticker string  `json:"ticker"`
	Alpha  float64 `json:"alpha"`
	Beta   float64 `json:"beta"`

	// Correlation between aligned daily returns.
	Correlation float64 `json:"correlation"`

	AnnualizedReturn float64 `json:"annualized_return"`

	// Trend is "up" when the index trades above its 50-day moving
	// average, "down" below it, "" when history is too short.
	Trend string `json:"trend,omitempty"`
}

// CompareToBenchmark regresses the portfolio's daily returns against
// the benchmark over their shared dates. Fewer than two overlapping
// observations produce zero alpha and beta rather than an error.
func (a *Analyzer) CompareToBenchmark(returns []float64, dates []time.Time, bench *marketdata.BenchmarkSeries) BenchmarkStats {
	stats := BenchmarkStats{Ticker: bench.Ticker}

	p, b := alignOnDates(returns, dates, bench.Returns, bench.Dates)
	if len(p) >= 2 {
		benchVar := formulas.Variance(b)
		if benchVar > 0 {
			stats.Beta = formulas.Covariance(p, b) / benchVar
		}
		// CAPM alpha: excess return over what beta exposure to the
		// benchmark would earn at the configured risk-free rate.
		annPortfolio := formulas.Mean(p) * formulas.TradingDaysPerYear
		annBench := formulas.Mean(b) * formulas.TradingDaysPerYear
		stats.Alpha = annPortfolio - (a.riskFreeRate + stats.Beta*(annBench-a.riskFreeRate))
		stats.Correlation = formulas.Correlation(p, b)
	} else {
		a.log.Warn().
			Str("benchmark", bench.Ticker).
			Int("overlap", len(p)).
			Msg("insufficient overlap for benchmark regression")
	}

	stats.AnnualizedReturn = formulas.Mean(bench.Returns) * formulas.TradingDaysPerYear
	stats.Trend = benchmarkTrend(bench.Closes)
	return stats
}

func benchmarkTrend(closes []float64) string {
	if len(closes) < trendWindow {
		return ""
	}
	sma := talib.Sma(closes, trendWindow)
	last := len(closes) - 1
	if closes[last] >= sma[last] {
		return "up"
	}
	return "down"
}

// alignOnDates inner-joins two dated return series.
func alignOnDates(a []float64, aDates []time.Time, b []float64, bDates []time.Time) ([]float64, []float64) {
	idx := make(map[time.Time]int, len(bDates))
	for i, d := range bDates {
		if i < len(b) {
			idx[d] = i
		}
	}
	var outA, outB []float64
	for i, d := range aDates {
		if i >= len(a) {
			break
		}
		if j, ok := idx[d]; ok {
			outA = append(outA, a[i])
			outB = append(outB, b[j])
		}
	}
	return outA, outB
}
