package risk

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/risklens/risklens/internal/marketdata"
	"github.com/risklens/risklens/internal/modules/montecarlo"
	"github.com/risklens/risklens/internal/modules/performance"
	"github.com/risklens/risklens/internal/riskerr"
	"github.com/risklens/risklens/pkg/formulas"
)

const growthInitialInvestment = 10000.0

// Config wires the analysis-wide defaults.
type Config struct {
	BenchmarkTicker string
	RiskFreeRate    float64
	Simulations     int
}

// Service runs the end-to-end risk analysis.
type Service struct {
	builder   *marketdata.Builder
	analyzer  *performance.Analyzer
	simulator *montecarlo.Simulator
	cfg       Config
	log       zerolog.Logger
}

func NewService(builder *marketdata.Builder, analyzer *performance.Analyzer, simulator *montecarlo.Simulator, cfg Config, logger zerolog.Logger) *Service {
	if cfg.BenchmarkTicker == "" {
		cfg.BenchmarkTicker = "^GSPC"
	}
	if cfg.Simulations <= 0 {
		cfg.Simulations = 10000
	}
	return &Service{
		builder:   builder,
		analyzer:  analyzer,
		simulator: simulator,
		cfg:       cfg,
		log:       logger.With().Str("component", "risk").Logger(),
	}
}

// Analyze computes the full risk report for a portfolio.
func (s *Service) Analyze(portfolio Portfolio, opts Options) (*Result, error) {
	if len(portfolio.Positions) == 0 {
		return nil, riskerr.ErrEmptyTickerList
	}
	period, err := marketdata.ParsePeriod(opts.Period)
	if err != nil {
		return nil, err
	}

	ds, err := s.builder.Build(portfolio.Tickers(), period)
	if err != nil {
		return nil, err
	}

	valid := make([]Position, 0, len(portfolio.Positions))
	for _, pos := range portfolio.Positions {
		if ds.Index(pos.Ticker) >= 0 && pos.Quantity > 0 {
			valid = append(valid, pos)
		}
	}
	if len(valid) == 0 {
		return nil, riskerr.ErrNoValidPositions
	}

	result := &Result{DroppedTickers: ds.Dropped}

	// Position values and weights. Duplicate tickers are legal; their
	// weight accumulates on the shared return column.
	values := make([]float64, len(valid))
	for i, pos := range valid {
		values[i] = pos.Quantity * ds.CurrentPrices[pos.Ticker]
		result.TotalValue += values[i]
	}
	tickerWeights := make([]float64, len(ds.Tickers))
	tickerValues := make([]float64, len(ds.Tickers))
	for i, pos := range valid {
		idx := ds.Index(pos.Ticker)
		tickerWeights[idx] += values[i] / result.TotalValue
		tickerValues[idx] += values[i]
	}

	meanReturns, warnings := s.applyScenario(ds, opts)
	result.Warnings = append(result.Warnings, warnings...)

	if rows, cols := ds.Covariance.Dims(); rows != len(tickerWeights) || cols != len(tickerWeights) {
		return nil, fmt.Errorf("%w: %d weights against %dx%d covariance",
			riskerr.ErrDegenerateRiskState, len(tickerWeights), rows, cols)
	}

	// Portfolio volatility and Euler attribution over tickers. A flat
	// price history yields zero volatility; that is a valid portfolio
	// with nothing to attribute, so marginals stay zero rather than
	// dividing by zero.
	variance := 0.0
	for i := range tickerWeights {
		for j := range tickerWeights {
			variance += tickerWeights[i] * tickerWeights[j] * ds.Covariance.At(i, j)
		}
	}
	volatility := math.Sqrt(variance)
	result.VolatilityAnnualized = volatility

	marginal := make([]float64, len(tickerWeights))
	component := make([]float64, len(tickerWeights))
	componentSum := 0.0
	if volatility > 0 {
		for i := range tickerWeights {
			sw := 0.0
			for j := range tickerWeights {
				sw += ds.Covariance.At(i, j) * tickerWeights[j]
			}
			marginal[i] = sw / volatility
			component[i] = tickerWeights[i] * marginal[i]
			componentSum += component[i]
		}
	}

	portfolioReturn := formulas.Dot(tickerWeights, meanReturns)
	z := distuv.UnitNormal.Quantile(0.05)
	dailyVolatility := volatility / math.Sqrt(formulas.TradingDaysPerYear)
	result.VaR95 = math.Abs(result.TotalValue * (z*dailyVolatility - portfolioReturn/formulas.TradingDaysPerYear))

	// Per-position breakdown. A position's share of its ticker's risk
	// contribution is proportional to its share of the ticker's value.
	for i, pos := range valid {
		idx := ds.Index(pos.Ticker)
		tickerPct := 0.0
		if componentSum > 0 {
			tickerPct = component[idx] / componentSum * 100
		}
		share := 1.0
		if tickerValues[idx] > 0 {
			share = values[i] / tickerValues[idx]
		}
		result.Positions = append(result.Positions, PositionRisk{
			Ticker:              pos.Ticker,
			Quantity:            pos.Quantity,
			CurrentPrice:        ds.CurrentPrices[pos.Ticker],
			Value:               values[i],
			Weight:              values[i] / result.TotalValue,
			Volatility:          math.Sqrt(ds.Covariance.At(idx, idx)),
			RiskContributionPct: tickerPct * share,
			MarginalRisk:        marginal[idx],
		})
	}

	result.Explanation = buildExplanation(volatility, result.Positions, result.TotalValue, result.VaR95)

	portfolioReturns := portfolioSeries(ds, tickerWeights)
	result.Performance = s.analyzer.Compute(portfolioReturns)
	result.Correlation = s.analyzer.Correlations(ds)
	result.Drawdown = s.analyzer.ComputeDrawdown(portfolioReturns, ds.Dates)

	s.attachBenchmark(result, ds, portfolioReturns, period)

	if !opts.SkipMonteCarlo {
		mcCfg := montecarlo.Config{NumSimulations: s.cfg.Simulations}
		result.MonteCarlo = s.simulator.Run(ds, tickerWeights, result.TotalValue, mcCfg)
		result.VaRComparison = s.simulator.Compare(ds, tickerWeights, result.TotalValue, mcCfg, result.MonteCarlo)
	}

	result.SectorExposure, result.CountryExposure = s.exposures(valid, values, result.TotalValue)

	s.log.Info().
		Int("positions", len(valid)).
		Float64("total_value", result.TotalValue).
		Float64("volatility", volatility).
		Float64("var_95", result.VaR95).
		Msg("analysis complete")

	return result, nil
}

// applyScenario shifts annualized expected returns by the scenario's
// shocks. Shocks naming tickers outside the dataset are ignored with a
// warning.
func (s *Service) applyScenario(ds *marketdata.Dataset, opts Options) ([]float64, []string) {
	means := make([]float64, len(ds.MeanReturns))
	copy(means, ds.MeanReturns)
	if opts.Scenario == nil {
		return means, nil
	}

	for i := range means {
		means[i] += opts.Scenario.MarketShock
	}
	var warnings []string
	overrides := make([]string, 0, len(opts.Scenario.TickerShocks))
	for ticker := range opts.Scenario.TickerShocks {
		overrides = append(overrides, ticker)
	}
	sort.Strings(overrides)
	for _, ticker := range overrides {
		idx := ds.Index(ticker)
		if idx < 0 {
			warnings = append(warnings, fmt.Sprintf("scenario shock for %s ignored: not in dataset", ticker))
			continue
		}
		means[idx] = ds.MeanReturns[idx] + opts.Scenario.TickerShocks[ticker]
	}
	return means, warnings
}

func (s *Service) attachBenchmark(result *Result, ds *marketdata.Dataset, portfolioReturns []float64, period marketdata.Period) {
	bench, err := s.builder.BuildBenchmark(s.cfg.BenchmarkTicker, period)
	if err != nil {
		s.log.Warn().Err(err).Str("ticker", s.cfg.BenchmarkTicker).Msg("benchmark unavailable")
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("benchmark %s unavailable: comparison skipped", s.cfg.BenchmarkTicker))
		return
	}

	stats := s.analyzer.CompareToBenchmark(portfolioReturns, ds.Dates, bench)
	result.Benchmark = &BenchmarkBlock{
		Ticker:               bench.Ticker,
		AnnualizedReturn:     stats.AnnualizedReturn,
		AnnualizedVolatility: formulas.AnnualizedVolatility(bench.Returns),
		SharpeRatio:          s.analyzer.Sharpe(bench.Returns),
		Alpha:                stats.Alpha,
		Beta:                 stats.Beta,
		Correlation:          stats.Correlation,
		Trend:                stats.Trend,
	}
	result.Growth = growthComparison(portfolioReturns, ds, bench)
}

// growthComparison compounds $10k through both series over their
// shared dates, nil when they never overlap.
func growthComparison(portfolioReturns []float64, ds *marketdata.Dataset, bench *marketdata.BenchmarkSeries) *GrowthComparison {
	benchIdx := make(map[int64]float64, len(bench.Dates))
	for i, d := range bench.Dates {
		if i < len(bench.Returns) {
			benchIdx[d.Unix()] = bench.Returns[i]
		}
	}

	out := &GrowthComparison{}
	pv, bv := growthInitialInvestment, growthInitialInvestment
	for i, d := range ds.Dates {
		if i >= len(portfolioReturns) {
			break
		}
		br, ok := benchIdx[d.Unix()]
		if !ok {
			continue
		}
		pv *= 1 + portfolioReturns[i]
		bv *= 1 + br
		out.Dates = append(out.Dates, d)
		out.Portfolio = append(out.Portfolio, pv)
		out.Benchmark = append(out.Benchmark, bv)
	}
	if len(out.Dates) == 0 {
		return nil
	}
	return out
}

// exposures aggregates position values into sector and country buckets,
// sorted by weight descending. Metadata failures land in "Unknown".
func (s *Service) exposures(positions []Position, values []float64, totalValue float64) ([]Exposure, []Exposure) {
	unique := make([]string, 0, len(positions))
	seen := make(map[string]struct{}, len(positions))
	for _, pos := range positions {
		if _, ok := seen[pos.Ticker]; !ok {
			seen[pos.Ticker] = struct{}{}
			unique = append(unique, pos.Ticker)
		}
	}
	meta := s.builder.FetchMetadata(unique)

	sectors := make(map[string]float64)
	countries := make(map[string]float64)
	for i, pos := range positions {
		m := meta[pos.Ticker]
		sectors[orUnknown(m.Sector)] += values[i]
		countries[orUnknown(m.Country)] += values[i]
	}
	return bucketize(sectors, totalValue), bucketize(countries, totalValue)
}

func orUnknown(label string) string {
	if label == "" {
		return "Unknown"
	}
	return label
}

func bucketize(buckets map[string]float64, totalValue float64) []Exposure {
	out := make([]Exposure, 0, len(buckets))
	for label, value := range buckets {
		e := Exposure{Label: label, Value: value}
		if totalValue > 0 {
			e.Weight = value / totalValue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Label < out[j].Label
	})
	return out
}

func portfolioSeries(ds *marketdata.Dataset, weights []float64) []float64 {
	rows, cols := ds.Returns.Dims()
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		var r float64
		for j := 0; j < cols; j++ {
			r += ds.Returns.At(i, j) * weights[j]
		}
		out[i] = r
	}
	return out
}
