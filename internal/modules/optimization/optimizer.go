// Package optimization computes mean-variance efficient portfolios and
// the trades needed to move a portfolio onto them.
package optimization

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/risklens/risklens/internal/marketdata"
	"github.com/risklens/risklens/internal/riskerr"
)

const (
	penaltyWeight    = 1000.0
	frontierPoints   = 20
	weightPrecision  = 4
	defaultRiskFree  = 0.045
	minWeightDefault = 0.0
	maxWeightDefault = 1.0
)

// Strategy selects the optimization objective.
type Strategy string

const (
	StrategyMinVolatility Strategy = "min_volatility"
	StrategyMaxSharpe     Strategy = "max_sharpe"
)

// Result is an optimized allocation with its ex-ante statistics.
type Result struct {
	Strategy           Strategy           `json:"strategy"`
	Weights            map[string]float64 `json:"weights"`
	ExpectedReturn     float64            `json:"expected_return"`
	ExpectedVolatility float64            `json:"expected_volatility"`
	SharpeRatio        float64            `json:"sharpe_ratio"`

	// Warnings carries non-fatal solver issues such as falling back to
	// the last iterate when the solver stalled short of convergence.
	Warnings []string `json:"warnings,omitempty"`
}

// FrontierPoint is one portfolio on the efficient frontier.
type FrontierPoint struct {
	Return     float64            `json:"return"`
	Volatility float64            `json:"volatility"`
	Sharpe     float64            `json:"sharpe"`
	Weights    map[string]float64 `json:"weights"`
}

// Frontier is a swept set of efficient portfolios plus the two named
// corner solutions.
type Frontier struct {
	Points        []FrontierPoint `json:"points"`
	MinVolatility *Result         `json:"min_volatility"`
	MaxSharpe     *Result         `json:"max_sharpe"`
	Warnings      []string        `json:"warnings,omitempty"`
}

// Optimizer solves constrained mean-variance problems with a penalty
// formulation over the annualized dataset moments.
type Optimizer struct {
	riskFreeRate float64
	log          zerolog.Logger
}

func NewOptimizer(riskFreeRate float64, logger zerolog.Logger) *Optimizer {
	if riskFreeRate <= 0 {
		riskFreeRate = defaultRiskFree
	}
	return &Optimizer{
		riskFreeRate: riskFreeRate,
		log:          logger.With().Str("component", "optimization").Logger(),
	}
}

// Optimize solves for the given strategy over the dataset's tickers.
func (o *Optimizer) Optimize(ds *marketdata.Dataset, strategy Strategy) (*Result, error) {
	n := len(ds.Tickers)
	if n == 0 {
		return nil, riskerr.ErrEmptyTickerList
	}
	mu := ds.MeanReturns
	sigma := ds.Covariance

	var objective func(x []float64) float64
	switch strategy {
	case StrategyMinVolatility:
		objective = func(x []float64) float64 {
			return portfolioVariance(x, sigma)
		}
	case StrategyMaxSharpe:
		objective = func(x []float64) float64 {
			ret := dot(mu, x)
			std := math.Sqrt(math.Max(portfolioVariance(x, sigma), 1e-10))
			return -(ret - o.riskFreeRate) / std
		}
	default:
		return nil, fmt.Errorf("unknown strategy: %s", strategy)
	}

	x, warnings, err := o.solve(n, objective, nil)
	if err != nil {
		return nil, err
	}
	return o.buildResult(ds, strategy, x, warnings), nil
}

// efficientReturn minimizes variance subject to hitting targetReturn.
func (o *Optimizer) efficientReturn(ds *marketdata.Dataset, targetReturn float64) (*Result, error) {
	mu := ds.MeanReturns
	sigma := ds.Covariance

	objective := func(x []float64) float64 {
		obj := portfolioVariance(x, sigma)
		diff := dot(mu, x) - targetReturn
		return obj + penaltyWeight*diff*diff
	}

	x, warnings, err := o.solve(len(ds.Tickers), objective, nil)
	if err != nil {
		return nil, err
	}
	return o.buildResult(ds, "efficient_return", x, warnings), nil
}

// EfficientFrontier sweeps target returns from the minimum-volatility
// portfolio's return up to the best single-asset mean. Points whose
// sub-problem fails are omitted with a warning rather than failing the
// sweep.
func (o *Optimizer) EfficientFrontier(ds *marketdata.Dataset) (*Frontier, error) {
	minVol, err := o.Optimize(ds, StrategyMinVolatility)
	if err != nil {
		return nil, err
	}
	maxSharpe, err := o.Optimize(ds, StrategyMaxSharpe)
	if err != nil {
		return nil, err
	}

	maxReturn := ds.MeanReturns[0]
	for _, m := range ds.MeanReturns {
		if m > maxReturn {
			maxReturn = m
		}
	}

	frontier := &Frontier{MinVolatility: minVol, MaxSharpe: maxSharpe}
	frontier.Warnings = append(frontier.Warnings, minVol.Warnings...)
	frontier.Warnings = append(frontier.Warnings, maxSharpe.Warnings...)

	low := minVol.ExpectedReturn
	step := (maxReturn - low) / float64(frontierPoints-1)
	for i := 0; i < frontierPoints; i++ {
		target := low + step*float64(i)
		point, err := o.efficientReturn(ds, target)
		if err != nil {
			frontier.Warnings = append(frontier.Warnings,
				fmt.Sprintf("frontier point at return %.4f skipped: %v", target, err))
			continue
		}
		frontier.Points = append(frontier.Points, FrontierPoint{
			Return:     point.ExpectedReturn,
			Volatility: point.ExpectedVolatility,
			Sharpe:     point.SharpeRatio,
			Weights:    point.Weights,
		})
	}

	o.log.Debug().
		Int("points", len(frontier.Points)).
		Int("warnings", len(frontier.Warnings)).
		Msg("frontier computed")

	return frontier, nil
}

// solve runs the penalty-method minimization: BFGS first, NelderMead as
// fallback. A solver that stalls without formally converging yields its
// last iterate plus a warning instead of an error.
func (o *Optimizer) solve(n int, objective func([]float64) float64, bounds [][2]float64) ([]float64, []string, error) {
	if len(bounds) == 0 {
		bounds = make([][2]float64, n)
		for i := range bounds {
			bounds[i] = [2]float64{minWeightDefault, maxWeightDefault}
		}
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			xProj := projectToBounds(x, bounds)
			obj := objective(xProj)
			sum := 0.0
			for _, w := range xProj {
				sum += w
			}
			return obj + penaltyWeight*(sum-1)*(sum-1)
		},
	}

	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / float64(n)
	}

	var warnings []string
	result, err := optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.BFGS{})
	if err != nil || !converged(result.Status) {
		result, err = optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.NelderMead{})
		if err != nil {
			return nil, nil, fmt.Errorf("optimization failed: %w", err)
		}
		if !converged(result.Status) {
			warnings = append(warnings,
				fmt.Sprintf("solver stopped without convergence (status=%v), using last iterate", result.Status))
			o.log.Warn().Str("status", result.Status.String()).Msg("optimizer did not converge")
		}
	}

	x := projectToBounds(result.X, bounds)
	normalize(x)
	return x, warnings, nil
}

func (o *Optimizer) buildResult(ds *marketdata.Dataset, strategy Strategy, x []float64, warnings []string) *Result {
	ret := dot(ds.MeanReturns, x)
	vol := math.Sqrt(math.Max(portfolioVariance(x, ds.Covariance), 0))
	sharpe := 0.0
	if vol > 0 {
		sharpe = (ret - o.riskFreeRate) / vol
	}

	weights := make(map[string]float64, len(x))
	for i, t := range ds.Tickers {
		weights[t] = roundWeight(x[i])
	}

	return &Result{
		Strategy:           strategy,
		Weights:            weights,
		ExpectedReturn:     ret,
		ExpectedVolatility: vol,
		SharpeRatio:        sharpe,
		Warnings:           warnings,
	}
}

func converged(status optimize.Status) bool {
	switch status {
	case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence:
		return true
	}
	return false
}

func projectToBounds(x []float64, bounds [][2]float64) []float64 {
	proj := make([]float64, len(x))
	for i := range x {
		proj[i] = math.Max(bounds[i][0], math.Min(bounds[i][1], x[i]))
	}
	return proj
}

func normalize(x []float64) {
	sum := 0.0
	for i := range x {
		x[i] = math.Max(0, x[i])
		sum += x[i]
	}
	if sum <= 0 {
		for i := range x {
			x[i] = 1.0 / float64(len(x))
		}
		return
	}
	for i := range x {
		x[i] /= sum
	}
}

func portfolioVariance(x []float64, sigma *mat.SymDense) float64 {
	var variance float64
	n := len(x)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			variance += x[i] * x[j] * sigma.At(i, j)
		}
	}
	return variance
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func roundWeight(w float64) float64 {
	scale := math.Pow10(weightPrecision)
	return math.Round(w*scale) / scale
}
