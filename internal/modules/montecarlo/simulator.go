// Package montecarlo simulates portfolio value distributions by drawing
// correlated asset returns from the historical covariance structure.
package montecarlo

import (
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/risklens/risklens/internal/marketdata"
	"github.com/risklens/risklens/pkg/formulas"
)

const maxDistributionSample = 1000

// Config controls a simulation run. A zero Seed draws seeds from the
// clock; a fixed Seed makes runs reproducible.
type Config struct {
	NumSimulations int
	HorizonDays    int
	Confidence     float64
	Seed           uint64
}

func (c Config) withDefaults() Config {
	if c.NumSimulations <= 0 {
		c.NumSimulations = 10000
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 1
	}
	if c.Confidence <= 0 || c.Confidence >= 1 {
		c.Confidence = 0.95
	}
	return c
}

// Result summarizes a simulation run.
type Result struct {
	NumSimulations int     `json:"num_simulations"`
	HorizonDays    int     `json:"horizon_days"`
	Confidence     float64 `json:"confidence"`

	// VaR and CVaR are positive dollar loss amounts at the configured
	// confidence level over the horizon.
	VaR  float64 `json:"var"`
	CVaR float64 `json:"cvar"`

	ExpectedValue   float64            `json:"expected_value"`
	ProbabilityLoss float64            `json:"probability_of_loss"`
	Percentiles     map[string]float64 `json:"percentiles"`

	// Distribution is a random subsample of simulated final values for
	// charting, at most 1000 points.
	Distribution []float64 `json:"distribution"`

	// Univariate is true when the covariance matrix was not positive
	// definite and the run fell back to a portfolio-level normal draw.
	Univariate bool `json:"univariate,omitempty"`
}

// Simulator draws terminal portfolio values from a multivariate normal
// fitted to daily returns.
type Simulator struct {
	log zerolog.Logger
}

func NewSimulator(logger zerolog.Logger) *Simulator {
	return &Simulator{log: logger.With().Str("component", "montecarlo").Logger()}
}

// Run simulates the terminal value of a portfolio worth totalValue with
// the given weights over the dataset's tickers.
func (s *Simulator) Run(ds *marketdata.Dataset, weights []float64, totalValue float64, cfg Config) *Result {
	cfg = cfg.withDefaults()
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed))

	horizon := float64(cfg.HorizonDays)
	n := len(weights)

	// Horizon-scaled daily moments. Dataset moments are annualized, so
	// rescale back before applying the horizon.
	mu := make([]float64, n)
	for i := range mu {
		mu[i] = ds.MeanReturns[i] / formulas.TradingDaysPerYear * horizon
	}
	sigma := mat.NewSymDense(n, nil)
	sigma.ScaleSym(horizon/formulas.TradingDaysPerYear, ds.Covariance)

	finals := make([]float64, cfg.NumSimulations)
	univariate := false
	if dist, ok := distmv.NewNormal(mu, sigma, rng); ok {
		draw := make([]float64, n)
		for i := range finals {
			dist.Rand(draw)
			finals[i] = totalValue * (1 + formulas.Dot(weights, draw))
		}
	} else {
		// The covariance matrix is singular (for example perfectly
		// correlated or constant series). Collapse to one portfolio-level
		// normal instead of failing.
		univariate = true
		s.log.Warn().Msg("covariance not positive definite, using univariate fallback")
		pMu := formulas.Dot(weights, mu)
		var wv mat.VecDense
		wv.MulVec(sigma, mat.NewVecDense(n, weights))
		pVar := formulas.Dot(weights, wv.RawVector().Data)
		dist := distuv.Normal{Mu: pMu, Sigma: math.Sqrt(math.Max(pVar, 0)), Src: rng}
		for i := range finals {
			finals[i] = totalValue * (1 + dist.Rand())
		}
	}

	sorted := make([]float64, len(finals))
	copy(sorted, finals)
	sort.Float64s(sorted)

	cutoff := formulas.PercentileSorted(sorted, (1-cfg.Confidence)*100)
	varLoss := totalValue - cutoff
	if varLoss < 0 {
		varLoss = 0
	}

	// CVaR is the mean loss in the tail beyond the VaR cutoff.
	tailSum, tailCount := 0.0, 0
	for _, v := range sorted {
		if v > cutoff {
			break
		}
		tailSum += totalValue - v
		tailCount++
	}
	cvar := varLoss
	if tailCount > 0 {
		cvar = tailSum / float64(tailCount)
	}

	losses := 0
	sum := 0.0
	for _, v := range finals {
		sum += v
		if v < totalValue {
			losses++
		}
	}

	result := &Result{
		NumSimulations:  cfg.NumSimulations,
		HorizonDays:     cfg.HorizonDays,
		Confidence:      cfg.Confidence,
		VaR:             varLoss,
		CVaR:            cvar,
		ExpectedValue:   sum / float64(len(finals)),
		ProbabilityLoss: float64(losses) / float64(len(finals)),
		Percentiles: map[string]float64{
			"p1":  formulas.PercentileSorted(sorted, 1),
			"p5":  formulas.PercentileSorted(sorted, 5),
			"p25": formulas.PercentileSorted(sorted, 25),
			"p50": formulas.PercentileSorted(sorted, 50),
			"p75": formulas.PercentileSorted(sorted, 75),
			"p95": formulas.PercentileSorted(sorted, 95),
			"p99": formulas.PercentileSorted(sorted, 99),
		},
		Distribution: sampleWithoutReplacement(finals, maxDistributionSample, rng),
		Univariate:   univariate,
	}

	s.log.Debug().
		Uint64("seed", seed).
		Int("simulations", cfg.NumSimulations).
		Float64("var", result.VaR).
		Msg("simulation complete")

	return result
}

// Comparison pairs the simulated VaR with its closed-form parametric
// counterpart at the same confidence and horizon.
type Comparison struct {
	MonteCarloVaR  float64 `json:"monte_carlo_var"`
	ParametricVaR  float64 `json:"parametric_var"`
	DifferencePct  float64 `json:"difference_pct"`
	NumSimulations int     `json:"num_simulations"`
}

// CompareVaR runs the simulation and computes the parametric VaR from
// the same moments, reporting the relative gap between the two methods.
func (s *Simulator) CompareVaR(ds *marketdata.Dataset, weights []float64, totalValue float64, cfg Config) *Comparison {
	cfg = cfg.withDefaults()
	return s.Compare(ds, weights, totalValue, cfg, s.Run(ds, weights, totalValue, cfg))
}

// Compare computes the parametric counterpart for an already-simulated
// result, so callers that keep the full simulation output do not pay
// for a second run.
func (s *Simulator) Compare(ds *marketdata.Dataset, weights []float64, totalValue float64, cfg Config, result *Result) *Comparison {
	cfg = cfg.withDefaults()

	n := len(weights)
	horizon := float64(cfg.HorizonDays)
	dailyMu := 0.0
	for i := range weights {
		dailyMu += weights[i] * ds.MeanReturns[i] / formulas.TradingDaysPerYear
	}
	var wv mat.VecDense
	wv.MulVec(ds.Covariance, mat.NewVecDense(n, weights))
	dailyVar := formulas.Dot(weights, wv.RawVector().Data) / formulas.TradingDaysPerYear

	z := distuv.UnitNormal.Quantile(1 - cfg.Confidence)
	parametric := math.Abs(totalValue * (z*math.Sqrt(dailyVar*horizon) - dailyMu*horizon))

	diff := 0.0
	if parametric > 0 {
		diff = (result.VaR - parametric) / parametric * 100
	}

	return &Comparison{
		MonteCarloVaR:  result.VaR,
		ParametricVaR:  parametric,
		DifferencePct:  diff,
		NumSimulations: cfg.NumSimulations,
	}
}

func sampleWithoutReplacement(values []float64, limit int, rng *rand.Rand) []float64 {
	if len(values) <= limit {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, 0, limit)
	for _, idx := range rng.Perm(len(values))[:limit] {
		out = append(out, values[idx])
	}
	return out
}
