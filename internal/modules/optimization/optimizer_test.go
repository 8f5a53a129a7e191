package optimization

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/risklens/risklens/internal/marketdata"
	"github.com/risklens/risklens/internal/riskerr"
)

func testDataset() *marketdata.Dataset {
	// Low-vol low-return asset vs high-vol high-return asset, slightly
	// correlated.
	cov := mat.NewSymDense(2, []float64{
		0.01, 0.002,
		0.002, 0.09,
	})
	return &marketdata.Dataset{
		Tickers:     []string{"BND", "QQQ"},
		Covariance:  cov,
		MeanReturns: []float64{0.04, 0.15},
	}
}

func weightSum(weights map[string]float64) float64 {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	return sum
}

func TestOptimizeEmptyDataset(t *testing.T) {
	o := NewOptimizer(0.045, zerolog.Nop())
	_, err := o.Optimize(&marketdata.Dataset{}, StrategyMinVolatility)
	assert.ErrorIs(t, err, riskerr.ErrEmptyTickerList)
}

func TestOptimizeUnknownStrategy(t *testing.T) {
	o := NewOptimizer(0.045, zerolog.Nop())
	_, err := o.Optimize(testDataset(), Strategy("magic"))
	assert.Error(t, err)
}

func TestMinVolatilityPrefersLowVolAsset(t *testing.T) {
	o := NewOptimizer(0.045, zerolog.Nop())

	res, err := o.Optimize(testDataset(), StrategyMinVolatility)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, weightSum(res.Weights), 1e-3)
	assert.Greater(t, res.Weights["BND"], res.Weights["QQQ"])
	assert.Greater(t, res.Weights["BND"], 0.8)
	assert.Greater(t, res.ExpectedVolatility, 0.0)
}

func TestMaxSharpeBeatsCorners(t *testing.T) {
	o := NewOptimizer(0.02, zerolog.Nop())
	ds := testDataset()

	res, err := o.Optimize(ds, StrategyMaxSharpe)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, weightSum(res.Weights), 1e-3)

	// The tangency portfolio must not be worse than holding either
	// asset alone.
	bndSharpe := (0.04 - 0.02) / 0.1
	qqqSharpe := (0.15 - 0.02) / 0.3
	assert.GreaterOrEqual(t, res.SharpeRatio+1e-6, bndSharpe)
	assert.GreaterOrEqual(t, res.SharpeRatio+1e-6, qqqSharpe)
}

func TestEfficientFrontier(t *testing.T) {
	o := NewOptimizer(0.045, zerolog.Nop())

	frontier, err := o.EfficientFrontier(testDataset())
	require.NoError(t, err)
	require.NotNil(t, frontier.MinVolatility)
	require.NotNil(t, frontier.MaxSharpe)
	require.NotEmpty(t, frontier.Points)
	assert.LessOrEqual(t, len(frontier.Points), 20)

	first := frontier.Points[0]
	last := frontier.Points[len(frontier.Points)-1]
	assert.LessOrEqual(t, first.Return, last.Return)
	// Higher target returns cannot come with lower risk.
	assert.LessOrEqual(t, first.Volatility, last.Volatility+1e-6)
}

func TestRebalanceBuysMissingPosition(t *testing.T) {
	plan := Rebalance(
		map[string]float64{"AAPL": 100000},
		map[string]float64{"AAPL": 0.9, "MSFT": 0.1},
		map[string]float64{"AAPL": 200, "MSFT": 50},
	)

	require.Len(t, plan.Trades, 2)
	// Largest dollar amount first.
	assert.Equal(t, "AAPL", plan.Trades[0].Ticker)
	assert.Equal(t, "SELL", plan.Trades[0].Action)
	assert.InDelta(t, 10000, plan.Trades[0].Amount, 1e-9)

	buy := plan.Trades[1]
	assert.Equal(t, "MSFT", buy.Ticker)
	assert.Equal(t, "BUY", buy.Action)
	assert.InDelta(t, 200, buy.Shares, 1e-9)
	assert.InDelta(t, 10000, buy.Amount, 1e-9)

	assert.InDelta(t, 0.2, plan.Turnover, 1e-9)
}

func TestRebalanceFiltersNoise(t *testing.T) {
	plan := Rebalance(
		map[string]float64{"AAPL": 50005, "MSFT": 49995},
		map[string]float64{"AAPL": 0.5, "MSFT": 0.5},
		map[string]float64{"AAPL": 200, "MSFT": 50},
	)
	// $5 deltas are below the $10 floor.
	assert.Empty(t, plan.Trades)
}

func TestRebalanceSkipsUnpricedTickers(t *testing.T) {
	plan := Rebalance(
		map[string]float64{"AAPL": 100000},
		map[string]float64{"GHOST": 1.0},
		map[string]float64{"AAPL": 200},
	)
	require.Len(t, plan.Trades, 1)
	assert.Equal(t, "AAPL", plan.Trades[0].Ticker)
	assert.Equal(t, "SELL", plan.Trades[0].Action)
}
