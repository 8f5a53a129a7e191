package optimization

import (
	"math"
	"sort"
)

// Noise thresholds below which a rebalancing trade is not worth placing.
const (
	minTradeAmount = 10.0
	minTradeShares = 0.1
)

// Trade is one instruction to move the portfolio toward target weights.
type Trade struct {
	Ticker string  `json:"ticker"`
	Action string  `json:"action"`
	Shares float64 `json:"shares"`
	Amount float64 `json:"amount"`

	CurrentValue float64 `json:"current_value"`
	TargetValue  float64 `json:"target_value"`
}

// RebalancePlan lists the trades required to reach the target weights.
type RebalancePlan struct {
	TotalValue float64 `json:"total_value"`
	Trades     []Trade `json:"trades"`

	// Turnover is the sum of trade amounts as a fraction of portfolio
	// value.
	Turnover float64 `json:"turnover"`
}

// Rebalance computes the trades that move the current dollar values to
// the target weights. Trades below $10 or 0.1 shares are dropped as
// noise. Trades are sorted by dollar size, largest first.
func Rebalance(currentValues map[string]float64, targetWeights map[string]float64, prices map[string]float64) *RebalancePlan {
	totalValue := 0.0
	for _, v := range currentValues {
		totalValue += v
	}

	tickers := make(map[string]struct{}, len(currentValues)+len(targetWeights))
	for t := range currentValues {
		tickers[t] = struct{}{}
	}
	for t := range targetWeights {
		tickers[t] = struct{}{}
	}

	plan := &RebalancePlan{TotalValue: totalValue}
	grossTraded := 0.0
	for ticker := range tickers {
		price := prices[ticker]
		if price <= 0 {
			continue
		}
		current := currentValues[ticker]
		target := totalValue * targetWeights[ticker]
		delta := target - current
		shares := delta / price

		if math.Abs(delta) < minTradeAmount || math.Abs(shares) < minTradeShares {
			continue
		}

		action := "BUY"
		if delta < 0 {
			action = "SELL"
		}
		plan.Trades = append(plan.Trades, Trade{
			Ticker:       ticker,
			Action:       action,
			Shares:       math.Abs(shares),
			Amount:       math.Abs(delta),
			CurrentValue: current,
			TargetValue:  target,
		})
		grossTraded += math.Abs(delta)
	}

	sort.Slice(plan.Trades, func(i, j int) bool {
		if plan.Trades[i].Amount != plan.Trades[j].Amount {
			return plan.Trades[i].Amount > plan.Trades[j].Amount
		}
		return plan.Trades[i].Ticker < plan.Trades[j].Ticker
	})

	if totalValue > 0 {
		plan.Turnover = grossTraded / totalValue
	}
	return plan
}
