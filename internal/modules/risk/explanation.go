package risk

import (
	"fmt"
	"sort"
	"strings"
)

// Annualized volatility cutoffs for the qualitative risk bands.
const (
	veryHighVolatility = 0.30
	highVolatility     = 0.20
	moderateVolatility = 0.10
)

func riskLevel(volatility float64) string {
	switch {
	case volatility >= veryHighVolatility:
		return "Very High"
	case volatility >= highVolatility:
		return "High"
	case volatility >= moderateVolatility:
		return "Moderate"
	default:
		return "Low"
	}
}

// buildExplanation turns the headline numbers into a narrative summary
// with the top three risk drivers.
func buildExplanation(volatility float64, positions []PositionRisk, totalValue, var95 float64) Explanation {
	level := riskLevel(volatility)

	// Stable so positions tied on contribution keep their request order.
	sorted := make([]PositionRisk, len(positions))
	copy(sorted, positions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RiskContributionPct > sorted[j].RiskContributionPct
	})
	if len(sorted) > 3 {
		sorted = sorted[:3]
	}

	drivers := make([]RiskDriver, len(sorted))
	for i, p := range sorted {
		drivers[i] = RiskDriver{Name: p.Ticker, ContributionPct: p.RiskContributionPct}
	}

	parts := []string{
		fmt.Sprintf("Your portfolio has %s risk with an annualized volatility of %.1f%%.",
			strings.ToLower(level), volatility*100),
		fmt.Sprintf("The 1-day Value at Risk (95%% confidence) is $%.2f, representing %.1f%% of your portfolio.",
			var95, var95/totalValue*100),
	}
	if len(sorted) > 0 {
		parts = append(parts, fmt.Sprintf("%s is your largest risk contributor at %.1f%% of total portfolio risk.",
			sorted[0].Ticker, sorted[0].RiskContributionPct))
	}
	if len(sorted) > 1 {
		names := make([]string, len(sorted))
		total := 0.0
		for i, p := range sorted {
			names[i] = p.Ticker
			total += p.RiskContributionPct
		}
		parts = append(parts, fmt.Sprintf("Together, %s account for %.1f%% of your downside exposure.",
			strings.Join(names, ", "), total))
	}

	return Explanation{
		Summary:    strings.Join(parts, " "),
		RiskLevel:  level,
		TopDrivers: drivers,
	}
}
