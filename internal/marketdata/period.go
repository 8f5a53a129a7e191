package marketdata

import (
	"fmt"
	"strings"
)

// Period is a user-facing lookback window for historical analysis.
type Period string

const (
	Period1M  Period = "1M"
	Period3M  Period = "3M"
	Period6M  Period = "6M"
	Period1Y  Period = "1Y"
	Period3Y  Period = "3Y"
	Period5Y  Period = "5Y"
	PeriodYTD Period = "YTD"
	PeriodMax Period = "MAX"
)

// provider-side range strings, keyed by Period
var providerPeriods = map[Period]string{
	Period1M:  "1mo",
	Period3M:  "3mo",
	Period6M:  "6mo",
	Period1Y:  "1y",
	Period3Y:  "3y",
	Period5Y:  "5y",
	PeriodYTD: "ytd",
	PeriodMax: "max",
}

// ParsePeriod validates a period string, defaulting empty input to 1Y.
func ParsePeriod(s string) (Period, error) {
	if s == "" {
		return Period1Y, nil
	}
	p := Period(strings.ToUpper(s))
	if _, ok := providerPeriods[p]; !ok {
		return "", fmt.Errorf("invalid period %q (want one of 1M, 3M, 6M, 1Y, 3Y, 5Y, YTD, MAX)", s)
	}
	return p, nil
}

// providerRange returns the provider-side range string for the period.
func (p Period) providerRange() string {
	if r, ok := providerPeriods[p]; ok {
		return r
	}
	return string(p)
}
