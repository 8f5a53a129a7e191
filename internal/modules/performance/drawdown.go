package performance

import (
	"time"

	"github.com/risklens/risklens/pkg/formulas"
)

// drawdownDisplayWindow caps the emitted drawdown series at roughly one
// trading year. The headline statistics always cover the full history.
const drawdownDisplayWindow = 252

// DrawdownPoint is one dated observation of the drawdown series.
type DrawdownPoint struct {
	Date     time.Time `json:"date"`
	Drawdown float64   `json:"drawdown"`
}

// Drawdown describes the worst peak-to-trough decline of the series.
type Drawdown struct {
	// MaxDrawdown is the decline as a negative fraction, e.g. -0.18.
	MaxDrawdown float64 `json:"max_drawdown"`

	// TroughDate is the date the drawdown bottomed, zero when the
	// series never declined.
	TroughDate time.Time `json:"trough_date"`

	// RecoveryDays counts days from the pre-drawdown peak until wealth
	// first regained it, 0 when it never recovered or never declined.
	RecoveryDays int `json:"recovery_days"`

	// CurrentDrawdown is the decline from the running peak at the end
	// of the series.
	CurrentDrawdown float64 `json:"current_drawdown"`

	// Series is the dated drawdown path, truncated to the most recent
	// observations for rendering.
	Series []DrawdownPoint `json:"series,omitempty"`
}

// ComputeDrawdown computes drawdown statistics over the full return
// series. Dates must parallel returns.
func (a *Analyzer) ComputeDrawdown(returns []float64, dates []time.Time) Drawdown {
	if len(returns) == 0 {
		return Drawdown{}
	}

	wealth := formulas.CumulativeWealth(returns)

	drawdowns := make([]float64, len(wealth))
	peak := wealth[0]
	peakIdx := 0
	maxDD := 0.0
	troughIdx := -1
	troughPeakIdx := 0
	for i, w := range wealth {
		if w > peak {
			peak = w
			peakIdx = i
		}
		dd := w/peak - 1
		drawdowns[i] = dd
		if dd < maxDD {
			maxDD = dd
			troughIdx = i
			troughPeakIdx = peakIdx
		}
	}

	out := Drawdown{
		MaxDrawdown:     maxDD,
		CurrentDrawdown: wealth[len(wealth)-1]/peak - 1,
		Series:          drawdownSeries(drawdowns, dates),
	}
	if troughIdx < 0 {
		return out
	}
	if troughIdx < len(dates) {
		out.TroughDate = dates[troughIdx]
	}

	prior := wealth[troughPeakIdx]
	for i := troughIdx + 1; i < len(wealth); i++ {
		if wealth[i] >= prior {
			out.RecoveryDays = spanDays(dates, troughPeakIdx, i)
			break
		}
	}
	return out
}

// spanDays measures the gap in calendar days when both dates are known,
// falling back to the observation count.
func spanDays(dates []time.Time, from, to int) int {
	if from < len(dates) && to < len(dates) {
		return int(dates[to].Sub(dates[from]).Hours() / 24)
	}
	return to - from
}

func drawdownSeries(drawdowns []float64, dates []time.Time) []DrawdownPoint {
	start := 0
	if len(drawdowns) > drawdownDisplayWindow {
		start = len(drawdowns) - drawdownDisplayWindow
	}
	out := make([]DrawdownPoint, 0, len(drawdowns)-start)
	for i := start; i < len(drawdowns); i++ {
		p := DrawdownPoint{Drawdown: drawdowns[i]}
		if i < len(dates) {
			p.Date = dates[i]
		}
		out = append(out, p)
	}
	return out
}
