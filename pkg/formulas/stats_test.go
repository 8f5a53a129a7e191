package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	tests := []struct {
		name string
		data []float64
		want float64
	}{
		{name: "empty", data: []float64{}, want: 0},
		{name: "single value", data: []float64{5}, want: 5},
		{name: "mixed signs", data: []float64{-2, 0, 2}, want: 0},
		{name: "typical returns", data: []float64{0.01, 0.02, 0.03}, want: 0.02},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Mean(tt.data), 1e-12)
		})
	}
}

func TestStdDev(t *testing.T) {
	tests := []struct {
		name string
		data []float64
		want float64
	}{
		{name: "empty", data: []float64{}, want: 0},
		{name: "constant series", data: []float64{3, 3, 3, 3}, want: 0},
		// Sample std dev of {2,4,4,4,5,5,7,9} is sqrt(32/7).
		{name: "known series", data: []float64{2, 4, 4, 4, 5, 5, 7, 9}, want: math.Sqrt(32.0 / 7.0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, StdDev(tt.data), 1e-12)
		})
	}
}

func TestAnnualizedVolatility(t *testing.T) {
	daily := []float64{0.01, -0.02, 0.015, -0.005, 0.02}
	want := StdDev(daily) * math.Sqrt(252)
	assert.InDelta(t, want, AnnualizedVolatility(daily), 1e-12)

	assert.Zero(t, AnnualizedVolatility(nil))
}

func TestCalculateReturns(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   []float64
	}{
		{name: "too short", prices: []float64{100}, want: []float64{}},
		{name: "ten percent steps", prices: []float64{100, 110, 121}, want: []float64{0.1, 0.1}},
		{name: "decline", prices: []float64{100, 80}, want: []float64{-0.2}},
		{name: "zero price guarded", prices: []float64{0, 50}, want: []float64{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateReturns(tt.prices)
			assert.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-12)
			}
		})
	}
}

func TestCorrelation(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 1.0, Correlation(x, x), 1e-12)

	inverse := []float64{5, 4, 3, 2, 1}
	assert.InDelta(t, -1.0, Correlation(x, inverse), 1e-12)

	assert.Zero(t, Correlation(x, []float64{1, 2}))
	assert.Zero(t, Correlation(nil, nil))
}

func TestCovarianceMatchesCorrelation(t *testing.T) {
	x := []float64{0.01, -0.02, 0.03, 0.0, 0.015}
	y := []float64{0.02, -0.01, 0.025, 0.005, 0.01}

	// cov(x,y) = corr(x,y) * sd(x) * sd(y)
	want := Correlation(x, y) * StdDev(x) * StdDev(y)
	assert.InDelta(t, want, Covariance(x, y), 1e-12)
}

func TestDot(t *testing.T) {
	assert.InDelta(t, 32.0, Dot([]float64{1, 2, 3}, []float64{4, 5, 6}), 1e-12)
	assert.Zero(t, Dot([]float64{1}, []float64{1, 2}))
}

func TestCumulativeWealth(t *testing.T) {
	wealth := CumulativeWealth([]float64{0.1, 0.1, -0.5})
	assert.Len(t, wealth, 3)
	assert.InDelta(t, 1.1, wealth[0], 1e-12)
	assert.InDelta(t, 1.21, wealth[1], 1e-12)
	assert.InDelta(t, 0.605, wealth[2], 1e-12)
}
