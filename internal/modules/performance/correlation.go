package performance

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/risklens/risklens/internal/marketdata"
)

// CorrelationPair is one entry in the pairwise correlation listing.
type CorrelationPair struct {
	TickerA     string  `json:"ticker_a"`
	TickerB     string  `json:"ticker_b"`
	Correlation float64 `json:"correlation"`
}

// CorrelationMatrix holds both the full matrix (row-major, in ticker
// order) and the dense pair listing: every ordered (i, j) combination,
// self-pairs included, so consumers can render a full grid without
// reassembling it.
type CorrelationMatrix struct {
	Tickers []string          `json:"tickers"`
	Matrix  [][]float64       `json:"matrix"`
	Pairs   []CorrelationPair `json:"pairs"`
}

// Correlations computes the pairwise return correlations of the dataset.
func (a *Analyzer) Correlations(ds *marketdata.Dataset) CorrelationMatrix {
	n := len(ds.Tickers)
	corr := mat.NewSymDense(n, nil)
	stat.CorrelationMatrix(corr, ds.Returns, nil)

	matrix := make([][]float64, n)
	for i := range matrix {
		row := make([]float64, n)
		for j := range row {
			row[j] = corr.At(i, j)
		}
		matrix[i] = row
	}

	pairs := make([]CorrelationPair, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			pairs = append(pairs, CorrelationPair{
				TickerA:     ds.Tickers[i],
				TickerB:     ds.Tickers[j],
				Correlation: corr.At(i, j),
			})
		}
	}

	return CorrelationMatrix{Tickers: ds.Tickers, Matrix: matrix, Pairs: pairs}
}
