package marketdata

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/risklens/risklens/internal/riskerr"
	"github.com/risklens/risklens/pkg/formulas"
)

// Dataset holds aligned daily return history for a set of tickers,
// plus the annualized moments derived from it. Tickers that returned
// no usable price history are recorded in Dropped rather than failing
// the whole build.
type Dataset struct {
	Tickers []string
	Dropped []string

	// Dates are the dates of the return observations (one fewer than
	// the price rows they were computed from).
	Dates []time.Time

	// Returns is observations x tickers, one column per ticker in
	// Tickers order.
	Returns *mat.Dense

	// Covariance is the annualized covariance of daily returns.
	Covariance *mat.SymDense

	// MeanReturns are annualized mean returns, one per ticker.
	MeanReturns []float64

	// CurrentPrices maps ticker to the most recent close.
	CurrentPrices map[string]float64
}

// Index returns the column index of ticker in the dataset, or -1.
func (d *Dataset) Index(ticker string) int {
	for i, t := range d.Tickers {
		if t == ticker {
			return i
		}
	}
	return -1
}

// NumObservations returns the number of return rows.
func (d *Dataset) NumObservations() int {
	r, _ := d.Returns.Dims()
	return r
}

// Builder fetches price history and assembles aligned return datasets.
type Builder struct {
	provider Provider
	log      zerolog.Logger
}

func NewBuilder(provider Provider, logger zerolog.Logger) *Builder {
	return &Builder{
		provider: provider,
		log:      logger.With().Str("component", "marketdata").Logger(),
	}
}

// Build downloads history for the given tickers and aligns it on a
// shared date axis. Interior gaps are forward-filled from the previous
// close; rows where any ticker still has no price (typically before a
// late-listing ticker's first bar) are dropped entirely.
func (b *Builder) Build(tickers []string, period Period) (*Dataset, error) {
	unique := dedupe(tickers)
	if len(unique) == 0 {
		return nil, riskerr.ErrEmptyTickerList
	}

	history, err := b.provider.History(unique, period.providerRange())
	if err != nil {
		return nil, err
	}

	kept := make([]string, 0, len(unique))
	dropped := make([]string, 0)
	for _, t := range unique {
		if len(history[t]) > 0 {
			kept = append(kept, t)
		} else {
			dropped = append(dropped, t)
		}
	}
	if len(kept) == 0 {
		return nil, riskerr.ErrDataUnavailable
	}
	if len(dropped) > 0 {
		b.log.Warn().Strs("tickers", dropped).Msg("no price history, dropping from dataset")
	}

	dates, prices := alignPrices(kept, history)
	dates, prices = dropIncompleteRows(dates, prices, len(kept))
	if len(dates) < 2 {
		return nil, riskerr.ErrDataUnavailable
	}

	nObs := len(dates) - 1
	returns := mat.NewDense(nObs, len(kept), nil)
	for j := range kept {
		for i := 1; i < len(dates); i++ {
			returns.Set(i-1, j, prices[i][j]/prices[i-1][j]-1)
		}
	}

	cov := mat.NewSymDense(len(kept), nil)
	stat.CovarianceMatrix(cov, returns, nil)
	cov.ScaleSym(formulas.TradingDaysPerYear, cov)

	means := make([]float64, len(kept))
	for j := range kept {
		means[j] = stat.Mean(mat.Col(nil, j, returns), nil) * formulas.TradingDaysPerYear
	}

	current := make(map[string]float64, len(kept))
	for j, t := range kept {
		current[t] = prices[len(prices)-1][j]
	}

	b.log.Debug().
		Int("tickers", len(kept)).
		Int("observations", nObs).
		Msg("dataset built")

	return &Dataset{
		Tickers:       kept,
		Dropped:       dropped,
		Dates:         dates[1:],
		Returns:       returns,
		Covariance:    cov,
		MeanReturns:   means,
		CurrentPrices: current,
	}, nil
}

// BenchmarkSeries is the return history of a single benchmark index.
type BenchmarkSeries struct {
	Ticker  string
	Dates   []time.Time
	Closes  []float64
	Returns []float64
}

// BuildBenchmark downloads history for a single benchmark ticker.
func (b *Builder) BuildBenchmark(ticker string, period Period) (*BenchmarkSeries, error) {
	history, err := b.provider.History([]string{ticker}, period.providerRange())
	if err != nil {
		return nil, err
	}
	bars := history[ticker]
	if len(bars) < 2 {
		return nil, riskerr.ErrDataUnavailable
	}

	closes := make([]float64, len(bars))
	dates := make([]time.Time, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
		dates[i] = bar.Date
	}

	return &BenchmarkSeries{
		Ticker:  ticker,
		Dates:   dates[1:],
		Closes:  closes,
		Returns: formulas.CalculateReturns(closes),
	}, nil
}

// alignPrices builds the date union across tickers and forward-fills
// interior gaps. Leading entries before a ticker's first bar stay NaN.
func alignPrices(tickers []string, history map[string][]Bar) ([]time.Time, [][]float64) {
	seen := make(map[time.Time]struct{})
	for _, t := range tickers {
		for _, bar := range history[t] {
			seen[bar.Date] = struct{}{}
		}
	}
	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	index := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		index[d] = i
	}

	prices := make([][]float64, len(dates))
	for i := range prices {
		row := make([]float64, len(tickers))
		for j := range row {
			row[j] = math.NaN()
		}
		prices[i] = row
	}
	for j, t := range tickers {
		for _, bar := range history[t] {
			prices[index[bar.Date]][j] = bar.Close
		}
		for i := 1; i < len(dates); i++ {
			if math.IsNaN(prices[i][j]) && !math.IsNaN(prices[i-1][j]) {
				prices[i][j] = prices[i-1][j]
			}
		}
	}
	return dates, prices
}

func dropIncompleteRows(dates []time.Time, prices [][]float64, width int) ([]time.Time, [][]float64) {
	outDates := dates[:0]
	outPrices := prices[:0]
	for i, row := range prices {
		complete := true
		for j := 0; j < width; j++ {
			if math.IsNaN(row[j]) {
				complete = false
				break
			}
		}
		if complete {
			outDates = append(outDates, dates[i])
			outPrices = append(outPrices, row)
		}
	}
	return outDates, outPrices
}

func dedupe(tickers []string) []string {
	seen := make(map[string]struct{}, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
