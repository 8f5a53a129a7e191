// Package marketdata fetches historical prices and turns them into the
// aligned return/covariance dataset every analysis consumes.
package marketdata

import "time"

// Bar is a single daily close observation.
type Bar struct {
	Date  time.Time
	Close float64
}

// Metadata holds static classification data for a ticker.
type Metadata struct {
	Sector   string `json:"sector"`
	Country  string `json:"country"`
	Industry string `json:"industry"`
}

// Quote is a point-in-time price lookup, used for ticker validation.
type Quote struct {
	Ticker string  `json:"ticker"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
}

// Provider is the market data collaborator. Implementations may fail
// per-ticker (omitting it from the History result) or wholesale (error).
type Provider interface {
	// History returns daily close series per ticker over the given
	// provider-side range string ("1mo", "1y", "max", ...). Tickers with no
	// data are simply absent from the result.
	History(tickers []string, period string) (map[string][]Bar, error)

	// Metadata returns sector/country/industry classification for a ticker.
	Metadata(ticker string) (Metadata, error)

	// Quote returns the latest price for a ticker, or an error when the
	// ticker is unknown.
	Quote(ticker string) (Quote, error)
}
