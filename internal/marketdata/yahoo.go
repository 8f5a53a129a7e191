package marketdata

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/multi"
	"github.com/wnjoon/go-yfinance/pkg/ticker"
)

// YahooProvider implements Provider using the go-yfinance library.
type YahooProvider struct {
	maxRetries int
	log        zerolog.Logger
}

// NewYahooProvider creates a new Yahoo Finance market data provider.
func NewYahooProvider(log zerolog.Logger) *YahooProvider {
	return &YahooProvider{
		maxRetries: 3,
		log:        log.With().Str("client", "yahoo").Logger(),
	}
}

// History fetches adjusted daily closes for all tickers in one batch call.
// Per-ticker failures are logged and the ticker omitted; a wholesale download
// failure is returned as an error.
func (p *YahooProvider) History(tickers []string, period string) (map[string][]Bar, error) {
	if len(tickers) == 0 {
		return map[string][]Bar{}, nil
	}

	params := models.DefaultDownloadParams()
	params.Symbols = tickers
	params.Period = period
	params.Interval = "1d"

	result, err := multi.Download(tickers, &params)
	if err != nil {
		return nil, fmt.Errorf("failed to download history: %w", err)
	}

	series := make(map[string][]Bar, len(tickers))
	for _, symbol := range tickers {
		bars, ok := result.Data[symbol]
		if !ok || len(bars) == 0 {
			if downloadErr, hasErr := result.Errors[symbol]; hasErr {
				p.log.Warn().Err(downloadErr).Str("symbol", symbol).Msg("No history for symbol")
			}
			continue
		}

		converted := make([]Bar, 0, len(bars))
		for _, bar := range bars {
			price := bar.AdjClose
			if price <= 0 {
				price = bar.Close
			}
			if price <= 0 {
				continue
			}
			converted = append(converted, Bar{
				Date:  bar.Date.Truncate(24 * time.Hour),
				Close: price,
			})
		}
		if len(converted) > 0 {
			series[symbol] = converted
		}
	}

	return series, nil
}

// Metadata fetches sector/country/industry for a ticker.
func (p *YahooProvider) Metadata(symbol string) (Metadata, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	info, err := t.Info()
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to get info: %w", err)
	}

	meta := Metadata{Sector: "Other", Country: "Other", Industry: "Other"}
	if info.Sector != "" {
		meta.Sector = info.Sector
	}
	if info.Country != "" {
		meta.Country = info.Country
	}
	if info.Industry != "" {
		meta.Industry = info.Industry
	}
	return meta, nil
}

// Quote fetches the latest price for a ticker, retrying with exponential
// waits the way transient Yahoo hiccups demand.
func (p *YahooProvider) Quote(symbol string) (Quote, error) {
	var lastErr error
	for attempt := 0; attempt < p.maxRetries; attempt++ {
		quote, err := p.fetchQuote(symbol)
		if err == nil {
			return quote, nil
		}
		lastErr = err
		if attempt < p.maxRetries-1 {
			waitTime := time.Duration(1<<uint(attempt)) * time.Second
			p.log.Warn().Err(err).Str("symbol", symbol).Int("attempt", attempt+1).Dur("wait", waitTime).Msg("Retrying quote")
			time.Sleep(waitTime)
		}
	}
	return Quote{}, lastErr
}

func (p *YahooProvider) fetchQuote(symbol string) (Quote, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return Quote{}, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	// Quote endpoint first (faster), Info as fallback
	if quote, err := t.Quote(); err == nil && quote != nil && quote.RegularMarketPrice > 0 {
		return Quote{Ticker: symbol, Price: quote.RegularMarketPrice}, nil
	}

	info, err := t.Info()
	if err != nil {
		return Quote{}, fmt.Errorf("failed to get info: %w", err)
	}

	name := info.LongName
	if name == "" {
		name = info.ShortName
	}

	price := info.CurrentPrice
	if price <= 0 {
		price = info.RegularMarketPreviousClose
	}
	if price <= 0 {
		return Quote{}, fmt.Errorf("no valid price for %s", symbol)
	}

	return Quote{Ticker: symbol, Name: name, Price: price}, nil
}
