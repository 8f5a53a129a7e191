package marketdata

import (
	"sync"

	"golang.org/x/sync/errgroup"
)

const metadataConcurrency = 4

// FetchMetadata looks up sector/country metadata for every ticker with
// bounded concurrency. Lookups that fail degrade to "Unknown" instead
// of failing the batch.
func (b *Builder) FetchMetadata(tickers []string) map[string]Metadata {
	out := make(map[string]Metadata, len(tickers))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(metadataConcurrency)
	for _, ticker := range tickers {
		ticker := ticker
		g.Go(func() error {
			meta, err := b.provider.Metadata(ticker)
			if err != nil {
				b.log.Warn().Err(err).Str("ticker", ticker).Msg("metadata lookup failed")
				meta = Metadata{Sector: "Unknown", Country: "Unknown", Industry: "Unknown"}
			}
			mu.Lock()
			out[ticker] = meta
			mu.Unlock()
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers never return errors

	return out
}

// ValidateTicker checks that a ticker resolves to a quotable symbol.
func (b *Builder) ValidateTicker(ticker string) (Quote, bool) {
	quote, err := b.provider.Quote(ticker)
	if err != nil || quote.Price <= 0 {
		return Quote{}, false
	}
	return quote, true
}
