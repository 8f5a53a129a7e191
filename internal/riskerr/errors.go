// Package riskerr defines the error taxonomy shared by the analytics modules.
//
// Most numerical edge cases (empty tails, flat benchmarks, singular
// covariance) are handled locally with documented fallback values; only the
// errors below abort an analysis and surface to the caller.
package riskerr

import "errors"

var (
	// ErrEmptyTickerList is returned when a request carries no positions.
	ErrEmptyTickerList = errors.New("ticker list cannot be empty")

	// ErrDataUnavailable is returned when the market data provider fails or
	// no usable history remains after cleaning. Transient by nature; the
	// async task worker retries it.
	ErrDataUnavailable = errors.New("market data unavailable")

	// ErrNoValidPositions is returned when every submitted position was
	// dropped during dataset cleaning.
	ErrNoValidPositions = errors.New("no valid positions after market data filtering")

	// ErrUnknownScenario is returned when a historical scenario id is not in
	// the registry.
	ErrUnknownScenario = errors.New("unknown scenario")

	// ErrDegenerateRiskState is returned when the weight vector and the
	// covariance matrix are not index-aligned. That is a programmer error
	// inside the pipeline, never a consequence of user input; zero-volatility
	// portfolios are a valid input and report all-zero risk attribution.
	ErrDegenerateRiskState = errors.New("degenerate risk state: weights and covariance are misaligned")
)
