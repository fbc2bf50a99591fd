// Package worker holds the engine's background loops: oracle quote refresh,
// venue yield refresh and daily report snapshots. Each worker runs a step
// immediately on startup and then on a fixed ticker.
package worker

import (
	"context"
	"time"
)

// QuoteFetcher defines the interface for fetching external quotes into the
// price oracle.
type QuoteFetcher interface {
	FetchAndStoreQuotes(ctx context.Context) error
}

// QuoteWorker periodically refreshes the oracle from the external price feed.
type QuoteWorker struct {
	fetcher  QuoteFetcher
	interval time.Duration
}

// NewQuoteWorker creates a new QuoteWorker.
func NewQuoteWorker(fetcher QuoteFetcher, interval time.Duration) *QuoteWorker {
	return &QuoteWorker{fetcher: fetcher, interval: interval}
}

// Run blocks until the context is cancelled.
func (w *QuoteWorker) Run(ctx context.Context) {
	runLoop(ctx, "QuoteWorker", w.interval, w.fetcher.FetchAndStoreQuotes)
}
