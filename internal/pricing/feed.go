package pricing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Feed refreshes the static oracle from an external price source.
type Feed struct {
	client *CoinGeckoClient
	oracle *Static
}

// NewFeed creates a feed writing into oracle.
func NewFeed(client *CoinGeckoClient, oracle *Static) *Feed {
	return &Feed{client: client, oracle: oracle}
}

// FetchAndStoreQuotes fetches all external prices and stores them in the
// oracle. Implements the quote worker's fetcher interface.
func (f *Feed) FetchAndStoreQuotes(ctx context.Context) error {
	prices, err := f.client.FetchPrices(ctx)
	if err != nil {
		return fmt.Errorf("fetching external prices: %w", err)
	}

	for symbol, usd := range prices {
		f.oracle.Set(symbol, decimal.NewFromFloat(usd))
	}

	return nil
}
