package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

// CoinGeckoClient fetches USD prices from the CoinGecko API.
type CoinGeckoClient struct {
	baseURL    string
	httpClient *http.Client
	delay      time.Duration
	maxRetries int
	symbolIDs  map[string]string
}

// NewCoinGeckoClient creates a CoinGecko API client. symbolIDs maps engine
// asset symbols to CoinGecko coin IDs (e.g. "WETH" -> "ethereum").
func NewCoinGeckoClient(baseURL string, delay time.Duration, maxRetries int, symbolIDs map[string]string) *CoinGeckoClient {
	return &CoinGeckoClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		delay:      delay,
		maxRetries: maxRetries,
		symbolIDs:  symbolIDs,
	}
}

// FetchPrices fetches USD prices for every configured symbol and returns a
// symbol -> price map. Symbols whose coin ID is missing from the response are
// left out rather than reported as zero.
func (c *CoinGeckoClient) FetchPrices(ctx context.Context) (map[string]float64, error) {
	body, err := c.fetchWithRetry(ctx, c.quoteURL())
	if err != nil {
		return nil, err
	}

	// Response shape: {"ethereum":{"usd":2500},"bitcoin":{"usd":55000},...}
	var raw map[string]map[string]float64
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parsing CoinGecko response: %w", err)
	}

	result := make(map[string]float64, len(c.symbolIDs))
	for symbol, coinID := range c.symbolIDs {
		if quote, ok := raw[coinID]; ok {
			result[symbol] = quote["usd"]
		}
	}
	return result, nil
}

func (c *CoinGeckoClient) quoteURL() string {
	ids := lo.Uniq(lo.Values(c.symbolIDs))
	sort.Strings(ids)

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")
	return c.baseURL + "/simple/price?" + q.Encode()
}

func (c *CoinGeckoClient) fetchWithRetry(ctx context.Context, reqURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		body, retryable, err := c.fetchOnce(ctx, reqURL)
		if err == nil {
			return body, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("CoinGecko request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// fetchOnce performs a single request. Only rate limiting is retryable;
// transport failures and other HTTP errors abort the fetch.
func (c *CoinGeckoClient) fetchOnce(ctx context.Context, reqURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("creating CoinGecko request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("CoinGecko request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("reading CoinGecko response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, false, nil
	case http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("CoinGecko rate limited")
	default:
		return nil, false, fmt.Errorf("CoinGecko returned status %d: %s", resp.StatusCode, string(body))
	}
}

// backoff waits delay*2^(attempt-1) or until the context is cancelled.
func (c *CoinGeckoClient) backoff(ctx context.Context, attempt int) error {
	base := c.delay
	if base == 0 {
		base = 10 * time.Second
	}
	wait := base * time.Duration(1<<uint(attempt-1))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}
