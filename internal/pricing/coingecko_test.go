package pricing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/muchofi/vault/internal/domain"
)

var testSymbolIDs = map[string]string{
	"WETH": "ethereum",
	"WBTC": "bitcoin",
	"USDC": "usd-coin",
}

func TestFetchPricesAllSymbols(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"ethereum": {"usd": 2500.00},
			"bitcoin": {"usd": 55000.00},
			"usd-coin": {"usd": 1.00}
		}`))
	}))
	defer server.Close()

	client := NewCoinGeckoClient(server.URL, 0, 1, testSymbolIDs)
	prices, err := client.FetchPrices(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if prices["WETH"] != 2500.00 {
		t.Errorf("WETH = %v, want 2500", prices["WETH"])
	}
	if prices["WBTC"] != 55000.00 {
		t.Errorf("WBTC = %v, want 55000", prices["WBTC"])
	}
	if prices["USDC"] != 1.00 {
		t.Errorf("USDC = %v, want 1", prices["USDC"])
	}
}

func TestFetchPricesSkipsMissingCoins(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ethereum": {"usd": 2500.00}}`))
	}))
	defer server.Close()

	client := NewCoinGeckoClient(server.URL, 0, 1, testSymbolIDs)
	prices, err := client.FetchPrices(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := prices["WBTC"]; ok {
		t.Error("WBTC should be absent when the API omits bitcoin")
	}
	if prices["WETH"] != 2500.00 {
		t.Errorf("WETH = %v, want 2500", prices["WETH"])
	}
}

func TestFetchPricesRetryOn429(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ethereum": {"usd": 2500}}`))
	}))
	defer server.Close()

	client := NewCoinGeckoClient(server.URL, 10*time.Millisecond, 2, testSymbolIDs)
	prices, err := client.FetchPrices(context.Background())
	if err != nil {
		t.Fatalf("unexpected error after retry: %v", err)
	}
	if prices["WETH"] != 2500 {
		t.Errorf("WETH = %v, want 2500", prices["WETH"])
	}
}

func TestFetchPricesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewCoinGeckoClient(server.URL, 0, 1, testSymbolIDs)
	if _, err := client.FetchPrices(context.Background()); err == nil {
		t.Error("expected error on 500 response")
	}
}

func TestFeedStoresQuotes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ethereum": {"usd": 2500.00}}`))
	}))
	defer server.Close()

	oracle := NewStatic()
	feed := NewFeed(NewCoinGeckoClient(server.URL, 0, 1, testSymbolIDs), oracle)

	if err := feed.FetchAndStoreQuotes(context.Background()); err != nil {
		t.Fatalf("FetchAndStoreQuotes = %v", err)
	}

	got, err := oracle.Price(context.Background(), domain.NewAsset("WETH", 18))
	if err != nil {
		t.Fatalf("Price = %v", err)
	}
	if !got.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("stored price = %s, want 2500", got)
	}
}
