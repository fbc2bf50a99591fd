package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all engine configuration loaded from environment variables.
type Config struct {
	DatabaseURL           string
	CoinGeckoURL          string
	CoinGeckoDelay        time.Duration
	CoinGeckoRetryMax     int
	CoinGeckoSymbolIDs    map[string]string
	QuoteWorkerInterval   time.Duration
	RefreshWorkerInterval time.Duration
	ReportWorkerInterval  time.Duration
	AprUpdatePeriod       time.Duration
	HTTPPort              string
	AdminAPIKey           string
	OperatorID            string
	AdminID               string
	SheetsSpreadsheetID   string
	SheetsCredentialsJSON string
	ExportPath            string

	// VaultAssets maps deposit asset symbols to their decimal precision,
	// e.g. {"USDC": "6"}. One vault and one yield venue are bootstrapped
	// per entry.
	VaultAssets map[string]string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		DatabaseURL:           envOrDefaultWarn("DATABASE_URL", ""),
		CoinGeckoURL:          envOrDefault("COINGECKO_URL", "https://api.coingecko.com/api/v3"),
		CoinGeckoDelay:        envOrDefaultDuration("COINGECKO_DELAY", 6*time.Second),
		CoinGeckoRetryMax:     envOrDefaultInt("COINGECKO_RETRY_MAX", 5),
		CoinGeckoSymbolIDs:    envOrDefaultMap("COINGECKO_SYMBOL_IDS", map[string]string{"WETH": "ethereum", "WBTC": "bitcoin", "USDC": "usd-coin"}),
		QuoteWorkerInterval:   envOrDefaultDuration("QUOTE_WORKER_INTERVAL", 1*time.Hour),
		RefreshWorkerInterval: envOrDefaultDuration("REFRESH_WORKER_INTERVAL", 1*time.Hour),
		ReportWorkerInterval:  envOrDefaultDuration("REPORT_WORKER_INTERVAL", 24*time.Hour),
		AprUpdatePeriod:       envOrDefaultDuration("APR_UPDATE_PERIOD", 24*time.Hour),
		HTTPPort:              envOrDefault("HTTP_PORT", "8080"),
		AdminAPIKey:           envOrDefault("ADMIN_API_KEY", ""),
		OperatorID:            envOrDefault("OPERATOR_ID", "operator"),
		AdminID:               envOrDefault("ADMIN_ID", "admin"),
		SheetsSpreadsheetID:   envOrDefault("SHEETS_SPREADSHEET_ID", ""),
		SheetsCredentialsJSON: envOrDefault("SHEETS_CREDENTIALS_JSON", ""),
		ExportPath:            envOrDefault("EXPORT_PATH", "vault_report.xlsx"),
		VaultAssets:           envOrDefaultMap("VAULT_ASSETS", map[string]string{"USDC": "6"}),
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultWarn(key, defaultVal string) string {
	v := envOrDefault(key, defaultVal)
	if v == "" {
		slog.Warn("required env var not set", "key", key)
	}
	return v
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}

// envOrDefaultMap parses "KEY=value,KEY2=value2" pairs.
func envOrDefaultMap(key string, defaultVal map[string]string) map[string]string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}

	out := make(map[string]string)
	for _, pair := range strings.Split(v, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || k == "" || val == "" {
			slog.Warn("invalid map entry in env var, using default", "key", key, "entry", pair)
			return defaultVal
		}
		out[k] = val
	}
	return out
}
