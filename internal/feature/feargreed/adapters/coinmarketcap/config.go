// Package coinmarketcap provides a client for the CoinMarketCap
// Fear & Greed index API.
package coinmarketcap

import (
	"os"
	"time"
)

// Config holds configuration for the CoinMarketCap API client.
type Config struct {
	APIKey  string        // Pro API key
	BaseURL string        // Base URL (e.g., "https://pro-api.coinmarketcap.com")
	Timeout time.Duration // HTTP request timeout
}

// LoadConfig loads CoinMarketCap configuration from environment variables.
func LoadConfig() Config {
	base := os.Getenv("CMC_BASE_URL")
	if base == "" {
		base = "https://pro-api.coinmarketcap.com"
	}
	return Config{
		APIKey:  os.Getenv("CMC_API_KEY"),
		BaseURL: base,
		Timeout: 10 * time.Second,
	}
}
