// Package coingecko provides a client for the CoinGecko market data API.
package coingecko

import (
	"os"
	"time"
)

// Config holds configuration for the CoinGecko API client.
type Config struct {
	APIKey       string        // Demo/Pro API key (optional for the free tier)
	BaseURL      string        // Base URL (e.g., "https://api.coingecko.com/api/v3")
	Timeout      time.Duration // HTTP request timeout
	RetryBackoff time.Duration // Wait before the single retry after a 429
}

// LoadConfig loads CoinGecko configuration from environment variables.
func LoadConfig() Config {
	base := os.Getenv("COINGECKO_BASE_URL")
	if base == "" {
		base = "https://api.coingecko.com/api/v3"
	}
	return Config{
		APIKey:       os.Getenv("COINGECKO_API_KEY"),
		BaseURL:      base,
		Timeout:      10 * time.Second,
		RetryBackoff: 2 * time.Second,
	}
}
