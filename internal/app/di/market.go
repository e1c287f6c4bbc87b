// Package di provides dependency injection factories for creating application components.
package di

import (
	"crypto_backend/internal/feature/markets/adapters/coingecko"
	infrahttp "crypto_backend/internal/platform/http"
)

// NewCoinGecko creates a fully configured CoinGecko client with HTTP client.
func NewCoinGecko() *coingecko.Client {
	cfg := coingecko.LoadConfig()
	httpClient := infrahttp.NewHTTPClient(cfg.Timeout)
	return coingecko.NewClient(cfg, httpClient)
}
