package di

import (
	"crypto_backend/internal/feature/feargreed/adapters/coinmarketcap"
	infrahttp "crypto_backend/internal/platform/http"
)

// NewCoinMarketCap creates a fully configured CoinMarketCap client with HTTP client.
func NewCoinMarketCap() *coinmarketcap.Client {
	cfg := coinmarketcap.LoadConfig()
	httpClient := infrahttp.NewHTTPClient(cfg.Timeout)
	return coinmarketcap.NewClient(cfg, httpClient)
}
