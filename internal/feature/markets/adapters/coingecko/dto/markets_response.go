// Package dto defines the JSON payload shapes of the CoinGecko API.
package dto

// MarketRecord は /coins/markets の1レコードです。
// 新規上場銘柄などでは数値フィールドがnullになるため、ポインタで受けます。
type MarketRecord struct {
	ID                       string   `json:"id"`
	Symbol                   string   `json:"symbol"`
	Name                     string   `json:"name"`
	Image                    string   `json:"image"`
	CurrentPrice             *float64 `json:"current_price"`
	MarketCap                *float64 `json:"market_cap"`
	FullyDilutedValuation    *float64 `json:"fully_diluted_valuation"`
	TotalVolume              *float64 `json:"total_volume"`
	MarketCapRank            *int     `json:"market_cap_rank"`
	PriceChangePct24h        *float64 `json:"price_change_percentage_24h_in_currency"`
	PriceChangePct7d         *float64 `json:"price_change_percentage_7d_in_currency"`
	PriceChangePct30d        *float64 `json:"price_change_percentage_30d_in_currency"`
	LastUpdated              string   `json:"last_updated"`
}

// CategoryListItem は /coins/categories/list の1件です。
type CategoryListItem struct {
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
}

// CoinDetail は /coins/{id} のうちカテゴリ取得に必要な部分だけを持ちます。
type CoinDetail struct {
	Categories []string `json:"categories"`
}
