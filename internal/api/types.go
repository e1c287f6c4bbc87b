// Package api defines the JSON response shapes of the HTTP surface.
package api

// ErrorResponse は全エンドポイント共通のエラーボディです。
type ErrorResponse struct {
	Error string `json:"error"`
}

// MarketItemResponse はトップN市場ビューの1行です。
type MarketItemResponse struct {
	CoinID                string  `json:"coin_id"`
	VsCurrency            string  `json:"vs_currency"`
	Price                 float64 `json:"price"`
	MarketCap             float64 `json:"market_cap"`
	FullyDilutedValuation float64 `json:"fully_diluted_valuation"`
	Volume24h             float64 `json:"volume_24h"`
	Rank                  int     `json:"rank"`
	PctChange24h          float64 `json:"pct_change_24h"`
	PctChange7d           float64 `json:"pct_change_7d"`
	PctChange30d          float64 `json:"pct_change_30d"`
	SnapshotAt            string  `json:"snapshot_at"`
}

// MarketsResponse は GET /api/markets のレスポンスです。
type MarketsResponse struct {
	Items         []MarketItemResponse `json:"items"`
	LastRefreshAt string               `json:"last_refresh_at"`
	DataSource    string               `json:"data_source"`
	Stale         bool                 `json:"stale"`
}

// PriceResponse は GET /api/price/:coin_id のレスポンスです。
type PriceResponse struct {
	CoinID       string  `json:"coin_id"`
	VsCurrency   string  `json:"vs_currency"`
	Price        float64 `json:"price"`
	MarketCap    float64 `json:"market_cap"`
	Rank         int     `json:"rank"`
	PctChange24h float64 `json:"pct_change_24h"`
	SnapshotAt   string  `json:"snapshot_at"`
}

// CoinResponse は GET /api/coins/:coin_id のレスポンスです。
type CoinResponse struct {
	ID          string   `json:"id"`
	Symbol      string   `json:"symbol"`
	Name        string   `json:"name"`
	Image       string   `json:"image"`
	Categories  []string `json:"categories"`
	CategoryIDs []string `json:"category_ids"`
	Links       map[string]string `json:"links"`
	UpdatedAt   string            `json:"updated_at"`
}

// FearGreedResponse はFear & Greed指数の1レコードです。
type FearGreedResponse struct {
	Timestamp      string `json:"timestamp"`
	Value          int    `json:"value"`
	Classification string `json:"classification"`
}

// BudgetResponse は GET /admin/budget の1プロバイダ分です。
type BudgetResponse struct {
	Month            string         `json:"month"`
	MonthlyCallCount int            `json:"monthly_call_count"`
	MonthlyQuota     int            `json:"monthly_quota"`
	Remaining        int            `json:"remaining"`
	Categories       map[string]int `json:"categories"`
}

// RefreshResponse は POST /admin/refresh のレスポンスです。
type RefreshResponse struct {
	Items int `json:"items"`
}
