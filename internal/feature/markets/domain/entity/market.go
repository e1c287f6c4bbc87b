// Package entity defines the domain models for the markets feature.
package entity

import "time"

// MarketSnapshot represents one point-in-time record of a coin's market
// metrics for a given quote currency.
type MarketSnapshot struct {
	CoinID                string    // Provider coin ID (e.g., "bitcoin")
	VsCurrency            string    // Quote currency (e.g., "usd")
	Price                 float64   // Current price
	MarketCap             float64   // Market capitalization
	FullyDilutedValuation float64   // Fully-diluted market cap
	Volume24h             float64   // 24h trading volume
	Rank                  int       // Market cap rank (1 = largest)
	PctChange24h          float64   // 24h percent change
	PctChange7d           float64   // 7d percent change
	PctChange30d          float64   // 30d percent change
	SnapshotAt            time.Time // Timestamp of this snapshot (UTC)
}

// MarketRecord is one normalized provider record: the market snapshot plus
// the descriptive fields needed to maintain the coin table.
type MarketRecord struct {
	Snapshot MarketSnapshot
	Symbol   string
	Name     string
	Image    string
}

// CategoryListing は提供元のカテゴリ一覧の1件（正式ID + 表示名）です。
type CategoryListing struct {
	ID   string
	Name string
}

// Coin は銘柄の説明的メタデータです。価格より遅いサイクルで更新されます。
type Coin struct {
	ID          string            // Provider coin ID
	Symbol      string            // Ticker symbol (e.g., "btc")
	Name        string            // Display name
	Image       string            // Logo URL
	Categories  []string          // Category display names (order preserved)
	CategoryIDs []string          // Slugified category IDs, same order
	Links       map[string]string // Social/homepage links
	UpdatedAt   time.Time         // Last category refresh (UTC)
}
