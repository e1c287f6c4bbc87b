package usecase

import (
	"context"

	"crypto_backend/internal/feature/markets/domain/entity"
)

const (
	// DefaultTopLimit はトップN取得のデフォルト件数です。
	DefaultTopLimit = 100
	// MaxTopLimit はトップN取得の最大件数です（キャッシュの保持件数と同じ）。
	MaxTopLimit = DefaultPerPage
)

// TopView はトップN市場ビューと、その鮮度メタ情報です。
type TopView struct {
	Items         []entity.MarketSnapshot
	LastRefreshAt string // RFC3339 UTC、未取り込みなら空
	DataSource    string // "api" または "seed"
	Stale         bool   // last_refresh_at が鮮度閾値より古い
}

// SnapshotCache は市場スナップショットの読み取りキャッシュを抽象化します。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type SnapshotCache interface {
	GetTop(ctx context.Context, vs string, limit int) (TopView, error)
	GetPrice(ctx context.Context, vs, coinID string) (*entity.MarketSnapshot, error)
	Invalidate(vs string)
}

// marketsUsecase は市場データ読み取りのユースケースを定義します。
type marketsUsecase struct {
	cache SnapshotCache
	coins CoinRepository
}

// NewMarketsUsecase はmarketsUsecaseの新しいインスタンスを生成します。
func NewMarketsUsecase(cache SnapshotCache, coins CoinRepository) *marketsUsecase {
	return &marketsUsecase{cache: cache, coins: coins}
}

// GetTop は指定通貨のトップN市場ビューを返します。
func (mu *marketsUsecase) GetTop(ctx context.Context, vs string, limit int) (TopView, error) {
	if vs == "" {
		vs = "usd"
	}
	if limit <= 0 || limit > MaxTopLimit {
		limit = DefaultTopLimit
	}
	return mu.cache.GetTop(ctx, vs, limit)
}

// GetPrice は1銘柄の最新スナップショットを返します。未知の銘柄は (nil, nil)。
func (mu *marketsUsecase) GetPrice(ctx context.Context, vs, coinID string) (*entity.MarketSnapshot, error) {
	if vs == "" {
		vs = "usd"
	}
	return mu.cache.GetPrice(ctx, vs, coinID)
}

// GetCoin は1銘柄のメタデータ（カテゴリ、リンク等）を返します。
func (mu *marketsUsecase) GetCoin(ctx context.Context, coinID string) (*entity.Coin, error) {
	return mu.coins.FindByID(ctx, coinID)
}
