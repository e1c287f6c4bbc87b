// Package cache provides caching layers between the API handlers and the
// repositories: an in-memory TTL cache for the markets view and a Redis
// decorator for the fear & greed series.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"crypto_backend/internal/feature/markets/domain/entity"
	"crypto_backend/internal/feature/markets/usecase"
	"crypto_backend/internal/platform/meta"
)

const (
	// DefaultMarketsTTL はスナップショットの有効期間です。
	DefaultMarketsTTL = 60 * time.Second
	// DefaultTopN は1エントリとして保持するスナップショットの件数です。
	DefaultTopN = 250
	// DefaultStaleAfter はデータを「stale」としてフラグする閾値です。
	// TTLではなく last_refresh_at の経過時間で判定します。
	DefaultStaleAfter = 24 * time.Hour
)

// marketsEntry は1通貨分のキャッシュ済みスナップショットです。
type marketsEntry struct {
	items         []entity.MarketSnapshot
	index         map[string]int // coin_id → items内の位置
	expiresAt     time.Time
	lastRefreshAt string // 構築時点のmeta値（変化検知用）
	dataSource    string
}

// MarketsCache はトップN市場ビューと銘柄別価格の読み取りを、リポジトリへの
// 問い合わせを最小限にしつつ提供します。TTL満了かmeta値の変化で無効化されます。
type MarketsCache struct {
	mu      sync.Mutex
	entries map[string]*marketsEntry

	prices     usecase.PriceRepository
	meta       usecase.MetaRepository
	ttl        time.Duration
	topN       int
	staleAfter time.Duration
	now        func() time.Time
}

// MarketsCacheがSnapshotCacheを実装していることをコンパイル時に検証します。
var _ usecase.SnapshotCache = (*MarketsCache)(nil)

// NewMarketsCache は新しいMarketsCacheを生成します。
// ttlが0以下の場合はDefaultMarketsTTLが使われます。
func NewMarketsCache(prices usecase.PriceRepository, metaRepo usecase.MetaRepository, ttl time.Duration) *MarketsCache {
	if ttl <= 0 {
		ttl = DefaultMarketsTTL
	}
	return &MarketsCache{
		entries:    map[string]*marketsEntry{},
		prices:     prices,
		meta:       metaRepo,
		ttl:        ttl,
		topN:       DefaultTopN,
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
	}
}

// GetTop は指定通貨のトップN市場ビューを返します。
//
// TTL内でも安価なメタ比較（last_refresh_at / data_source）を行い、ETLパスが
// 走った直後はTTLを待たずに再構築します。返すスライスはコピーなので、呼び出し
// 側の変更がキャッシュ本体を壊すことはありません。
func (mc *MarketsCache) GetTop(ctx context.Context, vs string, limit int) (usecase.TopView, error) {
	lastRefreshAt, dataSource, err := mc.readMeta(ctx)
	if err != nil {
		slog.Error("failed to read cache meta", "error", err)
	}

	mc.mu.Lock()
	e := mc.entries[vs]
	if e != nil && mc.now().Before(e.expiresAt) &&
		e.lastRefreshAt == lastRefreshAt && e.dataSource == dataSource {
		view := mc.viewLocked(e, limit)
		mc.mu.Unlock()
		return view, nil
	}
	mc.mu.Unlock()

	// 再構築はロックの外で行う（他の読み手をブロックしない）
	rebuilt, rerr := mc.rebuild(ctx, vs, lastRefreshAt, dataSource)
	if rerr != nil {
		slog.Error("markets cache rebuild failed", "vs", vs, "error", rerr)
		if e == nil {
			// フォールバックなし: 空のstaleビューで応答する（ハングや5xxより良い）
			return usecase.TopView{Items: []entity.MarketSnapshot{}, Stale: true}, nil
		}
		// 期限切れエントリがあればstaleとして提供する
		mc.mu.Lock()
		view := mc.viewLocked(e, limit)
		mc.mu.Unlock()
		view.Stale = true
		return view, nil
	}

	mc.mu.Lock()
	mc.entries[vs] = rebuilt
	view := mc.viewLocked(rebuilt, limit)
	mc.mu.Unlock()
	return view, nil
}

// viewLocked はエントリからビューを組み立てます。ロックを保持して呼ぶこと。
func (mc *MarketsCache) viewLocked(e *marketsEntry, limit int) usecase.TopView {
	return usecase.TopView{
		Items:         copyItems(e.items, limit),
		LastRefreshAt: e.lastRefreshAt,
		DataSource:    e.dataSource,
		Stale:         mc.isStale(e.lastRefreshAt),
	}
}

// GetPrice は1銘柄の最新スナップショットを返します。
//
// キャッシュ済みスナップショットのインデックスにあればそれを返し、なければ
// （トップN圏外の銘柄など）リポジトリへフォールスルーし、結果をベストエフォート
// でインデックスに書き戻します。未知の銘柄は (nil, nil) です。
func (mc *MarketsCache) GetPrice(ctx context.Context, vs, coinID string) (*entity.MarketSnapshot, error) {
	mc.mu.Lock()
	e := mc.entries[vs]
	if e != nil && mc.now().Before(e.expiresAt) {
		if i, ok := e.index[coinID]; ok {
			item := e.items[i]
			mc.mu.Unlock()
			return &item, nil
		}
	}
	mc.mu.Unlock()

	s, err := mc.prices.FindLatest(ctx, vs, coinID)
	if err != nil || s == nil {
		return s, err
	}

	// 書き戻しは同じエントリがまだ生きている場合のみ（再構築との競合を避ける）
	mc.mu.Lock()
	if cur := mc.entries[vs]; cur != nil && cur == e {
		cur.index[coinID] = len(cur.items)
		cur.items = append(cur.items, *s)
	}
	mc.mu.Unlock()

	return s, nil
}

// Invalidate は1通貨分のエントリを破棄します。空文字なら全通貨を破棄します。
func (mc *MarketsCache) Invalidate(vs string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if vs == "" {
		mc.entries = map[string]*marketsEntry{}
		return
	}
	delete(mc.entries, vs)
}

// rebuild はリポジトリからスナップショットを構築します。ロックは保持しません。
func (mc *MarketsCache) rebuild(ctx context.Context, vs, lastRefreshAt, dataSource string) (*marketsEntry, error) {
	items, err := mc.prices.TopByRank(ctx, vs, mc.topN)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(items))
	for i, s := range items {
		index[s.CoinID] = i
	}
	return &marketsEntry{
		items:         items,
		index:         index,
		expiresAt:     mc.now().Add(mc.ttl),
		lastRefreshAt: lastRefreshAt,
		dataSource:    dataSource,
	}, nil
}

// readMeta は無効化判定に使うmeta値を読み出します。
func (mc *MarketsCache) readMeta(ctx context.Context) (lastRefreshAt, dataSource string, err error) {
	lastRefreshAt, err = mc.meta.Get(ctx, meta.KeyLastRefreshAt)
	if err != nil {
		return "", "", err
	}
	dataSource, err = mc.meta.Get(ctx, meta.KeyDataSource)
	if err != nil {
		return "", "", err
	}
	return lastRefreshAt, dataSource, nil
}

// isStale は last_refresh_at の経過時間が閾値を超えているかを返します。
// 値がない・解釈できない場合もstale扱いです。
func (mc *MarketsCache) isStale(lastRefreshAt string) bool {
	t, err := time.Parse(time.RFC3339, lastRefreshAt)
	if err != nil {
		return true
	}
	return mc.now().Sub(t) > mc.staleAfter
}

// copyItems は先頭limit件のシャローコピーを返します。
func copyItems(items []entity.MarketSnapshot, limit int) []entity.MarketSnapshot {
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}
	out := make([]entity.MarketSnapshot, limit)
	copy(out, items[:limit])
	return out
}
