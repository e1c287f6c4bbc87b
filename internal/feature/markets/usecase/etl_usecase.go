package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"crypto_backend/internal/feature/markets/domain/entity"
	"crypto_backend/internal/platform/meta"
	"crypto_backend/internal/shared/ratelimiter"
	"crypto_backend/internal/shared/slug"
)

const (
	// DefaultPerPage は1回のETLパスで取得する市場レコード数です（1ページ＝1コール）。
	DefaultPerPage = 250
	// DefaultCategoryStaleness はカテゴリ情報を再取得するまでの閾値です。
	DefaultCategoryStaleness = 24 * time.Hour
	// DefaultMaxCategoryFetch は1パスあたりの銘柄別カテゴリ取得数の上限です。
	DefaultMaxCategoryFetch = 10
)

// 予算のカテゴリ名
const (
	budgetCategoryMarkets    = "markets"
	budgetCategoryCategories = "categories"
)

// MarketDataProvider は市場データプロバイダ（CoinGecko）のインターフェースです。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type MarketDataProvider interface {
	GetMarkets(ctx context.Context, vs string, perPage, page int) ([]entity.MarketRecord, error)
	GetCategoriesList(ctx context.Context) ([]entity.CategoryListing, error)
	GetCoinCategories(ctx context.Context, coinID string) ([]string, error)
}

// PriceRepository は価格スナップショットの読み書きレイヤーを抽象化します。
type PriceRepository interface {
	// UpsertSnapshot は1パス分のlatest+履歴行を単一トランザクションで書き込みます。
	UpsertSnapshot(ctx context.Context, rows []entity.MarketSnapshot) error
	// TopByRank は最新スナップショットをランク昇順で返します。
	TopByRank(ctx context.Context, vs string, limit int) ([]entity.MarketSnapshot, error)
	// FindLatest は1銘柄の最新スナップショットを返します（なければ nil, nil）。
	FindLatest(ctx context.Context, vs, coinID string) (*entity.MarketSnapshot, error)
}

// CoinRepository は銘柄メタデータの読み書きレイヤーを抽象化します。
type CoinRepository interface {
	UpsertCoins(ctx context.Context, coins []entity.Coin) error
	FindByID(ctx context.Context, coinID string) (*entity.Coin, error)
	StaleCoinIDs(ctx context.Context, ids []string, cutoff time.Time) ([]string, error)
}

// MetaRepository はETL簿記用のキー・バリューストアを抽象化します。
type MetaRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Budget は月次コールバジェットを抽象化します。
// CanSpendは副作用のない判定、Spendは実際に行ったコールの記帳です。
type Budget interface {
	CanSpend(n int) bool
	Spend(n int, category string) error
}

// SeedLoader はプロバイダ障害時のフォールバック用シードデータを読み込みます。
// 設定されていない場合は nil のままで構いません。
type SeedLoader func() ([]entity.MarketRecord, error)

// ETLConfig は1回のETLパスの挙動を決める設定です。
type ETLConfig struct {
	VsCurrency        string
	PerPage           int
	CategoryStaleness time.Duration
	MaxCategoryFetch  int
}

// ETLUsecase は外部APIから市場データを取得し、正規化してデータベースへ
// 永続化するユースケースです。
type ETLUsecase struct {
	provider    MarketDataProvider
	prices      PriceRepository
	coins       CoinRepository
	meta        MetaRepository
	budget      Budget
	rateLimiter ratelimiter.RateLimiterInterface
	seed        SeedLoader
	cfg         ETLConfig
	now         func() time.Time
}

// NewETLUsecase は新しいETLUsecaseを作成します。
func NewETLUsecase(provider MarketDataProvider, prices PriceRepository, coins CoinRepository,
	metaRepo MetaRepository, budget Budget, rl ratelimiter.RateLimiterInterface,
	seed SeedLoader, cfg ETLConfig) *ETLUsecase {

	if cfg.VsCurrency == "" {
		cfg.VsCurrency = "usd"
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = DefaultPerPage
	}
	if cfg.CategoryStaleness <= 0 {
		cfg.CategoryStaleness = DefaultCategoryStaleness
	}
	if cfg.MaxCategoryFetch < 0 {
		cfg.MaxCategoryFetch = 0
	}

	return &ETLUsecase{
		provider:    provider,
		prices:      prices,
		coins:       coins,
		meta:        metaRepo,
		budget:      budget,
		rateLimiter: rl,
		seed:        seed,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Run は1回の取り込みパスを実行し、書き込んだスナップショット行数を返します。
//
// 手順: 予算ゲート → 市場データ取得（障害時はシードへフォールバック）→ 正規化 →
// カテゴリ補完 → 単一トランザクションでupsert → 実際に行ったコール数を記帳 →
// メタ情報の更新。ゲートで弾かれた場合はネットワークコールを一切行いません。
func (uc *ETLUsecase) Run(ctx context.Context) (int, error) {
	// 見積り: 市場1ページ + (カテゴリ一覧1 + 更新が必要な銘柄数)。
	// 更新対象は前回パスの銘柄集合から予測する。実際の消費は見積りを超えない。
	allowedCategoryCalls, err := uc.estimateCategoryCalls(ctx)
	if err != nil {
		return 0, err
	}
	estimate := 1 + allowedCategoryCalls
	if !uc.budget.CanSpend(estimate) {
		slog.Info("quota exceeded, skipping ETL pass", "estimated_calls", estimate)
		return 0, ErrQuotaExceeded
	}

	// 失敗した試行も含め、行ったコールは結果を見る前に記帳する
	records, dataSource, marketCalls, err := uc.fetchMarkets(ctx)
	if marketCalls > 0 {
		if spendErr := uc.budget.Spend(marketCalls, budgetCategoryMarkets); spendErr != nil {
			if err == nil {
				return 0, fmt.Errorf("record market calls: %w", spendErr)
			}
			slog.Error("failed to record market calls", "error", spendErr)
		}
	}
	if err != nil {
		return 0, err
	}

	rows := make([]entity.MarketSnapshot, 0, len(records))
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, rec.Snapshot)
		ids = append(ids, rec.Snapshot.CoinID)
	}

	// カテゴリが欠けている/古い銘柄のみ、ゲート済みコール数の範囲で補完する
	if dataSource == "api" && allowedCategoryCalls > 1 {
		if err := uc.refreshCategories(ctx, records, ids, allowedCategoryCalls-1); err != nil {
			// カテゴリ補完の失敗は致命的ではない。価格の取り込みは続行する。
			slog.Error("category refresh failed", "error", err)
		}
	}

	if err := uc.prices.UpsertSnapshot(ctx, rows); err != nil {
		return 0, fmt.Errorf("upsert snapshot: %w", err)
	}

	uc.writeMeta(ctx, dataSource, len(rows))
	slog.Info("ETL pass complete", "items", len(rows), "source", dataSource)
	return len(rows), nil
}

// fetchMarkets は市場データを取得します。プロバイダ障害時にシードが設定されて
// いればそちらへフォールバックします。戻り値は (records, data_source, 消費コール数, err)。
func (uc *ETLUsecase) fetchMarkets(ctx context.Context) ([]entity.MarketRecord, string, int, error) {
	uc.rateLimiter.WaitIfNeeded()
	records, err := uc.provider.GetMarkets(ctx, uc.cfg.VsCurrency, uc.cfg.PerPage, 1)
	if err == nil {
		return records, "api", 1, nil
	}

	// 失敗したコールも1回として記帳する（試行した事実が課金対象）
	slog.Error("market fetch failed", "provider", "coingecko", "error", err)
	if uc.seed == nil {
		return nil, "", 1, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}

	seeded, seedErr := uc.seed()
	if seedErr != nil {
		slog.Error("seed fallback failed", "error", seedErr)
		return nil, "", 1, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	slog.Warn("serving seed data instead of live markets", "items", len(seeded))
	return seeded, "seed", 1, nil
}

// estimateCategoryCalls は前回パスの銘柄集合からカテゴリ補完に必要なコール数を
// 予測します。戻り値はカテゴリ一覧1コールを含みます（補完不要なら0）。
func (uc *ETLUsecase) estimateCategoryCalls(ctx context.Context) (int, error) {
	if uc.cfg.MaxCategoryFetch <= 0 {
		return 0, nil
	}

	known, err := uc.prices.TopByRank(ctx, uc.cfg.VsCurrency, uc.cfg.PerPage)
	if err != nil {
		return 0, fmt.Errorf("load known coins: %w", err)
	}
	if len(known) == 0 {
		// 初回パス。カテゴリ補完は次パス以降に回す。
		return 0, nil
	}

	ids := make([]string, 0, len(known))
	for _, s := range known {
		ids = append(ids, s.CoinID)
	}
	cutoff := uc.now().UTC().Add(-uc.cfg.CategoryStaleness)
	stale, err := uc.coins.StaleCoinIDs(ctx, ids, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find stale coins: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if len(stale) > uc.cfg.MaxCategoryFetch {
		stale = stale[:uc.cfg.MaxCategoryFetch]
	}
	return 1 + len(stale), nil
}

// refreshCategories はカテゴリ情報が古い銘柄のカテゴリを取得し、coinsをupsertします。
// maxCalls は銘柄別カテゴリ取得に使ってよい残コール数（ゲート済み）です。
func (uc *ETLUsecase) refreshCategories(ctx context.Context, records []entity.MarketRecord, ids []string, maxCalls int) error {
	cutoff := uc.now().UTC().Add(-uc.cfg.CategoryStaleness)
	stale, err := uc.coins.StaleCoinIDs(ctx, ids, cutoff)
	if err != nil {
		return fmt.Errorf("find stale coins: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}
	if len(stale) > maxCalls {
		stale = stale[:maxCalls]
	}

	byID := make(map[string]entity.MarketRecord, len(records))
	for _, rec := range records {
		byID[rec.Snapshot.CoinID] = rec
	}

	calls := 0
	defer func() {
		if calls > 0 {
			if err := uc.budget.Spend(calls, budgetCategoryCategories); err != nil {
				slog.Error("failed to record category calls", "error", err)
			}
		}
	}()

	// カテゴリ一覧（表示名 → 正式ID）。スラッグはフォールバック。
	uc.rateLimiter.WaitIfNeeded()
	listing, err := uc.provider.GetCategoriesList(ctx)
	calls++
	nameToID := make(map[string]string, len(listing))
	if err != nil {
		slog.Warn("categories list unavailable, using slugs only", "error", err)
	} else {
		for _, cat := range listing {
			nameToID[cat.Name] = cat.ID
		}
	}

	updated := make([]entity.Coin, 0, len(stale))
	nowUTC := uc.now().UTC()
	for _, id := range stale {
		rec, ok := byID[id]
		if !ok {
			continue
		}

		uc.rateLimiter.WaitIfNeeded()
		names, err := uc.provider.GetCoinCategories(ctx, id)
		calls++
		if err != nil {
			// 1銘柄の失敗で処理を止めず、次の銘柄へ進む
			slog.Error("failed to fetch coin categories", "coin", id, "error", err)
			continue
		}

		categoryIDs := make([]string, 0, len(names))
		for _, name := range names {
			// APIが正式IDを持つ場合はそちらを優先し、なければスラッグ化で決める
			if catID, ok := nameToID[name]; ok {
				categoryIDs = append(categoryIDs, catID)
				continue
			}
			categoryIDs = append(categoryIDs, slug.Make(name))
		}

		updated = append(updated, entity.Coin{
			ID:          id,
			Symbol:      rec.Symbol,
			Name:        rec.Name,
			Image:       rec.Image,
			Categories:  names,
			CategoryIDs: categoryIDs,
			UpdatedAt:   nowUTC,
		})
	}

	if len(updated) == 0 {
		return nil
	}
	return uc.coins.UpsertCoins(ctx, updated)
}

// writeMeta はETL簿記用のメタキーを書き込みます。失敗はログのみ（パス自体は成功扱い）。
func (uc *ETLUsecase) writeMeta(ctx context.Context, dataSource string, items int) {
	nowStr := uc.now().UTC().Format(time.RFC3339)
	for key, value := range map[string]string{
		meta.KeyLastRefreshAt: nowStr,
		meta.KeyDataSource:    dataSource,
		meta.KeyLastETLItems:  strconv.Itoa(items),
		meta.KeyBootstrapDone: "true",
	} {
		if err := uc.meta.Set(ctx, key, value); err != nil {
			slog.Error("failed to write meta key", "key", key, "error", err)
		}
	}
}
