// Package usecase implements the business logic for the feargreed feature.
package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"crypto_backend/internal/feature/feargreed/domain/entity"
	"crypto_backend/internal/platform/meta"
)

const (
	// DefaultHistoryCoverageDays は「十分な履歴」と見なす日数です（約3年、
	// プロバイダの無料枠の履歴深度に合わせています）。この範囲をカバー済み
	// なら履歴の再取得は行いません。
	DefaultHistoryCoverageDays = 1000
)

// 予算のカテゴリ名。latest と history は同じ月次バジェットを別カテゴリで消費します。
const (
	budgetCategoryLatest  = "cmc_latest"
	budgetCategoryHistory = "cmc_history"
)

// SentimentRecord はプロバイダの生レコードです。タイムスタンプと値は
// 形式が揺れる（ISO文字列 / 日付 / epoch秒 / 数値文字列）ため any で受け、
// 正規化はこのパッケージで行います。
type SentimentRecord struct {
	Timestamp      any
	Value          any
	Classification string
}

// SentimentProvider はセンチメント指数プロバイダ（CoinMarketCap）の
// インターフェースです。利用者（usecase）側で定義します。
type SentimentProvider interface {
	GetLatest(ctx context.Context) (*SentimentRecord, error)
	GetHistorical(ctx context.Context, limit int, start, end time.Time) ([]SentimentRecord, error)
}

// FearGreedRepository はセンチメント指数の読み書きレイヤーを抽象化します。
type FearGreedRepository interface {
	Upsert(ctx context.Context, rows []entity.FearGreed) error
	Latest(ctx context.Context) (*entity.FearGreed, error)
	History(ctx context.Context, since time.Time) ([]entity.FearGreed, error)
	HasDate(ctx context.Context, day time.Time) (bool, error)
	Span(ctx context.Context) (oldest, newest time.Time, count int64, err error)
}

// MetaRepository はETL簿記用のキー・バリューストアを抽象化します。
type MetaRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Budget は月次コールバジェットを抽象化します。
type Budget interface {
	CanSpend(n int) bool
	Spend(n int, category string) error
}

// SyncUsecase はセンチメント指数を最小限のプロバイダコールで最新に保つ
// ユースケースです。
type SyncUsecase struct {
	provider     SentimentProvider
	repo         FearGreedRepository
	meta         MetaRepository
	budget       Budget
	granularity  func() time.Duration
	coverageDays int
	now          func() time.Time
}

// NewSyncUsecase は新しいSyncUsecaseを作成します。granularity は実行時の
// 設定変更を反映できるよう、呼び出しごとに評価されます。
func NewSyncUsecase(provider SentimentProvider, repo FearGreedRepository,
	metaRepo MetaRepository, budget Budget, granularity func() time.Duration) *SyncUsecase {

	return &SyncUsecase{
		provider:     provider,
		repo:         repo,
		meta:         metaRepo,
		budget:       budget,
		granularity:  granularity,
		coverageDays: DefaultHistoryCoverageDays,
		now:          time.Now,
	}
}

// Sync は1回の同期を実行し、処理した行数を返します。
//
// スキップ判定はすべてネットワークコールの前に行います:
//   - 前回同期が粒度より新しい → 同期全体をスキップ
//   - 今日（UTC）の行が既にある → latest取得をスキップ
//   - 保存済みの日付スパンが十分 → 履歴取得をスキップ
//
// 片方のサブ取得が失敗しても、成功した側の行数を返します（部分成功は正常）。
func (uc *SyncUsecase) Sync(ctx context.Context) (int, error) {
	nowUTC := uc.now().UTC()

	// 粒度による全体スキップ
	if last, err := uc.meta.Get(ctx, meta.KeyFearGreedLastRefresh); err == nil && last != "" {
		if t, err := time.Parse(time.RFC3339, last); err == nil {
			if age := nowUTC.Sub(t); age < uc.granularity() {
				slog.Debug("fear & greed sync skipped, refreshed recently", "age", age)
				return 0, nil
			}
		}
	}

	today := nowUTC.Truncate(24 * time.Hour)
	hasToday, err := uc.repo.HasDate(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("check today's row: %w", err)
	}

	oldest, newest, count, err := uc.repo.Span(ctx)
	if err != nil {
		return 0, fmt.Errorf("check stored span: %w", err)
	}
	covered := count > 0 && newest.Sub(oldest) >= time.Duration(uc.coverageDays)*24*time.Hour

	if hasToday && covered {
		slog.Debug("fear & greed sync skipped, data already sufficient")
		return 0, nil
	}

	processed := 0
	if !hasToday {
		processed += uc.syncLatest(ctx, nowUTC)
	}
	if !covered {
		processed += uc.syncHistory(ctx, nowUTC, oldest, count)
	}

	if processed > 0 {
		if err := uc.meta.Set(ctx, meta.KeyFearGreedLastRefresh, nowUTC.Format(time.RFC3339)); err != nil {
			slog.Error("failed to record fear & greed refresh time", "error", err)
		}
	}
	return processed, nil
}

// syncLatest は当日値を取得・保存します。戻り値は処理した行数（0または1）。
func (uc *SyncUsecase) syncLatest(ctx context.Context, nowUTC time.Time) int {
	if !uc.budget.CanSpend(1) {
		slog.Info("quota exceeded, skipping fear & greed latest fetch")
		return 0
	}

	rec, err := uc.provider.GetLatest(ctx)
	// 失敗したコールもちょうど1回分として記帳する（リトライによる二重計上はしない）
	if serr := uc.budget.Spend(1, budgetCategoryLatest); serr != nil {
		slog.Error("failed to record latest call", "error", serr)
	}
	if err != nil {
		slog.Error("fear & greed latest fetch failed", "provider", "coinmarketcap", "error", err)
		return 0
	}
	if rec == nil {
		return 0
	}

	row, ok := Normalize(*rec, nowUTC)
	if !ok {
		slog.Warn("discarding malformed fear & greed record")
		return 0
	}
	if err := uc.repo.Upsert(ctx, []entity.FearGreed{row}); err != nil {
		slog.Error("failed to upsert fear & greed latest", "error", err)
		return 0
	}
	return 1
}

// syncHistory は履歴をバックフィルします。戻り値は処理した行数。
func (uc *SyncUsecase) syncHistory(ctx context.Context, nowUTC, oldest time.Time, count int64) int {
	if !uc.budget.CanSpend(1) {
		slog.Info("quota exceeded, skipping fear & greed history fetch")
		return 0
	}

	// 既存データがあれば、欠けている古い側だけを要求する
	end := nowUTC
	if count > 0 {
		end = oldest
	}
	start := nowUTC.AddDate(0, 0, -uc.coverageDays)

	recs, err := uc.provider.GetHistorical(ctx, uc.coverageDays, start, end)
	if serr := uc.budget.Spend(1, budgetCategoryHistory); serr != nil {
		slog.Error("failed to record history call", "error", serr)
	}
	if err != nil {
		slog.Error("fear & greed history fetch failed", "provider", "coinmarketcap", "error", err)
		return 0
	}

	rows := make([]entity.FearGreed, 0, len(recs))
	for _, rec := range recs {
		if row, ok := Normalize(rec, nowUTC); ok {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return 0
	}
	if err := uc.repo.Upsert(ctx, rows); err != nil {
		slog.Error("failed to upsert fear & greed history", "error", err)
		return 0
	}
	return len(rows)
}

// Normalize はプロバイダの生レコードをドメイン行へ変換します。
// タイムスタンプが解釈できないレコードは不正として (zero, false) を返します。
func Normalize(rec SentimentRecord, ingestedAt time.Time) (entity.FearGreed, bool) {
	ts, ok := parseTimestamp(rec.Timestamp)
	if !ok {
		return entity.FearGreed{}, false
	}

	value, ok := parseValue(rec.Value)
	if !ok {
		return entity.FearGreed{}, false
	}
	// 四捨五入してから [0, 100] にクランプ
	v := int(math.Round(value))
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}

	classification := strings.TrimSpace(rec.Classification)
	if classification == "" {
		classification = entity.ClassificationUnknown
	}

	return entity.FearGreed{
		Timestamp:      ts.UTC().Truncate(24 * time.Hour),
		Value:          v,
		Classification: classification,
		IngestedAt:     ingestedAt.UTC(),
	}, true
}

// parseTimestamp はISO-8601（Zあり/なし）、日付のみ、epoch秒（数値/数値文字列）
// を受け付けてUTCの時刻に変換します。
func parseTimestamp(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC(), true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range []string{
			time.RFC3339,
			"2006-01-02T15:04:05",
			"2006-01-02",
		} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
		// epoch秒の文字列（CMCの履歴APIはこの形式）
		if sec, err := strconv.ParseFloat(s, 64); err == nil {
			return epochToTime(sec), true
		}
		return time.Time{}, false
	case json.Number:
		if sec, err := v.Float64(); err == nil {
			return epochToTime(sec), true
		}
		return time.Time{}, false
	case float64:
		return epochToTime(v), true
	case int:
		return epochToTime(float64(v)), true
	case int64:
		return epochToTime(float64(v)), true
	default:
		return time.Time{}, false
	}
}

func epochToTime(sec float64) time.Time {
	return time.Unix(int64(sec), 0).UTC()
}

// parseValue は数値・json.Number・数値文字列を受け付けます。
func parseValue(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
