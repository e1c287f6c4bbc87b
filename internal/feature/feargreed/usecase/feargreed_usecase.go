package usecase

import (
	"context"
	"time"

	"crypto_backend/internal/feature/feargreed/domain/entity"
)

const (
	// DefaultHistoryDays は履歴クエリのデフォルト日数です。
	DefaultHistoryDays = 30
	// MaxHistoryDays は履歴クエリの最大日数です。
	MaxHistoryDays = 365
)

// fearGreedUsecase はセンチメント指数読み取りのユースケースを定義します。
type fearGreedUsecase struct {
	repo FearGreedRepository
	now  func() time.Time
}

// NewFearGreedUsecase はfearGreedUsecaseの新しいインスタンスを生成します。
func NewFearGreedUsecase(repo FearGreedRepository) *fearGreedUsecase {
	return &fearGreedUsecase{repo: repo, now: time.Now}
}

// GetLatest は最新の指数を返します。データがない場合は (nil, nil)。
func (fu *fearGreedUsecase) GetLatest(ctx context.Context) (*entity.FearGreed, error) {
	return fu.repo.Latest(ctx)
}

// GetHistory は直近days日分の履歴を新しい順で返します。
func (fu *fearGreedUsecase) GetHistory(ctx context.Context, days int) ([]entity.FearGreed, error) {
	if days <= 0 || days > MaxHistoryDays {
		days = DefaultHistoryDays
	}
	since := fu.now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -days)
	return fu.repo.History(ctx, since)
}
