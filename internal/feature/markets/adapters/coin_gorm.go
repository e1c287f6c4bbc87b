package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"crypto_backend/internal/feature/markets/domain/entity"
	"crypto_backend/internal/feature/markets/usecase"
	platformdb "crypto_backend/internal/platform/db"
)

// CoinModel は coins テーブルの1行です。リスト/マップ項目はJSON文字列で保持します。
type CoinModel struct {
	CoinID      string    `gorm:"primaryKey;size:128"`
	Symbol      string    `gorm:"size:32;not null"`
	Name        string    `gorm:"size:256;not null"`
	Image       string    `gorm:"size:512"`
	Categories  string    `gorm:"type:text"` // JSON array of display names
	CategoryIDs string    `gorm:"type:text"` // JSON array of slug IDs
	Links       string    `gorm:"type:text"` // JSON object of social links
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the database table name.
func (CoinModel) TableName() string {
	return "coins"
}

type coinGorm struct {
	db *gorm.DB
}

var _ usecase.CoinRepository = (*coinGorm)(nil)

// NewCoinRepository は銘柄メタデータ用のGORMリポジトリを生成します。
func NewCoinRepository(db *gorm.DB) *coinGorm {
	return &coinGorm{db: db}
}

var coinUpdateCols = []string{
	"symbol", "name", "image", "categories", "category_ids", "links", "updated_at",
}

func toCoinModel(c entity.Coin) (CoinModel, error) {
	categories, err := json.Marshal(c.Categories)
	if err != nil {
		return CoinModel{}, err
	}
	categoryIDs, err := json.Marshal(c.CategoryIDs)
	if err != nil {
		return CoinModel{}, err
	}
	links, err := json.Marshal(c.Links)
	if err != nil {
		return CoinModel{}, err
	}
	return CoinModel{
		CoinID:      c.ID,
		Symbol:      c.Symbol,
		Name:        c.Name,
		Image:       c.Image,
		Categories:  string(categories),
		CategoryIDs: string(categoryIDs),
		Links:       string(links),
		UpdatedAt:   c.UpdatedAt,
	}, nil
}

func fromCoinModel(m CoinModel) entity.Coin {
	c := entity.Coin{
		ID:        m.CoinID,
		Symbol:    m.Symbol,
		Name:      m.Name,
		Image:     m.Image,
		UpdatedAt: m.UpdatedAt,
	}
	// 壊れたJSONは空扱い（読み出しを止めない）
	_ = json.Unmarshal([]byte(m.Categories), &c.Categories)
	_ = json.Unmarshal([]byte(m.CategoryIDs), &c.CategoryIDs)
	_ = json.Unmarshal([]byte(m.Links), &c.Links)
	return c
}

// UpsertCoins は銘柄メタデータをバッチでupsertします。
func (r *coinGorm) UpsertCoins(ctx context.Context, coins []entity.Coin) error {
	if len(coins) == 0 {
		return nil
	}
	ms := make([]CoinModel, 0, len(coins))
	for _, c := range coins {
		m, err := toCoinModel(c)
		if err != nil {
			return err
		}
		ms = append(ms, m)
	}

	onConflict, err := platformdb.OnConflictUpsert(r.db, []string{"coin_id"}, coinUpdateCols)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(onConflict).Create(&ms).Error
}

// FindByID は1銘柄のメタデータを返します。見つからない場合は (nil, nil)。
func (r *coinGorm) FindByID(ctx context.Context, coinID string) (*entity.Coin, error) {
	var row CoinModel
	err := r.db.WithContext(ctx).First(&row, "coin_id = ?", coinID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	c := fromCoinModel(row)
	return &c, nil
}

// StaleCoinIDs は入力ID群のうちカテゴリ更新が必要なものを返します。
// 対象: coins に行がない / category_ids が空 / updated_at が cutoff より古い。
// 入力の順序を保ちます。
func (r *coinGorm) StaleCoinIDs(ctx context.Context, ids []string, cutoff time.Time) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var rows []CoinModel
	if err := r.db.WithContext(ctx).
		Where("coin_id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	fresh := make(map[string]bool, len(rows))
	for _, m := range rows {
		var categoryIDs []string
		_ = json.Unmarshal([]byte(m.CategoryIDs), &categoryIDs)
		if len(categoryIDs) > 0 && !m.UpdatedAt.Before(cutoff) {
			fresh[m.CoinID] = true
		}
	}

	stale := make([]string, 0, len(ids))
	for _, id := range ids {
		if !fresh[id] {
			stale = append(stale, id)
		}
	}
	return stale, nil
}
