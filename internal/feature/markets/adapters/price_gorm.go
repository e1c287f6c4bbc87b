package adapters

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"crypto_backend/internal/feature/markets/domain/entity"
	"crypto_backend/internal/feature/markets/usecase"
	platformdb "crypto_backend/internal/platform/db"
)

// LatestPriceModel は latest_prices テーブルの1行です。
// (coin_id, vs_currency) ごとに常に上書きされ、履歴は持ちません。
type LatestPriceModel struct {
	CoinID                string    `gorm:"primaryKey;size:128"`
	VsCurrency            string    `gorm:"primaryKey;size:16"`
	Price                 float64   `gorm:"not null"`
	MarketCap             float64   `gorm:"not null;default:0"`
	FullyDilutedValuation float64   `gorm:"not null;default:0"`
	Volume24h             float64   `gorm:"not null;default:0"`
	Rank                  int       `gorm:"not null;default:0"`
	PctChange24h          float64   `gorm:"not null;default:0"`
	PctChange7d           float64   `gorm:"not null;default:0"`
	PctChange30d          float64   `gorm:"not null;default:0"`
	SnapshotAt            time.Time `gorm:"not null"`
}

// TableName returns the database table name.
func (LatestPriceModel) TableName() string {
	return "latest_prices"
}

// PriceModel は prices テーブル（スナップショット履歴）の1行です。
// 同一ティックの再取り込みを許容するため、主キー3点でupsertします。
type PriceModel struct {
	CoinID                string    `gorm:"primaryKey;size:128"`
	VsCurrency            string    `gorm:"primaryKey;size:16"`
	SnapshotAt            time.Time `gorm:"primaryKey"`
	Price                 float64   `gorm:"not null"`
	MarketCap             float64   `gorm:"not null;default:0"`
	FullyDilutedValuation float64   `gorm:"not null;default:0"`
	Volume24h             float64   `gorm:"not null;default:0"`
	Rank                  int       `gorm:"not null;default:0"`
	PctChange24h          float64   `gorm:"not null;default:0"`
	PctChange7d           float64   `gorm:"not null;default:0"`
	PctChange30d          float64   `gorm:"not null;default:0"`
}

// TableName returns the database table name.
func (PriceModel) TableName() string {
	return "prices"
}

type priceGorm struct {
	db *gorm.DB
}

var _ usecase.PriceRepository = (*priceGorm)(nil)

// NewPriceRepository は価格スナップショット用のGORMリポジトリを生成します。
func NewPriceRepository(db *gorm.DB) *priceGorm {
	return &priceGorm{db: db}
}

// 非キー列（latest_prices用）。衝突時はすべて上書きする。
var latestPriceUpdateCols = []string{
	"price", "market_cap", "fully_diluted_valuation", "volume24h",
	"rank", "pct_change24h", "pct_change7d", "pct_change30d", "snapshot_at",
}

// 非キー列（prices用）。snapshot_atはキー側に含まれる。
var priceUpdateCols = []string{
	"price", "market_cap", "fully_diluted_valuation", "volume24h",
	"rank", "pct_change24h", "pct_change7d", "pct_change30d",
}

func toLatestModel(s entity.MarketSnapshot) LatestPriceModel {
	return LatestPriceModel{
		CoinID:                s.CoinID,
		VsCurrency:            s.VsCurrency,
		Price:                 s.Price,
		MarketCap:             s.MarketCap,
		FullyDilutedValuation: s.FullyDilutedValuation,
		Volume24h:             s.Volume24h,
		Rank:                  s.Rank,
		PctChange24h:          s.PctChange24h,
		PctChange7d:           s.PctChange7d,
		PctChange30d:          s.PctChange30d,
		SnapshotAt:            s.SnapshotAt,
	}
}

func toPriceModel(s entity.MarketSnapshot) PriceModel {
	return PriceModel{
		CoinID:                s.CoinID,
		VsCurrency:            s.VsCurrency,
		SnapshotAt:            s.SnapshotAt,
		Price:                 s.Price,
		MarketCap:             s.MarketCap,
		FullyDilutedValuation: s.FullyDilutedValuation,
		Volume24h:             s.Volume24h,
		Rank:                  s.Rank,
		PctChange24h:          s.PctChange24h,
		PctChange7d:           s.PctChange7d,
		PctChange30d:          s.PctChange30d,
	}
}

func fromLatestModel(m LatestPriceModel) entity.MarketSnapshot {
	return entity.MarketSnapshot{
		CoinID:                m.CoinID,
		VsCurrency:            m.VsCurrency,
		Price:                 m.Price,
		MarketCap:             m.MarketCap,
		FullyDilutedValuation: m.FullyDilutedValuation,
		Volume24h:             m.Volume24h,
		Rank:                  m.Rank,
		PctChange24h:          m.PctChange24h,
		PctChange7d:           m.PctChange7d,
		PctChange30d:          m.PctChange30d,
		SnapshotAt:            m.SnapshotAt,
	}
}

// UpsertSnapshot は1回のETLパス分の行を単一トランザクションで書き込みます。
// latest_prices は上書き、prices は (coin, currency, snapshot_at) 単位で追記。
// どこかで失敗した場合は全体がロールバックされ、部分的なコミットは起きません。
func (r *priceGorm) UpsertSnapshot(ctx context.Context, rows []entity.MarketSnapshot) error {
	if len(rows) == 0 {
		return nil
	}

	latest := make([]LatestPriceModel, 0, len(rows))
	hist := make([]PriceModel, 0, len(rows))
	for _, s := range rows {
		latest = append(latest, toLatestModel(s))
		hist = append(hist, toPriceModel(s))
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		latestClause, err := platformdb.OnConflictUpsert(tx, []string{"coin_id", "vs_currency"}, latestPriceUpdateCols)
		if err != nil {
			return err
		}
		if err := tx.Clauses(latestClause).Create(&latest).Error; err != nil {
			return err
		}

		histClause, err := platformdb.OnConflictUpsert(tx, []string{"coin_id", "vs_currency", "snapshot_at"}, priceUpdateCols)
		if err != nil {
			return err
		}
		return tx.Clauses(histClause).Create(&hist).Error
	})
}

// TopByRank は指定通貨の最新スナップショットをランク昇順で返します。
func (r *priceGorm) TopByRank(ctx context.Context, vs string, limit int) ([]entity.MarketSnapshot, error) {
	var rows []LatestPriceModel
	q := r.db.WithContext(ctx).
		Where("vs_currency = ?", vs).
		Order("rank ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entity.MarketSnapshot, 0, len(rows))
	for _, m := range rows {
		out = append(out, fromLatestModel(m))
	}
	return out, nil
}

// FindLatest は1銘柄の最新スナップショットを返します。見つからない場合は (nil, nil)。
func (r *priceGorm) FindLatest(ctx context.Context, vs, coinID string) (*entity.MarketSnapshot, error) {
	var row LatestPriceModel
	err := r.db.WithContext(ctx).
		First(&row, "vs_currency = ? AND coin_id = ?", vs, coinID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	s := fromLatestModel(row)
	return &s, nil
}

// CountHistory は履歴テーブルの行数を返します（再取り込みの冪等性検証用）。
func (r *priceGorm) CountHistory(ctx context.Context, vs string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&PriceModel{}).
		Where("vs_currency = ?", vs).
		Count(&count).Error
	return count, err
}
