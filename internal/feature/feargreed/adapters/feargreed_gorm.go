package adapters

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"crypto_backend/internal/feature/feargreed/domain/entity"
	"crypto_backend/internal/feature/feargreed/usecase"
	platformdb "crypto_backend/internal/platform/db"
)

// FearGreedModel は fear_greed テーブルの1行（UTC日単位）です。
type FearGreedModel struct {
	Timestamp      time.Time `gorm:"primaryKey"`
	Value          int       `gorm:"not null"`
	Classification string    `gorm:"size:32;not null"`
	IngestedAt     time.Time `gorm:"not null"`
}

// TableName returns the database table name.
func (FearGreedModel) TableName() string {
	return "fear_greed"
}

type fearGreedGorm struct {
	db *gorm.DB
}

var _ usecase.FearGreedRepository = (*fearGreedGorm)(nil)

// NewFearGreedRepository はセンチメント指数用のGORMリポジトリを生成します。
func NewFearGreedRepository(db *gorm.DB) *fearGreedGorm {
	return &fearGreedGorm{db: db}
}

func toModel(e entity.FearGreed) FearGreedModel {
	return FearGreedModel{
		Timestamp:      e.Timestamp,
		Value:          e.Value,
		Classification: e.Classification,
		IngestedAt:     e.IngestedAt,
	}
}

func fromModel(m FearGreedModel) entity.FearGreed {
	return entity.FearGreed{
		Timestamp:      m.Timestamp,
		Value:          m.Value,
		Classification: m.Classification,
		IngestedAt:     m.IngestedAt,
	}
}

// Upsert は日付キーでのupsertを行います。同じ日の再取り込みは上書きになります。
func (r *fearGreedGorm) Upsert(ctx context.Context, rows []entity.FearGreed) error {
	if len(rows) == 0 {
		return nil
	}
	ms := make([]FearGreedModel, 0, len(rows))
	for _, e := range rows {
		ms = append(ms, toModel(e))
	}

	onConflict, err := platformdb.OnConflictUpsert(r.db, []string{"timestamp"},
		[]string{"value", "classification", "ingested_at"})
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(onConflict).Create(&ms).Error
}

// Latest は最新の1行を返します。データがない場合は (nil, nil)。
func (r *fearGreedGorm) Latest(ctx context.Context) (*entity.FearGreed, error) {
	var row FearGreedModel
	err := r.db.WithContext(ctx).Order("timestamp DESC").First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	e := fromModel(row)
	return &e, nil
}

// History は since 以降の行を新しい順で返します。
func (r *fearGreedGorm) History(ctx context.Context, since time.Time) ([]entity.FearGreed, error) {
	var rows []FearGreedModel
	err := r.db.WithContext(ctx).
		Where("timestamp >= ?", since).
		Order("timestamp DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]entity.FearGreed, 0, len(rows))
	for _, m := range rows {
		out = append(out, fromModel(m))
	}
	return out, nil
}

// HasDate は指定UTC日の行が存在するかを返します。
func (r *fearGreedGorm) HasDate(ctx context.Context, day time.Time) (bool, error) {
	day = day.UTC().Truncate(24 * time.Hour)
	var count int64
	err := r.db.WithContext(ctx).
		Model(&FearGreedModel{}).
		Where("timestamp = ?", day).
		Count(&count).Error
	return count > 0, err
}

// Span は保存済みデータの最古・最新タイムスタンプと行数を返します。
func (r *fearGreedGorm) Span(ctx context.Context) (oldest, newest time.Time, count int64, err error) {
	err = r.db.WithContext(ctx).Model(&FearGreedModel{}).Count(&count).Error
	if err != nil || count == 0 {
		return time.Time{}, time.Time{}, count, err
	}

	var first, last FearGreedModel
	if err = r.db.WithContext(ctx).Order("timestamp ASC").First(&first).Error; err != nil {
		return time.Time{}, time.Time{}, count, err
	}
	if err = r.db.WithContext(ctx).Order("timestamp DESC").First(&last).Error; err != nil {
		return time.Time{}, time.Time{}, count, err
	}
	return first.Timestamp, last.Timestamp, count, nil
}
