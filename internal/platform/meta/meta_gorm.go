// Package meta はスケジューラ/ETLの簿記用キー・バリューストアを提供します。
package meta

import (
	"context"
	"errors"

	"gorm.io/gorm"

	platformdb "crypto_backend/internal/platform/db"
)

// 本体コードが読み書きするメタキー。
const (
	KeyLastRefreshAt        = "last_refresh_at"
	KeyDataSource           = "data_source"
	KeyLastETLItems         = "last_etl_items"
	KeyBootstrapDone        = "bootstrap_done"
	KeyFearGreedLastRefresh = "fear_greed_last_refresh"
)

// Model は meta テーブルの1行（key → string value）です。
type Model struct {
	Key   string `gorm:"primaryKey;size:64"`
	Value string `gorm:"not null"`
}

// TableName returns the database table name.
func (Model) TableName() string {
	return "meta"
}

// Repository は meta テーブルへのアクセスを提供します。
type Repository struct {
	db *gorm.DB
}

// NewRepository は新しいRepositoryを生成します。
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Get はキーの値を返します。未設定のキーは空文字列を返し、エラーにはしません。
func (r *Repository) Get(ctx context.Context, key string) (string, error) {
	var row Model
	err := r.db.WithContext(ctx).First(&row, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return row.Value, nil
}

// Set はキーの値をupsertします。
func (r *Repository) Set(ctx context.Context, key, value string) error {
	onConflict, err := platformdb.OnConflictUpsert(r.db, []string{"key"}, []string{"value"})
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(onConflict).
		Create(&Model{Key: key, Value: value}).Error
}
