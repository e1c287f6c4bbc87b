package db

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrUnsupportedDialect is returned when an upsert clause is requested for a
// database backend other than PostgreSQL or SQLite. Falling back to a plain
// insert would break re-ingestion, so this is a hard error.
var ErrUnsupportedDialect = errors.New("unsupported database dialect")

// OnConflictUpsert builds an "insert ... on conflict do update" clause keyed
// by keyCols, overwriting updateCols with the incoming values.
func OnConflictUpsert(db *gorm.DB, keyCols, updateCols []string) (clause.OnConflict, error) {
	return buildOnConflict(db.Dialector.Name(), keyCols, updateCols)
}

// buildOnConflict はダイアレクト名を検証してOnConflict句を組み立てます。
func buildOnConflict(dialect string, keyCols, updateCols []string) (clause.OnConflict, error) {
	switch dialect {
	case "postgres", "sqlite":
		// 両ダイアレクトとも ON CONFLICT (...) DO UPDATE SET をサポートする
	default:
		return clause.OnConflict{}, fmt.Errorf("%w: %s", ErrUnsupportedDialect, dialect)
	}

	cols := make([]clause.Column, 0, len(keyCols))
	for _, k := range keyCols {
		cols = append(cols, clause.Column{Name: k})
	}
	return clause.OnConflict{
		Columns:   cols,
		DoUpdates: clause.AssignmentColumns(updateCols),
	}, nil
}
