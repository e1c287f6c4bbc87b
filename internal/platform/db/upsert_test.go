package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// TestBuildOnConflict はダイアレクト検証とOnConflict句の組み立てを検証します。
func TestBuildOnConflict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		dialect     string
		keyCols     []string
		updateCols  []string
		expectError bool
	}{
		{
			name:       "postgres supported",
			dialect:    "postgres",
			keyCols:    []string{"coin_id", "vs_currency"},
			updateCols: []string{"price", "market_cap"},
		},
		{
			name:       "sqlite supported",
			dialect:    "sqlite",
			keyCols:    []string{"coin_id", "vs_currency", "snapshot_at"},
			updateCols: []string{"price"},
		},
		{
			name:        "mysql rejected",
			dialect:     "mysql",
			keyCols:     []string{"coin_id"},
			updateCols:  []string{"price"},
			expectError: true,
		},
		{
			name:        "empty dialect rejected",
			dialect:     "",
			keyCols:     []string{"coin_id"},
			updateCols:  []string{"price"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, err := buildOnConflict(tt.dialect, tt.keyCols, tt.updateCols)

			if tt.expectError {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnsupportedDialect), "error should wrap ErrUnsupportedDialect")
				return
			}

			require.NoError(t, err)
			require.Len(t, c.Columns, len(tt.keyCols))
			for i, k := range tt.keyCols {
				assert.Equal(t, k, c.Columns[i].Name)
			}
			assert.Len(t, c.DoUpdates, len(tt.updateCols))
		})
	}
}

// TestOnConflictUpsert_SQLite は実際のSQLite接続でOnConflictUpsertが句を返すことを検証します。
func TestOnConflictUpsert_SQLite(t *testing.T) {
	t.Parallel()

	gdb, err := gorm.Open(gsqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to open in-memory sqlite")

	c, err := OnConflictUpsert(gdb, []string{"key"}, []string{"value"})
	require.NoError(t, err)
	assert.Equal(t, "key", c.Columns[0].Name)
}
