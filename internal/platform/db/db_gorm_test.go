package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOpenDB_SQLite はSQLiteドライバ指定で接続が開けることを検証します。
func TestOpenDB_SQLite(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", ":memory:")

	gdb := OpenDB()
	require.NotNil(t, gdb)
	assert.Equal(t, "sqlite", gdb.Dialector.Name())
}

// TestOpenDB_DefaultDriver はDB_DRIVER未設定時にSQLiteが選択されることを検証します。
func TestOpenDB_DefaultDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("DB_PATH", ":memory:")

	gdb := OpenDB()
	require.NotNil(t, gdb)
	assert.Equal(t, "sqlite", gdb.Dialector.Name())
}
