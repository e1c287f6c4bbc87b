package budget

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestBudget は一時ディレクトリに永続化するテスト用バジェットを生成します。
func newTestBudget(t *testing.T, quota int) *CallBudget {
	t.Helper()
	return NewCallBudget(filepath.Join(t.TempDir(), "call_budget.json"), quota)
}

// TestCallBudget_SpendAndCanSpend は消費と残量判定の基本シナリオを検証します。
func TestCallBudget_SpendAndCanSpend(t *testing.T) {
	t.Parallel()

	b := newTestBudget(t, 5)

	require.NoError(t, b.Spend(3, ""))
	assert.Equal(t, 3, b.MonthlyCallCount())
	assert.False(t, b.CanSpend(3), "3 + 3 > 5 should be rejected")
	assert.True(t, b.CanSpend(2), "3 + 2 <= 5 should be allowed")
}

// TestCallBudget_SpendClampsNegative は0以下の消費が無視されることを検証します。
func TestCallBudget_SpendClampsNegative(t *testing.T) {
	t.Parallel()

	b := newTestBudget(t, 10)

	require.NoError(t, b.Spend(-4, "markets"))
	require.NoError(t, b.Spend(0, "markets"))
	assert.Equal(t, 0, b.MonthlyCallCount())
	assert.Empty(t, b.CategoryCounts())
}

// TestCallBudget_Categories はカテゴリ別の内訳とデフォルトカテゴリを検証します。
func TestCallBudget_Categories(t *testing.T) {
	t.Parallel()

	b := newTestBudget(t, 100)

	require.NoError(t, b.Spend(2, "cmc_latest"))
	require.NoError(t, b.Spend(5, "cmc_history"))
	require.NoError(t, b.Spend(1, ""))

	counts := b.CategoryCounts()
	assert.Equal(t, 2, counts["cmc_latest"])
	assert.Equal(t, 5, counts["cmc_history"])
	assert.Equal(t, 1, counts[DefaultCategory])
	assert.Equal(t, 8, b.MonthlyCallCount())

	// 返り値の変更が内部状態に影響しないこと
	counts["cmc_latest"] = 999
	assert.Equal(t, 2, b.CategoryCounts()["cmc_latest"])
}

// TestCallBudget_MonthRollover は月替わりで全カウンタがリセットされることを検証します。
func TestCallBudget_MonthRollover(t *testing.T) {
	t.Parallel()

	b := newTestBudget(t, 50)

	current := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return current }

	require.NoError(t, b.Spend(10, "markets"))
	assert.Equal(t, 10, b.MonthlyCallCount())

	// 翌月に進める
	current = time.Date(2026, 9, 1, 0, 0, 1, 0, time.UTC)

	assert.Equal(t, 0, b.MonthlyCallCount())
	assert.Empty(t, b.CategoryCounts())
	assert.True(t, b.CanSpend(50))
}

// TestCallBudget_PersistedMonthStale は別の月として永続化された状態がリセットされることを検証します。
func TestCallBudget_PersistedMonthStale(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "call_budget.json")
	raw, err := json.Marshal(state{
		Month:            "1999-01-01",
		MonthlyCallCount: 42,
		Categories:       map[string]int{"markets": 42},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	b := NewCallBudget(path, 100)
	assert.Equal(t, 0, b.MonthlyCallCount())
	assert.Empty(t, b.CategoryCounts())
}

// TestCallBudget_CorruptFileSelfHeals は壊れたJSONがデフォルトに置き換えられることを検証します。
func TestCallBudget_CorruptFileSelfHeals(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "call_budget.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	b := NewCallBudget(path, 10)
	assert.Equal(t, 0, b.MonthlyCallCount())
	assert.True(t, b.CanSpend(10))

	// 消費できること（自己修復後に通常動作）
	require.NoError(t, b.Spend(1, ""))
	assert.Equal(t, 1, b.MonthlyCallCount())
}

// TestCallBudget_PersistenceRoundTrip は永続化した状態が再ロードで復元されることを検証します。
func TestCallBudget_PersistenceRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "call_budget.json")

	b := NewCallBudget(path, 30)
	require.NoError(t, b.Spend(7, "markets"))
	require.NoError(t, b.Spend(3, "categories"))

	reloaded := NewCallBudget(path, 30)
	assert.Equal(t, 10, reloaded.MonthlyCallCount())
	assert.Equal(t, 7, reloaded.CategoryCounts()["markets"])
	assert.Equal(t, 3, reloaded.CategoryCounts()["categories"])
}

// TestCallBudget_SyncUsage は外部の正とする値での上書きと負値の無視を検証します。
func TestCallBudget_SyncUsage(t *testing.T) {
	t.Parallel()

	b := newTestBudget(t, 100)
	require.NoError(t, b.Spend(5, "markets"))

	require.NoError(t, b.SyncUsage(20, map[string]int{"markets": 15, "bogus": -3}))
	assert.Equal(t, 20, b.MonthlyCallCount())
	counts := b.CategoryCounts()
	assert.Equal(t, 15, counts["markets"])
	assert.NotContains(t, counts, "bogus", "negative category counts are ignored")

	// 負のトータルは無視される
	require.NoError(t, b.SyncUsage(-1, nil))
	assert.Equal(t, 20, b.MonthlyCallCount())
}
