// Package budget implements a persisted monthly call budget for external
// data providers. The budget gates outbound calls against a quota that
// resets on calendar-month rollover, with a per-category breakdown.
package budget

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultCategory is the category used when Spend is called with an empty one.
const DefaultCategory = "uncategorized"

// state is the JSON document persisted to disk.
// month is normalized to the ISO date of the first day of the month.
type state struct {
	Month            string         `json:"month"`
	MonthlyCallCount int            `json:"monthly_call_count"`
	Categories       map[string]int `json:"categories"`
}

// CallBudget tracks and persists the number of provider calls made in the
// current calendar month.
//
// The budget file and the database are deliberately not updated in one
// transaction: a crash between an ETL commit and Spend can leave the counter
// under-counted for that month. SyncUsage exists to re-align the counter
// with the provider's own authoritative usage numbers.
type CallBudget struct {
	mu    sync.Mutex
	path  string
	quota int
	state state
	now   func() time.Time
}

// NewCallBudget loads (or lazily creates) the budget persisted at path.
// A missing or corrupted file resets to defaults and is never fatal.
func NewCallBudget(path string, quota int) *CallBudget {
	b := &CallBudget{
		path:  path,
		quota: quota,
		now:   time.Now,
	}
	b.state = loadState(path)
	return b
}

// loadState reads the persisted JSON; corrupt payloads self-heal to defaults.
func loadState(path string) state {
	s := state{Categories: map[string]int{}}
	raw, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		slog.Warn("budget file corrupted, resetting to defaults", "path", path, "error", err)
		return state{Categories: map[string]int{}}
	}
	if s.Categories == nil {
		s.Categories = map[string]int{}
	}
	return s
}

// monthKey は月初日のISO日付（例 "2026-08-01"）を返します。
func monthKey(t time.Time) string {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}

// resetIfStaleLocked zeroes all counters when the persisted month differs
// from the current one. Must be called with the mutex held, before any
// read or write of counters.
func (b *CallBudget) resetIfStaleLocked() {
	current := monthKey(b.now())
	if b.state.Month == current {
		return
	}
	b.state = state{Month: current, Categories: map[string]int{}}
}

// CanSpend reports whether n additional calls fit within the monthly quota.
// Pure predicate: it never mutates persisted counters.
func (b *CallBudget) CanSpend(n int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfStaleLocked()
	return b.state.MonthlyCallCount+n <= b.quota
}

// Spend adds n calls (clamped to >= 0) to the total and to the named
// category, then persists synchronously. It does NOT check the quota;
// callers gate with CanSpend first so that dry-run checks stay side-effect
// free. Persistence failures propagate to the caller.
func (b *CallBudget) Spend(n int, category string) error {
	if n <= 0 {
		return nil
	}
	if category == "" {
		category = DefaultCategory
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfStaleLocked()
	b.state.MonthlyCallCount += n
	b.state.Categories[category] += n
	return b.persistLocked()
}

// SyncUsage overwrites the counters from an authoritative external source
// (e.g., the provider's usage API). Negative totals and negative category
// counts are ignored.
func (b *CallBudget) SyncUsage(monthlyCallCount int, categories map[string]int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfStaleLocked()
	if monthlyCallCount >= 0 {
		b.state.MonthlyCallCount = monthlyCallCount
	}
	if categories != nil {
		merged := map[string]int{}
		for k, v := range categories {
			if v >= 0 {
				merged[k] = v
			}
		}
		b.state.Categories = merged
	}
	return b.persistLocked()
}

// MonthlyCallCount returns the total number of calls spent this month.
func (b *CallBudget) MonthlyCallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfStaleLocked()
	return b.state.MonthlyCallCount
}

// CategoryCounts returns a copy of the per-category breakdown.
func (b *CallBudget) CategoryCounts() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfStaleLocked()
	out := make(map[string]int, len(b.state.Categories))
	for k, v := range b.state.Categories {
		out[k] = v
	}
	return out
}

// Month returns the ISO date of the first day of the current budget month.
func (b *CallBudget) Month() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfStaleLocked()
	return b.state.Month
}

// Quota returns the configured monthly quota.
func (b *CallBudget) Quota() int {
	return b.quota
}

// persistLocked writes the current state to disk. Must hold the mutex.
func (b *CallBudget) persistLocked() error {
	raw, err := json.MarshalIndent(b.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal budget state: %w", err)
	}
	if dir := filepath.Dir(b.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create budget dir: %w", err)
		}
	}
	if err := os.WriteFile(b.path, raw, 0o644); err != nil {
		return fmt.Errorf("write budget file: %w", err)
	}
	return nil
}
