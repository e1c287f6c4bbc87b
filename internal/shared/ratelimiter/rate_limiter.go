// Package ratelimiter は外部プロバイダ呼び出しの頻度を一定間隔内で制限します。
// 月次のコールバジェットとは独立した、1パス内の呼び出しペーシングです。
package ratelimiter

import (
	"log/slog"
	"time"
)

// RateLimiterInterface は、API呼び出しなどの操作の頻度を制限するインターフェースです。
type RateLimiterInterface interface {
	WaitIfNeeded()
}

// RateLimiter はウィンドウあたりの呼び出し回数を数え、超過時にブロックします。
type RateLimiter struct {
	limit     int           // 1ウィンドウあたりの上限
	interval  time.Duration // カウントをリセットする単位
	count     int
	lastReset time.Time
}

// NewRateLimiter は新しいRateLimiterのインスタンスを生成します。
func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:     limit,
		interval:  interval,
		lastReset: time.Now(),
	}
}

// WaitIfNeeded はレートリミットの上限に達しているかを確認し、必要であれば待機します。
func (rl *RateLimiter) WaitIfNeeded() {
	now := time.Now()
	// interval を過ぎたらカウントリセット
	if now.Sub(rl.lastReset) >= rl.interval {
		rl.count = 0
		rl.lastReset = now
	}

	rl.count++
	if rl.count > rl.limit {
		sleep := rl.interval - now.Sub(rl.lastReset)
		if sleep > 0 {
			slog.Info("provider rate limit hit, pausing", "limit", rl.limit, "sleep", sleep)
			time.Sleep(sleep)
		}
		rl.count = 1
		rl.lastReset = time.Now()
	}
}
