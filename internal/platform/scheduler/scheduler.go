// Package scheduler drives the periodic refresh loop: one ETL pass for the
// markets data plus one fear & greed sync per cycle.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

const (
	// DefaultGranularity は更新間隔が未設定・不正な場合に使う周期です。
	DefaultGranularity = 12 * time.Hour
	// DefaultShutdownTimeout は停止時に実行中サイクルの完了を待つ上限です。
	DefaultShutdownTimeout = 30 * time.Second
)

// Runner は1回の市場データETLパスを実行します。
type Runner interface {
	Run(ctx context.Context) (int, error)
}

// Syncer は1回のFear & Greed同期を実行し、処理した行数を返します。
type Syncer interface {
	Sync(ctx context.Context) (int, error)
}

// Scheduler は固定周期で更新サイクルを回すループです。周期は毎イテレーション
// granularity() から読み直すため、環境変数の変更は次のサイクルから反映されます。
type Scheduler struct {
	etl             Runner
	sync            Syncer
	granularity     func() time.Duration
	shutdownTimeout time.Duration
}

// NewScheduler は新しいSchedulerを生成します。syncはnil可（Fear & Greed同期なし）。
func NewScheduler(etl Runner, sync Syncer, granularity func() time.Duration) *Scheduler {
	if granularity == nil {
		granularity = func() time.Duration { return DefaultGranularity }
	}
	return &Scheduler{
		etl:             etl,
		sync:            sync,
		granularity:     granularity,
		shutdownTimeout: DefaultShutdownTimeout,
	}
}

// Start はループを開始し、ctxがキャンセルされるまでブロックします。
//
// サイクル内のエラーはすべてログに記録するだけで、ループ自体は止めません。
// 一時的なプロバイダ障害やバジェット切れで常駐プロセスが死ぬべきではないためです。
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("scheduler started", "granularity", s.interval())

	// 起動直後に1回実行してから周期待ちに入る
	s.runCycle(ctx)

	for {
		interval := s.interval()
		timer := time.NewTimer(interval)

		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("scheduler stopped", "reason", ctx.Err())
			return
		case <-timer.C:
		}

		s.runCycle(ctx)
	}
}

// interval は設定値を読み直し、不正な値をデフォルトに丸めます。
func (s *Scheduler) interval() time.Duration {
	d := s.granularity()
	if d <= 0 {
		return DefaultGranularity
	}
	return d
}

// runCycle は1サイクル（ETL＋同期）を子goroutineで実行します。
// 実行中にctxがキャンセルされた場合はshutdownTimeoutを上限に完了を待ちます。
func (s *Scheduler) runCycle(ctx context.Context) {
	done := make(chan struct{})

	go func() {
		defer close(done)
		started := time.Now()

		items, err := s.etl.Run(ctx)
		if err != nil {
			slog.Error("etl pass failed", "error", err)
		} else {
			slog.Info("etl pass completed", "items", items, "took", time.Since(started))
		}

		if s.sync != nil {
			rows, err := s.sync.Sync(ctx)
			if err != nil {
				slog.Error("fear & greed sync failed", "error", err)
			} else if rows > 0 {
				slog.Info("fear & greed sync completed", "rows", rows)
			}
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// キャンセルはctx経由でサイクル内に伝播済み。後始末の猶予だけ与える。
		select {
		case <-done:
		case <-time.After(s.shutdownTimeout):
			slog.Warn("cycle did not finish within shutdown timeout")
		}
	}
}
