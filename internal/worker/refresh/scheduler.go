package refresh

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler はフィード先読みの定期実行を行う。
type Scheduler struct {
	prefetcher *Prefetcher
	logger     *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(prefetcher *Prefetcher, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		prefetcher: prefetcher,
		logger:     logger,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// 起動直後に1回実行し、以降はコンテキストがキャンセルされるまで定期実行する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("フィード先読みスケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := s.prefetcher.RunOnce(ctx); err != nil {
		s.logger.Error("フィード先読みの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("フィード先読みスケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.prefetcher.RunOnce(ctx); err != nil {
				s.logger.Error("フィード先読みの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
