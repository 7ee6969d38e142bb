package alertcheck

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler はアラートチェックの定期実行を行う。
type Scheduler struct {
	checker *Checker
	logger  *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(checker *Checker, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		checker: checker,
		logger:  logger,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// 起動直後に1回実行し、以降はコンテキストがキャンセルされるまで定期実行する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("アラートチェックスケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if _, err := s.checker.RunOnce(ctx); err != nil {
		s.logger.Error("アラートチェックの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("アラートチェックスケジューラを停止しました")
			return
		case <-ticker.C:
			if _, err := s.checker.RunOnce(ctx); err != nil {
				s.logger.Error("アラートチェックの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
