// Package cleanup は蓄積データの自動削除ジョブを提供する。
// 保持期間を超過した既読通知と、長期間更新のない天体キャッシュ行を
// 日次バッチで削除する。close_approachesはCASCADE削除で自動的に処理される。
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// NotificationPruner は既読通知の一括削除を抽象化するインターフェース。
type NotificationPruner interface {
	DeleteReadBefore(ctx context.Context, before time.Time) (int64, error)
}

// AsteroidPruner は未更新天体行の一括削除を抽象化するインターフェース。
type AsteroidPruner interface {
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

// CleanupJob は保持期間を超過したデータの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	notifications NotificationPruner
	asteroids     AsteroidPruner
	logger        *slog.Logger
	now           func() time.Time

	NotificationRetentionDays int // 既読通知の保持日数（デフォルト: 30）
	AsteroidRetentionDays     int // 天体行のlast_fetched基準の保持日数（デフォルト: 30）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は通知・天体とも30日。
func NewCleanupJob(notifications NotificationPruner, asteroids AsteroidPruner, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		notifications:             notifications,
		asteroids:                 asteroids,
		logger:                    logger,
		now:                       time.Now,
		NotificationRetentionDays: 30,
		AsteroidRetentionDays:     30,
	}
}

// Run は保持期間を超過した既読通知と未更新天体行を削除する。
// 通知の削除に失敗しても天体の削除は試行し、最初のエラーを返す。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	base := j.now()

	var firstErr error

	notificationCutoff := base.AddDate(0, 0, -j.NotificationRetentionDays)
	notificationsDeleted, err := j.notifications.DeleteReadBefore(ctx, notificationCutoff)
	if err != nil {
		j.logger.Error("既読通知のクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.NotificationRetentionDays),
		)
		firstErr = err
	}

	asteroidCutoff := base.AddDate(0, 0, -j.AsteroidRetentionDays)
	asteroidsDeleted, err := j.asteroids.DeleteStale(ctx, asteroidCutoff)
	if err != nil {
		j.logger.Error("未更新天体のクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.AsteroidRetentionDays),
		)
		if firstErr == nil {
			firstErr = err
		}
	}

	if firstErr != nil {
		return firstErr
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("notifications_deleted", notificationsDeleted),
		slog.Int64("asteroids_deleted", asteroidsDeleted),
		slog.Int("notification_retention_days", j.NotificationRetentionDays),
		slog.Int("asteroid_retention_days", j.AsteroidRetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
