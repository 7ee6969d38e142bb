// Package alertcheck はアラートルールの定期照合ジョブを提供する。
// 当日の接近天体と全ユーザーの有効なアラートルールを突き合わせ、
// マッチした組み合わせごとに通知を作成する。
package alertcheck

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/neowatch/internal/alert"
	"github.com/hitoshi/neowatch/internal/model"
	"github.com/hitoshi/neowatch/internal/repository"
)

// FeedProvider は当日の接近天体一覧の取得インターフェース。
type FeedProvider interface {
	// GetFeed は指定日付範囲の接近天体一覧を返す。
	GetFeed(ctx context.Context, startDate, endDate string) ([]model.Asteroid, error)
}

// NotificationMetrics は作成された通知数を記録するインターフェース。
type NotificationMetrics interface {
	RecordNotificationsCreated(count int)
}

// Summary は1回のチェック実行の集計結果。
type Summary struct {
	RulesChecked         int
	ObjectsChecked       int
	NotificationsCreated int
	Duration             time.Duration
}

// Checker はアラートルールの照合ジョブ。
// 通知の重複排除はDB層の一意制約(ON CONFLICT DO NOTHING)に委ねるため、
// 同一日の再実行は安全（冪等）である。
type Checker struct {
	feed             FeedProvider
	alertRepo        repository.AlertRepository
	notificationRepo repository.NotificationRepository
	logger           *slog.Logger
	metrics          NotificationMetrics // nilの場合は記録しない
	now              func() time.Time
}

// NewChecker はCheckerの新しいインスタンスを生成する。
func NewChecker(
	feed FeedProvider,
	alertRepo repository.AlertRepository,
	notificationRepo repository.NotificationRepository,
	logger *slog.Logger,
) *Checker {
	return &Checker{
		feed:             feed,
		alertRepo:        alertRepo,
		notificationRepo: notificationRepo,
		logger:           logger,
		now:              time.Now,
	}
}

// WithMetrics は通知メトリクスの記録先を設定する。
func (c *Checker) WithMetrics(m NotificationMetrics) *Checker {
	c.metrics = m
	return c
}

// RunOnce はアラートチェックを1回実行する。
// 天体一覧またはルール一覧の取得に失敗した場合は通知を作らずに中断する。
// 個別の通知挿入の失敗はログに記録して処理を継続する。
func (c *Checker) RunOnce(ctx context.Context) (*Summary, error) {
	start := c.now()
	today := start.UTC().Format("2006-01-02")

	c.logger.Info("アラートチェックを開始します",
		slog.String("date", today),
	)

	asteroids, err := c.feed.GetFeed(ctx, today, today)
	if err != nil {
		c.logger.Error("当日の天体一覧の取得に失敗したためチェックを中断します",
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	summary := &Summary{ObjectsChecked: len(asteroids)}

	if len(asteroids) == 0 {
		summary.Duration = c.now().Sub(start)
		c.logger.Info("当日の接近天体がないためスキップします")
		return summary, nil
	}

	rules, err := c.alertRepo.ListActive(ctx)
	if err != nil {
		c.logger.Error("有効アラートルールの取得に失敗したためチェックを中断します",
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	summary.RulesChecked = len(rules)

	if len(rules) == 0 {
		summary.Duration = c.now().Sub(start)
		c.logger.Info("有効なアラートルールがないためスキップします")
		return summary, nil
	}

	for i := range rules {
		rule := &rules[i]
		for j := range asteroids {
			asteroid := &asteroids[j]
			if !alert.Matches(rule, asteroid) {
				continue
			}

			notification := &model.Notification{
				ID:           uuid.New().String(),
				UserID:       rule.UserID,
				AlertID:      rule.ID,
				NeoID:        asteroid.NeoID,
				AsteroidName: asteroid.Name,
				ApproachDate: today,
				Message:      alert.BuildMessage(rule, asteroid),
				TriggeredAt:  c.now(),
			}

			created, err := c.notificationRepo.Insert(ctx, notification)
			if err != nil {
				c.logger.Error("通知の作成に失敗しました",
					slog.String("user_id", rule.UserID),
					slog.String("alert_id", rule.ID),
					slog.String("neo_id", asteroid.NeoID),
					slog.String("error", err.Error()),
				)
				continue
			}
			if created {
				summary.NotificationsCreated++
			}
		}
	}

	if summary.NotificationsCreated > 0 && c.metrics != nil {
		c.metrics.RecordNotificationsCreated(summary.NotificationsCreated)
	}

	summary.Duration = c.now().Sub(start)
	c.logger.Info("アラートチェックが完了しました",
		slog.Int("rules_checked", summary.RulesChecked),
		slog.Int("objects_checked", summary.ObjectsChecked),
		slog.Int("notifications_created", summary.NotificationsCreated),
		slog.Float64("duration_ms", float64(summary.Duration.Milliseconds())),
	)

	return summary, nil
}
