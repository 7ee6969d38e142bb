package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/neowatch/internal/model"
)

// PostgresNotificationRepo はPostgreSQLを使用した通知リポジトリ。
// (user_id, alert_id, neo_id, approach_date)の一意制約により重複通知をDB層で排除する。
type PostgresNotificationRepo struct {
	db *sql.DB
}

// NewPostgresNotificationRepo はPostgresNotificationRepoを生成する。
func NewPostgresNotificationRepo(db *sql.DB) *PostgresNotificationRepo {
	return &PostgresNotificationRepo{db: db}
}

// Insert は通知を挿入する。一意制約に衝突した場合は挿入をスキップしてfalseを返す。
func (r *PostgresNotificationRepo) Insert(ctx context.Context, notification *model.Notification) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, alert_id, neo_id, asteroid_name,
		                            approach_date, message, triggered_at, is_read)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false)
		 ON CONFLICT (user_id, alert_id, neo_id, approach_date) DO NOTHING`,
		notification.ID, notification.UserID, notification.AlertID, notification.NeoID,
		notification.AsteroidName, notification.ApproachDate, notification.Message,
		notification.TriggeredAt,
	)
	if err != nil {
		return false, fmt.Errorf("通知の挿入に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("挿入件数の取得に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// ListByUser はユーザーの通知一覧をトリガー日時降順で返す。
func (r *PostgresNotificationRepo) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error) {
	query := `SELECT id, user_id, alert_id, neo_id, asteroid_name,
	                 approach_date, message, triggered_at, is_read
	          FROM notifications
	          WHERE user_id = $1`
	if unreadOnly {
		query += " AND is_read = false"
	}
	query += " ORDER BY triggered_at DESC LIMIT $2"

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.AlertID, &n.NeoID, &n.AsteroidName,
			&n.ApproachDate, &n.Message, &n.TriggeredAt, &n.IsRead,
		); err != nil {
			return nil, fmt.Errorf("通知行の読み取りに失敗しました: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("通知一覧の走査に失敗しました: %w", err)
	}

	return notifications, nil
}

// MarkRead は指定通知を既読にする。ユーザーが所有していない場合はfalseを返す。
func (r *PostgresNotificationRepo) MarkRead(ctx context.Context, userID, notificationID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = true
		 WHERE id = $1 AND user_id = $2`,
		notificationID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("通知の既読化に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// MarkAllRead はユーザーの全未読通知を既読にし、更新件数を返す。
func (r *PostgresNotificationRepo) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = true
		 WHERE user_id = $1 AND is_read = false`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("通知の一括既読化に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	return affected, nil
}

// DeleteReadBefore はtriggered_atがbeforeより古い既読通知を削除し、削除件数を返す。
func (r *PostgresNotificationRepo) DeleteReadBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE is_read = true AND triggered_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("古い既読通知の削除に失敗しました: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ NotificationRepository = (*PostgresNotificationRepo)(nil)
