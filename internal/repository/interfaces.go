// Package repository はデータ永続化のインターフェースを定義する。
// 天体・接近イベントはPostgreSQL、日次キャッシュはRedisに保存する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/neowatch/internal/model"
)

// AsteroidRepository は天体データ（オブジェクト単位キャッシュ層）の永続化インターフェース。
type AsteroidRepository interface {
	// Upsert は天体と接近イベントを冪等にUPSERTする。
	// 天体はneo_id、接近イベントは(neo_id, epoch_ms)をキーとして重複を排除する。
	Upsert(ctx context.Context, asteroid *model.Asteroid) error

	// FindByNeoID は指定NEO IDの天体を接近イベント付きで取得する。見つからない場合はnilを返す。
	// 鮮度判定は呼び出し元がLastFetchedを見て行う。
	FindByNeoID(ctx context.Context, neoID string) (*model.Asteroid, error)

	// ListWithApproachInRange は指定日付範囲(YYYY-MM-DD、両端含む)に接近イベントを持ち、
	// last_fetchedがfreshAfter以降の天体を接近イベント付きで取得する。
	ListWithApproachInRange(ctx context.Context, startDate, endDate string, freshAfter time.Time) ([]model.Asteroid, error)

	// ListTopRisk はリスクスコア降順で天体を取得する。
	ListTopRisk(ctx context.Context, limit int) ([]model.Asteroid, error)

	// DeleteStale はlast_fetchedがbeforeより古い天体を削除し、削除件数を返す。
	// 関連する接近イベントはCASCADE削除される。
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

// DailyCacheRepository は日次キャッシュ層（日付単位の天体一覧と統計）のインターフェース。
type DailyCacheRepository interface {
	// Get は指定日付(YYYY-MM-DD)のキャッシュエントリを取得する。
	// エントリが存在しない、または鮮度期限を超えている場合はmodel.ErrCacheMissを返す。
	Get(ctx context.Context, date string) (*model.DailyEntry, error)

	// Set は日次キャッシュエントリを保存する。LastUpdatedが未設定の場合は現在時刻を刻印する。
	Set(ctx context.Context, entry *model.DailyEntry) error
}

// AlertRepository はアラートルールの永続化インターフェース。
type AlertRepository interface {
	// Create はアラートルールを作成する。
	Create(ctx context.Context, alert *model.AlertRule) error

	// FindByID は指定IDのアラートルールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.AlertRule, error)

	// ListByUser はユーザーのアラートルール一覧を作成日時降順で返す。
	ListByUser(ctx context.Context, userID string) ([]model.AlertRule, error)

	// ListActive は全ユーザーの有効なアラートルールを返す（定期チェックジョブ用）。
	ListActive(ctx context.Context) ([]model.AlertRule, error)

	// SetActive はアラートルールの有効/無効を切り替える。更新された場合はtrueを返す。
	SetActive(ctx context.Context, id string, isActive bool) (bool, error)

	// Delete は指定IDのアラートルールを削除する。削除された場合はtrueを返す。
	Delete(ctx context.Context, id string) (bool, error)
}

// NotificationRepository は通知の永続化インターフェース。
type NotificationRepository interface {
	// Insert は通知を挿入する。
	// (user_id, alert_id, neo_id, approach_date)の一意制約に衝突した場合は
	// 挿入をスキップしてfalseを返す（重複通知の排除）。
	Insert(ctx context.Context, notification *model.Notification) (bool, error)

	// ListByUser はユーザーの通知一覧をトリガー日時降順で返す。
	// unreadOnlyがtrueの場合は未読のみを返す。
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error)

	// MarkRead は指定通知を既読にする。ユーザーが所有していない場合はfalseを返す。
	MarkRead(ctx context.Context, userID, notificationID string) (bool, error)

	// MarkAllRead はユーザーの全未読通知を既読にし、更新件数を返す。
	MarkAllRead(ctx context.Context, userID string) (int64, error)

	// DeleteReadBefore はtriggered_atがbeforeより古い既読通知を削除し、削除件数を返す。
	DeleteReadBefore(ctx context.Context, before time.Time) (int64, error)
}

// WatchlistRepository はウォッチリストの永続化インターフェース。
type WatchlistRepository interface {
	// Add はウォッチリストエントリを追加する。
	// (user_id, neo_id)が既に存在する場合は追加をスキップしてfalseを返す。
	Add(ctx context.Context, entry *model.WatchlistEntry) (bool, error)

	// ListByUser はユーザーのウォッチリスト一覧を追加日時降順で返す。
	ListByUser(ctx context.Context, userID string) ([]model.WatchlistEntry, error)

	// Remove はユーザーのウォッチリストから指定NEO IDを削除する。
	// 存在しない場合はfalseを返す。
	Remove(ctx context.Context, userID, neoID string) (bool, error)
}
