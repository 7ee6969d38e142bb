package model

import "time"

// Notification はアラートルールの発火により生成された通知を表す。
// (UserID, AlertID, NeoID, ApproachDate) の組につき高々1件しか存在しない。
// この一意性はDBのユニーク制約で保証される。
type Notification struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	AlertID      string    `json:"alert_id"`
	NeoID        string    `json:"neo_id"`
	AsteroidName string    `json:"asteroid_name"`
	ApproachDate string    `json:"approach_date"` // YYYY-MM-DD（UTC）
	Message      string    `json:"message"`
	TriggeredAt  time.Time `json:"triggered_at"`
	IsRead       bool      `json:"is_read"`
}

// WatchlistEntry はユーザーのウォッチリストの1エントリを表す。
// (UserID, NeoID) の組は一意。
type WatchlistEntry struct {
	ID      string    `json:"id"`
	UserID  string    `json:"user_id"`
	NeoID   string    `json:"neo_id"`
	Name    string    `json:"name"` // 登録時点の天体名（再フェッチなしの表示用）
	AddedAt time.Time `json:"added_at"`
}
