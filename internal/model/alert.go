package model

import "time"

// AlertKind はアラートルールの種別を表す。
type AlertKind string

const (
	// AlertKindDistance は最接近距離がしきい値（km）未満の場合に発火する。
	AlertKindDistance AlertKind = "distance"
	// AlertKindDiameter は最大推定直径がしきい値（m）超の場合に発火する。
	AlertKindDiameter AlertKind = "diameter"
	// AlertKindHazardous は潜在的危険フラグが立っている場合に発火する。
	// しきい値は使用しない。
	AlertKindHazardous AlertKind = "hazardous"
	// AlertKindSentry はSentry監視対象フラグが立っている場合に発火する。
	// しきい値は使用しない。
	AlertKindSentry AlertKind = "sentry"
)

// ValidAlertKind は指定された文字列がサポートされるアラート種別かどうかを返す。
func ValidAlertKind(kind string) bool {
	switch AlertKind(kind) {
	case AlertKindDistance, AlertKindDiameter, AlertKindHazardous, AlertKindSentry:
		return true
	}
	return false
}

// AlertRule はユーザー定義のアラートルールを表す。
// システムが変更するのはトグル時のUpdatedAtのみ。
type AlertRule struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      AlertKind `json:"kind"`
	Threshold float64   `json:"threshold"` // distance: km、diameter: m。フラグ種別では無視される
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
