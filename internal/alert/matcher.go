// Package alert はアラートルールの管理と照合ロジックを提供する。
package alert

import (
	"fmt"

	"github.com/hitoshi/neowatch/internal/model"
)

// Matches は天体がアラートルールの条件を満たすかどうかを判定する。
// distance: 最接近距離がしきい値(km)未満。接近データがない天体はマッチしない。
// diameter: 最大推定直径(m)がしきい値超。
// hazardous/sentry: 各フラグが立っている（しきい値は無視）。
func Matches(rule *model.AlertRule, asteroid *model.Asteroid) bool {
	switch rule.Kind {
	case model.AlertKindDistance:
		approach := asteroid.NearestApproach()
		if approach == nil {
			return false
		}
		return approach.MissDistanceKm < rule.Threshold
	case model.AlertKindDiameter:
		return asteroid.DiameterMaxM > rule.Threshold
	case model.AlertKindHazardous:
		return asteroid.IsHazardous
	case model.AlertKindSentry:
		return asteroid.IsSentry
	}
	return false
}

// BuildMessage はマッチした天体の通知メッセージを組み立てる。
func BuildMessage(rule *model.AlertRule, asteroid *model.Asteroid) string {
	switch rule.Kind {
	case model.AlertKindDistance:
		approach := asteroid.NearestApproach()
		if approach == nil {
			return fmt.Sprintf("%s passed within unknownK km", asteroid.Name)
		}
		return fmt.Sprintf("%s passed within %.0fK km", asteroid.Name, approach.MissDistanceKm/1000)
	case model.AlertKindDiameter:
		return fmt.Sprintf("%s detected, %.0fm diameter", asteroid.Name, asteroid.DiameterMaxM)
	case model.AlertKindHazardous:
		return fmt.Sprintf("%s flagged hazardous, %.0fm", asteroid.Name, asteroid.DiameterMaxM)
	case model.AlertKindSentry:
		return fmt.Sprintf("%s added to Sentry risk table", asteroid.Name)
	}
	return fmt.Sprintf("%s triggered alert", asteroid.Name)
}
