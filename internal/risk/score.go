// Package risk は天体のリスクスコア算出を提供する。
// スコアは3要素（危険フラグ、直径、最接近距離）の固定重み付き合計で、
// 同一入力に対して常に同一の結果を返す純粋関数として実装される。
package risk

import (
	"math"

	"github.com/hitoshi/neowatch/internal/model"
)

const (
	// hazardousWeight は潜在的危険フラグの配点。
	hazardousWeight = 40.0
	// diameterWeight は直径要素の最大配点。直径1kmで飽和する線形スケール。
	diameterWeight = 30.0
	// diameterSaturationKm は直径要素が飽和する直径（km）。
	diameterSaturationKm = 1.0
	// distanceWeight は距離要素の最大配点。
	distanceWeight = 30.0
	// maxDistanceKm は距離要素が0になる距離（1,000万km）。
	maxDistanceKm = 10_000_000.0
)

// Score はリスクスコア（0-100の整数）とリスク区分を算出する。
// nearestMissKmには最接近イベントのミス距離（km）を渡す。
// 接近データがない場合は+Infを渡すこと。距離要素は0として扱われる。
func Score(isHazardous bool, maxDiameterKm, nearestMissKm float64) (int, model.RiskLevel) {
	var hazardousScore float64
	if isHazardous {
		hazardousScore = hazardousWeight
	}

	diameterScore := math.Min(maxDiameterKm/diameterSaturationKm*diameterWeight, diameterWeight)

	distanceScore := math.Max(0, distanceWeight*(1-nearestMissKm/maxDistanceKm))

	score := int(math.Round(hazardousScore + diameterScore + distanceScore))

	// [0, 100]にクランプ
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	return score, LevelFor(score)
}

// LevelFor はリスクスコアから4段階のリスク区分を導出する。
// しきい値: 70以上 CRITICAL、40以上 HIGH、20以上 MEDIUM、それ未満 LOW。
func LevelFor(score int) model.RiskLevel {
	switch {
	case score >= 70:
		return model.RiskLevelCritical
	case score >= 40:
		return model.RiskLevelHigh
	case score >= 20:
		return model.RiskLevelMedium
	default:
		return model.RiskLevelLow
	}
}
