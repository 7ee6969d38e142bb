// Package neo はNASA NeoWs APIとの連携機能を提供する。
// 上流APIのクライアントと、生レコードを内部モデルに正規化するパーサーを含む。
package neo

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/hitoshi/neowatch/internal/model"
	"github.com/hitoshi/neowatch/internal/risk"
)

// RawAsteroid は上流APIが返す天体レコードの生の形を表す。
// feed/lookup/browseの3エンドポイントは同一のレコード形を共有する。
// 数値フィールドの一部（速度・距離）は上流では文字列で表現される。
type RawAsteroid struct {
	ID                string              `json:"id"`
	NeoReferenceID    string              `json:"neo_reference_id"`
	Name              string              `json:"name"`
	NasaJplURL        string              `json:"nasa_jpl_url"`
	AbsoluteMagnitude float64             `json:"absolute_magnitude_h"`
	EstimatedDiameter RawDiameter         `json:"estimated_diameter"`
	IsHazardous       bool                `json:"is_potentially_hazardous_asteroid"`
	CloseApproachData []RawCloseApproach  `json:"close_approach_data"`
	IsSentry          bool                `json:"is_sentry_object"`
	OrbitalData       json.RawMessage     `json:"orbital_data,omitempty"`
}

// RawDiameter は単位別の推定直径レンジを表す。
type RawDiameter struct {
	Kilometers RawDiameterRange `json:"kilometers"`
	Meters     RawDiameterRange `json:"meters"`
}

// RawDiameterRange は推定直径の最小・最大値を表す。
type RawDiameterRange struct {
	Min float64 `json:"estimated_diameter_min"`
	Max float64 `json:"estimated_diameter_max"`
}

// RawCloseApproach は上流APIの接近イベントレコードを表す。
type RawCloseApproach struct {
	CloseApproachDate     string              `json:"close_approach_date"`
	CloseApproachDateFull string              `json:"close_approach_date_full"`
	EpochDateCloseApproach int64              `json:"epoch_date_close_approach"`
	RelativeVelocity      RawRelativeVelocity `json:"relative_velocity"`
	MissDistance          RawMissDistance     `json:"miss_distance"`
	OrbitingBody          string              `json:"orbiting_body"`
}

// RawRelativeVelocity は相対速度を表す。上流では文字列数値。
type RawRelativeVelocity struct {
	KilometersPerSecond string `json:"kilometers_per_second"`
	KilometersPerHour   string `json:"kilometers_per_hour"`
}

// RawMissDistance はミス距離を表す。上流では文字列数値。
type RawMissDistance struct {
	Astronomical string `json:"astronomical"`
	Lunar        string `json:"lunar"`
	Kilometers   string `json:"kilometers"`
}

// ParseAsteroid は上流の生レコードを内部モデルに正規化する。
// 接近イベントはorbiting_bodyが"Earth"のもののみ保持する（意図的なフィルタ）。
// リスクスコアはここで毎回再計算され、nowがLastFetchedとして刻印される。
// I/Oは行わず、数値の強制変換は失敗時に0へフォールバックする（エラーを返さない）。
func ParseAsteroid(raw RawAsteroid, now time.Time) model.Asteroid {
	// リスク算出はフィルタ前の先頭接近イベントの距離を使用する
	nearestMissKm := math.Inf(1)
	if len(raw.CloseApproachData) > 0 {
		if km := parseNumber(raw.CloseApproachData[0].MissDistance.Kilometers); km > 0 {
			nearestMissKm = km
		}
	}
	score, level := risk.Score(raw.IsHazardous, raw.EstimatedDiameter.Kilometers.Max, nearestMissKm)

	approaches := make([]model.CloseApproach, 0, len(raw.CloseApproachData))
	for _, rawApproach := range raw.CloseApproachData {
		if rawApproach.OrbitingBody != "Earth" {
			continue
		}
		approaches = append(approaches, model.CloseApproach{
			Date:              rawApproach.CloseApproachDate,
			DateTime:          rawApproach.CloseApproachDateFull,
			EpochMs:           rawApproach.EpochDateCloseApproach,
			VelocityKmh:       parseNumber(rawApproach.RelativeVelocity.KilometersPerHour),
			VelocityKms:       parseNumber(rawApproach.RelativeVelocity.KilometersPerSecond),
			MissDistanceKm:    parseNumber(rawApproach.MissDistance.Kilometers),
			MissDistanceAu:    parseNumber(rawApproach.MissDistance.Astronomical),
			MissDistanceLunar: parseNumber(rawApproach.MissDistance.Lunar),
			OrbitingBody:      rawApproach.OrbitingBody,
		})
	}

	neoID := raw.NeoReferenceID
	if neoID == "" {
		neoID = raw.ID
	}

	return model.Asteroid{
		ID:                raw.ID,
		NeoID:             neoID,
		Name:              raw.Name,
		NasaJplURL:        raw.NasaJplURL,
		AbsoluteMagnitude: raw.AbsoluteMagnitude,
		DiameterMinKm:     raw.EstimatedDiameter.Kilometers.Min,
		DiameterMaxKm:     raw.EstimatedDiameter.Kilometers.Max,
		DiameterMinM:      raw.EstimatedDiameter.Meters.Min,
		DiameterMaxM:      raw.EstimatedDiameter.Meters.Max,
		IsHazardous:       raw.IsHazardous,
		IsSentry:          raw.IsSentry,
		RiskScore:         score,
		RiskLevel:         level,
		CloseApproaches:   approaches,
		OrbitalData:       raw.OrbitalData,
		LastFetched:       now,
	}
}

// parseNumber は上流の文字列数値をfloat64に変換する。
// 空文字・非数値の場合は0を返す（エラーを投げない）。
func parseNumber(value string) float64 {
	if value == "" {
		return 0
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return f
}
