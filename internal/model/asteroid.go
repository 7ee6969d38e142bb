// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"time"
)

// RiskLevel はリスクスコアから導出される4段階のリスク区分を表す。
type RiskLevel string

const (
	// RiskLevelLow はリスクスコア20未満の区分。
	RiskLevelLow RiskLevel = "LOW"
	// RiskLevelMedium はリスクスコア20以上40未満の区分。
	RiskLevelMedium RiskLevel = "MEDIUM"
	// RiskLevelHigh はリスクスコア40以上70未満の区分。
	RiskLevelHigh RiskLevel = "HIGH"
	// RiskLevelCritical はリスクスコア70以上の区分。
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// Asteroid はNASA NeoWs APIから取得した地球近傍天体を表す。
// RiskScore/RiskLevelはパース時に必ず再計算され、手動で編集されることはない。
type Asteroid struct {
	ID                string          `json:"id"`
	NeoID             string          `json:"neo_id"`
	Name              string          `json:"name"`
	NasaJplURL        string          `json:"nasa_jpl_url"`
	AbsoluteMagnitude float64         `json:"absolute_magnitude"`
	DiameterMinKm     float64         `json:"diameter_min_km"`
	DiameterMaxKm     float64         `json:"diameter_max_km"`
	DiameterMinM      float64         `json:"diameter_min_m"`
	DiameterMaxM      float64         `json:"diameter_max_m"`
	IsHazardous       bool            `json:"is_hazardous"`
	IsSentry          bool            `json:"is_sentry"`
	RiskScore         int             `json:"risk_score"`
	RiskLevel         RiskLevel       `json:"risk_level"`
	CloseApproaches   []CloseApproach `json:"close_approaches"`
	OrbitalData       json.RawMessage `json:"orbital_data,omitempty"` // 上流の軌道要素をそのまま保持する（加工しない）
	LastFetched       time.Time       `json:"last_fetched"`
}

// CloseApproach は天体の1回の地球接近イベントを表す。
// EpochMsは天体内で一意であり、UPSERT時のサブキーとして使用される。
type CloseApproach struct {
	Date             string  `json:"date"`      // YYYY-MM-DD（日単位）
	DateTime         string  `json:"date_time"` // 上流のフルタイムスタンプ表記
	EpochMs          int64   `json:"epoch_ms"`
	VelocityKmh      float64 `json:"velocity_kmh"`
	VelocityKms      float64 `json:"velocity_kms"`
	MissDistanceKm   float64 `json:"miss_distance_km"`
	MissDistanceAu   float64 `json:"miss_distance_au"`
	MissDistanceLunar float64 `json:"miss_distance_lunar"`
	OrbitingBody     string  `json:"orbiting_body"`
}

// NearestApproach は天体の最接近イベントを返す。
// 上流APIは接近イベントを接近順で返すため、先頭要素を最接近として扱う。
// 接近データがない場合はnilを返す。
func (a *Asteroid) NearestApproach() *CloseApproach {
	if len(a.CloseApproaches) == 0 {
		return nil
	}
	return &a.CloseApproaches[0]
}

// HasApproachInRange は[start, end]（両端含む、日単位）に接近イベントが
// 含まれるかどうかを返す。日付はYYYY-MM-DD形式の辞書順で比較できる。
func (a *Asteroid) HasApproachInRange(start, end string) bool {
	for _, approach := range a.CloseApproaches {
		if approach.Date >= start && approach.Date <= end {
			return true
		}
	}
	return false
}

// RiskDistribution はリスク区分ごとの天体数を表す。
type RiskDistribution struct {
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
}

// DailyStats は1日分の天体データの集計統計を表す。
type DailyStats struct {
	NeoCount         int              `json:"neo_count"`
	HazardousCount   int              `json:"hazardous_count"`
	ClosestKm        float64          `json:"closest_km"`
	FastestKmh       float64          `json:"fastest_kmh"`
	RiskDistribution RiskDistribution `json:"risk_distribution"`
}

// DailyEntry は日次キャッシュの1エントリを表す。
// 対象日に接近する全天体と集計統計を保持する。
type DailyEntry struct {
	Date        string     `json:"date"` // YYYY-MM-DD
	Asteroids   []Asteroid `json:"asteroids"`
	Count       int        `json:"count"`
	Stats       DailyStats `json:"stats"`
	LastUpdated time.Time  `json:"last_updated"`
}

// Pagination は上流のbrowse APIのページネーション情報を表す。
type Pagination struct {
	Total       int `json:"total"`
	TotalPages  int `json:"total_pages"`
	Size        int `json:"size"`
	CurrentPage int `json:"current_page"`
}

// BrowseResult はカタログ閲覧の1ページ分の結果を表す。
type BrowseResult struct {
	Asteroids  []Asteroid `json:"asteroids"`
	Pagination Pagination `json:"pagination"`
}
