package neo

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/hitoshi/neowatch/internal/model"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// sampleRaw はテスト用の典型的な上流レコードを返す。
func sampleRaw() RawAsteroid {
	return RawAsteroid{
		ID:                "3542519",
		NeoReferenceID:    "3542519",
		Name:              "(2010 PK9)",
		NasaJplURL:        "https://ssd.jpl.nasa.gov/tools/sbdb_lookup.html#/?sstr=3542519",
		AbsoluteMagnitude: 21.87,
		EstimatedDiameter: RawDiameter{
			Kilometers: RawDiameterRange{Min: 0.1010543415, Max: 0.2259643771},
			Meters:     RawDiameterRange{Min: 101.0543415, Max: 225.9643771},
		},
		IsHazardous: true,
		CloseApproachData: []RawCloseApproach{
			{
				CloseApproachDate:      "2026-03-10",
				CloseApproachDateFull:  "2026-Mar-10 09:51",
				EpochDateCloseApproach: 1773136260000,
				RelativeVelocity: RawRelativeVelocity{
					KilometersPerSecond: "10.07",
					KilometersPerHour:   "36252.5",
				},
				MissDistance: RawMissDistance{
					Astronomical: "0.0334",
					Lunar:        "12.99",
					Kilometers:   "4996385.5",
				},
				OrbitingBody: "Earth",
			},
		},
	}
}

// TestParseAsteroid_BasicFields は基本フィールドが正しく変換されることをテストする。
func TestParseAsteroid_BasicFields(t *testing.T) {
	parsed := ParseAsteroid(sampleRaw(), testNow)

	if parsed.ID != "3542519" {
		t.Errorf("ID = %q, want %q", parsed.ID, "3542519")
	}
	if parsed.NeoID != "3542519" {
		t.Errorf("NeoID = %q, want %q", parsed.NeoID, "3542519")
	}
	if parsed.Name != "(2010 PK9)" {
		t.Errorf("Name = %q, want %q", parsed.Name, "(2010 PK9)")
	}
	if !parsed.IsHazardous {
		t.Error("IsHazardous should be true")
	}
	if parsed.DiameterMaxKm != 0.2259643771 {
		t.Errorf("DiameterMaxKm = %v, want %v", parsed.DiameterMaxKm, 0.2259643771)
	}
	if parsed.DiameterMinM != 101.0543415 {
		t.Errorf("DiameterMinM = %v, want %v", parsed.DiameterMinM, 101.0543415)
	}
	if !parsed.LastFetched.Equal(testNow) {
		t.Errorf("LastFetched = %v, want %v", parsed.LastFetched, testNow)
	}
}

// TestParseAsteroid_StringNumberCoercion は文字列数値がfloat64に変換されることをテストする。
func TestParseAsteroid_StringNumberCoercion(t *testing.T) {
	parsed := ParseAsteroid(sampleRaw(), testNow)

	if len(parsed.CloseApproaches) != 1 {
		t.Fatalf("CloseApproaches = %d件, want 1件", len(parsed.CloseApproaches))
	}
	approach := parsed.CloseApproaches[0]
	if approach.VelocityKmh != 36252.5 {
		t.Errorf("VelocityKmh = %v, want %v", approach.VelocityKmh, 36252.5)
	}
	if approach.VelocityKms != 10.07 {
		t.Errorf("VelocityKms = %v, want %v", approach.VelocityKms, 10.07)
	}
	if approach.MissDistanceKm != 4996385.5 {
		t.Errorf("MissDistanceKm = %v, want %v", approach.MissDistanceKm, 4996385.5)
	}
	if approach.MissDistanceLunar != 12.99 {
		t.Errorf("MissDistanceLunar = %v, want %v", approach.MissDistanceLunar, 12.99)
	}
	if approach.EpochMs != 1773136260000 {
		t.Errorf("EpochMs = %d, want %d", approach.EpochMs, 1773136260000)
	}
}

// TestParseAsteroid_MalformedNumberBecomesZero は非数値文字列が0に変換されることをテストする。
func TestParseAsteroid_MalformedNumberBecomesZero(t *testing.T) {
	raw := sampleRaw()
	raw.CloseApproachData[0].RelativeVelocity.KilometersPerHour = "not-a-number"
	raw.CloseApproachData[0].MissDistance.Astronomical = ""

	parsed := ParseAsteroid(raw, testNow)

	approach := parsed.CloseApproaches[0]
	if approach.VelocityKmh != 0 {
		t.Errorf("非数値のVelocityKmhは0であるべき、got %v", approach.VelocityKmh)
	}
	if approach.MissDistanceAu != 0 {
		t.Errorf("空文字のMissDistanceAuは0であるべき、got %v", approach.MissDistanceAu)
	}
}

// TestParseAsteroid_FiltersNonEarthApproaches は地球以外の接近イベントが除外されることをテストする。
func TestParseAsteroid_FiltersNonEarthApproaches(t *testing.T) {
	raw := sampleRaw()
	raw.CloseApproachData = append(raw.CloseApproachData,
		RawCloseApproach{
			CloseApproachDate: "2026-05-01",
			MissDistance:      RawMissDistance{Kilometers: "1000000"},
			OrbitingBody:      "Venus",
		},
		RawCloseApproach{
			CloseApproachDate: "2026-06-01",
			MissDistance:      RawMissDistance{Kilometers: "2000000"},
			OrbitingBody:      "Merc",
		},
	)

	parsed := ParseAsteroid(raw, testNow)

	if len(parsed.CloseApproaches) != 1 {
		t.Fatalf("地球の接近イベントのみ保持されるべき。件数 = %d, want 1", len(parsed.CloseApproaches))
	}
	if parsed.CloseApproaches[0].OrbitingBody != "Earth" {
		t.Errorf("OrbitingBody = %q, want %q", parsed.CloseApproaches[0].OrbitingBody, "Earth")
	}
}

// TestParseAsteroid_RiskScoreComputed はパース時にリスクスコアが算出されることをテストする。
func TestParseAsteroid_RiskScoreComputed(t *testing.T) {
	parsed := ParseAsteroid(sampleRaw(), testNow)

	// 危険フラグあり(40) + 直径0.226km(6.78) + 距離499.6万km(15.01) ≈ 62
	if parsed.RiskScore != 62 {
		t.Errorf("RiskScore = %d, want 62", parsed.RiskScore)
	}
	if parsed.RiskLevel != model.RiskLevelHigh {
		t.Errorf("RiskLevel = %q, want %q", parsed.RiskLevel, model.RiskLevelHigh)
	}
}

// TestParseAsteroid_NoApproaches_DistanceContributesZero は接近データなしの場合に距離寄与が0になることをテストする。
func TestParseAsteroid_NoApproaches_DistanceContributesZero(t *testing.T) {
	raw := sampleRaw()
	raw.CloseApproachData = nil
	raw.EstimatedDiameter.Kilometers.Max = 2.0 // 飽和

	parsed := ParseAsteroid(raw, testNow)

	// 40 + 30 + 0 = 70
	if parsed.RiskScore != 70 {
		t.Errorf("RiskScore = %d, want 70", parsed.RiskScore)
	}
	if len(parsed.CloseApproaches) != 0 {
		t.Errorf("CloseApproaches = %d件, want 0件", len(parsed.CloseApproaches))
	}
}

// TestParseAsteroid_NeoIDFallbackToID はneo_reference_id未設定時にidが代用されることをテストする。
func TestParseAsteroid_NeoIDFallbackToID(t *testing.T) {
	raw := sampleRaw()
	raw.NeoReferenceID = ""

	parsed := ParseAsteroid(raw, testNow)

	if parsed.NeoID != "3542519" {
		t.Errorf("NeoID = %q, want %q (idが代用されるべき)", parsed.NeoID, "3542519")
	}
}

// TestParseAsteroid_OrbitalDataPassThrough は軌道データが改変なしで保持されることをテストする。
func TestParseAsteroid_OrbitalDataPassThrough(t *testing.T) {
	orbital := json.RawMessage(`{"orbit_id":"23","eccentricity":".6758","semi_major_axis":"1.24"}`)
	raw := sampleRaw()
	raw.OrbitalData = orbital

	parsed := ParseAsteroid(raw, testNow)

	if !bytes.Equal(parsed.OrbitalData, orbital) {
		t.Errorf("OrbitalData = %s, want %s", parsed.OrbitalData, orbital)
	}
}

// TestParseNumber_Table はparseNumberの変換規則をテストする。
func TestParseNumber_Table(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
	}{
		{"整数", "42", 42},
		{"小数", "4996385.5", 4996385.5},
		{"指数表記", "1.5e3", 1500},
		{"空文字", "", 0},
		{"非数値", "abc", 0},
		{"数値+ゴミ", "12.3km", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseNumber(tt.input); got != tt.want {
				t.Errorf("parseNumber(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
