// Package config は環境変数ベースのアプリケーション設定を提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// NASA NeoWs API
	NASAAPIKey   string
	NASABaseURL  string
	FetchTimeout time.Duration

	// Cache
	CacheMaxAge time.Duration

	// Worker
	AlertCheckInterval time.Duration
	RefreshInterval    time.Duration

	// Retention
	NotificationRetentionDays int
	AsteroidRetentionDays     int

	// Rate Limit
	RateLimitGeneral     int
	RateLimitAlertCreate int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		missing = append(missing, "REDIS_URL")
	}

	cfg.NASAAPIKey = os.Getenv("NASA_API_KEY")
	if cfg.NASAAPIKey == "" {
		missing = append(missing, "NASA_API_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.NASABaseURL = getEnvString("NASA_BASE_URL", "https://api.nasa.gov/neo/rest/v1")
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 30*time.Second)
	cfg.CacheMaxAge = getEnvDuration("CACHE_MAX_AGE", 24*time.Hour)
	cfg.AlertCheckInterval = getEnvDuration("ALERT_CHECK_INTERVAL", 1*time.Hour)
	cfg.RefreshInterval = getEnvDuration("REFRESH_INTERVAL", 6*time.Hour)
	cfg.NotificationRetentionDays = getEnvInt("NOTIFICATION_RETENTION_DAYS", 30)
	cfg.AsteroidRetentionDays = getEnvInt("ASTEROID_RETENTION_DAYS", 30)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAlertCreate = getEnvInt("RATE_LIMIT_ALERT_CREATE", 20)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
