package database

import (
	"fmt"

	"github.com/go-redis/redis/v8"
)

// OpenRedis はRedis接続クライアントを生成する。
// redisURLはRedisの接続URLを指定する（例: "redis://localhost:6379/0"）。
// クライアント生成は接続を試行しないため、実際の接続確認にはclient.Ping()を使用すること。
func OpenRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	return redis.NewClient(opts), nil
}
