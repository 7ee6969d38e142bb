package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/hitoshi/neowatch/internal/model"
)

// dailyCacheKeyPrefix は日次キャッシュのRedisキープレフィックス。
const dailyCacheKeyPrefix = "neowatch:daily:"

// RedisDailyCacheRepo はRedisを使用した日次キャッシュリポジトリ。
// エントリはJSONとして保存し、鮮度期限(maxAge)をTTLとしても設定する。
type RedisDailyCacheRepo struct {
	client *redis.Client
	maxAge time.Duration
	now    func() time.Time
}

// NewRedisDailyCacheRepo はRedisDailyCacheRepoを生成する。
func NewRedisDailyCacheRepo(client *redis.Client, maxAge time.Duration) *RedisDailyCacheRepo {
	return &RedisDailyCacheRepo{
		client: client,
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Get は指定日付のキャッシュエントリを取得する。
// キーが存在しない、またはLastUpdatedが鮮度期限を超えている場合はmodel.ErrCacheMissを返す。
func (r *RedisDailyCacheRepo) Get(ctx context.Context, date string) (*model.DailyEntry, error) {
	data, err := r.client.Get(ctx, dailyCacheKeyPrefix+date).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, model.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("日次キャッシュの取得に失敗しました: %w", err)
	}

	var entry model.DailyEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		// 壊れたエントリはミスとして扱い、再取得で上書きさせる
		return nil, model.ErrCacheMiss
	}

	if r.now().Sub(entry.LastUpdated) > r.maxAge {
		return nil, model.ErrCacheMiss
	}

	return &entry, nil
}

// Set は日次キャッシュエントリを保存する。
func (r *RedisDailyCacheRepo) Set(ctx context.Context, entry *model.DailyEntry) error {
	if entry.LastUpdated.IsZero() {
		entry.LastUpdated = r.now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("日次キャッシュのシリアライズに失敗しました: %w", err)
	}

	if err := r.client.Set(ctx, dailyCacheKeyPrefix+entry.Date, data, r.maxAge).Err(); err != nil {
		return fmt.Errorf("日次キャッシュの保存に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ DailyCacheRepository = (*RedisDailyCacheRepo)(nil)
