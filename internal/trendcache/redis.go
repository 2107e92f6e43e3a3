package trendcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore はRedisをバックエンドとするKVStoreの実装。
// デイリーキャッシュはTTLを持たない（日付バケットの判定は読み出し側で行い、
// 古いエントリは無視されたのち上書きされる）。
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore はRedisStoreの新しいインスタンスを生成する。
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get はキーの値を取得する。キーが存在しない場合はok=falseを返す。
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redisからの取得に失敗: %w", err)
	}
	return val, true, nil
}

// Set はキーに値を書き込む。既存の値は上書きされる。
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redisへの書き込みに失敗: %w", err)
	}
	return nil
}
