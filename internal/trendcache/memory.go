package trendcache

import (
	"context"
	"sync"
)

// MemoryStore はインメモリのKVStore実装。
// 単体テストおよびRedisなしのローカル起動で使用する。
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore はMemoryStoreの新しいインスタンスを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

// Get はキーの値を取得する。キーが存在しない場合はok=falseを返す。
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

// Set はキーに値を書き込む。既存の値は上書きされる。
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}
