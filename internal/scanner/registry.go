// Package scanner はフィードページの投稿検出・抽出・コントロール注入を提供する。
// ページアダプタの背後にあるマークアップ契約に依存し、処理済みレジストリで
// 同一投稿の二重処理を防ぐ。
package scanner

import "sync"

// ProcessedRegistry は処理済み投稿のidentity集合を保持する。
// DOM属性マーカーとあわせた二重トラッキングのインメモリ側であり、
// スキャンセッションの生存期間にスコープされる。
// 重複したスキャンが交錯しても安全なよう、冪等な操作のみを提供する。
type ProcessedRegistry struct {
	mu  sync.RWMutex
	ids map[string]bool
}

// NewProcessedRegistry はProcessedRegistryの新しいインスタンスを生成する。
func NewProcessedRegistry() *ProcessedRegistry {
	return &ProcessedRegistry{ids: make(map[string]bool)}
}

// IsProcessed はidentityが処理済みかを返す。
func (r *ProcessedRegistry) IsProcessed(identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ids[identity]
}

// MarkProcessed はidentityを処理済みとして記録する。冪等。
func (r *ProcessedRegistry) MarkProcessed(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[identity] = true
}

// Len は記録済みidentityの件数を返す。
func (r *ProcessedRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}
