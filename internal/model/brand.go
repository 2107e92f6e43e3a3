// Package model はドメインモデルを定義する。
package model

import "time"

// Brand はパーソナルブランド（キャッシュとアイデアの分割単位）を表す。
type Brand struct {
	ID           string
	Name         string
	Keywords     []string
	WatchedPages []string // スキャンワーカーが巡回するフィードページのURL
	Categories   []TrendCategory
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TrendCategory はブランドに紐づくトレンド検索カテゴリを表す。
// 各カテゴリはニュースフィードURLを情報源として持つ。
type TrendCategory struct {
	Name    string
	FeedURL string
}
