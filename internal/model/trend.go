// Package model はドメインモデルを定義する。
package model

import "time"

// TrendItem はカテゴリ検索で発見された単一のニュース・動向を表す。
// 同一性はSourceURLで判定される。
type TrendItem struct {
	Title       string     `json:"title"`
	SourceURL   string     `json:"source_url"`
	SourceName  string     `json:"source_name"`
	Summary     string     `json:"summary"`
	PublishedAt *time.Time `json:"published_at,omitempty"`

	// Added はこのアイテムが既にアイデアへ変換済みかを示す。
	// AddedTrendRegistryから読み出し時に付与される表示用フラグ。
	Added bool `json:"added"`
}

// CategoryTrends は1カテゴリ分のトレンドスキャン結果を表す。
type CategoryTrends struct {
	Category string      `json:"category"`
	Items    []TrendItem `json:"items"`
}

// TrendScanResult はブランド1件分のトレンドスキャン結果を表す。
type TrendScanResult struct {
	BrandID   string           `json:"brand_id"`
	Results   []CategoryTrends `json:"results"`
	FromCache bool             `json:"from_cache"`
	ScannedAt time.Time        `json:"scanned_at"`
}
