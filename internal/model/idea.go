// Package model はドメインモデルを定義する。
package model

import "time"

// IdeaSource はアイデアの由来種別を表す。
type IdeaSource string

const (
	// IdeaSourcePost はフィードページの投稿から保存されたアイデア。
	IdeaSourcePost IdeaSource = "post"
	// IdeaSourceTrend はトレンドスキャン結果から変換されたアイデア。
	IdeaSourceTrend IdeaSource = "trend"
	// IdeaSourceManual は手動で登録されたアイデア。
	IdeaSourceManual IdeaSource = "manual"
)

// Idea は保存された投稿アイデアを表す。
type Idea struct {
	ID               string
	BrandID          string
	Content          string
	Note             string
	Source           IdeaSource
	SourceURL        string
	SourceIdentity   string // 投稿由来の場合のDetectedPost.Identity
	AuthorName       string
	AuthorProfileURL string
	ContentHash      string
	CapturedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewIdeaInput は未保存のアイデア入力データを表す。
// ハンドラーまたはトレンド変換からIdeaServiceに渡される。
type NewIdeaInput struct {
	BrandID          string
	Content          string
	Note             string
	Source           IdeaSource
	SourceURL        string
	SourceIdentity   string
	AuthorName       string
	AuthorProfileURL string
	CapturedAt       *time.Time
}
