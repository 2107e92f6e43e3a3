// Package model はドメインモデルを定義する。
package model

import "time"

// PostAuthor は検出された投稿の著者情報を表す。
// ProfileURLは見つからない場合は空文字列となる。
type PostAuthor struct {
	Name       string
	ProfileURL string
}

// DetectedPost はフィードページから検出・抽出された投稿を表す。
// スキャンごとに再構築される一時データであり、永続化されない。
// 永続化されるのはIdentityのみ（処理済みレジストリ）。
type DetectedPost struct {
	// Text は正規化済みの投稿本文。
	// ブロック要素の境界は改行に変換され、HTMLエンティティはデコード済み。
	Text string

	// Link は投稿自体の正規URL。クエリ文字列は除去済み。
	Link string

	// Author は著者情報。名前が特定できない場合は "Unknown"。
	Author PostAuthor

	// Identity は重複排除に使用する導出キー。
	// Linkと本文先頭プレフィックスから導出され、同一投稿の再スキャンで安定。
	// グローバルに一意であることは保証されない（許容された近似）。
	Identity string
}

// SavePostRequest は投稿保存アクションのペイロードを表す。
// コラボレータ（アイデアAPI）へ送信される。
type SavePostRequest struct {
	Content          string
	Note             string
	BrandID          string
	AuthorName       string
	AuthorProfileURL string
	CapturedAt       time.Time
}
