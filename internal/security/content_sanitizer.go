// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService は外部ページ・外部フィード由来のコンテンツを
// アイデアとして永続化する前にサニタイズし、ダッシュボード表示時の
// XSSリスクからユーザーを保護する。bluemondayの許可リストベースの
// ポリシーで、最小限の整形タグのみを通過させる。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はコンテンツのサニタイズ機能のインターフェースを定義する。
// アイデア保存前（投稿本文・注記・トレンド要約）に使用される。
type ContentSanitizerService interface {
	// Sanitize はコンテンツをサニタイズして安全な文字列を返す。
	// 許可タグ（p, br, a, strong, em）のみを通過させ、
	// script, iframe, styleタグおよびon*イベント属性を除去する。
	// aタグにはrel="noopener noreferrer"が自動付与される。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// スキャナが本文をプレーンテキストへ正規化するため、許可タグは
// トレンド要約が持ちうる最小限の整形のみに絞っている:
//   - 許可タグ: p, br, a, strong, em
//   - aタグ: href属性のみ許可、相対URLは不許可、rel="noreferrer noopener"を強制付与
//   - それ以外のタグとon*イベント属性はすべて除去
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements("p", "br", "strong", "em")

	p.AllowAttrs("href").OnElements("a")
	p.AllowStandardURLs()
	p.AllowRelativeURLs(false)
	p.RequireNoReferrerOnLinks(true)

	return &contentSanitizer{
		policy: p,
	}
}

// Sanitize はコンテンツをサニタイズして安全な文字列を返す。
func (s *contentSanitizer) Sanitize(raw string) string {
	return s.policy.Sanitize(raw)
}
