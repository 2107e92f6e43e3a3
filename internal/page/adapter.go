// Package page はホストページのマークアップ契約を隔離するページアダプタを提供する。
// セレクタ文字列と抽出ヒューリスティクスはすべてこのパッケージに閉じ込め、
// スキャン・注入・状態管理のロジックからホストページの不安定な構造を切り離す。
package page

import "github.com/PuerkitoBio/goquery"

// RawFields は1投稿要素から抽出された未加工のフィールド群を表す。
type RawFields struct {
	// Text は正規化済みの本文。抽出できない場合は空文字列。
	Text string
	// Link は投稿の正規URL（クエリ除去済み）。
	Link string
	// AuthorName は著者名。特定できない場合は "Unknown"。
	AuthorName string
	// AuthorProfileURL は著者プロフィールURL。見つからない場合は空文字列。
	AuthorProfileURL string
}

// Adapter はホストページごとの投稿検出・抽出契約を表す。
// ホストページのマークアップはバージョン管理されていない外部契約のため、
// このインターフェースの背後に隔離し、テストではフェイクに差し替える。
type Adapter interface {
	// DetectCandidates はドキュメント内の投稿候補要素を列挙する。
	// 同一の論理投稿が複数バリアントのラッパで出現するため、
	// 既知のセレクタパターンすべてを対象とする。
	DetectCandidates(doc *goquery.Document) []*goquery.Selection

	// ExtractFields は投稿候補要素からフィールドを抽出する。
	// pageURLはリンク導出のフォールバックに使用される。
	// 抽出失敗はフィールドの空値で表現され、エラーにはならない。
	ExtractFields(sel *goquery.Selection, pageURL string) RawFields

	// InjectionAnchor は注入コントロールの優先配置先（ネイティブの
	// ソーシャルアクションバー）を返す。見つからない場合はok=false。
	InjectionAnchor(sel *goquery.Selection) (*goquery.Selection, bool)
}
