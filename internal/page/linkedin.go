package page

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ProcessedAttr は処理済みマーカーとして投稿要素に書き込まれるDOM属性名。
// インメモリの識別子集合とあわせた二重トラッキングの、要素側の信号となる。
const ProcessedAttr = "data-tm-processed"

// candidateSelectors は投稿コンテナの既知セレクタパターン。
// メインフィード・固定リンク表示・ロールアウト中のバリアントでラッパ構造が
// 異なるため、同一の論理投稿に対して複数パターンを試す。
var candidateSelectors = []string{
	"div.feed-shared-update-v2",
	"div.occludable-update",
	"div[data-urn*='urn:li:activity']",
	"div[data-id*='urn:li:activity']",
	"main article.feed-shared-update-v2",
}

// contentSelectors は本文抽出のセレクタ。信頼度の高い順に試す。
var contentSelectors = []string{
	".feed-shared-update-v2__description .update-components-text",
	".update-components-text .break-words",
	".update-components-text",
	".feed-shared-text",
	".feed-shared-inline-show-more-text",
}

// authorSelectors は著者名抽出のセレクタ。信頼度の高い順に試す。
var authorSelectors = []string{
	".update-components-actor__title span[aria-hidden='true']",
	".update-components-actor__name",
	".update-components-actor__title",
	".feed-shared-actor__name",
}

// actionBarSelectors はネイティブのソーシャルアクションバーのセレクタ。
var actionBarSelectors = []string{
	".feed-shared-social-action-bar",
	".social-details-social-actions",
}

// permalinkMarkers は投稿固定リンクURLに含まれるパスの断片。
var permalinkMarkers = []string{"/feed/update/", "/posts/", "/pulse/"}

// profileMarker は著者プロフィールURLに含まれるパスの断片。
const profileMarker = "/in/"

// unknownAuthor は著者名が特定できない場合のセンチネル値。
const unknownAuthor = "Unknown"

// LinkedInAdapter はLinkedIn風フィードマークアップのページアダプタ。
type LinkedInAdapter struct{}

// NewLinkedInAdapter はLinkedInAdapterの新しいインスタンスを生成する。
func NewLinkedInAdapter() *LinkedInAdapter {
	return &LinkedInAdapter{}
}

// DetectCandidates はドキュメント内の投稿候補要素を列挙する。
// 複数のセレクタパターンにマッチした同一要素は1回だけ返す。
func (a *LinkedInAdapter) DetectCandidates(doc *goquery.Document) []*goquery.Selection {
	var candidates []*goquery.Selection
	seen := make(map[*html.Node]bool)

	for _, selector := range candidateSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if len(s.Nodes) == 0 || seen[s.Nodes[0]] {
				return
			}
			seen[s.Nodes[0]] = true
			candidates = append(candidates, s)
		})
	}

	return candidates
}

// ExtractFields は投稿候補要素からフィールドを抽出する。
func (a *LinkedInAdapter) ExtractFields(sel *goquery.Selection, pageURL string) RawFields {
	name, profileURL := a.extractAuthor(sel)
	return RawFields{
		Text:             a.extractText(sel),
		Link:             a.extractLink(sel, pageURL),
		AuthorName:       name,
		AuthorProfileURL: profileURL,
	}
}

// InjectionAnchor は注入コントロールの優先配置先を返す。
func (a *LinkedInAdapter) InjectionAnchor(sel *goquery.Selection) (*goquery.Selection, bool) {
	for _, selector := range actionBarSelectors {
		bar := sel.Find(selector).First()
		if bar.Length() > 0 {
			return bar, true
		}
	}
	return nil, false
}

// extractText は本文セレクタを順に試し、最初の非空マッチを正規化して返す。
// どのセレクタにもマッチしない場合は要素のレンダリング済みテキストに
// フォールバックする。
func (a *LinkedInAdapter) extractText(sel *goquery.Selection) string {
	for _, selector := range contentSelectors {
		node := sel.Find(selector).First()
		if node.Length() == 0 {
			continue
		}
		inner, err := node.Html()
		if err != nil {
			continue
		}
		if text := FlattenHTML(inner); text != "" {
			return text
		}
	}

	// フォールバック: レンダリング済みの可視テキスト
	return collapseLines(sel.Text())
}

// extractLink は投稿の正規URLを導出する。フォールバック順:
//  1. プロフィールURLパターンに一致しない固定リンクアンカー
//  2. activity URN を含むdata属性からの正規URL合成
//  3. ページ自体が固定リンク表示である場合のページURL
//  4. 最終フォールバックとしてのページURL
//
// 候補URLのクエリ文字列は受理前に除去される。
func (a *LinkedInAdapter) extractLink(sel *goquery.Selection, pageURL string) string {
	var found string
	sel.Find("a[href]").EachWithBreak(func(_ int, anchor *goquery.Selection) bool {
		href := anchor.AttrOr("href", "")
		if href == "" {
			return true
		}
		if isProfileURL(href) {
			// プロフィールURLは唯一のアンカーであっても投稿リンクとして採用しない
			return true
		}
		if isPermalinkURL(href) {
			found = href
			return false
		}
		return true
	})
	if found != "" {
		return stripQuery(found)
	}

	// data属性のactivity URNから正規URLを合成
	for _, attr := range []string{"data-urn", "data-id"} {
		if urn := sel.AttrOr(attr, ""); strings.Contains(urn, "urn:li:activity") {
			return fmt.Sprintf("https://www.linkedin.com/feed/update/%s", urn)
		}
	}

	// ページ自体が固定リンク表示の場合
	if isPermalinkURL(pageURL) {
		return stripQuery(pageURL)
	}

	return stripQuery(pageURL)
}

// extractAuthor は著者名とプロフィールURLを抽出する。
// 名前セレクタの最初の非空マッチに対して、包含または近傍の
// プロフィールアンカーを探す。抽出失敗でエラーにはならず、
// 名前は "Unknown" にフォールバックする。
func (a *LinkedInAdapter) extractAuthor(sel *goquery.Selection) (name, profileURL string) {
	for _, selector := range authorSelectors {
		node := sel.Find(selector).First()
		if node.Length() == 0 {
			continue
		}
		text := strings.TrimSpace(node.Text())
		if text == "" {
			continue
		}
		name = strings.Join(strings.Fields(text), " ")

		// 包含アンカー → 近傍アンカーの順で探索
		if anchor := node.Closest("a"); anchor.Length() > 0 {
			if href := anchor.AttrOr("href", ""); isProfileURL(href) {
				profileURL = stripQuery(href)
			}
		}
		if profileURL == "" {
			node.Parent().Find("a[href]").EachWithBreak(func(_ int, anchor *goquery.Selection) bool {
				if href := anchor.AttrOr("href", ""); isProfileURL(href) {
					profileURL = stripQuery(href)
					return false
				}
				return true
			})
		}
		return name, profileURL
	}

	return unknownAuthor, ""
}

// isPermalinkURL はURLが投稿固定リンクのパターンに一致するかを返す。
func isPermalinkURL(rawURL string) bool {
	for _, marker := range permalinkMarkers {
		if strings.Contains(rawURL, marker) {
			return true
		}
	}
	return false
}

// isProfileURL はURLが著者プロフィールのパターンに一致するかを返す。
func isProfileURL(rawURL string) bool {
	return strings.Contains(rawURL, profileMarker)
}

// stripQuery はURLからクエリ文字列とフラグメントを除去する（正規化）。
func stripQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		if i := strings.IndexByte(rawURL, '?'); i >= 0 {
			return rawURL[:i]
		}
		return rawURL
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
