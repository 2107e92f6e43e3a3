package page

import (
	"strings"

	"golang.org/x/net/html"
)

// blockEndTags は閉じタグが意味的な改行を持つブロック要素。
var blockEndTags = map[string]bool{
	"p": true, "div": true, "li": true, "blockquote": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// FlattenHTML は要素の内部マークアップを改行保存テキストへ正規化する。
// レンダリング済みテキストの抽出ではブロック境界の意味的な改行が失われるため、
// マークアップを直接走査する。処理内容:
//  1. brタグを改行に変換する
//  2. ブロック要素（p, div, li等）の閉じタグを改行に変換する
//  3. 残りのタグを除去する
//  4. HTMLエンティティをデコードする（&nbsp;は通常の空白に揃える）
//  5. 行ごとにトリムし、空行を除去して再結合する
func FlattenHTML(inner string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(inner))

loop:
	for {
		switch z.Next() {
		case html.ErrorToken:
			break loop

		case html.TextToken:
			// Text()はエンティティをデコード済みのテキストを返す
			b.Write(z.Text())

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if string(name) == "br" {
				b.WriteByte('\n')
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			if blockEndTags[string(name)] {
				b.WriteByte('\n')
			}
		}
	}

	// &nbsp;はU+00A0にデコードされるため通常の空白へ揃える
	text := strings.ReplaceAll(b.String(), " ", " ")

	return collapseLines(text)
}

// collapseLines は行ごとの冗長な空白を除去しつつ改行を保存する。
func collapseLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kept = append(kept, strings.Join(strings.Fields(line), " "))
	}
	return strings.Join(kept, "\n")
}
