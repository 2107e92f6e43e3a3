package scanner

import (
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hitoshi/trendman/internal/page"
)

// ControlClass は注入コントロールのルート要素のクラス名。
const ControlClass = "tm-save-control"

// IdentityAttr は注入コントロールに付与される投稿identityの属性名。
const IdentityAttr = "data-tm-identity"

// buildControlHTML は保存コントロールのマークアップを構築する。
// identityは属性値としてエスケープされる。コントロールの状態遷移は
// controlパッケージの状態機械に従ってクライアント側で駆動される。
func buildControlHTML(identity string, fullWidth bool) string {
	style := ""
	if !fullWidth {
		// フォールバック配置: コンテナ右上の絶対配置
		style = ` style="position:absolute;top:8px;right:8px;z-index:10"`
	}
	return fmt.Sprintf(
		`<div class="%s" %s="%s"%s><button type="button" class="tm-save-trigger">アイデアに保存</button></div>`,
		ControlClass, IdentityAttr, html.EscapeString(identity), style,
	)
}

// injectControl は投稿要素へ保存コントロールを注入する。
// 優先配置はネイティブアクションバー直後の全幅兄弟ブロック。
// アンカーが見つからない場合はコンテナ右上の絶対配置にフォールバックし、
// その際はコンテナを配置可能（position:relative）へ昇格させ、
// overflowによるクリッピングを解除する。いずれの補正も対象コンテナに限定される。
func injectControl(adapter page.Adapter, sel *goquery.Selection, identity string) error {
	if anchor, ok := adapter.InjectionAnchor(sel); ok {
		anchor.AfterHtml(buildControlHTML(identity, true))
		return nil
	}

	ensurePositioned(sel)
	sel.AppendHtml(buildControlHTML(identity, false))
	return nil
}

// ensurePositioned はコンテナが絶対配置の基準になれるようにstyleを補正する。
// position指定がない（static相当の）場合のみrelativeへ昇格させ、
// overflowの隠蔽指定を解除する。
func ensurePositioned(sel *goquery.Selection) {
	style := sel.AttrOr("style", "")

	if !strings.Contains(style, "position:") && !strings.Contains(style, "position :") {
		style = appendStyle(style, "position:relative")
	}
	if strings.Contains(style, "overflow:hidden") {
		style = strings.ReplaceAll(style, "overflow:hidden", "overflow:visible")
	} else if !strings.Contains(style, "overflow:") {
		style = appendStyle(style, "overflow:visible")
	}

	sel.SetAttr("style", style)
}

// appendStyle はstyle属性値へ宣言を追記する。
func appendStyle(style, decl string) string {
	style = strings.TrimSpace(style)
	if style == "" {
		return decl
	}
	if !strings.HasSuffix(style, ";") {
		style += ";"
	}
	return style + decl
}
