package scanner

// ComputeIdentity は投稿の重複排除キーを導出する。
// リンクと本文の先頭prefixLen文字を連結し、英数字以外を '_' に置換した
// 安全なトークンを返す。同一投稿の再スキャンに対して安定である一方、
// リンクと本文プレフィックスが一致する別投稿とは衝突しうる
// （暗号学的キーではなく、許容された近似）。
func ComputeIdentity(link, text string, prefixLen int) string {
	runes := []rune(text)
	if prefixLen > 0 && len(runes) > prefixLen {
		text = string(runes[:prefixLen])
	}

	raw := link + "-" + text
	token := make([]rune, 0, len(raw))
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			token = append(token, r)
		} else {
			token = append(token, '_')
		}
	}
	return string(token)
}
