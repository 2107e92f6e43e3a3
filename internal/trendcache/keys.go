// Package trendcache はブランド単位のデイリートレンドキャッシュと
// 追加済みURLレジストリを提供する。
// キャッシュエントリは現地時間の暦日（YYYY-MM-DD）でバケット化され、
// 日付が一致しないエントリはミスとして扱われる。
package trendcache

const (
	// keyPrefixDaily はデイリーキャッシュエントリのキープレフィックス。
	keyPrefixDaily = "trendman:trends:daily:"
	// keyPrefixAdded は追加済みURLレジストリのキープレフィックス。
	keyPrefixAdded = "trendman:trends:added:"
)

// DailyKey はブランドのデイリーキャッシュエントリのキーを返す。
func DailyKey(brandID string) string {
	return keyPrefixDaily + brandID
}

// AddedKey はブランドの追加済みURLレジストリのキーを返す。
func AddedKey(brandID string) string {
	return keyPrefixAdded + brandID
}
