package scan

import "time"

// FetchResult はHTTPステータスコードに基づくページ取得結果の分類。
type FetchResult int

const (
	// FetchResultOK は取得成功（200）。
	FetchResultOK FetchResult = iota
	// FetchResultStop は監視停止が必要なステータス（404/410/401/403）。
	FetchResultStop
	// FetchResultBackoff はバックオフが必要なステータス（429/5xx）。
	FetchResultBackoff
	// FetchResultUnknown は未知のステータスコード。
	FetchResultUnknown
)

const (
	// initialBackoff は指数バックオフの初回遅延。
	initialBackoff = 1 * time.Minute
	// maxBackoff は指数バックオフの最大遅延。
	maxBackoff = 1 * time.Hour
)

// ClassifyHTTPStatus はHTTPステータスコードをページ取得結果に分類する。
func ClassifyHTTPStatus(statusCode int) FetchResult {
	switch {
	case statusCode == 200:
		return FetchResultOK
	case statusCode == 404 || statusCode == 410:
		return FetchResultStop
	case statusCode == 401 || statusCode == 403:
		return FetchResultStop
	case statusCode == 429:
		return FetchResultBackoff
	case statusCode >= 500:
		return FetchResultBackoff
	default:
		return FetchResultUnknown
	}
}

// CalculateBackoff は連続エラー回数に基づいて指数バックオフ遅延を計算する。
// 初回1分、2倍ずつ増加、最大1時間。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
