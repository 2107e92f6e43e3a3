// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, brand, scan, trend, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidURL     = "INVALID_URL"
	ErrCodeSSRFBlocked    = "SSRF_BLOCKED"
	ErrCodeFetchFailed    = "FETCH_FAILED"
	ErrCodeScanFailed     = "SCAN_FAILED"
	ErrCodeSaveFailed     = "SAVE_FAILED"
	ErrCodeBrandNotFound  = "BRAND_NOT_FOUND"
	ErrCodeIdeaNotFound   = "IDEA_NOT_FOUND"
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeDuplicateIdea  = "DUPLICATE_IDEA"
	ErrCodeTrendScanError = "TREND_SCAN_FAILED"
)

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewFetchFailedError はページ取得失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("ページの取得に失敗しました: %s", reason),
		Category: "scan",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewScanFailedError はスキャン失敗エラーを生成する。
func NewScanFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeScanFailed,
		Message:  fmt.Sprintf("ページのスキャンに失敗しました: %s", reason),
		Category: "scan",
		Action:   "HTMLが正しい形式か確認してください。",
	}
}

// NewSaveFailedError は保存アクション失敗エラーを生成する。
// 保存はユーザーが成否のフィードバックを直接期待する唯一の操作のため、
// このエラーのみユーザーへ同期的に提示される。
func NewSaveFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeSaveFailed,
		Message:  fmt.Sprintf("アイデアの保存に失敗しました: %s", reason),
		Category: "scan",
		Action:   "しばらく待ってから再度保存をお試しください。",
	}
}

// NewBrandNotFoundError はブランド未検出エラーを生成する。
func NewBrandNotFoundError(brandID string) *APIError {
	return &APIError{
		Code:     ErrCodeBrandNotFound,
		Message:  fmt.Sprintf("指定されたブランドが見つかりません: %s", brandID),
		Category: "brand",
		Action:   "ブランドIDを確認してください。",
	}
}

// NewIdeaNotFoundError はアイデア未検出エラーを生成する。
func NewIdeaNotFoundError(ideaID string) *APIError {
	return &APIError{
		Code:     ErrCodeIdeaNotFound,
		Message:  fmt.Sprintf("指定されたアイデアが見つかりません: %s", ideaID),
		Category: "brand",
		Action:   "アイデアIDを確認してください。",
	}
}

// NewInvalidInputError は入力検証エラーを生成する。
func NewInvalidInputError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("入力が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewDuplicateIdeaError は重複アイデアエラーを生成する。
func NewDuplicateIdeaError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateIdea,
		Message:  "同じ投稿から作成されたアイデアが既に存在します。",
		Category: "brand",
		Action:   "アイデア一覧から既存のアイデアを確認してください。",
	}
}

// NewTrendScanError はトレンドスキャン失敗エラーを生成する。
func NewTrendScanError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeTrendScanError,
		Message:  fmt.Sprintf("トレンドスキャンに失敗しました: %s", reason),
		Category: "trend",
		Action:   "カテゴリのフィードURLが有効か確認し、しばらく待ってから再度お試しください。",
	}
}
