// Package collab は保存アクションを外部コラボレータへ委譲するクライアントを提供する。
// スキャンコアは自身でアイデアの永続化を行わず、typeディスクリミネータ付きの
// 構造化メッセージを送信し、{success, error?} 形式の応答を解釈するだけである。
package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/trendman/internal/model"
)

// MessageTypeCreateIdea はアイデア作成インテントのtypeディスクリミネータ。
const MessageTypeCreateIdea = "create_idea"

// maxResponseSize は応答ボディの読み取り上限。
const maxResponseSize = 1 << 20

// saveMessage はコラボレータへ送信する構造化メッセージ。
type saveMessage struct {
	Type string   `json:"type"`
	Data saveData `json:"data"`
}

// saveData は保存アクションのペイロード。
type saveData struct {
	Content  string       `json:"content"`
	Note     string       `json:"note,omitempty"`
	BrandID  string       `json:"brand_id,omitempty"`
	Metadata saveMetadata `json:"metadata"`
}

// saveMetadata は保存アクションに添付されるメタデータ。
type saveMetadata struct {
	AuthorName       string `json:"author_name"`
	AuthorProfileURL string `json:"author_profile_url,omitempty"`
	CapturedAt       string `json:"captured_at"` // ISO-8601 (RFC3339)
}

// saveResponse はコラボレータからの応答契約。
// この形に合致しない応答はすべて失敗として扱われる。
type saveResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Client はHTTP経由のコラボレータクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, endpoint string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
	}
}

// SaveIdea は保存アクションをコラボレータへ送信する。
// 応答が {success: true} でない場合（HTTPエラー・不正な応答形状を含む）は
// 利用可能な最良のメッセージを持つエラーを返す。
func (c *Client) SaveIdea(ctx context.Context, req model.SavePostRequest) error {
	msg := saveMessage{
		Type: MessageTypeCreateIdea,
		Data: saveData{
			Content: req.Content,
			Note:    req.Note,
			BrandID: req.BrandID,
			Metadata: saveMetadata{
				AuthorName:       req.AuthorName,
				AuthorProfileURL: req.AuthorProfileURL,
				CapturedAt:       req.CapturedAt.Format(time.RFC3339),
			},
		},
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("メッセージの組み立てに失敗しました: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "Trendman/1.0 Content Scanner")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("コラボレータへの送信に失敗しました",
			slog.String("endpoint", c.endpoint),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("コラボレータへの送信に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("応答の読み取りに失敗しました: %w", err)
	}

	var result saveResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		c.logger.Error("コラボレータ応答のパースに失敗しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("コラボレータが不正な応答を返しました (ステータス %d)", resp.StatusCode)
	}

	if !result.Success {
		reason := result.Error
		if reason == "" {
			reason = fmt.Sprintf("コラボレータが失敗を返しました (ステータス %d)", resp.StatusCode)
		}
		return fmt.Errorf("%s", reason)
	}

	return nil
}
