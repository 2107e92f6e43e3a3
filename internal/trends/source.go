// Package trends はブランドのトレンドスキャン機能を提供する。
// カテゴリごとのニュースフィードを情報源とし、結果は日次キャッシュへ格納される。
package trends

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/trendman/internal/model"
	"github.com/hitoshi/trendman/internal/security"
)

// カテゴリ1件あたりの最大アイテム数。ダッシュボードの一覧表示を想定した上限。
const maxItemsPerCategory = 10

// Source は1カテゴリ分のトレンドアイテムを取得するインターフェース。
type Source interface {
	// FetchCategory はカテゴリのフィードURLからトレンドアイテムを取得する。
	FetchCategory(ctx context.Context, category model.TrendCategory) ([]model.TrendItem, error)
}

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// FeedSource はニュースフィード（RSS/Atom）を情報源とするSourceの実装。
// SSRF検証済みのHTTPクライアントで取得し、gofeedでパースする。
type FeedSource struct {
	ssrfGuard   SSRFValidator
	sanitizer   security.ContentSanitizerService
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
}

// NewFeedSource はFeedSourceの新しいインスタンスを生成する。
func NewFeedSource(
	ssrfGuard SSRFValidator,
	sanitizer security.ContentSanitizerService,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
) *FeedSource {
	return &FeedSource{
		ssrfGuard:   ssrfGuard,
		sanitizer:   sanitizer,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// FetchCategory はカテゴリのフィードURLからトレンドアイテムを取得する。
// 発行日時降順でmaxItemsPerCategory件まで返す。
func (s *FeedSource) FetchCategory(ctx context.Context, category model.TrendCategory) ([]model.TrendItem, error) {
	if err := s.ssrfGuard.ValidateURL(category.FeedURL); err != nil {
		return nil, fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	client := s.ssrfGuard.NewSafeClient(s.timeout, s.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, category.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", "Trendman/1.0 Trend Scanner")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTPステータス %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}

	parser := gofeed.NewParser()
	parsedFeed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("フィードのパースに失敗: %w", err)
	}

	items := s.convertItems(parsedFeed)

	s.logger.Info("カテゴリのトレンド取得が完了しました",
		slog.String("category", category.Name),
		slog.String("feed_url", category.FeedURL),
		slog.Int("items", len(items)),
	)

	return items, nil
}

// convertItems はgofeedの記事をTrendItemに変換する。
// 要約はサニタイズした上で保持し、発行日時降順で上限件数に丸める。
func (s *FeedSource) convertItems(parsedFeed *gofeed.Feed) []model.TrendItem {
	sourceName := parsedFeed.Title

	items := make([]model.TrendItem, 0, len(parsedFeed.Items))
	for _, item := range parsedFeed.Items {
		if item == nil || item.Title == "" {
			continue
		}

		link := item.Link
		// LinkがなくGUIDがURL形式の場合はGUIDをLinkとして使用
		if link == "" && (hasHTTPPrefix(item.GUID)) {
			link = item.GUID
		}
		if link == "" {
			continue
		}

		trend := model.TrendItem{
			Title:      item.Title,
			SourceURL:  link,
			SourceName: sourceName,
			Summary:    s.sanitizer.Sanitize(item.Description),
		}
		if item.PublishedParsed != nil {
			t := *item.PublishedParsed
			trend.PublishedAt = &t
		} else if item.UpdatedParsed != nil {
			t := *item.UpdatedParsed
			trend.PublishedAt = &t
		}

		items = append(items, trend)
	}

	sortByPublishedDesc(items)
	if len(items) > maxItemsPerCategory {
		items = items[:maxItemsPerCategory]
	}
	return items
}

func hasHTTPPrefix(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// sortByPublishedDesc は発行日時降順に並べ替える。日時なしは末尾へ寄せる。
func sortByPublishedDesc(items []model.TrendItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].PublishedAt, items[j].PublishedAt
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.After(*b)
	})
}
