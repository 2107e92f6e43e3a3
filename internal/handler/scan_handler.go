package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hitoshi/trendman/internal/model"
	"github.com/hitoshi/trendman/internal/page"
	"github.com/hitoshi/trendman/internal/scanner"
)

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// ScanHandlerConfig はスキャンハンドラーの設定。
type ScanHandlerConfig struct {
	FetchTimeout time.Duration
	FetchMaxSize int64
	ScannerCfg   scanner.Config
}

// ScanHandler はページスキャンのHTTPハンドラー。
// HTMLを直接受け取るか、SSRF検証済みのURL取得を行い、
// 投稿検出と保存コントロール注入済みのHTMLを返す。
type ScanHandler struct {
	ssrfGuard SSRFValidator
	metrics   scanner.Recorder
	logger    *slog.Logger
	config    ScanHandlerConfig
}

// NewScanHandler はScanHandlerを生成する。
func NewScanHandler(ssrfGuard SSRFValidator, metrics scanner.Recorder, logger *slog.Logger, config ScanHandlerConfig) *ScanHandler {
	if metrics == nil {
		metrics = scanner.NopRecorder{}
	}
	return &ScanHandler{
		ssrfGuard: ssrfGuard,
		metrics:   metrics,
		logger:    logger,
		config:    config,
	}
}

// scanRequest はスキャンリクエストのボディ。
// HTMLとURLのどちらか一方を指定する。両方指定時はHTMLを優先する。
type scanRequest struct {
	HTML string `json:"html,omitempty"`
	URL  string `json:"url,omitempty"`
}

// detectedPostResponse は検出された投稿のAPIレスポンス。
type detectedPostResponse struct {
	Text             string `json:"text"`
	Link             string `json:"link"`
	AuthorName       string `json:"author_name"`
	AuthorProfileURL string `json:"author_profile_url,omitempty"`
	Identity         string `json:"identity"`
}

// scanResponse はスキャン結果のAPIレスポンス。
// HTMLはコントロール注入済みのドキュメント全体。
type scanResponse struct {
	Posts            []detectedPostResponse `json:"posts"`
	HTML             string                 `json:"html"`
	Candidates       int                    `json:"candidates"`
	SkippedProcessed int                    `json:"skipped_processed"`
	SkippedShort     int                    `json:"skipped_short"`
	Failed           int                    `json:"failed"`
}

// Scan はページスキャンを処理する。
// POST /api/scan
func (h *ScanHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.HTML == "" && req.URL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidInputError("htmlまたはurlのいずれかを指定してください"))
		return
	}

	pageHTML := req.HTML
	pageURL := req.URL
	if pageHTML == "" {
		fetched, err := h.fetchPage(r, req.URL)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		pageHTML = fetched
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnprocessableEntity,
			model.NewScanFailedError(err.Error()))
		return
	}

	// APIスキャンはリクエスト単位で完結するため、レジストリは都度生成する。
	// 同一投稿の再スキャン抑止はHTML内の処理済み属性が担う。
	sc := scanner.New(page.NewLinkedInAdapter(), h.logger, h.metrics, h.config.ScannerCfg)

	start := time.Now()
	report := sc.Scan(doc, pageURL)

	rendered, err := doc.Html()
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnprocessableEntity,
			model.NewScanFailedError(err.Error()))
		return
	}

	h.logger.Info("ページスキャンが完了しました",
		slog.String("page_url", pageURL),
		slog.Int("candidates", report.Candidates),
		slog.Int("injected", len(report.Posts)),
		slog.Int("failed", report.Failed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	posts := make([]detectedPostResponse, 0, len(report.Posts))
	for _, p := range report.Posts {
		posts = append(posts, detectedPostResponse{
			Text:             p.Text,
			Link:             p.Link,
			AuthorName:       p.Author.Name,
			AuthorProfileURL: p.Author.ProfileURL,
			Identity:         p.Identity,
		})
	}

	writeJSONResponse(w, http.StatusOK, scanResponse{
		Posts:            posts,
		HTML:             rendered,
		Candidates:       report.Candidates,
		SkippedProcessed: report.SkippedProcessed,
		SkippedShort:     report.SkippedShort,
		Failed:           report.Failed,
	})
}

// fetchPage はSSRF検証の上でページHTMLを取得する。
func (h *ScanHandler) fetchPage(r *http.Request, rawURL string) (string, error) {
	if err := h.ssrfGuard.ValidateURL(rawURL); err != nil {
		return "", model.NewSSRFBlockedError()
	}

	client := h.ssrfGuard.NewSafeClient(h.config.FetchTimeout, h.config.FetchMaxSize)
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, rawURL, nil)
	if err != nil {
		return "", model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", "Trendman/1.0 Page Scanner")
	req.Header.Set("Accept", "text/html, application/xhtml+xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		return "", model.NewFetchFailedError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", model.NewFetchFailedError(http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.config.FetchMaxSize))
	if err != nil {
		return "", model.NewFetchFailedError(err.Error())
	}
	return string(body), nil
}
