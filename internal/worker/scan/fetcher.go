// Package scan は監視ページのバックグラウンドスキャン処理を提供する。
// スケジューラ、ページフェッチャー、リトライ/バックオフ戦略を含む。
package scan

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hitoshi/trendman/internal/page"
	"github.com/hitoshi/trendman/internal/scanner"
)

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Recorder はスキャンワーカーが記録するメトリクスのインターフェース。
type Recorder interface {
	scanner.Recorder
	RecordScanLatency(duration time.Duration)
}

// nopRecorder はRecorderの何もしない実装。
type nopRecorder struct {
	scanner.NopRecorder
}

func (nopRecorder) RecordScanLatency(time.Duration) {}

// pageState はページごとのスキャン状態を保持する。
// スキャナセッション（処理済みレジストリ）とバックオフ状態をページ単位で管理する。
type pageState struct {
	scanner           *scanner.Scanner
	consecutiveErrors int
	nextScanAt        time.Time
	stopped           bool
}

// Fetcher は監視ページのHTML取得とスキャンを実行する。
// ページごとに永続的なスキャナセッションを保持し、再スキャン時は
// 処理済みレジストリにより既知投稿がスキップされる。
type Fetcher struct {
	ssrfGuard  SSRFValidator
	logger     *slog.Logger
	metrics    Recorder
	timeout    time.Duration
	maxSize    int64
	scannerCfg scanner.Config

	mu    sync.Mutex
	pages map[string]*pageState
	now   func() time.Time
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(
	ssrfGuard SSRFValidator,
	logger *slog.Logger,
	metrics Recorder,
	timeout time.Duration,
	maxSize int64,
	scannerCfg scanner.Config,
) *Fetcher {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Fetcher{
		ssrfGuard:  ssrfGuard,
		logger:     logger,
		metrics:    metrics,
		timeout:    timeout,
		maxSize:    maxSize,
		scannerCfg: scannerCfg,
		pages:      make(map[string]*pageState),
		now:        time.Now,
	}
}

// ScanPage は指定ページを取得してスキャンする。
// バックオフ期間中または監視停止済みのページはスキップされる。
// 取得・スキャンの失敗はバックオフを適用した上でエラーとして返す。
func (f *Fetcher) ScanPage(ctx context.Context, pageURL string) error {
	state := f.pageStateFor(pageURL)

	f.mu.Lock()
	if state.stopped {
		f.mu.Unlock()
		return nil
	}
	if f.now().Before(state.nextScanAt) {
		f.mu.Unlock()
		f.logger.Debug("バックオフ期間中のためスキップします",
			slog.String("page_url", pageURL),
		)
		return nil
	}
	f.mu.Unlock()

	start := f.now()

	html, result, err := f.fetchHTML(ctx, pageURL)
	if err != nil {
		f.applyFailure(state, pageURL, result, err)
		f.metrics.RecordScanFailure()
		return err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		f.applyFailure(state, pageURL, FetchResultUnknown, err)
		f.metrics.RecordScanFailure()
		return fmt.Errorf("HTMLのパースに失敗: %w", err)
	}

	report := state.scanner.Scan(doc, pageURL)

	f.mu.Lock()
	state.consecutiveErrors = 0
	state.nextScanAt = time.Time{}
	f.mu.Unlock()

	duration := f.now().Sub(start)
	f.metrics.RecordScanLatency(duration)

	f.logger.Info("ページスキャンが完了しました",
		slog.String("page_url", pageURL),
		slog.Int("candidates", report.Candidates),
		slog.Int("injected", len(report.Posts)),
		slog.Int("skipped_processed", report.SkippedProcessed),
		slog.Int("skipped_short", report.SkippedShort),
		slog.Int("failed", report.Failed),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// pageStateFor はページの状態を取得する。未知のページは初期化する。
func (f *Fetcher) pageStateFor(pageURL string) *pageState {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, ok := f.pages[pageURL]
	if !ok {
		state = &pageState{
			scanner: scanner.New(page.NewLinkedInAdapter(), f.logger, f.metrics, f.scannerCfg),
		}
		f.pages[pageURL] = state
	}
	return state
}

// applyFailure は失敗結果に応じてページ状態を更新する。
// 恒久的エラー（404等）は監視を停止し、それ以外は指数バックオフを適用する。
func (f *Fetcher) applyFailure(state *pageState, pageURL string, result FetchResult, cause error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if result == FetchResultStop {
		state.stopped = true
		f.logger.Warn("ページの監視を停止しました",
			slog.String("page_url", pageURL),
			slog.String("error", cause.Error()),
		)
		return
	}

	state.consecutiveErrors++
	delay := CalculateBackoff(state.consecutiveErrors - 1)
	state.nextScanAt = f.now().Add(delay)

	f.logger.Warn("ページスキャンに失敗しました",
		slog.String("page_url", pageURL),
		slog.Int("consecutive_errors", state.consecutiveErrors),
		slog.Duration("backoff", delay),
		slog.String("error", cause.Error()),
	)
}

// fetchHTML はSSRF検証の上でページHTMLを取得する。
func (f *Fetcher) fetchHTML(ctx context.Context, pageURL string) (string, FetchResult, error) {
	if err := f.ssrfGuard.ValidateURL(pageURL); err != nil {
		return "", FetchResultStop, fmt.Errorf("URL検証に失敗: %w", err)
	}

	client := f.ssrfGuard.NewSafeClient(f.timeout, f.maxSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", FetchResultStop, fmt.Errorf("リクエストの生成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", "Trendman/1.0 Page Scanner")
	req.Header.Set("Accept", "text/html, application/xhtml+xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		return "", FetchResultBackoff, fmt.Errorf("ページの取得に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", ClassifyHTTPStatus(resp.StatusCode), fmt.Errorf("ページの取得に失敗: status=%d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize))
	if err != nil {
		return "", FetchResultBackoff, fmt.Errorf("レスポンスの読み取りに失敗: %w", err)
	}
	return string(body), FetchResultOK, nil
}
