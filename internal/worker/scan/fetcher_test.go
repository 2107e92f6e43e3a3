package scan

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/trendman/internal/scanner"
)

// allowAllGuard は全URLを許可するSSRFValidatorのテスト用実装。
type allowAllGuard struct {
	validateErr error
}

func (g *allowAllGuard) ValidateURL(rawURL string) error {
	return g.validateErr
}

func (g *allowAllGuard) NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

// countingRecorder は注入・失敗件数を数えるRecorderのテスト用実装。
type countingRecorder struct {
	scanner.NopRecorder
	injected     int32
	scanFailures int32
	latencyCalls int32
}

func (r *countingRecorder) RecordPostInjected() {
	atomic.AddInt32(&r.injected, 1)
}

func (r *countingRecorder) RecordScanFailure() {
	atomic.AddInt32(&r.scanFailures, 1)
}

func (r *countingRecorder) RecordScanLatency(time.Duration) {
	atomic.AddInt32(&r.latencyCalls, 1)
}

const watchedPageHTML = `<html><body>
<div class="feed-shared-update-v2" data-urn="urn:li:activity:9001">
  <div class="update-components-actor__name">鈴木 一郎</div>
  <div class="update-components-text">監視ページで検出されるべき十分に長い投稿本文です。</div>
  <a href="https://www.linkedin.com/feed/update/urn:li:activity:9001/">permalink</a>
  <div class="feed-shared-social-action-bar"></div>
</div>
</body></html>`

func newTestFetcher(metrics Recorder) *Fetcher {
	return NewFetcher(&allowAllGuard{}, testLogger(), metrics, 5*time.Second, 1<<20, scanner.Config{})
}

func TestFetcher_ScanPage_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(watchedPageHTML))
	}))
	defer server.Close()

	rec := &countingRecorder{}
	f := newTestFetcher(rec)

	if err := f.ScanPage(context.Background(), server.URL); err != nil {
		t.Fatalf("ScanPage() error = %v", err)
	}

	if got := atomic.LoadInt32(&rec.injected); got != 1 {
		t.Errorf("注入件数 = %d, want 1", got)
	}
	if got := atomic.LoadInt32(&rec.latencyCalls); got != 1 {
		t.Errorf("レイテンシ記録回数 = %d, want 1", got)
	}
}

func TestFetcher_ScanPage_RescanSkipsKnownPosts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(watchedPageHTML))
	}))
	defer server.Close()

	rec := &countingRecorder{}
	f := newTestFetcher(rec)

	ctx := context.Background()
	if err := f.ScanPage(ctx, server.URL); err != nil {
		t.Fatalf("1回目のScanPage() error = %v", err)
	}
	if err := f.ScanPage(ctx, server.URL); err != nil {
		t.Fatalf("2回目のScanPage() error = %v", err)
	}

	// 永続セッションのレジストリにより既知投稿は再注入されない
	if got := atomic.LoadInt32(&rec.injected); got != 1 {
		t.Errorf("注入件数 = %d, want 1", got)
	}
}

func TestFetcher_ScanPage_BackoffAfterServerError(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	rec := &countingRecorder{}
	f := newTestFetcher(rec)

	ctx := context.Background()
	if err := f.ScanPage(ctx, server.URL); err == nil {
		t.Fatal("ScanPage() error = nil, want error")
	}

	// バックオフ期間中の再スキャンはリクエストなしでスキップされる
	if err := f.ScanPage(ctx, server.URL); err != nil {
		t.Errorf("バックオフ中のScanPage() error = %v, want nil", err)
	}
	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Errorf("リクエスト回数 = %d, want 1", got)
	}
	if got := atomic.LoadInt32(&rec.scanFailures); got != 1 {
		t.Errorf("失敗記録回数 = %d, want 1", got)
	}
}

func TestFetcher_ScanPage_BackoffExpires(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	f := newTestFetcher(nil)
	current := time.Now()
	f.now = func() time.Time { return current }

	ctx := context.Background()
	if err := f.ScanPage(ctx, server.URL); err == nil {
		t.Fatal("ScanPage() error = nil, want error")
	}

	// バックオフ経過後は再度フェッチされる
	current = current.Add(initialBackoff + time.Second)
	if err := f.ScanPage(ctx, server.URL); err == nil {
		t.Fatal("ScanPage() error = nil, want error")
	}
	if got := atomic.LoadInt32(&requests); got != 2 {
		t.Errorf("リクエスト回数 = %d, want 2", got)
	}
}

func TestFetcher_ScanPage_StopsOnNotFound(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	f := newTestFetcher(nil)

	ctx := context.Background()
	if err := f.ScanPage(ctx, server.URL); err == nil {
		t.Fatal("ScanPage() error = nil, want error")
	}

	// 監視停止後はリクエストなしでスキップされる
	if err := f.ScanPage(ctx, server.URL); err != nil {
		t.Errorf("停止後のScanPage() error = %v, want nil", err)
	}
	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Errorf("リクエスト回数 = %d, want 1", got)
	}
}

func TestFetcher_ScanPage_SSRFBlocked(t *testing.T) {
	f := NewFetcher(
		&allowAllGuard{validateErr: errors.New("private address")},
		testLogger(), nil, 5*time.Second, 1<<20, scanner.Config{},
	)

	err := f.ScanPage(context.Background(), "http://169.254.169.254/latest/meta-data")
	if err == nil {
		t.Fatal("ScanPage() error = nil, want error")
	}

	// URL検証に失敗したページは監視停止扱いとなり再試行されない
	if err := f.ScanPage(context.Background(), "http://169.254.169.254/latest/meta-data"); err != nil {
		t.Errorf("停止後のScanPage() error = %v, want nil", err)
	}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		consecutiveErrors int
		want              time.Duration
	}{
		{0, 1 * time.Minute},
		{1, 2 * time.Minute},
		{2, 4 * time.Minute},
		{5, 32 * time.Minute},
		{6, maxBackoff},
		{10, maxBackoff},
	}
	for _, tt := range tests {
		if got := CalculateBackoff(tt.consecutiveErrors); got != tt.want {
			t.Errorf("CalculateBackoff(%d) = %v, want %v", tt.consecutiveErrors, got, tt.want)
		}
	}
}

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		want   FetchResult
	}{
		{200, FetchResultOK},
		{404, FetchResultStop},
		{410, FetchResultStop},
		{401, FetchResultStop},
		{403, FetchResultStop},
		{429, FetchResultBackoff},
		{500, FetchResultBackoff},
		{503, FetchResultBackoff},
		{302, FetchResultUnknown},
	}
	for _, tt := range tests {
		if got := ClassifyHTTPStatus(tt.status); got != tt.want {
			t.Errorf("ClassifyHTTPStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
