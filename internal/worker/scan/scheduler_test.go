package scan

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/trendman/internal/model"
)

// --- モック定義 ---

// mockBrandRepo はBrandRepositoryのテスト用モック。
type mockBrandRepo struct {
	listFunc func(ctx context.Context) ([]*model.Brand, error)
}

func (m *mockBrandRepo) FindByID(ctx context.Context, id string) (*model.Brand, error) {
	return nil, nil
}

func (m *mockBrandRepo) List(ctx context.Context) ([]*model.Brand, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

func (m *mockBrandRepo) Create(ctx context.Context, brand *model.Brand) error { return nil }

func (m *mockBrandRepo) Update(ctx context.Context, brand *model.Brand) error { return nil }

func (m *mockBrandRepo) Delete(ctx context.Context, id string) error { return nil }

// mockPageScanner はPageScannerServiceのテスト用モック。
type mockPageScanner struct {
	scanPageFunc func(ctx context.Context, pageURL string) error
}

func (m *mockPageScanner) ScanPage(ctx context.Context, pageURL string) error {
	if m.scanPageFunc != nil {
		return m.scanPageFunc(ctx, pageURL)
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func brandWithPages(id string, pages ...string) *model.Brand {
	return &model.Brand{ID: id, Name: "テストブランド " + id, WatchedPages: pages}
}

// --- RunOnce テスト ---

func TestScheduler_RunOnce_ScansAllWatchedPages(t *testing.T) {
	repo := &mockBrandRepo{
		listFunc: func(ctx context.Context) ([]*model.Brand, error) {
			return []*model.Brand{
				brandWithPages("b1", "https://example.com/feed-a", "https://example.com/feed-b"),
				brandWithPages("b2", "https://example.com/feed-c"),
			}, nil
		},
	}

	var mu sync.Mutex
	scanned := make(map[string]int)
	fetcher := &mockPageScanner{
		scanPageFunc: func(ctx context.Context, pageURL string) error {
			mu.Lock()
			scanned[pageURL]++
			mu.Unlock()
			return nil
		},
	}

	s := NewScheduler(repo, fetcher, testLogger(), 2, 0)
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if len(scanned) != 3 {
		t.Errorf("スキャンされたページ数 = %d, want 3", len(scanned))
	}
	for url, count := range scanned {
		if count != 1 {
			t.Errorf("%s のスキャン回数 = %d, want 1", url, count)
		}
	}
}

func TestScheduler_RunOnce_DeduplicatesSharedPages(t *testing.T) {
	repo := &mockBrandRepo{
		listFunc: func(ctx context.Context) ([]*model.Brand, error) {
			return []*model.Brand{
				brandWithPages("b1", "https://example.com/shared"),
				brandWithPages("b2", "https://example.com/shared"),
			}, nil
		},
	}

	var count int32
	fetcher := &mockPageScanner{
		scanPageFunc: func(ctx context.Context, pageURL string) error {
			atomic.AddInt32(&count, 1)
			return nil
		},
	}

	s := NewScheduler(repo, fetcher, testLogger(), 2, 0)
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if got := atomic.LoadInt32(&count); got != 1 {
		t.Errorf("スキャン回数 = %d, want 1", got)
	}
}

func TestScheduler_RunOnce_RespectsMaxConcurrency(t *testing.T) {
	pages := []string{
		"https://example.com/p1", "https://example.com/p2",
		"https://example.com/p3", "https://example.com/p4",
		"https://example.com/p5", "https://example.com/p6",
	}
	repo := &mockBrandRepo{
		listFunc: func(ctx context.Context) ([]*model.Brand, error) {
			return []*model.Brand{brandWithPages("b1", pages...)}, nil
		},
	}

	var current, peak int32
	fetcher := &mockPageScanner{
		scanPageFunc: func(ctx context.Context, pageURL string) error {
			n := atomic.AddInt32(&current, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&current, -1)
			return nil
		},
	}

	s := NewScheduler(repo, fetcher, testLogger(), 2, 0)
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if got := atomic.LoadInt32(&peak); got > 2 {
		t.Errorf("最大並列数 = %d, want <= 2", got)
	}
}

func TestScheduler_RunOnce_ContinuesAfterScanFailure(t *testing.T) {
	repo := &mockBrandRepo{
		listFunc: func(ctx context.Context) ([]*model.Brand, error) {
			return []*model.Brand{
				brandWithPages("b1", "https://example.com/bad", "https://example.com/good"),
			}, nil
		},
	}

	var mu sync.Mutex
	scanned := make(map[string]bool)
	fetcher := &mockPageScanner{
		scanPageFunc: func(ctx context.Context, pageURL string) error {
			mu.Lock()
			scanned[pageURL] = true
			mu.Unlock()
			if pageURL == "https://example.com/bad" {
				return errors.New("fetch failed")
			}
			return nil
		},
	}

	s := NewScheduler(repo, fetcher, testLogger(), 1, 0)
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if !scanned["https://example.com/good"] {
		t.Error("失敗後のページがスキャンされていません")
	}
}

func TestScheduler_RunOnce_ListError(t *testing.T) {
	repo := &mockBrandRepo{
		listFunc: func(ctx context.Context) ([]*model.Brand, error) {
			return nil, errors.New("db down")
		},
	}

	s := NewScheduler(repo, &mockPageScanner{}, testLogger(), 1, 0)
	if err := s.RunOnce(context.Background()); err == nil {
		t.Error("RunOnce() error = nil, want error")
	}
}

// --- Start / Trigger テスト ---

func TestScheduler_Start_RunsInitialScan(t *testing.T) {
	repo := &mockBrandRepo{
		listFunc: func(ctx context.Context) ([]*model.Brand, error) {
			return []*model.Brand{brandWithPages("b1", "https://example.com/p1")}, nil
		},
	}

	var count int32
	fetcher := &mockPageScanner{
		scanPageFunc: func(ctx context.Context, pageURL string) error {
			atomic.AddInt32(&count, 1)
			return nil
		},
	}

	s := NewScheduler(repo, fetcher, testLogger(), 1, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx, 1*time.Hour)
		close(done)
	}()

	// 起動直後の初回スキャンを待つ
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&count) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if atomic.LoadInt32(&count) == 0 {
		t.Error("起動直後の初回スキャンが実行されていません")
	}
}

func TestScheduler_Trigger_CoalescesWithinDebounce(t *testing.T) {
	repo := &mockBrandRepo{
		listFunc: func(ctx context.Context) ([]*model.Brand, error) {
			return []*model.Brand{brandWithPages("b1", "https://example.com/p1")}, nil
		},
	}

	var count int32
	fetcher := &mockPageScanner{
		scanPageFunc: func(ctx context.Context, pageURL string) error {
			atomic.AddInt32(&count, 1)
			return nil
		},
	}

	s := NewScheduler(repo, fetcher, testLogger(), 1, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx, 1*time.Hour)
		close(done)
	}()

	// 初回スキャンの完了を待つ
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&count) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	initial := atomic.LoadInt32(&count)

	// デバウンス間隔内に複数回トリガーする
	s.Trigger()
	s.Trigger()
	s.Trigger()

	// デバウンス経過後の再スキャンを待つ
	deadline = time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&count) == initial && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	// まとめられた要求が追加実行されないことを確認する
	time.Sleep(150 * time.Millisecond)

	got := atomic.LoadInt32(&count)
	if got != initial+1 {
		t.Errorf("トリガー後のスキャン回数 = %d, want %d", got, initial+1)
	}

	cancel()
	<-done
}
