package scan

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/trendman/internal/repository"
)

// PageScannerService はページスキャンの実行インターフェース。
type PageScannerService interface {
	// ScanPage は指定ページを取得してスキャンする。
	ScanPage(ctx context.Context, pageURL string) error
}

// Scheduler は監視ページスキャンのスケジューリングと並列制御を行う。
// 定期ティッカーで全ブランドの監視ページを取得し、semaphoreパターンで
// 最大並列数を制御しながらスキャンを実行する。Triggerによるオンデマンド
// 再スキャンはデバウンス間隔で1回にまとめられる。
type Scheduler struct {
	brandRepo      repository.BrandRepository
	fetcher        PageScannerService
	logger         *slog.Logger
	maxConcurrency int
	debounce       time.Duration

	trigger chan struct{}
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値10、
// debounceが0以下の場合はデフォルト値500msを使用する。
func NewScheduler(
	brandRepo repository.BrandRepository,
	fetcher PageScannerService,
	logger *slog.Logger,
	maxConcurrency int,
	debounce time.Duration,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Scheduler{
		brandRepo:      brandRepo,
		fetcher:        fetcher,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		debounce:       debounce,
		trigger:        make(chan struct{}, 1),
	}
}

// Trigger はオンデマンドの再スキャンを要求する。
// デバウンス間隔内の複数回の要求は1回の再スキャンにまとめられる。
// ブロックしない。
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
		// 既に要求が積まれている場合はまとめられる
	}
}

// Start は定期ティッカーでスケジューラを起動する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("スキャンスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("debounce", s.debounce),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("スキャンサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("スキャンスケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("スキャンサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		case <-s.trigger:
			// デバウンス: 間隔内に積まれた追加の要求をまとめてから実行する
			timer := time.NewTimer(s.debounce)
			select {
			case <-ctx.Done():
				timer.Stop()
				s.logger.Info("スキャンスケジューラを停止しました")
				return
			case <-timer.C:
			}
			select {
			case <-s.trigger:
			default:
			}
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("スキャンサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は全ブランドの監視ページを1回取得し、並列でスキャンを実行する。
// 同一ページが複数ブランドで監視されている場合は1回だけスキャンされる。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	brands, err := s.brandRepo.List(ctx)
	if err != nil {
		return err
	}

	seen := make(map[string]bool)
	var pages []string
	for _, brand := range brands {
		for _, pageURL := range brand.WatchedPages {
			if pageURL == "" || seen[pageURL] {
				continue
			}
			seen[pageURL] = true
			pages = append(pages, pageURL)
		}
	}

	if len(pages) == 0 {
		s.logger.Info("スキャン対象のページはありません")
		return nil
	}

	s.logger.Info("スキャンサイクルを開始します",
		slog.Int("page_count", len(pages)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, pageURL := range pages {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(url string) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if err := s.fetcher.ScanPage(ctx, url); err != nil {
				s.logger.Error("ページスキャンに失敗しました",
					slog.String("page_url", url),
					slog.String("error", err.Error()),
				)
			}
		}(pageURL)
	}

	wg.Wait()

	duration := time.Since(start)
	s.logger.Info("スキャンサイクルが完了しました",
		slog.Int("page_count", len(pages)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
