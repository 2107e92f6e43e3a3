// Package app はアプリケーションの初期化・起動・サブコマンド分岐を提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/hitoshi/trendman/internal/brand"
	"github.com/hitoshi/trendman/internal/collab"
	"github.com/hitoshi/trendman/internal/config"
	"github.com/hitoshi/trendman/internal/database"
	"github.com/hitoshi/trendman/internal/handler"
	"github.com/hitoshi/trendman/internal/idea"
	"github.com/hitoshi/trendman/internal/logger"
	"github.com/hitoshi/trendman/internal/metrics"
	"github.com/hitoshi/trendman/internal/middleware"
	"github.com/hitoshi/trendman/internal/repository"
	"github.com/hitoshi/trendman/internal/save"
	"github.com/hitoshi/trendman/internal/scanner"
	"github.com/hitoshi/trendman/internal/security"
	"github.com/hitoshi/trendman/internal/trendcache"
	"github.com/hitoshi/trendman/internal/trends"
	scanworker "github.com/hitoshi/trendman/internal/worker/scan"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openRedis はRedisクライアントを生成し、疎通を確認する。
// 疎通に失敗してもクライアントを返す。キャッシュ層はストレージ不調を
// 常時ミスとして吸収するため、Redisの不在は起動を妨げない。
func openRedis(cfg *config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("Redisへの接続に失敗しました（キャッシュは常時ミスとして動作します）",
			slog.String("addr", cfg.RedisAddr),
			slog.String("error", err.Error()),
		)
	} else {
		slog.Info("redis connection established", slog.String("addr", cfg.RedisAddr))
	}

	return client
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. Redis接続（トレンドキャッシュ / 追加済みレジストリ）
	redisClient := openRedis(cfg)
	defer redisClient.Close()

	// 3. リポジトリの初期化
	brandRepo := repository.NewPostgresBrandRepo(db)
	ideaRepo := repository.NewPostgresIdeaRepo(db)

	// 4. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 5. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 6. ドメインサービスの初期化
	brandService := brand.NewService(brandRepo)
	ideaService := idea.NewService(ideaRepo, brandRepo, sanitizer)

	cache := trendcache.New(trendcache.NewRedisStore(redisClient), slog.Default())
	trendSource := trends.NewFeedSource(ssrfGuard, sanitizer, slog.Default(), cfg.FetchTimeout, cfg.FetchMaxSize)
	trendService := trends.NewService(brandRepo, trendSource, cache, ideaService, slog.Default(), collector)

	// 7. 保存アクションの送信先の選択
	// COLLAB_ENDPOINT設定時はコラボレータへHTTP送信、未設定時は自サービスへ直接保存
	var saver save.Saver
	if cfg.CollabEndpoint != "" {
		saver = collab.NewClient(
			&http.Client{Timeout: cfg.FetchTimeout},
			slog.Default(),
			cfg.CollabEndpoint,
		)
		slog.Info("保存アクションの送信先: コラボレータ", slog.String("endpoint", cfg.CollabEndpoint))
	} else {
		saver = save.NewLocalSaver(ideaService)
		slog.Info("保存アクションの送信先: ローカルのアイデアサービス")
	}
	saveService := save.NewService(saver, slog.Default(), collector, cfg.SaveConfirmationTTL)
	defer saveService.Stop()

	// 8. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(cfg.RateLimitGeneral) / 60.0),
		GeneralBurst:    cfg.RateLimitGeneral,
		ScanRate:        rate.Limit(float64(cfg.RateLimitScan) / 60.0),
		ScanBurst:       cfg.RateLimitScan,
		CleanupInterval: 5 * time.Minute,
	})
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		HealthChecker:     db,
		MetricsGatherer:   registry,

		SSRFGuard:    ssrfGuard,
		ScanRecorder: collector,
		ScanConfig: handler.ScanHandlerConfig{
			FetchTimeout: cfg.FetchTimeout,
			FetchMaxSize: cfg.FetchMaxSize,
			ScannerCfg: scanner.Config{
				MinContentLen:     cfg.ScanMinContentLen,
				IdentityPrefixLen: cfg.ScanIdentityPrefixLen,
			},
		},

		SaveService:  saveService,
		BrandService: brandService,
		IdeaService:  ideaService,
		TrendService: trendService,
	}

	router := handler.NewRouter(deps)

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はスキャンワーカーモードで起動する。
// DB接続を開き、監視ページのスキャンスケジューラを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	brandRepo := repository.NewPostgresBrandRepo(db)

	// 3. セキュリティサービスとメトリクスの初期化
	ssrfGuard := security.NewSSRFGuard()
	collector := metrics.NewCollector(prometheus.NewRegistry())

	// 4. フェッチャーの初期化
	fetcher := scanworker.NewFetcher(
		ssrfGuard, slog.Default(), collector,
		cfg.FetchTimeout, cfg.FetchMaxSize,
		scanner.Config{
			MinContentLen:     cfg.ScanMinContentLen,
			IdentityPrefixLen: cfg.ScanIdentityPrefixLen,
		},
	)

	// 5. スケジューラの起動
	scheduler := scanworker.NewScheduler(
		brandRepo, fetcher, slog.Default(),
		cfg.ScanMaxConcurrent, cfg.ScanDebounce,
	)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("scan_interval", cfg.ScanInterval),
		slog.Int("max_concurrent", cfg.ScanMaxConcurrent),
	)

	// スキャンスケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.ScanInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
