package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/trendman/internal/metrics"
	"github.com/hitoshi/trendman/internal/middleware"
	"github.com/hitoshi/trendman/internal/scanner"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// ヘルスチェック
	HealthChecker HealthChecker

	// メトリクス
	MetricsGatherer prometheus.Gatherer

	// スキャン
	SSRFGuard     SSRFValidator
	ScanRecorder  scanner.Recorder
	ScanConfig    ScanHandlerConfig

	// 保存
	SaveService SaveServiceInterface

	// ブランド
	BrandService BrandServiceInterface

	// アイデア
	IdeaService IdeaServiceInterface

	// トレンド
	TrendService TrendServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORSMiddleware → SecurityHeadersMiddleware → LoggingMiddleware → RecoveryMiddleware
//
// /api配下には一般レート制限を適用し、スキャン系エンドポイントには
// スキャン専用レート制限を追加で適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// 全ルートに効く共通ミドルウェア
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())

	healthHandler := NewHealthHandler(deps.HealthChecker)
	scanHandler := NewScanHandler(deps.SSRFGuard, deps.ScanRecorder, logger, deps.ScanConfig)
	saveHandler := NewSaveHandler(deps.SaveService)
	brandHandler := NewBrandHandler(deps.BrandService)
	ideaHandler := NewIdeaHandler(deps.IdeaService)
	trendHandler := NewTrendHandler(deps.TrendService)

	// --- レート制限の外に置くルート ---

	// ヘルスチェック（Dockerヘルスチェック用）
	r.Get("/health", healthHandler.Health)

	// Prometheusメトリクス
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.SetupMetricsRoute(deps.MetricsGatherer))
	}

	// --- APIルート ---
	// ミドルウェアスタック: RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ページスキャン（スキャン専用レート制限を追加）
		r.With(deps.RateLimiter.ScanMiddleware()).Post("/api/scan", scanHandler.Scan)

		// 投稿保存
		r.Post("/api/save", saveHandler.Save)

		// ブランド管理
		r.Route("/api/brands", func(r chi.Router) {
			r.Get("/", brandHandler.ListBrands)
			r.Post("/", brandHandler.CreateBrand)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", brandHandler.GetBrand)
				r.Put("/", brandHandler.UpdateBrand)
				r.Delete("/", brandHandler.DeleteBrand)

				// GET /api/brands/{id}/ideas - ブランドごとのアイデア一覧
				r.Get("/ideas", ideaHandler.ListIdeas)

				// トレンドスキャン（スキャン専用レート制限を追加）
				r.With(deps.RateLimiter.ScanMiddleware()).Get("/trends", trendHandler.ScanTrends)
				r.Post("/trends/ideas", trendHandler.ConvertToIdea)
				r.Post("/trends/added", trendHandler.MarkAdded)
			})
		})

		// アイデア管理
		r.Route("/api/ideas", func(r chi.Router) {
			r.Post("/", ideaHandler.CreateIdea)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", ideaHandler.GetIdea)
				r.Patch("/note", ideaHandler.UpdateNote)
				r.Delete("/", ideaHandler.DeleteIdea)
			})
		})
	})

	return r
}
