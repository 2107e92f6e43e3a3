package trends

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/trendman/internal/model"
	"github.com/hitoshi/trendman/internal/repository"
	"github.com/hitoshi/trendman/internal/trendcache"
)

// IdeaCreator はトレンドアイテムのアイデア変換先インターフェース。
type IdeaCreator interface {
	CreateIdea(ctx context.Context, input model.NewIdeaInput) (*model.Idea, error)
}

// Recorder はトレンドスキャンが記録するメトリクスのインターフェース。
type Recorder interface {
	RecordTrendCacheHit()
	RecordTrendCacheMiss()
	RecordTrendScanFailure()
}

// nopRecorder はRecorderの何もしない実装。
type nopRecorder struct{}

func (nopRecorder) RecordTrendCacheHit()    {}
func (nopRecorder) RecordTrendCacheMiss()   {}
func (nopRecorder) RecordTrendScanFailure() {}

// Service はブランドのトレンドスキャンを提供する。
//
// スキャンはキャッシュ優先の契約に従う: 当日分のキャッシュがあれば
// 外部取得を一切行わずそれを返し、なければ全カテゴリを取得して
// キャッシュへ書き込む。キャッシュ書き込みは全カテゴリの取得が
// 成功した場合のみ行われ、部分的な結果が当日分として固定されることはない。
type Service struct {
	brandRepo repository.BrandRepository
	source    Source
	cache     *trendcache.Cache
	ideas     IdeaCreator
	logger    *slog.Logger
	metrics   Recorder
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// metricsがnilの場合は何も記録しない。
func NewService(
	brandRepo repository.BrandRepository,
	source Source,
	cache *trendcache.Cache,
	ideas IdeaCreator,
	logger *slog.Logger,
	metrics Recorder,
) *Service {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Service{
		brandRepo: brandRepo,
		source:    source,
		cache:     cache,
		ideas:     ideas,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Scan はブランドのトレンドスキャン結果を返す。
// 当日分のキャッシュがあればそれを返し（FromCache=true）、
// なければ全カテゴリを取得してキャッシュへ書き込む。
// いずれの場合もAddedフラグは追加済みレジストリから読み出し時に付与される。
func (s *Service) Scan(ctx context.Context, brandID string) (*model.TrendScanResult, error) {
	brand, err := s.brandRepo.FindByID(ctx, brandID)
	if err != nil {
		return nil, fmt.Errorf("ブランドの取得に失敗: %w", err)
	}
	if brand == nil {
		return nil, model.NewBrandNotFoundError(brandID)
	}
	if len(brand.Categories) == 0 {
		return nil, model.NewInvalidInputError("トレンドカテゴリが設定されていません")
	}

	// キャッシュ優先: 当日分があれば外部取得は行わない
	if cached := s.cache.Read(ctx, brandID); cached != nil {
		s.metrics.RecordTrendCacheHit()
		s.annotateAdded(ctx, brandID, cached)
		s.logger.Info("トレンドキャッシュから返却します",
			slog.String("brand_id", brandID),
			slog.Int("categories", len(cached)),
		)
		return &model.TrendScanResult{
			BrandID:   brandID,
			Results:   cached,
			FromCache: true,
			ScannedAt: s.now(),
		}, nil
	}

	s.metrics.RecordTrendCacheMiss()

	// 全カテゴリを取得。1つでも失敗したらキャッシュへは書き込まない。
	results := make([]model.CategoryTrends, 0, len(brand.Categories))
	for _, category := range brand.Categories {
		items, err := s.source.FetchCategory(ctx, category)
		if err != nil {
			s.metrics.RecordTrendScanFailure()
			s.logger.Error("カテゴリのトレンド取得に失敗しました",
				slog.String("brand_id", brandID),
				slog.String("category", category.Name),
				slog.String("error", err.Error()),
			)
			return nil, model.NewTrendScanError(fmt.Sprintf("カテゴリ %s: %s", category.Name, err.Error()))
		}
		results = append(results, model.CategoryTrends{
			Category: category.Name,
			Items:    items,
		})
	}

	if err := s.cache.Write(ctx, brandID, results); err != nil {
		// キャッシュ書き込み失敗は結果返却を妨げない
		s.logger.Warn("トレンドキャッシュの書き込みに失敗しました",
			slog.String("brand_id", brandID),
			slog.String("error", err.Error()),
		)
	}

	s.annotateAdded(ctx, brandID, results)

	s.logger.Info("トレンドスキャンが完了しました",
		slog.String("brand_id", brandID),
		slog.Int("categories", len(results)),
	)

	return &model.TrendScanResult{
		BrandID:   brandID,
		Results:   results,
		FromCache: false,
		ScannedAt: s.now(),
	}, nil
}

// ConvertToIdea はトレンドアイテムをアイデアへ変換し、追加済みとして記録する。
// 既に追加済みのアイテムは重複エラーを返す。
func (s *Service) ConvertToIdea(ctx context.Context, brandID string, item model.TrendItem) (*model.Idea, error) {
	if item.SourceURL == "" {
		return nil, model.NewInvalidInputError("トレンドアイテムのURLが指定されていません")
	}
	if s.cache.IsAdded(ctx, brandID, item.SourceURL) {
		return nil, model.NewDuplicateIdeaError()
	}

	content := item.Title
	if item.Summary != "" {
		content = item.Title + "\n" + item.Summary
	}

	idea, err := s.ideas.CreateIdea(ctx, model.NewIdeaInput{
		BrandID:    brandID,
		Content:    content,
		Source:     model.IdeaSourceTrend,
		SourceURL:  item.SourceURL,
		AuthorName: item.SourceName,
		CapturedAt: item.PublishedAt,
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.MarkAdded(ctx, brandID, item.SourceURL); err != nil {
		// レジストリ更新の失敗はアイデア作成を取り消さない。
		// 次回の変換はアイデア側の同一性判定で重複として拒否される。
		s.logger.Warn("追加済みレジストリの更新に失敗しました",
			slog.String("brand_id", brandID),
			slog.String("url", item.SourceURL),
			slog.String("error", err.Error()),
		)
	}

	return idea, nil
}

// MarkAdded はトレンドアイテムを追加済みとして記録する。
func (s *Service) MarkAdded(ctx context.Context, brandID, url string) error {
	if url == "" {
		return model.NewInvalidInputError("URLが指定されていません")
	}
	return s.cache.MarkAdded(ctx, brandID, url)
}

// annotateAdded は結果内の各アイテムへAddedフラグを付与する。
func (s *Service) annotateAdded(ctx context.Context, brandID string, results []model.CategoryTrends) {
	for ci := range results {
		for ii := range results[ci].Items {
			item := &results[ci].Items[ii]
			item.Added = s.cache.IsAdded(ctx, brandID, item.SourceURL)
		}
	}
}
