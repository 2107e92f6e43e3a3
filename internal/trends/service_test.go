package trends

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/trendman/internal/model"
	"github.com/hitoshi/trendman/internal/trendcache"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// fakeSource はカテゴリ名ごとに固定結果を返すテスト用Source。
type fakeSource struct {
	items      map[string][]model.TrendItem
	errs       map[string]error
	fetchCalls int
}

func (f *fakeSource) FetchCategory(_ context.Context, category model.TrendCategory) ([]model.TrendItem, error) {
	f.fetchCalls++
	if err, ok := f.errs[category.Name]; ok {
		return nil, err
	}
	return f.items[category.Name], nil
}

// fakeBrandRepo はテスト用のBrandRepositoryモック。
type fakeBrandRepo struct {
	brands map[string]*model.Brand
}

func (f *fakeBrandRepo) FindByID(_ context.Context, id string) (*model.Brand, error) {
	return f.brands[id], nil
}
func (f *fakeBrandRepo) List(_ context.Context) ([]*model.Brand, error) { return nil, nil }
func (f *fakeBrandRepo) Create(_ context.Context, _ *model.Brand) error { return nil }
func (f *fakeBrandRepo) Update(_ context.Context, _ *model.Brand) error { return nil }
func (f *fakeBrandRepo) Delete(_ context.Context, _ string) error       { return nil }

// fakeIdeaCreator はテスト用のIdeaCreatorモック。
type fakeIdeaCreator struct {
	createCalls int
	err         error
	lastInput   model.NewIdeaInput
}

func (f *fakeIdeaCreator) CreateIdea(_ context.Context, input model.NewIdeaInput) (*model.Idea, error) {
	f.createCalls++
	f.lastInput = input
	if f.err != nil {
		return nil, f.err
	}
	return &model.Idea{ID: "idea-1", BrandID: input.BrandID, Content: input.Content, Source: input.Source}, nil
}

func testBrand() *model.Brand {
	return &model.Brand{
		ID:   "brand-1",
		Name: "テストブランド",
		Categories: []model.TrendCategory{
			{Name: "テック", FeedURL: "https://example.com/tech.rss"},
			{Name: "マーケ", FeedURL: "https://example.com/marketing.rss"},
		},
	}
}

func newTestService(source Source, ideas IdeaCreator) (*Service, *trendcache.Cache) {
	cache := trendcache.New(trendcache.NewMemoryStore(), testLogger())
	repo := &fakeBrandRepo{brands: map[string]*model.Brand{"brand-1": testBrand()}}
	return NewService(repo, source, cache, ideas, testLogger(), nil), cache
}

func TestScan_FetchesAllCategoriesOnCacheMiss(t *testing.T) {
	source := &fakeSource{items: map[string][]model.TrendItem{
		"テック": {{Title: "新技術", SourceURL: "https://example.com/a"}},
		"マーケ": {{Title: "新戦略", SourceURL: "https://example.com/b"}},
	}}
	svc, _ := newTestService(source, &fakeIdeaCreator{})

	result, err := svc.Scan(context.Background(), "brand-1")
	if err != nil {
		t.Fatalf("スキャンが失敗しました: %v", err)
	}
	if result.FromCache {
		t.Error("初回スキャンがキャッシュ扱いになっています")
	}
	if len(result.Results) != 2 {
		t.Fatalf("カテゴリ数が%dです（期待値: 2）", len(result.Results))
	}
	if source.fetchCalls != 2 {
		t.Errorf("取得回数が%dです（期待値: 2）", source.fetchCalls)
	}
}

func TestScan_SecondScanServedFromCache(t *testing.T) {
	source := &fakeSource{items: map[string][]model.TrendItem{
		"テック": {{Title: "新技術", SourceURL: "https://example.com/a"}},
		"マーケ": {},
	}}
	svc, _ := newTestService(source, &fakeIdeaCreator{})

	if _, err := svc.Scan(context.Background(), "brand-1"); err != nil {
		t.Fatalf("1回目のスキャンが失敗しました: %v", err)
	}

	result, err := svc.Scan(context.Background(), "brand-1")
	if err != nil {
		t.Fatalf("2回目のスキャンが失敗しました: %v", err)
	}
	if !result.FromCache {
		t.Error("2回目のスキャンがキャッシュから返されていません")
	}
	// 2回目は外部取得が発生しない
	if source.fetchCalls != 2 {
		t.Errorf("取得回数が%dです（期待値: 2）", source.fetchCalls)
	}
}

func TestScan_PartialFailureWritesNoCache(t *testing.T) {
	source := &fakeSource{
		items: map[string][]model.TrendItem{
			"テック": {{Title: "新技術", SourceURL: "https://example.com/a"}},
		},
		errs: map[string]error{"マーケ": errors.New("フィード取得失敗")},
	}
	svc, cache := newTestService(source, &fakeIdeaCreator{})

	_, err := svc.Scan(context.Background(), "brand-1")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeTrendScanError {
		t.Fatalf("トレンドスキャンエラーが返されません: %v", err)
	}

	// 部分的な結果が当日分として固定されてはいけない
	if cached := cache.Read(context.Background(), "brand-1"); cached != nil {
		t.Error("部分失敗のスキャン結果がキャッシュされています")
	}
}

func TestScan_BrandNotFound(t *testing.T) {
	svc, _ := newTestService(&fakeSource{}, &fakeIdeaCreator{})

	_, err := svc.Scan(context.Background(), "missing")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeBrandNotFound {
		t.Fatalf("ブランド未検出エラーが返されません: %v", err)
	}
}

func TestScan_NoCategoriesIsInvalid(t *testing.T) {
	cache := trendcache.New(trendcache.NewMemoryStore(), testLogger())
	repo := &fakeBrandRepo{brands: map[string]*model.Brand{
		"brand-1": {ID: "brand-1", Name: "カテゴリなし"},
	}}
	svc := NewService(repo, &fakeSource{}, cache, &fakeIdeaCreator{}, testLogger(), nil)

	_, err := svc.Scan(context.Background(), "brand-1")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidInput {
		t.Fatalf("入力検証エラーが返されません: %v", err)
	}
}

func TestConvertToIdea_MarksAdded(t *testing.T) {
	source := &fakeSource{items: map[string][]model.TrendItem{
		"テック": {{Title: "新技術", SourceURL: "https://example.com/a", Summary: "要約"}},
		"マーケ": {},
	}}
	creator := &fakeIdeaCreator{}
	svc, cache := newTestService(source, creator)

	publishedAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	item := model.TrendItem{
		Title:       "新技術",
		SourceURL:   "https://example.com/a",
		SourceName:  "テックニュース",
		Summary:     "要約",
		PublishedAt: &publishedAt,
	}

	idea, err := svc.ConvertToIdea(context.Background(), "brand-1", item)
	if err != nil {
		t.Fatalf("アイデア変換が失敗しました: %v", err)
	}
	if idea.Source != model.IdeaSourceTrend {
		t.Errorf("由来種別が%sです（期待値: %s）", idea.Source, model.IdeaSourceTrend)
	}
	if creator.lastInput.Content != "新技術\n要約" {
		t.Errorf("コンテンツが%qです", creator.lastInput.Content)
	}
	if !cache.IsAdded(context.Background(), "brand-1", "https://example.com/a") {
		t.Error("変換後に追加済みとして記録されていません")
	}

	// スキャン結果にAddedフラグが反映される
	result, err := svc.Scan(context.Background(), "brand-1")
	if err != nil {
		t.Fatalf("スキャンが失敗しました: %v", err)
	}
	if !result.Results[0].Items[0].Added {
		t.Error("スキャン結果にAddedフラグが付与されていません")
	}
}

func TestConvertToIdea_RejectsAlreadyAdded(t *testing.T) {
	creator := &fakeIdeaCreator{}
	svc, cache := newTestService(&fakeSource{}, creator)

	if err := cache.MarkAdded(context.Background(), "brand-1", "https://example.com/a"); err != nil {
		t.Fatalf("追加済み記録に失敗しました: %v", err)
	}

	_, err := svc.ConvertToIdea(context.Background(), "brand-1", model.TrendItem{
		Title:     "新技術",
		SourceURL: "https://example.com/a",
	})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeDuplicateIdea {
		t.Fatalf("重複エラーが返されません: %v", err)
	}
	if creator.createCalls != 0 {
		t.Errorf("重複時にCreateIdeaが呼ばれています（回数: %d）", creator.createCalls)
	}
}

func TestConvertToIdea_CreateFailureDoesNotMarkAdded(t *testing.T) {
	creator := &fakeIdeaCreator{err: errors.New("db down")}
	svc, cache := newTestService(&fakeSource{}, creator)

	_, err := svc.ConvertToIdea(context.Background(), "brand-1", model.TrendItem{
		Title:     "新技術",
		SourceURL: "https://example.com/a",
	})
	if err == nil {
		t.Fatal("作成失敗のエラーが返されません")
	}
	if cache.IsAdded(context.Background(), "brand-1", "https://example.com/a") {
		t.Error("作成失敗時に追加済みとして記録されています")
	}
}

// recordingMetrics はRecorderの呼び出し回数を数えるテスト用実装。
type recordingMetrics struct {
	hits, misses, failures int
}

func (m *recordingMetrics) RecordTrendCacheHit()    { m.hits++ }
func (m *recordingMetrics) RecordTrendCacheMiss()   { m.misses++ }
func (m *recordingMetrics) RecordTrendScanFailure() { m.failures++ }

func TestScan_RecordsCacheMetrics(t *testing.T) {
	source := &fakeSource{items: map[string][]model.TrendItem{
		"テック": {{Title: "新技術", SourceURL: "https://example.com/a"}},
		"マーケ": {{Title: "市況", SourceURL: "https://example.com/b"}},
	}}
	cache := trendcache.New(trendcache.NewMemoryStore(), testLogger())
	repo := &fakeBrandRepo{brands: map[string]*model.Brand{"brand-1": testBrand()}}
	metrics := &recordingMetrics{}
	svc := NewService(repo, source, cache, &fakeIdeaCreator{}, testLogger(), metrics)

	ctx := context.Background()
	if _, err := svc.Scan(ctx, "brand-1"); err != nil {
		t.Fatalf("1回目のScan() error = %v", err)
	}
	if _, err := svc.Scan(ctx, "brand-1"); err != nil {
		t.Fatalf("2回目のScan() error = %v", err)
	}

	if metrics.misses != 1 {
		t.Errorf("キャッシュミス回数 = %d, want 1", metrics.misses)
	}
	if metrics.hits != 1 {
		t.Errorf("キャッシュヒット回数 = %d, want 1", metrics.hits)
	}
}
