package idea

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/trendman/internal/model"
)

// --- テスト用モック ---

// mockIdeaRepo はテスト用のIdeaRepositoryモック。
type mockIdeaRepo struct {
	ideas           map[string]*model.Idea // id -> idea
	bySourceID      map[string]*model.Idea // brandID+sourceIdentity -> idea
	bySourceURL     map[string]*model.Idea // brandID+sourceURL -> idea
	byContentHash   map[string]*model.Idea // brandID+hash -> idea
	createCalls     int
	lastCreatedIdea *model.Idea
	findErr         error
}

func newMockIdeaRepo() *mockIdeaRepo {
	return &mockIdeaRepo{
		ideas:         make(map[string]*model.Idea),
		bySourceID:    make(map[string]*model.Idea),
		bySourceURL:   make(map[string]*model.Idea),
		byContentHash: make(map[string]*model.Idea),
	}
}

func (m *mockIdeaRepo) FindByID(_ context.Context, id string) (*model.Idea, error) {
	idea, ok := m.ideas[id]
	if !ok {
		return nil, nil
	}
	return idea, nil
}

func (m *mockIdeaRepo) FindByBrandAndSourceIdentity(_ context.Context, brandID, sourceIdentity string) (*model.Idea, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	idea, ok := m.bySourceID[brandID+"|"+sourceIdentity]
	if !ok {
		return nil, nil
	}
	return idea, nil
}

func (m *mockIdeaRepo) FindByBrandAndSourceURL(_ context.Context, brandID, sourceURL string) (*model.Idea, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	idea, ok := m.bySourceURL[brandID+"|"+sourceURL]
	if !ok {
		return nil, nil
	}
	return idea, nil
}

func (m *mockIdeaRepo) FindByContentHash(_ context.Context, brandID, contentHash string) (*model.Idea, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	idea, ok := m.byContentHash[brandID+"|"+contentHash]
	if !ok {
		return nil, nil
	}
	return idea, nil
}

func (m *mockIdeaRepo) ListByBrand(_ context.Context, brandID string, source model.IdeaSource, limit int) ([]*model.Idea, error) {
	var result []*model.Idea
	for _, idea := range m.ideas {
		if idea.BrandID != brandID {
			continue
		}
		if source != "" && idea.Source != source {
			continue
		}
		result = append(result, idea)
	}
	return result, nil
}

func (m *mockIdeaRepo) Create(_ context.Context, idea *model.Idea) error {
	m.createCalls++
	m.lastCreatedIdea = idea
	m.addExistingIdea(idea)
	return nil
}

func (m *mockIdeaRepo) UpdateNote(_ context.Context, id string, note string) error {
	idea, ok := m.ideas[id]
	if !ok {
		return errors.New("not found")
	}
	idea.Note = note
	return nil
}

func (m *mockIdeaRepo) Delete(_ context.Context, id string) error {
	delete(m.ideas, id)
	return nil
}

// addExistingIdea はテスト用の既存アイデアをモックに追加する。
func (m *mockIdeaRepo) addExistingIdea(idea *model.Idea) {
	m.ideas[idea.ID] = idea
	if idea.SourceIdentity != "" {
		m.bySourceID[idea.BrandID+"|"+idea.SourceIdentity] = idea
	}
	if idea.SourceURL != "" {
		m.bySourceURL[idea.BrandID+"|"+idea.SourceURL] = idea
	}
	if idea.ContentHash != "" {
		m.byContentHash[idea.BrandID+"|"+idea.ContentHash] = idea
	}
}

// mockBrandRepo はテスト用のBrandRepositoryモック。
type mockBrandRepo struct {
	brands map[string]*model.Brand
}

func newMockBrandRepo(ids ...string) *mockBrandRepo {
	m := &mockBrandRepo{brands: make(map[string]*model.Brand)}
	for _, id := range ids {
		m.brands[id] = &model.Brand{ID: id, Name: "ブランド" + id}
	}
	return m
}

func (m *mockBrandRepo) FindByID(_ context.Context, id string) (*model.Brand, error) {
	brand, ok := m.brands[id]
	if !ok {
		return nil, nil
	}
	return brand, nil
}

func (m *mockBrandRepo) List(_ context.Context) ([]*model.Brand, error) { return nil, nil }
func (m *mockBrandRepo) Create(_ context.Context, _ *model.Brand) error { return nil }
func (m *mockBrandRepo) Update(_ context.Context, _ *model.Brand) error { return nil }
func (m *mockBrandRepo) Delete(_ context.Context, _ string) error       { return nil }

// mockSanitizer はテスト用のContentSanitizerServiceモック。
type mockSanitizer struct {
	sanitizeCalls int
}

func (m *mockSanitizer) Sanitize(raw string) string {
	m.sanitizeCalls++
	return raw
}

func newTestService(ideaRepo *mockIdeaRepo, brandRepo *mockBrandRepo) (*Service, *mockSanitizer) {
	sanitizer := &mockSanitizer{}
	return NewService(ideaRepo, brandRepo, sanitizer), sanitizer
}

// --- テスト ---

func TestCreateIdea_NewIdea(t *testing.T) {
	repo := newMockIdeaRepo()
	svc, sanitizer := newTestService(repo, newMockBrandRepo("brand-1"))

	capturedAt := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	input := model.NewIdeaInput{
		BrandID:          "brand-1",
		Content:          "マーケティングに関する投稿",
		Note:             "参考にする",
		Source:           model.IdeaSourcePost,
		SourceURL:        "https://example.com/posts/1",
		SourceIdentity:   "https_example_com_posts_1-prefix",
		AuthorName:       "山田太郎",
		AuthorProfileURL: "https://example.com/in/yamada",
		CapturedAt:       &capturedAt,
	}

	idea, err := svc.CreateIdea(context.Background(), input)
	if err != nil {
		t.Fatalf("アイデア作成が失敗しました: %v", err)
	}

	if idea.ID == "" {
		t.Error("アイデアIDが生成されていません")
	}
	if idea.ContentHash == "" {
		t.Error("content_hashが計算されていません")
	}
	if repo.createCalls != 1 {
		t.Errorf("Create呼び出し回数が%dです（期待値: 1）", repo.createCalls)
	}
	// コンテンツと注記の両方にサニタイズが適用される
	if sanitizer.sanitizeCalls != 2 {
		t.Errorf("Sanitize呼び出し回数が%dです（期待値: 2）", sanitizer.sanitizeCalls)
	}
}

func TestCreateIdea_DuplicateBySourceIdentity(t *testing.T) {
	repo := newMockIdeaRepo()
	repo.addExistingIdea(&model.Idea{
		ID:             "existing-1",
		BrandID:        "brand-1",
		SourceIdentity: "identity-1",
		Content:        "既存のアイデア",
	})
	svc, _ := newTestService(repo, newMockBrandRepo("brand-1"))

	_, err := svc.CreateIdea(context.Background(), model.NewIdeaInput{
		BrandID:        "brand-1",
		Content:        "別のコンテンツ",
		Source:         model.IdeaSourcePost,
		SourceIdentity: "identity-1",
	})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeDuplicateIdea {
		t.Fatalf("重複エラーが返されません: %v", err)
	}
	if repo.createCalls != 0 {
		t.Errorf("重複時にCreateが呼ばれています（回数: %d）", repo.createCalls)
	}
}

func TestCreateIdea_DuplicateBySourceURL(t *testing.T) {
	repo := newMockIdeaRepo()
	repo.addExistingIdea(&model.Idea{
		ID:        "existing-1",
		BrandID:   "brand-1",
		SourceURL: "https://example.com/posts/1",
		Content:   "既存のアイデア",
	})
	svc, _ := newTestService(repo, newMockBrandRepo("brand-1"))

	// source_identityは一致しないがsource_urlが一致する（第2優先で検出）
	_, err := svc.CreateIdea(context.Background(), model.NewIdeaInput{
		BrandID:        "brand-1",
		Content:        "別のコンテンツ",
		Source:         model.IdeaSourcePost,
		SourceURL:      "https://example.com/posts/1",
		SourceIdentity: "different-identity",
	})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeDuplicateIdea {
		t.Fatalf("重複エラーが返されません: %v", err)
	}
}

func TestCreateIdea_DuplicateByContentHash(t *testing.T) {
	repo := newMockIdeaRepo()
	svc, _ := newTestService(repo, newMockBrandRepo("brand-1"))

	input := model.NewIdeaInput{
		BrandID: "brand-1",
		Content: "同一コンテンツの手動アイデア",
		Source:  model.IdeaSourceManual,
	}
	if _, err := svc.CreateIdea(context.Background(), input); err != nil {
		t.Fatalf("1件目の作成が失敗しました: %v", err)
	}

	// identityもURLも持たない手動アイデアはcontent_hashで重複検出される
	_, err := svc.CreateIdea(context.Background(), input)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeDuplicateIdea {
		t.Fatalf("重複エラーが返されません: %v", err)
	}
	if repo.createCalls != 1 {
		t.Errorf("Create呼び出し回数が%dです（期待値: 1）", repo.createCalls)
	}
}

func TestCreateIdea_SameIdentityDifferentBrand(t *testing.T) {
	repo := newMockIdeaRepo()
	repo.addExistingIdea(&model.Idea{
		ID:             "existing-1",
		BrandID:        "brand-1",
		SourceIdentity: "identity-1",
		Content:        "既存のアイデア",
		ContentHash:    "hash-1",
	})
	svc, _ := newTestService(repo, newMockBrandRepo("brand-1", "brand-2"))

	// 同じ投稿でも別ブランドなら重複にはならない
	idea, err := svc.CreateIdea(context.Background(), model.NewIdeaInput{
		BrandID:        "brand-2",
		Content:        "別ブランドのアイデア",
		Source:         model.IdeaSourcePost,
		SourceIdentity: "identity-1",
	})
	if err != nil {
		t.Fatalf("別ブランドへの作成が失敗しました: %v", err)
	}
	if idea.BrandID != "brand-2" {
		t.Errorf("ブランドIDが%sです（期待値: brand-2）", idea.BrandID)
	}
}

func TestCreateIdea_BrandNotFound(t *testing.T) {
	svc, _ := newTestService(newMockIdeaRepo(), newMockBrandRepo())

	_, err := svc.CreateIdea(context.Background(), model.NewIdeaInput{
		BrandID: "missing",
		Content: "コンテンツ",
	})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeBrandNotFound {
		t.Fatalf("ブランド未検出エラーが返されません: %v", err)
	}
}

func TestCreateIdea_ValidatesRequiredFields(t *testing.T) {
	svc, _ := newTestService(newMockIdeaRepo(), newMockBrandRepo("brand-1"))

	cases := []struct {
		name  string
		input model.NewIdeaInput
	}{
		{"ブランドIDなし", model.NewIdeaInput{Content: "c"}},
		{"コンテンツなし", model.NewIdeaInput{BrandID: "brand-1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateIdea(context.Background(), tc.input)
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidInput {
				t.Errorf("入力検証エラーが返されません: %v", err)
			}
		})
	}
}

func TestCreateIdea_DefaultsToManualSource(t *testing.T) {
	repo := newMockIdeaRepo()
	svc, _ := newTestService(repo, newMockBrandRepo("brand-1"))

	idea, err := svc.CreateIdea(context.Background(), model.NewIdeaInput{
		BrandID: "brand-1",
		Content: "由来未指定のアイデア",
	})
	if err != nil {
		t.Fatalf("アイデア作成が失敗しました: %v", err)
	}
	if idea.Source != model.IdeaSourceManual {
		t.Errorf("由来種別が%sです（期待値: %s）", idea.Source, model.IdeaSourceManual)
	}
}

func TestCreateIdea_FindErrorPropagated(t *testing.T) {
	repo := newMockIdeaRepo()
	repo.findErr = errors.New("db down")
	svc, _ := newTestService(repo, newMockBrandRepo("brand-1"))

	_, err := svc.CreateIdea(context.Background(), model.NewIdeaInput{
		BrandID:        "brand-1",
		Content:        "コンテンツ",
		SourceIdentity: "identity-1",
	})
	if err == nil {
		t.Fatal("同一性判定エラーが伝播しません")
	}
	if repo.createCalls != 0 {
		t.Errorf("判定エラー時にCreateが呼ばれています（回数: %d）", repo.createCalls)
	}
}

func TestGetIdea_NotFound(t *testing.T) {
	svc, _ := newTestService(newMockIdeaRepo(), newMockBrandRepo())

	_, err := svc.GetIdea(context.Background(), "missing")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeIdeaNotFound {
		t.Fatalf("アイデア未検出エラーが返されません: %v", err)
	}
}

func TestUpdateNote_SanitizesNote(t *testing.T) {
	repo := newMockIdeaRepo()
	repo.addExistingIdea(&model.Idea{ID: "idea-1", BrandID: "brand-1", Content: "c"})
	svc, sanitizer := newTestService(repo, newMockBrandRepo("brand-1"))

	if err := svc.UpdateNote(context.Background(), "idea-1", "新しい注記"); err != nil {
		t.Fatalf("注記の更新が失敗しました: %v", err)
	}
	if sanitizer.sanitizeCalls != 1 {
		t.Errorf("Sanitize呼び出し回数が%dです（期待値: 1）", sanitizer.sanitizeCalls)
	}
	if repo.ideas["idea-1"].Note != "新しい注記" {
		t.Errorf("注記が更新されていません: %s", repo.ideas["idea-1"].Note)
	}
}

func TestDeleteIdea_RemovesIdea(t *testing.T) {
	repo := newMockIdeaRepo()
	repo.addExistingIdea(&model.Idea{ID: "idea-1", BrandID: "brand-1", Content: "c"})
	svc, _ := newTestService(repo, newMockBrandRepo("brand-1"))

	if err := svc.DeleteIdea(context.Background(), "idea-1"); err != nil {
		t.Fatalf("アイデアの削除が失敗しました: %v", err)
	}
	if _, ok := repo.ideas["idea-1"]; ok {
		t.Error("アイデアが削除されていません")
	}
}
