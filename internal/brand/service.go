// Package brand はパーソナルブランドの管理機能を提供する。
package brand

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/trendman/internal/model"
	"github.com/hitoshi/trendman/internal/repository"
)

// ブランド1件あたりの上限。UIの想定規模を超える登録を防ぐ。
const (
	maxKeywords     = 20
	maxWatchedPages = 10
	maxCategories   = 10
)

// Service はブランドのCRUD処理と入力検証を提供する。
type Service struct {
	brandRepo repository.BrandRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(brandRepo repository.BrandRepository) *Service {
	return &Service{brandRepo: brandRepo}
}

// CreateBrand は新規ブランドを作成する。
func (s *Service) CreateBrand(ctx context.Context, input model.Brand) (*model.Brand, error) {
	if err := validateBrand(&input); err != nil {
		return nil, err
	}

	now := time.Now()
	brand := &model.Brand{
		ID:           uuid.New().String(),
		Name:         strings.TrimSpace(input.Name),
		Keywords:     input.Keywords,
		WatchedPages: input.WatchedPages,
		Categories:   input.Categories,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.brandRepo.Create(ctx, brand); err != nil {
		slog.Error("ブランドの作成でエラー", "name", brand.Name, "error", err)
		return nil, fmt.Errorf("ブランドの作成に失敗: %w", err)
	}

	slog.Info("ブランド作成完了", "brand_id", brand.ID, "name", brand.Name)
	return brand, nil
}

// GetBrand は指定IDのブランドを取得する。
func (s *Service) GetBrand(ctx context.Context, id string) (*model.Brand, error) {
	brand, err := s.brandRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ブランドの取得に失敗: %w", err)
	}
	if brand == nil {
		return nil, model.NewBrandNotFoundError(id)
	}
	return brand, nil
}

// ListBrands は全ブランドを返す。
func (s *Service) ListBrands(ctx context.Context) ([]*model.Brand, error) {
	brands, err := s.brandRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ブランド一覧の取得に失敗: %w", err)
	}
	return brands, nil
}

// UpdateBrand はブランド情報を更新する。カテゴリと巡回ページは全置換される。
func (s *Service) UpdateBrand(ctx context.Context, id string, input model.Brand) (*model.Brand, error) {
	existing, err := s.GetBrand(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validateBrand(&input); err != nil {
		return nil, err
	}

	existing.Name = strings.TrimSpace(input.Name)
	existing.Keywords = input.Keywords
	existing.WatchedPages = input.WatchedPages
	existing.Categories = input.Categories
	existing.UpdatedAt = time.Now()

	if err := s.brandRepo.Update(ctx, existing); err != nil {
		slog.Error("ブランドの更新でエラー", "brand_id", id, "error", err)
		return nil, fmt.Errorf("ブランドの更新に失敗: %w", err)
	}
	return existing, nil
}

// DeleteBrand は指定IDのブランドを削除する。
func (s *Service) DeleteBrand(ctx context.Context, id string) error {
	if _, err := s.GetBrand(ctx, id); err != nil {
		return err
	}
	if err := s.brandRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("ブランドの削除に失敗: %w", err)
	}
	slog.Info("ブランド削除完了", "brand_id", id)
	return nil
}

// validateBrand はブランド入力を検証する。
func validateBrand(b *model.Brand) error {
	if strings.TrimSpace(b.Name) == "" {
		return model.NewInvalidInputError("ブランド名は必須です")
	}
	if len(b.Keywords) > maxKeywords {
		return model.NewInvalidInputError(fmt.Sprintf("キーワードは%d件までです", maxKeywords))
	}
	if len(b.WatchedPages) > maxWatchedPages {
		return model.NewInvalidInputError(fmt.Sprintf("巡回ページは%d件までです", maxWatchedPages))
	}
	if len(b.Categories) > maxCategories {
		return model.NewInvalidInputError(fmt.Sprintf("カテゴリは%d件までです", maxCategories))
	}
	for _, page := range b.WatchedPages {
		if err := validateHTTPURL(page); err != nil {
			return model.NewInvalidURLError(fmt.Sprintf("巡回ページ %s", page))
		}
	}
	for _, cat := range b.Categories {
		if strings.TrimSpace(cat.Name) == "" {
			return model.NewInvalidInputError("カテゴリ名は必須です")
		}
		if err := validateHTTPURL(cat.FeedURL); err != nil {
			return model.NewInvalidURLError(fmt.Sprintf("カテゴリ %s のフィードURL", cat.Name))
		}
	}
	return nil
}

// validateHTTPURL はhttp/httpsの絶対URLであることを検証する。
func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("スキームが不正: %s", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("ホストがありません")
	}
	return nil
}
