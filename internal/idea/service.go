// Package idea はアイデアの管理機能を提供する。
package idea

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/trendman/internal/model"
	"github.com/hitoshi/trendman/internal/repository"
	"github.com/hitoshi/trendman/internal/security"
)

// Service はアイデアの同一性判定と登録・取得処理を提供する。
// 3段階の同一性判定ロジックにより、同じ投稿やトレンドからの重複登録を防ぐ。
type Service struct {
	ideaRepo  repository.IdeaRepository
	brandRepo repository.BrandRepository
	sanitizer security.ContentSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	ideaRepo repository.IdeaRepository,
	brandRepo repository.BrandRepository,
	sanitizer security.ContentSanitizerService,
) *Service {
	return &Service{
		ideaRepo:  ideaRepo,
		brandRepo: brandRepo,
		sanitizer: sanitizer,
	}
}

// CreateIdea は新規アイデアを作成する。
// 3段階の同一性判定ロジック:
//  1. (brand_id, source_identity) - 最優先
//  2. (brand_id, source_url) - 第2優先
//  3. hash(content) - 第3優先
//
// 既存アイデアが見つかった場合はDUPLICATE_IDEAエラーを返し、新規登録は行わない。
func (s *Service) CreateIdea(ctx context.Context, input model.NewIdeaInput) (*model.Idea, error) {
	if input.BrandID == "" {
		return nil, model.NewInvalidInputError("ブランドIDは必須です")
	}
	if input.Content == "" {
		return nil, model.NewInvalidInputError("コンテンツは必須です")
	}
	if input.Source == "" {
		input.Source = model.IdeaSourceManual
	}

	brand, err := s.brandRepo.FindByID(ctx, input.BrandID)
	if err != nil {
		return nil, fmt.Errorf("ブランドの取得に失敗: %w", err)
	}
	if brand == nil {
		return nil, model.NewBrandNotFoundError(input.BrandID)
	}

	// コンテンツと注記にサニタイズ処理を適用
	sanitizedContent := s.sanitizer.Sanitize(input.Content)
	sanitizedNote := s.sanitizer.Sanitize(input.Note)

	contentHash := computeContentHash(sanitizedContent)

	existing, err := s.findExistingIdea(ctx, input, contentHash)
	if err != nil {
		slog.Error("アイデアの同一性判定でエラー",
			"brand_id", input.BrandID,
			"source_identity", input.SourceIdentity,
			"error", err,
		)
		return nil, fmt.Errorf("アイデアの同一性判定に失敗: %w", err)
	}
	if existing != nil {
		slog.Info("重複するアイデアを検出",
			"brand_id", input.BrandID,
			"existing_id", existing.ID,
			"source", input.Source,
		)
		return nil, model.NewDuplicateIdeaError()
	}

	now := time.Now()
	idea := &model.Idea{
		ID:               uuid.New().String(),
		BrandID:          input.BrandID,
		Content:          sanitizedContent,
		Note:             sanitizedNote,
		Source:           input.Source,
		SourceURL:        input.SourceURL,
		SourceIdentity:   input.SourceIdentity,
		AuthorName:       input.AuthorName,
		AuthorProfileURL: input.AuthorProfileURL,
		ContentHash:      contentHash,
		CapturedAt:       input.CapturedAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.ideaRepo.Create(ctx, idea); err != nil {
		slog.Error("アイデアの作成でエラー",
			"brand_id", input.BrandID,
			"error", err,
		)
		return nil, fmt.Errorf("アイデアの作成に失敗: %w", err)
	}

	slog.Info("アイデア作成完了",
		"idea_id", idea.ID,
		"brand_id", idea.BrandID,
		"source", idea.Source,
	)

	return idea, nil
}

// GetIdea は指定IDのアイデアを取得する。
func (s *Service) GetIdea(ctx context.Context, id string) (*model.Idea, error) {
	idea, err := s.ideaRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("アイデアの取得に失敗: %w", err)
	}
	if idea == nil {
		return nil, model.NewIdeaNotFoundError(id)
	}
	return idea, nil
}

// ListIdeas はブランドのアイデア一覧を返す。
// sourceが空文字列の場合は全件を返す。
func (s *Service) ListIdeas(ctx context.Context, brandID string, source model.IdeaSource, limit int) ([]*model.Idea, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	brand, err := s.brandRepo.FindByID(ctx, brandID)
	if err != nil {
		return nil, fmt.Errorf("ブランドの取得に失敗: %w", err)
	}
	if brand == nil {
		return nil, model.NewBrandNotFoundError(brandID)
	}

	ideas, err := s.ideaRepo.ListByBrand(ctx, brandID, source, limit)
	if err != nil {
		return nil, fmt.Errorf("アイデア一覧の取得に失敗: %w", err)
	}
	return ideas, nil
}

// UpdateNote はアイデアの注記を更新する。
func (s *Service) UpdateNote(ctx context.Context, id string, note string) error {
	idea, err := s.ideaRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("アイデアの取得に失敗: %w", err)
	}
	if idea == nil {
		return model.NewIdeaNotFoundError(id)
	}

	if err := s.ideaRepo.UpdateNote(ctx, id, s.sanitizer.Sanitize(note)); err != nil {
		return fmt.Errorf("注記の更新に失敗: %w", err)
	}
	return nil
}

// DeleteIdea は指定IDのアイデアを削除する。
func (s *Service) DeleteIdea(ctx context.Context, id string) error {
	idea, err := s.ideaRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("アイデアの取得に失敗: %w", err)
	}
	if idea == nil {
		return model.NewIdeaNotFoundError(id)
	}

	if err := s.ideaRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("アイデアの削除に失敗: %w", err)
	}

	slog.Info("アイデア削除完了", "idea_id", id, "brand_id", idea.BrandID)
	return nil
}

// findExistingIdea は3段階の同一性判定で既存アイデアを検索する。
// 優先順位: (brand_id, source_identity) > (brand_id, source_url) > hash(content)
func (s *Service) findExistingIdea(
	ctx context.Context,
	input model.NewIdeaInput,
	contentHash string,
) (*model.Idea, error) {
	// 第1優先: brand_id + source_identity
	if input.SourceIdentity != "" {
		idea, err := s.ideaRepo.FindByBrandAndSourceIdentity(ctx, input.BrandID, input.SourceIdentity)
		if err != nil {
			return nil, err
		}
		if idea != nil {
			return idea, nil
		}
	}

	// 第2優先: brand_id + source_url
	if input.SourceURL != "" {
		idea, err := s.ideaRepo.FindByBrandAndSourceURL(ctx, input.BrandID, input.SourceURL)
		if err != nil {
			return nil, err
		}
		if idea != nil {
			return idea, nil
		}
	}

	// 第3優先: content_hash
	if contentHash != "" {
		idea, err := s.ideaRepo.FindByContentHash(ctx, input.BrandID, contentHash)
		if err != nil {
			return nil, err
		}
		if idea != nil {
			return idea, nil
		}
	}

	return nil, nil
}

// computeContentHash はサニタイズ後コンテンツのSHA-256ハッシュを計算する。
// 同一性判定の第3優先手段として使用される。
func computeContentHash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", hash)
}
