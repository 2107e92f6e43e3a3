// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/trendman/internal/model"
)

// BrandRepository はブランドデータの永続化インターフェース。
type BrandRepository interface {
	// FindByID は指定IDのブランドを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Brand, error)

	// List は全ブランドを作成日時昇順で返す。
	List(ctx context.Context) ([]*model.Brand, error)

	// Create はブランドをカテゴリとともに同一トランザクションで作成する。
	Create(ctx context.Context, brand *model.Brand) error

	// Update はブランド情報を更新する。カテゴリは全置換される。
	Update(ctx context.Context, brand *model.Brand) error

	// Delete は指定IDのブランドを削除する。
	// 関連するアイデア、カテゴリはCASCADE削除される。
	Delete(ctx context.Context, id string) error
}

// IdeaRepository はアイデアデータの永続化インターフェース。
// アイデアの同一性判定（3段階の優先順位）とCRUD操作を提供する。
type IdeaRepository interface {
	// FindByID は指定IDのアイデアを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Idea, error)

	// FindByBrandAndSourceIdentity はbrand_idとsource_identityでアイデアを検索する。
	// 同一性判定の最優先手段。見つからない場合はnilを返す。
	FindByBrandAndSourceIdentity(ctx context.Context, brandID, sourceIdentity string) (*model.Idea, error)

	// FindByBrandAndSourceURL はbrand_idとsource_urlでアイデアを検索する。
	// 同一性判定の第2優先手段。見つからない場合はnilを返す。
	FindByBrandAndSourceURL(ctx context.Context, brandID, sourceURL string) (*model.Idea, error)

	// FindByContentHash はbrand_idとcontent_hashでアイデアを検索する。
	// 同一性判定の第3優先手段（hash(content)）。見つからない場合はnilを返す。
	FindByContentHash(ctx context.Context, brandID, contentHash string) (*model.Idea, error)

	// ListByBrand はブランドのアイデア一覧を作成日時降順で返す。
	// sourceが空文字列の場合は全件、指定された場合は由来種別で絞り込む。
	ListByBrand(ctx context.Context, brandID string, source model.IdeaSource, limit int) ([]*model.Idea, error)

	// Create は新規アイデアを作成する。
	Create(ctx context.Context, idea *model.Idea) error

	// UpdateNote はアイデアの注記を更新する。
	UpdateNote(ctx context.Context, id string, note string) error

	// Delete は指定IDのアイデアを削除する。
	Delete(ctx context.Context, id string) error
}
