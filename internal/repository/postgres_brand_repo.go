package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/trendman/internal/model"
)

// PostgresBrandRepo はPostgreSQLを使用したブランドリポジトリ。
type PostgresBrandRepo struct {
	db *sql.DB
}

// NewPostgresBrandRepo はPostgresBrandRepoを生成する。
func NewPostgresBrandRepo(db *sql.DB) *PostgresBrandRepo {
	return &PostgresBrandRepo{db: db}
}

// FindByID は指定IDのブランドを取得する。見つからない場合はnilを返す。
func (r *PostgresBrandRepo) FindByID(ctx context.Context, id string) (*model.Brand, error) {
	brand := &model.Brand{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, keywords, watched_pages, created_at, updated_at
		 FROM brands WHERE id = $1`,
		id,
	).Scan(&brand.ID, &brand.Name, pq.Array(&brand.Keywords), pq.Array(&brand.WatchedPages),
		&brand.CreatedAt, &brand.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find brand by ID: %w", err)
	}

	categories, err := r.listCategories(ctx, brand.ID)
	if err != nil {
		return nil, err
	}
	brand.Categories = categories

	return brand, nil
}

// List は全ブランドを作成日時昇順で返す。
func (r *PostgresBrandRepo) List(ctx context.Context) ([]*model.Brand, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, keywords, watched_pages, created_at, updated_at
		 FROM brands ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list brands: %w", err)
	}
	defer rows.Close()

	var brands []*model.Brand
	for rows.Next() {
		brand := &model.Brand{}
		if err := rows.Scan(&brand.ID, &brand.Name, pq.Array(&brand.Keywords),
			pq.Array(&brand.WatchedPages), &brand.CreatedAt, &brand.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan brand: %w", err)
		}
		brands = append(brands, brand)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate brands: %w", err)
	}

	for _, brand := range brands {
		categories, err := r.listCategories(ctx, brand.ID)
		if err != nil {
			return nil, err
		}
		brand.Categories = categories
	}

	return brands, nil
}

// Create はブランドをカテゴリとともに同一トランザクションで作成する。
func (r *PostgresBrandRepo) Create(ctx context.Context, brand *model.Brand) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO brands (id, name, keywords, watched_pages, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		brand.ID, brand.Name, pq.Array(brand.Keywords), pq.Array(brand.WatchedPages),
		brand.CreatedAt, brand.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert brand: %w", err)
	}

	if err := insertCategories(ctx, tx, brand.ID, brand.Categories); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Update はブランド情報を更新する。カテゴリは全置換される。
func (r *PostgresBrandRepo) Update(ctx context.Context, brand *model.Brand) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE brands SET name = $2, keywords = $3, watched_pages = $4, updated_at = $5
		 WHERE id = $1`,
		brand.ID, brand.Name, pq.Array(brand.Keywords), pq.Array(brand.WatchedPages),
		brand.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update brand: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("brand not found: %s", brand.ID)
	}

	// カテゴリは削除して再挿入する全置換
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM brand_categories WHERE brand_id = $1`, brand.ID,
	); err != nil {
		return fmt.Errorf("failed to delete brand categories: %w", err)
	}
	if err := insertCategories(ctx, tx, brand.ID, brand.Categories); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Delete は指定IDのブランドを削除する。
// 関連するbrand_categories、ideasはCASCADE削除される。
func (r *PostgresBrandRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM brands WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete brand: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("brand not found: %s", id)
	}
	return nil
}

// listCategories はブランドのカテゴリ一覧を表示順で取得する。
func (r *PostgresBrandRepo) listCategories(ctx context.Context, brandID string) ([]model.TrendCategory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, feed_url FROM brand_categories
		 WHERE brand_id = $1 ORDER BY position ASC`,
		brandID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list brand categories: %w", err)
	}
	defer rows.Close()

	var categories []model.TrendCategory
	for rows.Next() {
		var cat model.TrendCategory
		if err := rows.Scan(&cat.Name, &cat.FeedURL); err != nil {
			return nil, fmt.Errorf("failed to scan brand category: %w", err)
		}
		categories = append(categories, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate brand categories: %w", err)
	}
	return categories, nil
}

// insertCategories はカテゴリをpositionを振りながら挿入する。
func insertCategories(ctx context.Context, tx *sql.Tx, brandID string, categories []model.TrendCategory) error {
	for i, cat := range categories {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO brand_categories (brand_id, position, name, feed_url)
			 VALUES ($1, $2, $3, $4)`,
			brandID, i, cat.Name, cat.FeedURL,
		)
		if err != nil {
			return fmt.Errorf("failed to insert brand category: %w", err)
		}
	}
	return nil
}

// compile-time interface check
var _ BrandRepository = (*PostgresBrandRepo)(nil)
