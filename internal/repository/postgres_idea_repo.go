package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/trendman/internal/model"
)

// PostgresIdeaRepo はPostgreSQLを使用したアイデアリポジトリ。
type PostgresIdeaRepo struct {
	db *sql.DB
}

// NewPostgresIdeaRepo はPostgresIdeaRepoを生成する。
func NewPostgresIdeaRepo(db *sql.DB) *PostgresIdeaRepo {
	return &PostgresIdeaRepo{db: db}
}

const ideaColumns = `id, brand_id, content, note, source, source_url, source_identity,
       author_name, author_profile_url, content_hash, captured_at, created_at, updated_at`

// scanIdea は1行をmodel.Ideaへ読み取る。
func scanIdea(row interface{ Scan(...any) error }) (*model.Idea, error) {
	idea := &model.Idea{}
	var note, sourceURL, sourceIdentity, authorName, authorProfileURL, contentHash sql.NullString
	var capturedAt sql.NullTime

	err := row.Scan(
		&idea.ID, &idea.BrandID, &idea.Content, &note, &idea.Source,
		&sourceURL, &sourceIdentity, &authorName, &authorProfileURL,
		&contentHash, &capturedAt, &idea.CreatedAt, &idea.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	idea.Note = nullStringValue(note)
	idea.SourceURL = nullStringValue(sourceURL)
	idea.SourceIdentity = nullStringValue(sourceIdentity)
	idea.AuthorName = nullStringValue(authorName)
	idea.AuthorProfileURL = nullStringValue(authorProfileURL)
	idea.ContentHash = nullStringValue(contentHash)
	if capturedAt.Valid {
		idea.CapturedAt = &capturedAt.Time
	}
	return idea, nil
}

// findOne は単一行クエリを実行し、見つからない場合はnilを返す。
func (r *PostgresIdeaRepo) findOne(ctx context.Context, where string, args ...any) (*model.Idea, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ideaColumns+` FROM ideas WHERE `+where, args...,
	)
	idea, err := scanIdea(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("アイデアの検索に失敗しました: %w", err)
	}
	return idea, nil
}

// FindByID は指定IDのアイデアを取得する。見つからない場合はnilを返す。
func (r *PostgresIdeaRepo) FindByID(ctx context.Context, id string) (*model.Idea, error) {
	return r.findOne(ctx, `id = $1`, id)
}

// FindByBrandAndSourceIdentity はbrand_idとsource_identityでアイデアを検索する。
func (r *PostgresIdeaRepo) FindByBrandAndSourceIdentity(ctx context.Context, brandID, sourceIdentity string) (*model.Idea, error) {
	return r.findOne(ctx, `brand_id = $1 AND source_identity = $2`, brandID, sourceIdentity)
}

// FindByBrandAndSourceURL はbrand_idとsource_urlでアイデアを検索する。
func (r *PostgresIdeaRepo) FindByBrandAndSourceURL(ctx context.Context, brandID, sourceURL string) (*model.Idea, error) {
	return r.findOne(ctx, `brand_id = $1 AND source_url = $2`, brandID, sourceURL)
}

// FindByContentHash はbrand_idとcontent_hashでアイデアを検索する。
func (r *PostgresIdeaRepo) FindByContentHash(ctx context.Context, brandID, contentHash string) (*model.Idea, error) {
	return r.findOne(ctx, `brand_id = $1 AND content_hash = $2`, brandID, contentHash)
}

// ListByBrand はブランドのアイデア一覧を作成日時降順で返す。
// sourceが空文字列の場合は全件、指定された場合は由来種別で絞り込む。
func (r *PostgresIdeaRepo) ListByBrand(ctx context.Context, brandID string, source model.IdeaSource, limit int) ([]*model.Idea, error) {
	query := `SELECT ` + ideaColumns + ` FROM ideas WHERE brand_id = $1`
	args := []any{brandID}
	if source != "" {
		query += ` AND source = $2`
		args = append(args, string(source))
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("アイデア一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var ideas []*model.Idea
	for rows.Next() {
		idea, err := scanIdea(rows)
		if err != nil {
			return nil, fmt.Errorf("アイデアの読み取りに失敗しました: %w", err)
		}
		ideas = append(ideas, idea)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("アイデア一覧の走査に失敗しました: %w", err)
	}
	return ideas, nil
}

// Create は新規アイデアを作成する。
func (r *PostgresIdeaRepo) Create(ctx context.Context, idea *model.Idea) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ideas (id, brand_id, content, note, source, source_url, source_identity,
		        author_name, author_profile_url, content_hash, captured_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		idea.ID, idea.BrandID, idea.Content, nullString(idea.Note), string(idea.Source),
		nullString(idea.SourceURL), nullString(idea.SourceIdentity),
		nullString(idea.AuthorName), nullString(idea.AuthorProfileURL),
		nullString(idea.ContentHash), nullTime(idea.CapturedAt),
		idea.CreatedAt, idea.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("アイデアの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateNote はアイデアの注記を更新する。
func (r *PostgresIdeaRepo) UpdateNote(ctx context.Context, id string, note string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE ideas SET note = $2, updated_at = now() WHERE id = $1`,
		id, nullString(note),
	)
	if err != nil {
		return fmt.Errorf("注記の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("idea not found: %s", id)
	}
	return nil
}

// Delete は指定IDのアイデアを削除する。
func (r *PostgresIdeaRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM ideas WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("アイデアの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("idea not found: %s", id)
	}
	return nil
}

// nullString は空文字列をNULLへ変換する。
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullTime はnilをNULLへ変換する。
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullStringValue はNULL許容文字列を空文字列へ変換する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ IdeaRepository = (*PostgresIdeaRepo)(nil)
