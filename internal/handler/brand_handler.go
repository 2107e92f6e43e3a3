package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/trendman/internal/model"
)

// BrandServiceInterface はブランドハンドラーが必要とするサービスインターフェース。
type BrandServiceInterface interface {
	CreateBrand(ctx context.Context, input model.Brand) (*model.Brand, error)
	GetBrand(ctx context.Context, id string) (*model.Brand, error)
	ListBrands(ctx context.Context) ([]*model.Brand, error)
	UpdateBrand(ctx context.Context, id string, input model.Brand) (*model.Brand, error)
	DeleteBrand(ctx context.Context, id string) error
}

// BrandHandler はブランド管理のHTTPハンドラー。
type BrandHandler struct {
	service BrandServiceInterface
}

// NewBrandHandler はBrandHandlerを生成する。
func NewBrandHandler(service BrandServiceInterface) *BrandHandler {
	return &BrandHandler{service: service}
}

// brandCategoryPayload はカテゴリのリクエスト/レスポンス表現。
type brandCategoryPayload struct {
	Name    string `json:"name"`
	FeedURL string `json:"feed_url"`
}

// brandRequest はブランド作成・更新リクエストのボディ。
type brandRequest struct {
	Name         string                 `json:"name"`
	Keywords     []string               `json:"keywords,omitempty"`
	WatchedPages []string               `json:"watched_pages,omitempty"`
	Categories   []brandCategoryPayload `json:"categories,omitempty"`
}

// brandResponse はブランド情報のAPIレスポンス。
type brandResponse struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Keywords     []string               `json:"keywords"`
	WatchedPages []string               `json:"watched_pages"`
	Categories   []brandCategoryPayload `json:"categories"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

func (req brandRequest) toModel() model.Brand {
	categories := make([]model.TrendCategory, 0, len(req.Categories))
	for _, c := range req.Categories {
		categories = append(categories, model.TrendCategory{Name: c.Name, FeedURL: c.FeedURL})
	}
	return model.Brand{
		Name:         req.Name,
		Keywords:     req.Keywords,
		WatchedPages: req.WatchedPages,
		Categories:   categories,
	}
}

func toBrandResponse(brand *model.Brand) brandResponse {
	categories := make([]brandCategoryPayload, 0, len(brand.Categories))
	for _, c := range brand.Categories {
		categories = append(categories, brandCategoryPayload{Name: c.Name, FeedURL: c.FeedURL})
	}
	keywords := brand.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	watchedPages := brand.WatchedPages
	if watchedPages == nil {
		watchedPages = []string{}
	}
	return brandResponse{
		ID:           brand.ID,
		Name:         brand.Name,
		Keywords:     keywords,
		WatchedPages: watchedPages,
		Categories:   categories,
		CreatedAt:    brand.CreatedAt,
		UpdatedAt:    brand.UpdatedAt,
	}
}

// CreateBrand はブランド作成を処理する。
// POST /api/brands
func (h *BrandHandler) CreateBrand(w http.ResponseWriter, r *http.Request) {
	var req brandRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	brand, err := h.service.CreateBrand(r.Context(), req.toModel())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toBrandResponse(brand))
}

// GetBrand はブランド詳細を取得する。
// GET /api/brands/{id}
func (h *BrandHandler) GetBrand(w http.ResponseWriter, r *http.Request) {
	brand, err := h.service.GetBrand(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toBrandResponse(brand))
}

// ListBrands はブランド一覧を取得する。
// GET /api/brands
func (h *BrandHandler) ListBrands(w http.ResponseWriter, r *http.Request) {
	brands, err := h.service.ListBrands(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]brandResponse, 0, len(brands))
	for _, b := range brands {
		resp = append(resp, toBrandResponse(b))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

// UpdateBrand はブランド更新を処理する。
// PUT /api/brands/{id}
func (h *BrandHandler) UpdateBrand(w http.ResponseWriter, r *http.Request) {
	var req brandRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	brand, err := h.service.UpdateBrand(r.Context(), chi.URLParam(r, "id"), req.toModel())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toBrandResponse(brand))
}

// DeleteBrand はブランド削除を処理する。
// DELETE /api/brands/{id}
func (h *BrandHandler) DeleteBrand(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteBrand(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
