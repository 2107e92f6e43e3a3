package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/trendman/internal/model"
)

// TrendServiceInterface はトレンドハンドラーが必要とするサービスインターフェース。
type TrendServiceInterface interface {
	Scan(ctx context.Context, brandID string) (*model.TrendScanResult, error)
	ConvertToIdea(ctx context.Context, brandID string, item model.TrendItem) (*model.Idea, error)
	MarkAdded(ctx context.Context, brandID, url string) error
}

// TrendHandler はトレンドスキャンのHTTPハンドラー。
type TrendHandler struct {
	service TrendServiceInterface
}

// NewTrendHandler はTrendHandlerを生成する。
func NewTrendHandler(service TrendServiceInterface) *TrendHandler {
	return &TrendHandler{service: service}
}

// trendScanResponse はトレンドスキャン結果のAPIレスポンス。
type trendScanResponse struct {
	BrandID   string                 `json:"brand_id"`
	Results   []model.CategoryTrends `json:"results"`
	FromCache bool                   `json:"from_cache"`
	ScannedAt time.Time              `json:"scanned_at"`
}

// convertTrendRequest はトレンド項目をアイデア化するリクエストのボディ。
type convertTrendRequest struct {
	Title       string `json:"title"`
	SourceURL   string `json:"source_url"`
	SourceName  string `json:"source_name,omitempty"`
	Summary     string `json:"summary,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
}

// markAddedRequest は追加済みマーク付与リクエストのボディ。
type markAddedRequest struct {
	SourceURL string `json:"source_url"`
}

// ScanTrends はブランドのトレンドスキャンを処理する。
// GET /api/brands/{id}/trends
func (h *TrendHandler) ScanTrends(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Scan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := result.Results
	if results == nil {
		results = []model.CategoryTrends{}
	}
	writeJSONResponse(w, http.StatusOK, trendScanResponse{
		BrandID:   result.BrandID,
		Results:   results,
		FromCache: result.FromCache,
		ScannedAt: result.ScannedAt,
	})
}

// ConvertToIdea はトレンド項目をアイデアとして保存する。
// POST /api/brands/{id}/trends/ideas
func (h *TrendHandler) ConvertToIdea(w http.ResponseWriter, r *http.Request) {
	var req convertTrendRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	item := model.TrendItem{
		Title:      req.Title,
		SourceURL:  req.SourceURL,
		SourceName: req.SourceName,
		Summary:    req.Summary,
	}
	if req.PublishedAt != "" {
		publishedAt, err := time.Parse(time.RFC3339, req.PublishedAt)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("published_atの形式が不正です"))
			return
		}
		item.PublishedAt = &publishedAt
	}

	idea, err := h.service.ConvertToIdea(r.Context(), chi.URLParam(r, "id"), item)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toIdeaResponse(idea))
}

// MarkAdded はトレンド項目に追加済みマークを付ける。
// POST /api/brands/{id}/trends/added
func (h *TrendHandler) MarkAdded(w http.ResponseWriter, r *http.Request) {
	var req markAddedRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.SourceURL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("source_urlは必須です"))
		return
	}

	if err := h.service.MarkAdded(r.Context(), chi.URLParam(r, "id"), req.SourceURL); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]bool{"success": true})
}
