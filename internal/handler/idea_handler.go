package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/trendman/internal/model"
)

// IdeaServiceInterface はアイデアハンドラーが必要とするサービスインターフェース。
type IdeaServiceInterface interface {
	CreateIdea(ctx context.Context, input model.NewIdeaInput) (*model.Idea, error)
	GetIdea(ctx context.Context, id string) (*model.Idea, error)
	ListIdeas(ctx context.Context, brandID string, source model.IdeaSource, limit int) ([]*model.Idea, error)
	UpdateNote(ctx context.Context, id string, note string) error
	DeleteIdea(ctx context.Context, id string) error
}

// IdeaHandler はアイデア管理のHTTPハンドラー。
type IdeaHandler struct {
	service IdeaServiceInterface
}

// NewIdeaHandler はIdeaHandlerを生成する。
func NewIdeaHandler(service IdeaServiceInterface) *IdeaHandler {
	return &IdeaHandler{service: service}
}

// createIdeaRequest は手動アイデア作成リクエストのボディ。
type createIdeaRequest struct {
	BrandID          string `json:"brand_id"`
	Content          string `json:"content"`
	Note             string `json:"note,omitempty"`
	Source           string `json:"source,omitempty"`
	SourceURL        string `json:"source_url,omitempty"`
	SourceIdentity   string `json:"source_identity,omitempty"`
	AuthorName       string `json:"author_name,omitempty"`
	AuthorProfileURL string `json:"author_profile_url,omitempty"`
	CapturedAt       string `json:"captured_at,omitempty"`
}

// updateNoteRequest はメモ更新リクエストのボディ。
type updateNoteRequest struct {
	Note string `json:"note"`
}

// ideaResponse はアイデアのAPIレスポンス。
type ideaResponse struct {
	ID               string     `json:"id"`
	BrandID          string     `json:"brand_id"`
	Content          string     `json:"content"`
	Note             string     `json:"note,omitempty"`
	Source           string     `json:"source"`
	SourceURL        string     `json:"source_url,omitempty"`
	SourceIdentity   string     `json:"source_identity,omitempty"`
	AuthorName       string     `json:"author_name,omitempty"`
	AuthorProfileURL string     `json:"author_profile_url,omitempty"`
	CapturedAt       *time.Time `json:"captured_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func toIdeaResponse(idea *model.Idea) ideaResponse {
	return ideaResponse{
		ID:               idea.ID,
		BrandID:          idea.BrandID,
		Content:          idea.Content,
		Note:             idea.Note,
		Source:           string(idea.Source),
		SourceURL:        idea.SourceURL,
		SourceIdentity:   idea.SourceIdentity,
		AuthorName:       idea.AuthorName,
		AuthorProfileURL: idea.AuthorProfileURL,
		CapturedAt:       idea.CapturedAt,
		CreatedAt:        idea.CreatedAt,
		UpdatedAt:        idea.UpdatedAt,
	}
}

// CreateIdea は手動でのアイデア作成を処理する。
// POST /api/ideas
func (h *IdeaHandler) CreateIdea(w http.ResponseWriter, r *http.Request) {
	var req createIdeaRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	input := model.NewIdeaInput{
		BrandID:          req.BrandID,
		Content:          req.Content,
		Note:             req.Note,
		Source:           model.IdeaSource(req.Source),
		SourceURL:        req.SourceURL,
		SourceIdentity:   req.SourceIdentity,
		AuthorName:       req.AuthorName,
		AuthorProfileURL: req.AuthorProfileURL,
	}
	if req.CapturedAt != "" {
		capturedAt, err := time.Parse(time.RFC3339, req.CapturedAt)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("captured_atの形式が不正です"))
			return
		}
		input.CapturedAt = &capturedAt
	}

	idea, err := h.service.CreateIdea(r.Context(), input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toIdeaResponse(idea))
}

// GetIdea はアイデア詳細を取得する。
// GET /api/ideas/{id}
func (h *IdeaHandler) GetIdea(w http.ResponseWriter, r *http.Request) {
	idea, err := h.service.GetIdea(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toIdeaResponse(idea))
}

// ListIdeas はブランド配下のアイデア一覧を取得する。
// GET /api/brands/{id}/ideas?source=post&limit=50
func (h *IdeaHandler) ListIdeas(w http.ResponseWriter, r *http.Request) {
	brandID := chi.URLParam(r, "id")
	source := model.IdeaSource(r.URL.Query().Get("source"))

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("limitの形式が不正です"))
			return
		}
		limit = parsed
	}

	ideas, err := h.service.ListIdeas(r.Context(), brandID, source, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]ideaResponse, 0, len(ideas))
	for _, idea := range ideas {
		resp = append(resp, toIdeaResponse(idea))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

// UpdateNote はアイデアのメモを更新する。
// PATCH /api/ideas/{id}/note
func (h *IdeaHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var req updateNoteRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := h.service.UpdateNote(r.Context(), chi.URLParam(r, "id"), req.Note); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]bool{"success": true})
}

// DeleteIdea はアイデアを削除する。
// DELETE /api/ideas/{id}
func (h *IdeaHandler) DeleteIdea(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteIdea(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
