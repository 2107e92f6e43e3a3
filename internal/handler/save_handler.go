package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/trendman/internal/model"
)

// SaveServiceInterface は保存ハンドラーが必要とするサービスインターフェース。
type SaveServiceInterface interface {
	// Save は指定identityの投稿を保存アクションとして実行する。
	Save(ctx context.Context, identity string, req model.SavePostRequest) error
}

// SaveHandler は投稿保存アクションのHTTPハンドラー。
type SaveHandler struct {
	service SaveServiceInterface
}

// NewSaveHandler はSaveHandlerを生成する。
func NewSaveHandler(service SaveServiceInterface) *SaveHandler {
	return &SaveHandler{service: service}
}

// savePostRequest は保存アクションリクエストのボディ。
type savePostRequest struct {
	Identity         string `json:"identity"`
	BrandID          string `json:"brand_id"`
	Content          string `json:"content"`
	Note             string `json:"note,omitempty"`
	AuthorName       string `json:"author_name,omitempty"`
	AuthorProfileURL string `json:"author_profile_url,omitempty"`
	CapturedAt       string `json:"captured_at,omitempty"` // RFC3339
}

// Save は投稿保存アクションを処理する。
// POST /api/save
func (h *SaveHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req savePostRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Identity == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidInputError("identityは必須です"))
		return
	}
	if req.Content == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidInputError("contentは必須です"))
		return
	}

	capturedAt := time.Now()
	if req.CapturedAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.CapturedAt)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidInputError("captured_atはRFC3339形式で指定してください"))
			return
		}
		capturedAt = parsed
	}

	err := h.service.Save(r.Context(), req.Identity, model.SavePostRequest{
		Content:          req.Content,
		Note:             req.Note,
		BrandID:          req.BrandID,
		AuthorName:       req.AuthorName,
		AuthorProfileURL: req.AuthorProfileURL,
		CapturedAt:       capturedAt,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]bool{"success": true})
}
