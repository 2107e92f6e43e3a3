package handler

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker はヘルスチェックに必要なDB疎通確認インターフェース。
// *sql.DB がこれを満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	db HealthChecker
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(db HealthChecker) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health はDB疎通を確認し稼働状態を返す。
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			writeJSONResponse(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
			})
			return
		}
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
