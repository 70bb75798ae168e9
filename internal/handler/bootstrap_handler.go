package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/sessync/internal/model"
)

// IdentityResolver はURLからの識別子引き継ぎ解決のインターフェース。
// bootstrap.Resolverが実装する。
type IdentityResolver interface {
	Resolve(ctx context.Context, rawURL string) (string, bool)
}

// BootstrapHandler は識別子引き継ぎのHTTPハンドラー。
type BootstrapHandler struct {
	resolver IdentityResolver
}

// NewBootstrapHandler はBootstrapHandlerを生成する。
func NewBootstrapHandler(resolver IdentityResolver) *BootstrapHandler {
	return &BootstrapHandler{
		resolver: resolver,
	}
}

// bootstrapRequest は識別子引き継ぎリクエストのボディ。
type bootstrapRequest struct {
	URL string `json:"url"`
}

// bootstrapResponse は識別子引き継ぎのAPIレスポンス。
// URLは識別子パラメータを除去済み。ホストUIはこれで表示位置を置き換える。
type bootstrapResponse struct {
	URL     string `json:"url"`
	Applied bool   `json:"applied"`
}

// Resolve はURLから識別子を抽出・適用し、除去済みURLを返す。
// POST /api/bootstrap
func (h *BootstrapHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req bootstrapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}
	if req.URL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("urlが空です"))
		return
	}

	scrubbed, applied := h.resolver.Resolve(r.Context(), req.URL)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(bootstrapResponse{
		URL:     scrubbed,
		Applied: applied,
	})
}
