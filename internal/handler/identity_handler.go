package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/sessync/internal/model"
)

// IdentityResetter は計測識別子の破棄インターフェース。
// analytics.Clientが実装する。
type IdentityResetter interface {
	Reset(ctx context.Context) error
}

// IdentityHandler は計測識別子操作のHTTPハンドラー。
type IdentityHandler struct {
	resetter IdentityResetter
}

// NewIdentityHandler はIdentityHandlerを生成する。
func NewIdentityHandler(resetter IdentityResetter) *IdentityHandler {
	return &IdentityHandler{
		resetter: resetter,
	}
}

// Reset は計測識別子を破棄する。ホストUIがIdPのサインアウトを検知した際に
// 呼び出し、次回の引き継ぎまたは匿名生成で識別子を再決定させる。
// POST /api/identity/reset
func (h *IdentityHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.resetter.Reset(r.Context()); err != nil {
		writeAPIErrorResponse(w, http.StatusInternalServerError,
			model.NewIdentityStoreError(err.Error()))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
