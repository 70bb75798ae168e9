package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/sessync/internal/model"
)

// recordTimeout は切り離された計測タスクの上限時間。
const recordTimeout = 10 * time.Second

// ViewRecorder は画面遷移の計測インターフェース。
// tracker.ViewTrackerが実装する。
type ViewRecorder interface {
	Record(ctx context.Context, record model.NavigationRecord)
}

// NavigationHandler は画面遷移通知のHTTPハンドラー。
type NavigationHandler struct {
	recorder ViewRecorder
}

// NewNavigationHandler はNavigationHandlerを生成する。
func NewNavigationHandler(recorder ViewRecorder) *NavigationHandler {
	return &NavigationHandler{
		recorder: recorder,
	}
}

// navigationRequest は画面遷移通知リクエストのボディ。
type navigationRequest struct {
	Path  string `json:"path"`
	Query string `json:"query"`
}

// Record は完了した画面遷移を受け付ける。計測はベストエフォートで行われ、
// 送出結果にかかわらず202を返す。
// 計測は切り離されたタスクとして実行する。クライアントの切断や
// 送出先の遅延が受け付けの応答を妨げない。
// POST /api/navigations
func (h *NavigationHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req navigationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}
	if req.Path == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("pathが空です"))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), recordTimeout)
	go func() {
		defer cancel()
		h.recorder.Record(ctx, model.NavigationRecord{
			Path:  req.Path,
			Query: req.Query,
		})
	}()

	w.WriteHeader(http.StatusAccepted)
}
