package handler

import (
	"context"
	"encoding/json"
	"net/http"
)

// StorePinger はローカル識別子ストアの疎通確認インターフェース。
// *sql.DBが実装する。
type StorePinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler は死活監視のHTTPハンドラー。
type HealthHandler struct {
	store    StorePinger
	listener ListenerStatus
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(store StorePinger, listener ListenerStatus) *HealthHandler {
	return &HealthHandler{
		store:    store,
		listener: listener,
	}
}

// healthResponse は死活監視のAPIレスポンス。
type healthResponse struct {
	Status          string `json:"status"`
	ListenerRunning bool   `json:"listener_running"`
}

// Health は識別子ストアの疎通とリスナーの稼働状態を返す。
// ストアに疎通できない場合は503を返す。
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := h.store.PingContext(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(healthResponse{
			Status:          "unavailable",
			ListenerRunning: h.listener.Running(),
		})
		return
	}

	json.NewEncoder(w).Encode(healthResponse{
		Status:          "ok",
		ListenerRunning: h.listener.Running(),
	})
}
