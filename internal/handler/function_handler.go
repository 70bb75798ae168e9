package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/sessync/internal/model"
)

// FunctionInvoker は保護されたバックエンド関数呼び出しのインターフェース。
// gateway.Clientが実装する。
type FunctionInvoker interface {
	Invoke(ctx context.Context, name string, payload json.RawMessage) (json.RawMessage, error)
}

// FunctionHandler はバックエンド関数呼び出しのHTTPハンドラー。
type FunctionHandler struct {
	invoker FunctionInvoker
}

// NewFunctionHandler はFunctionHandlerを生成する。
func NewFunctionHandler(invoker FunctionInvoker) *FunctionHandler {
	return &FunctionHandler{
		invoker: invoker,
	}
}

// Invoke はリクエストボディをそのまま保護されたバックエンド関数へ転送する。
// 呼び出し失敗は統一エラーフォーマットで返す（サイレントに握りつぶさない）。
// POST /api/functions/{name}
func (h *FunctionHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの読み取りに失敗しました"))
		return
	}

	result, err := h.invoker.Invoke(r.Context(), name, payload)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if len(result) == 0 {
		result = json.RawMessage("{}")
	}
	w.Write(result)
}

// --- ヘルパー関数 ---

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var invErr *model.RemoteInvocationError
	if errors.As(err, &invErr) {
		apiErr := invErr.APIError()
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidFunctionName, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeEndpointBlocked:
		return http.StatusForbidden
	case model.ErrCodeRemoteInvocation:
		return http.StatusBadGateway
	case model.ErrCodeIdentityStore:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
