package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, invocation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeRemoteInvocation    = "REMOTE_INVOCATION_FAILED"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeInvalidFunctionName = "INVALID_FUNCTION_NAME"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeEndpointBlocked     = "ENDPOINT_BLOCKED"
	ErrCodeIdentityStore       = "IDENTITY_STORE_FAILED"
)

// RemoteInvocationError は保護されたバックエンド関数呼び出しの失敗を表す。
// トランスポート層または認可層のエラーを呼び出し元へそのまま伝搬するための型。
// StatusCodeはHTTPレスポンスを受信できた場合のみ非ゼロ。
type RemoteInvocationError struct {
	Function   string // 呼び出した関数名
	StatusCode int    // HTTPステータスコード（受信できなかった場合は0）
	Err        error  // 下層のトランスポートエラー
}

// Error はerrorインターフェースを実装する。
func (e *RemoteInvocationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote invocation %q failed: status %d", e.Function, e.StatusCode)
	}
	return fmt.Sprintf("remote invocation %q failed: %v", e.Function, e.Err)
}

// Unwrap は下層のトランスポートエラーを返す。
func (e *RemoteInvocationError) Unwrap() error {
	return e.Err
}

// Unauthorized は認可層で拒否された呼び出しかどうかを返す。
func (e *RemoteInvocationError) Unauthorized() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// APIError はユーザー向けの統一エラーフォーマットへ変換する。
// 認可エラーは明示的にユーザーへ提示する（サイレントに握りつぶさない）。
func (e *RemoteInvocationError) APIError() *APIError {
	if e.Unauthorized() {
		return &APIError{
			Code:     ErrCodeUnauthorized,
			Message:  fmt.Sprintf("関数 %s の呼び出しが認可されていません。", e.Function),
			Category: "auth",
			Action:   "サインインし直してください。",
		}
	}
	return &APIError{
		Code:     ErrCodeRemoteInvocation,
		Message:  fmt.Sprintf("関数 %s の呼び出しに失敗しました。", e.Function),
		Category: "invocation",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidFunctionNameError は不正な関数名エラーを生成する。
func NewInvalidFunctionNameError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFunctionName,
		Message:  fmt.Sprintf("無効な関数名です: %s", name),
		Category: "validation",
		Action:   "英数字、ハイフン、アンダースコアのみを含む関数名を指定してください。",
	}
}

// NewInvalidRequestError は不正なリクエストボディエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエストボディの形式を確認してください。",
	}
}

// NewEndpointBlockedError は安全でないエンドポイント設定エラーを生成する。
func NewEndpointBlockedError(endpoint string) *APIError {
	return &APIError{
		Code:     ErrCodeEndpointBlocked,
		Message:  fmt.Sprintf("エンドポイントへの接続がブロックされました: %s", endpoint),
		Category: "system",
		Action:   "プライベートアドレスを使用する場合はALLOW_PRIVATE_ENDPOINTSを設定してください。",
	}
}

// NewIdentityStoreError はローカル識別子ストアの失敗エラーを生成する。
func NewIdentityStoreError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeIdentityStore,
		Message:  fmt.Sprintf("識別子ストアの操作に失敗しました: %s", reason),
		Category: "system",
		Action:   "識別子データベースのパスと書き込み権限を確認してください。",
	}
}
