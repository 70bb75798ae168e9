package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/sessync/internal/model"
)

// CredentialReader は現在の資格情報を読み取るインターフェース。
// credential.Mirrorが実装する。
type CredentialReader interface {
	Get() model.Credential
}

// ListenerStatus はセッションイベントリスナーの稼働状態を読み取るインターフェース。
type ListenerStatus interface {
	Running() bool
}

// IdentityReader は計測識別子を読み取るインターフェース。
// analytics.Clientが実装する。
type IdentityReader interface {
	DistinctID() string
	SessionID() string
}

// SessionHandler はセッション状態照会のHTTPハンドラー。
type SessionHandler struct {
	credentials CredentialReader
	listener    ListenerStatus
	identity    IdentityReader
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(credentials CredentialReader, listener ListenerStatus, identity IdentityReader) *SessionHandler {
	return &SessionHandler{
		credentials: credentials,
		listener:    listener,
		identity:    identity,
	}
}

// sessionResponse はセッション状態のAPIレスポンス。
// 資格情報そのものは返さず、マスクした形でのみ提示する。
type sessionResponse struct {
	Authenticated    bool   `json:"authenticated"`
	CredentialMasked string `json:"credential_masked"`
	DistinctID       string `json:"distinct_id"`
	SessionID        string `json:"session_id,omitempty"`
	ListenerRunning  bool   `json:"listener_running"`
}

// GetSession は現在のセッション状態のスナップショットを返す。
// GET /api/session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	cred := h.credentials.Get()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessionResponse{
		Authenticated:    cred.Defined(),
		CredentialMasked: cred.Masked(),
		DistinctID:       h.identity.DistinctID(),
		SessionID:        h.identity.SessionID(),
		ListenerRunning:  h.listener.Running(),
	})
}
