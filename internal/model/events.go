package model

// AuthEventType はIdPの認証ライフサイクルイベントの種別を表す。
type AuthEventType string

const (
	// AuthEventSignedIn はサインイン完了イベント。新しいクレデンシャルを伴う。
	AuthEventSignedIn AuthEventType = "signed_in"
	// AuthEventTokenRefreshed はトークン更新イベント。新しいクレデンシャルを伴う。
	AuthEventTokenRefreshed AuthEventType = "token_refreshed"
	// AuthEventSignedOut はサインアウトイベント。クレデンシャルは不在になる。
	AuthEventSignedOut AuthEventType = "signed_out"
)

// AuthEvent はIdPのイベントストリームから配送される認証ライフサイクルイベント。
// サインアウトイベントのCredentialはCredentialAbsent。
type AuthEvent struct {
	Type       AuthEventType `json:"type"`
	Credential Credential    `json:"credential,omitempty"`
}

// NavigationRecord はクライアントサイドのルート遷移1回を表す。
// Queryは先頭の"?"を含まないクエリ文字列（空の場合はクエリなし）。
type NavigationRecord struct {
	Path  string `json:"path"`
	Query string `json:"query,omitempty"`
}
