// Package model はドメインモデルを定義する。
package model

// Credential は現在の認証済みセッションを表す不透明なベアラートークン。
// 空文字列は未認証（クレデンシャル不在）を意味する。
// この層ではトークンの中身を一切解釈しない。永続化はIdPの責務であり、
// 本サブシステムはメモリ上にのみ保持する。
type Credential string

// CredentialAbsent は未認証状態を表すクレデンシャル。
const CredentialAbsent = Credential("")

// Defined はクレデンシャルが存在するかどうかを返す。
func (c Credential) Defined() bool {
	return c != ""
}

// AuthorizationValue はAuthorizationヘッダーに設定する値を返す。
// クレデンシャル不在の場合は空文字列を返す（ヘッダー自体を付与しない）。
func (c Credential) AuthorizationValue() string {
	if !c.Defined() {
		return ""
	}
	return "Bearer " + string(c)
}

// Masked はログ出力用にマスクしたクレデンシャルを返す。
// トークン本体をログに残さないため、先頭8文字のみを露出する。
func (c Credential) Masked() string {
	if !c.Defined() {
		return "(absent)"
	}
	if len(c) <= 8 {
		return "***"
	}
	return string(c[:8]) + "***"
}
