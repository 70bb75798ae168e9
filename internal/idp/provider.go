// Package idp はIdPの認証ライフサイクルイベントストリームへの接続を提供する。
package idp

import (
	"context"

	"github.com/hitoshi/sessync/internal/model"
)

// Provider は認証ライフサイクルイベントの購読インターフェース。
// 本番はWebSocketストリーム、ローカル開発は自己発行プロバイダー、
// テストはチャネルベースのフェイクが実装する。
type Provider interface {
	// Subscribe はイベントチャネルを返す。
	// ストリームが終了するとチャネルはクローズされる。
	// コンテキストのキャンセルで購読を終了する。
	Subscribe(ctx context.Context) (<-chan model.AuthEvent, error)
}
