// Package repository はローカル識別子の永続化インターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/sessync/internal/model"
)

// IdentityRepository はローカルアナリティクス識別子の永続化インターフェース。
// 識別子は端末ごとに1つだけ保持する。
type IdentityRepository interface {
	// Load は永続化された識別子を取得する。存在しない場合はnilを返す。
	Load(ctx context.Context) (*model.LocalIdentity, error)

	// Save は識別子を保存する。既存の識別子がある場合は置き換える。
	Save(ctx context.Context, identity *model.LocalIdentity) error

	// Reset は永続化された識別子を削除する。
	// IdPが独立して識別子をリセットした場合に使用する。
	Reset(ctx context.Context) error
}
