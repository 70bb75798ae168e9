// Package credential はプロセス内で現在のセッションクレデンシャルを保持するミラーを提供する。
package credential

import (
	"sync"

	"github.com/hitoshi/sessync/internal/model"
)

// Mirror は現在の認可クレデンシャルをメモリ上に保持する。
// 書き込みはセッションイベントリスナーのみ、読み取りはゲートウェイの
// 各呼び出しが行う（単一ライター・複数リーダー）。
// 書き込みはイベント受信時に同期的に適用されるため、連続する2つの
// ライフサイクルイベントは配送順に適用され、後勝ちとなる。
type Mirror struct {
	mu    sync.RWMutex
	value model.Credential
}

// NewMirror は不在状態のMirrorを生成する。
func NewMirror() *Mirror {
	return &Mirror{}
}

// Set は現在のクレデンシャルを置き換える。
// 同じ値を再設定しても副作用はない。変更があった場合はtrueを返す
// （冗長な伝搬を呼び出し元が判断するための情報で、伝搬の要否自体は
// 呼び出し元の方針に委ねる）。
func (m *Mirror) Set(c model.Credential) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.value == c {
		return false
	}
	m.value = c
	return true
}

// Get は現在のクレデンシャルを返す。不在の場合はCredentialAbsent。
// 呼び出し元は値をクロージャに捕捉せず、使用する時点で毎回読み直すこと。
func (m *Mirror) Get() model.Credential {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.value
}

// Clear はクレデンシャルを不在状態に戻す。サインアウトイベントで使用する。
func (m *Mirror) Clear() {
	m.Set(model.CredentialAbsent)
}
