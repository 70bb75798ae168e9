// Package nav はホストUIの表示位置（ナビゲーション履歴）との連携を提供する。
package nav

import (
	"fmt"
	"net/url"
	"sync"
)

// History はホストUIの現在位置の読み取りと置き換えのインターフェース。
// Replaceによる置き換えはナビゲーションイベントを発生させない。
type History interface {
	// Current は現在位置のURLを返す。未設定の場合は空文字列を返す。
	Current() string
	// Replace は現在位置を置き換える。履歴エントリは追加しない。
	Replace(raw string) error
}

// MemoryHistory はエージェント内に保持するHistory実装。
// ホストUIから報告された位置を記憶し、置き換え結果を応答で返すために使う。
type MemoryHistory struct {
	mu      sync.RWMutex
	current string
}

// NewMemoryHistory はMemoryHistoryの新しいインスタンスを生成する。
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{}
}

// Current は現在位置のURLを返す。
func (h *MemoryHistory) Current() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Replace は現在位置を置き換える。不正なURLはエラーを返し位置を変更しない。
func (h *MemoryHistory) Replace(raw string) error {
	if _, err := url.Parse(raw); err != nil {
		return fmt.Errorf("URLのパースに失敗しました: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = raw
	return nil
}
