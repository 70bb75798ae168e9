// Package analytics はページビューイベントの計測機能を提供する。
// ローカル識別子の管理とイベントの送出を含む。
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// PageViewEvent は計測エンドポイントに送出するページビューイベント。
// URLはアプリケーションのオリジンとパス・クエリを連結した完全なURL。
type PageViewEvent struct {
	Event      string `json:"event"`
	DistinctID string `json:"distinct_id"`
	SessionID  string `json:"session_id,omitempty"`
	URL        string `json:"url"`
	Path       string `json:"path"`
	Query      string `json:"query,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// EventEmitter はイベント送出のインターフェース。
// テスト時にモックに差し替え可能。
type EventEmitter interface {
	Emit(ctx context.Context, event PageViewEvent) error
}

// HTTPEmitter は計測エンドポイントへのHTTP送出クライアント。
type HTTPEmitter struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	token      string // 空文字列の場合は認証ヘッダーを付与しない
}

// NewHTTPEmitter はHTTPEmitterの新しいインスタンスを生成する。
func NewHTTPEmitter(httpClient *http.Client, endpoint, token string, logger *slog.Logger) *HTTPEmitter {
	return &HTTPEmitter{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
		token:      token,
	}
}

// Emit はページビューイベントを計測エンドポイントにPOSTする。
// 2xx以外のステータスはエラーとして扱う。
func (e *HTTPEmitter) Emit(ctx context.Context, event PageViewEvent) error {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("イベントのJSONエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("計測エンドポイントの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	// レスポンスボディは使用しないが、コネクション再利用のため読み捨てる
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("計測エンドポイントがステータス %d を返しました", resp.StatusCode)
	}

	return nil
}
