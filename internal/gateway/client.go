// Package gateway は保護されたバックエンド関数呼び出しの単一の出口を提供する。
// すべての認可付きアウトバウンド呼び出しはこのクライアントを経由する。
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/sessync/internal/metrics"
	"github.com/hitoshi/sessync/internal/model"
)

// maxResponseSize はレスポンスボディの読み取り上限。
const maxResponseSize = 10 * 1024 * 1024

// functionNamePattern は許可される関数名の形式。
var functionNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// CredentialSource は呼び出し時点の最新クレデンシャルの読み取り元。
// credential.Mirrorがこれを実装する。
type CredentialSource interface {
	Get() model.Credential
}

// Client はバックエンド関数呼び出しのクライアント。
// ディスパッチの直前に必ずCredentialSourceから最新値を読み取るため、
// 過去に捕捉した古いクレデンシャルで呼び出すことはない。
// リトライは行わない。状態を変更する呼び出しの盲目的な再試行は
// 冪等性キーなしには安全でないため、リトライ方針は呼び出し元に委ねる。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	collector  metrics.MetricsCollector
	baseURL    string
	creds      CredentialSource

	mu       sync.RWMutex
	attached model.Credential
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLは末尾のスラッシュを除いた関数エンドポイントのベースURL。
func NewClient(
	httpClient *http.Client,
	baseURL string,
	creds CredentialSource,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		collector:  collector,
		baseURL:    strings.TrimRight(baseURL, "/"),
		creds:      creds,
	}
}

// Configure は新しいクレデンシャルを呼び出し設定として取り付ける。
// セッションイベントリスナーから非同期に伝搬される。
// Invokeはディスパッチ時点で必ずCredentialSourceを読み直すため、
// 伝搬が失敗してもミラーの値が正であり続け、次のイベントまたは
// 次の呼び出しで実質的にリトライされる。
func (c *Client) Configure(ctx context.Context, cred model.Credential) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	c.mu.Lock()
	c.attached = cred
	c.mu.Unlock()
	return nil
}

// Attached は現在取り付けられているクレデンシャルを返す。
// 診断用。ディスパッチにはCredentialSourceの最新値を使用する。
func (c *Client) Attached() model.Credential {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.attached
}

// Invoke は保護されたバックエンド関数を呼び出す。
// ディスパッチの直前にミラーの現在値を読み取り、存在する場合のみ
// Authorizationヘッダーとして付与する。不在の場合は未認証のまま
// ディスパッチする（サーバー側が適切に拒否する。この層では事前検証しない）。
// 失敗は*model.RemoteInvocationErrorとして呼び出し元へ伝搬する。
func (c *Client) Invoke(ctx context.Context, name string, payload json.RawMessage) (json.RawMessage, error) {
	if !functionNamePattern.MatchString(name) {
		return nil, model.NewInvalidFunctionNameError(name)
	}

	body := payload
	if len(body) == 0 {
		body = json.RawMessage("{}")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+name, bytes.NewReader(body))
	if err != nil {
		return nil, &model.RemoteInvocationError{Function: name, Err: fmt.Errorf("リクエストの作成に失敗しました: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	// ディスパッチ時点の最新クレデンシャルを読み取る。
	// 先に読んだ値をクロージャに捕捉してはならない。
	if cred := c.creds.Get(); cred.Defined() {
		req.Header.Set("Authorization", cred.AuthorizationValue())
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.collector.RecordInvocationLatency(time.Since(start))
	if err != nil {
		c.collector.RecordInvocationFailure(name)
		c.logger.Error("関数呼び出しのトランスポートエラー",
			slog.String("function", name),
			slog.String("error", err.Error()),
		)
		return nil, &model.RemoteInvocationError{Function: name, Err: err}
	}
	defer resp.Body.Close()

	c.collector.RecordInvocation(name, resp.StatusCode)

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.collector.RecordInvocationFailure(name)
		return nil, &model.RemoteInvocationError{Function: name, Err: fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("関数呼び出しがエラーステータスを返しました",
			slog.String("function", name),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, &model.RemoteInvocationError{
			Function:   name,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("サーバーがステータス %d を返しました", resp.StatusCode),
		}
	}

	return respBody, nil
}
