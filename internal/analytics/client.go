package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hitoshi/sessync/internal/metrics"
	"github.com/hitoshi/sessync/internal/model"
	"github.com/hitoshi/sessync/internal/repository"
)

// Client はローカル識別子の管理とページビューイベントの送出を行う。
// 識別子の決定は初回のInit呼び出しで一度だけ行われ、以降の呼び出しは無視される。
type Client struct {
	repo      repository.IdentityRepository
	emitter   EventEmitter
	limiter   *rate.Limiter
	logger    *slog.Logger
	collector metrics.MetricsCollector
	origin    string

	mu          sync.Mutex
	initialized bool
	identity    *model.LocalIdentity
}

// NewClient はClientの新しいインスタンスを生成する。
// originはイベントのURLを構成するアプリケーションのオリジン。
func NewClient(
	repo repository.IdentityRepository,
	emitter EventEmitter,
	limiter *rate.Limiter,
	origin string,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
) *Client {
	return &Client{
		repo:      repo,
		emitter:   emitter,
		limiter:   limiter,
		logger:    logger,
		collector: collector,
		origin:    strings.TrimRight(origin, "/"),
	}
}

// Init はローカル識別子を決定する。優先順位は以下の通り:
//  1. bootstrapが指定されていればその識別子を採用して永続化する
//  2. 永続化済みの識別子があればそれを読み込む
//  3. どちらもなければ匿名識別子を生成して永続化する
//
// 2回目以降の呼び出しは何もせずnilを返す。
func (c *Client) Init(ctx context.Context, bootstrap *model.BootstrapIdentity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return nil
	}

	now := time.Now().UTC()

	if bootstrap != nil && bootstrap.DistinctID != "" {
		identity := &model.LocalIdentity{
			DistinctID: bootstrap.DistinctID,
			SessionID:  bootstrap.SessionID,
			Source:     model.IdentitySourceBootstrap,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := c.repo.Save(ctx, identity); err != nil {
			return fmt.Errorf("引き継ぎ識別子の保存に失敗しました: %w", err)
		}
		c.identity = identity
		c.initialized = true
		c.collector.RecordBootstrapApplied()
		c.logger.Info("引き継ぎ識別子を適用しました",
			slog.String("distinct_id", bootstrap.DistinctID),
		)
		return nil
	}

	persisted, err := c.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("識別子の読み込みに失敗しました: %w", err)
	}
	if persisted != nil {
		c.identity = persisted
		c.initialized = true
		c.logger.Info("永続化済みの識別子を読み込みました",
			slog.String("source", persisted.Source),
		)
		return nil
	}

	identity := &model.LocalIdentity{
		DistinctID: uuid.New().String(),
		Source:     model.IdentitySourceGenerated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := c.repo.Save(ctx, identity); err != nil {
		return fmt.Errorf("匿名識別子の保存に失敗しました: %w", err)
	}
	c.identity = identity
	c.initialized = true
	c.logger.Info("匿名識別子を生成しました")
	return nil
}

// Initialized は識別子が決定済みかどうかを返す。
func (c *Client) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// DistinctID は現在の識別子を返す。未初期化の場合は空文字列を返す。
func (c *Client) DistinctID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return ""
	}
	return c.identity.DistinctID
}

// SessionID は現在のセッション識別子を返す。未初期化の場合は空文字列を返す。
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return ""
	}
	return c.identity.SessionID
}

// TrackPageView はページビューイベントを送出する。
// 送出失敗はログとメトリクスに記録するのみで、呼び出し元にエラーは返さない。
// レート制限を超過したイベントは送出せずに破棄する。
func (c *Client) TrackPageView(ctx context.Context, path, query string) {
	c.mu.Lock()
	identity := c.identity
	c.mu.Unlock()

	if identity == nil {
		c.collector.RecordPageViewDropped("not_initialized")
		c.logger.Warn("識別子が未初期化のためページビューを破棄しました",
			slog.String("path", path),
		)
		return
	}

	if !c.limiter.Allow() {
		c.collector.RecordPageViewDropped("rate_limited")
		c.logger.Warn("レート制限によりページビューを破棄しました",
			slog.String("path", path),
		)
		return
	}

	event := PageViewEvent{
		Event:      "page_view",
		DistinctID: identity.DistinctID,
		SessionID:  identity.SessionID,
		URL:        c.pageURL(path, query),
		Path:       path,
		Query:      query,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}

	if err := c.emitter.Emit(ctx, event); err != nil {
		c.collector.RecordPageViewDropped("emit_failed")
		c.logger.Error("ページビューの送出に失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return
	}

	c.collector.RecordPageViewEmitted()
}

// pageURL はオリジンとパス・クエリから遷移先の完全なURLを構成する。
func (c *Client) pageURL(path, query string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	url := c.origin + path
	if query != "" {
		url += "?" + query
	}
	return url
}

// Reset は識別子を破棄して未初期化状態に戻す。
// 次回のInit呼び出しで識別子が再決定される。
func (c *Client) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.repo.Reset(ctx); err != nil {
		return fmt.Errorf("識別子の削除に失敗しました: %w", err)
	}

	c.identity = nil
	c.initialized = false
	c.logger.Info("識別子をリセットしました")
	return nil
}
