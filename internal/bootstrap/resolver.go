// Package bootstrap はURLクエリパラメータからの識別子引き継ぎを提供する。
// 別オリジンから遷移してきたユーザーの計測識別子を初回に一度だけ取り込み、
// 取り込み後のURLからは識別子パラメータを除去する。
package bootstrap

import (
	"context"
	"log/slog"
	"net/url"
	"sync"

	"github.com/hitoshi/sessync/internal/model"
	"github.com/hitoshi/sessync/internal/nav"
)

// IdentityApplier は識別子の適用先インターフェース。
// analytics.Clientが実装する。
type IdentityApplier interface {
	Init(ctx context.Context, bootstrap *model.BootstrapIdentity) error
}

// Resolver はURLから引き継ぎ識別子を抽出して適用する。
// 適用はResolverの生存期間中に一度だけ行われる。ガードは最初の処理より
// 前にセットされるため、並行呼び出しでも二重適用は起きない。
type Resolver struct {
	applier       IdentityApplier
	history       nav.History
	logger        *slog.Logger
	distinctParam string
	sessionParam  string

	mu       sync.Mutex
	resolved bool
}

// NewResolver はResolverの新しいインスタンスを生成する。
func NewResolver(
	applier IdentityApplier,
	history nav.History,
	distinctParam, sessionParam string,
	logger *slog.Logger,
) *Resolver {
	return &Resolver{
		applier:       applier,
		history:       history,
		logger:        logger,
		distinctParam: distinctParam,
		sessionParam:  sessionParam,
	}
}

// Resolved は識別子の解決が完了済みかどうかを返す。
func (r *Resolver) Resolved() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolved
}

// Resolve はURLから識別子パラメータを抽出して計測クライアントに適用し、
// 識別子パラメータを除去したURLを返す。無関係なパラメータは保持される。
// 抽出と適用は初回呼び出しのみ。2回目以降はパラメータ除去だけを行う。
// URLがパースできない場合は適用を行わず入力をそのまま返す。
// 戻り値のappliedは引き継ぎ識別子を適用した場合のみtrueになる。
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (string, bool) {
	r.mu.Lock()
	firstCall := !r.resolved
	r.resolved = true
	r.mu.Unlock()

	parsed, err := url.Parse(rawURL)
	if err != nil {
		r.logger.Warn("URLのパースに失敗したため識別子の引き継ぎをスキップします",
			slog.String("error", err.Error()),
		)
		if firstCall {
			r.applyIdentity(ctx, nil)
		}
		return rawURL, false
	}

	query := parsed.Query()
	distinctID := query.Get(r.distinctParam)
	sessionID := query.Get(r.sessionParam)

	applied := false
	if firstCall {
		var identity *model.BootstrapIdentity
		if distinctID != "" {
			identity = &model.BootstrapIdentity{
				DistinctID: distinctID,
				SessionID:  sessionID,
			}
		}
		applied = r.applyIdentity(ctx, identity)
	}

	// 識別子パラメータがない場合はURLを書き換えない
	if !query.Has(r.distinctParam) && !query.Has(r.sessionParam) {
		return rawURL, applied
	}

	query.Del(r.distinctParam)
	query.Del(r.sessionParam)
	parsed.RawQuery = query.Encode()
	scrubbed := parsed.String()

	if err := r.history.Replace(scrubbed); err != nil {
		r.logger.Warn("表示位置の書き換えに失敗しました",
			slog.String("error", err.Error()),
		)
	}

	return scrubbed, applied
}

// applyIdentity は識別子を計測クライアントに適用する。
// 適用失敗はログに記録するのみで呼び出し元には伝播しない。
func (r *Resolver) applyIdentity(ctx context.Context, identity *model.BootstrapIdentity) bool {
	if err := r.applier.Init(ctx, identity); err != nil {
		r.logger.Error("識別子の適用に失敗しました",
			slog.String("error", err.Error()),
		)
		return false
	}
	return identity != nil
}
