// Package tracker は画面遷移ごとのページビュー計測を提供する。
package tracker

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/hitoshi/sessync/internal/model"
)

// PageViewSink はページビューの送出先インターフェース。
// analytics.Clientが実装する。
type PageViewSink interface {
	TrackPageView(ctx context.Context, path, query string)
}

// ViewTracker は完了した画面遷移を受け取りページビューを送出する。
// 同一パスへの連続遷移もそれぞれ1件として計測する（重複排除は行わない）。
type ViewTracker struct {
	sink          PageViewSink
	logger        *slog.Logger
	distinctParam string
}

// NewViewTracker はViewTrackerの新しいインスタンスを生成する。
func NewViewTracker(sink PageViewSink, distinctParam string, logger *slog.Logger) *ViewTracker {
	return &ViewTracker{
		sink:          sink,
		logger:        logger,
		distinctParam: distinctParam,
	}
}

// Record は画面遷移1件をページビューとして計測する。
// クエリ文字列に識別子パラメータが残っている場合、識別子の流出を防ぐため
// クエリ全体を計測対象から除外する。
func (t *ViewTracker) Record(ctx context.Context, record model.NavigationRecord) {
	query := record.Query
	if query != "" {
		values, err := url.ParseQuery(query)
		if err != nil {
			t.logger.Warn("クエリ文字列のパースに失敗したためクエリを除外します",
				slog.String("path", record.Path),
				slog.String("error", err.Error()),
			)
			query = ""
		} else if values.Has(t.distinctParam) {
			t.logger.Warn("クエリに識別子パラメータが残っているためクエリを除外します",
				slog.String("path", record.Path),
			)
			query = ""
		}
	}

	t.sink.TrackPageView(ctx, record.Path, query)
}
