// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// リスナー、ゲートウェイ、トラッカーから利用する。
type MetricsCollector interface {
	RecordAuthEvent(eventType string)
	RecordPropagationFailure()
	RecordInvocation(function string, statusCode int)
	RecordInvocationFailure(function string)
	RecordInvocationLatency(duration time.Duration)
	RecordPageViewEmitted()
	RecordPageViewDropped(reason string)
	RecordBootstrapApplied()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authEvents       *prometheus.CounterVec
	propagationFail  prometheus.Counter
	invocations      *prometheus.CounterVec
	invocationFail   *prometheus.CounterVec
	invocationLat    prometheus.Histogram
	pageViewsEmitted prometheus.Counter
	pageViewsDropped *prometheus.CounterVec
	bootstrapApplied prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sessync_auth_events_total",
			Help: "受信した認証ライフサイクルイベントの種別ごとの合計数",
		}, []string{"type"}),
		propagationFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sessync_propagation_fail_total",
			Help: "ゲートウェイへのクレデンシャル伝搬失敗の合計数",
		}),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sessync_invocations_total",
			Help: "バックエンド関数呼び出しの関数名・HTTPステータスコード別の合計数",
		}, []string{"function", "status_code"}),
		invocationFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sessync_invocation_transport_fail_total",
			Help: "レスポンスを受信できなかった関数呼び出しの関数名別の合計数",
		}, []string{"function"}),
		invocationLat: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sessync_invocation_latency_seconds",
			Help:    "関数呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		pageViewsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sessync_pageviews_emitted_total",
			Help: "送信したページビューイベントの合計数",
		}),
		pageViewsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sessync_pageviews_dropped_total",
			Help: "破棄したページビューイベントの理由別の合計数",
		}, []string{"reason"}),
		bootstrapApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sessync_bootstrap_applied_total",
			Help: "適用したブートストラップ識別子の合計数",
		}),
	}

	reg.MustRegister(
		c.authEvents,
		c.propagationFail,
		c.invocations,
		c.invocationFail,
		c.invocationLat,
		c.pageViewsEmitted,
		c.pageViewsDropped,
		c.bootstrapApplied,
	)

	return c
}

// RecordAuthEvent は認証ライフサイクルイベントの受信を記録する。
func (c *Collector) RecordAuthEvent(eventType string) {
	c.authEvents.WithLabelValues(eventType).Inc()
}

// RecordPropagationFailure はクレデンシャル伝搬の失敗を記録する。
func (c *Collector) RecordPropagationFailure() {
	c.propagationFail.Inc()
}

// RecordInvocation はレスポンスを受信した関数呼び出しを記録する。
func (c *Collector) RecordInvocation(function string, statusCode int) {
	c.invocations.WithLabelValues(function, strconv.Itoa(statusCode)).Inc()
}

// RecordInvocationFailure はレスポンスを受信できなかった関数呼び出しを記録する。
func (c *Collector) RecordInvocationFailure(function string) {
	c.invocationFail.WithLabelValues(function).Inc()
}

// RecordInvocationLatency は関数呼び出しのレイテンシを記録する。
func (c *Collector) RecordInvocationLatency(duration time.Duration) {
	c.invocationLat.Observe(duration.Seconds())
}

// RecordPageViewEmitted はページビューイベントの送信を記録する。
func (c *Collector) RecordPageViewEmitted() {
	c.pageViewsEmitted.Inc()
}

// RecordPageViewDropped はページビューイベントの破棄を理由付きで記録する。
// reasonは"rate_limited"または"emit_failed"。
func (c *Collector) RecordPageViewDropped(reason string) {
	c.pageViewsDropped.WithLabelValues(reason).Inc()
}

// RecordBootstrapApplied はブートストラップ識別子の適用を記録する。
func (c *Collector) RecordBootstrapApplied() {
	c.bootstrapApplied.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
