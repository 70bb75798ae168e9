// Package handler はホストUI向けのローカルHTTP APIを提供する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/sessync/internal/metrics"
	"github.com/hitoshi/sessync/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger            *slog.Logger
	CORSAllowedOrigin string

	// セッション状態
	Credentials CredentialReader
	Listener    ListenerStatus
	Identity    IdentityReader

	// 関数呼び出し
	Invoker FunctionInvoker

	// 識別子引き継ぎと計測
	Resolver IdentityResolver
	Recorder ViewRecorder
	Resetter IdentityResetter

	// 死活監視
	Store StorePinger

	// メトリクス
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware → CORSMiddleware
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	healthHandler := NewHealthHandler(deps.Store, deps.Listener)
	sessionHandler := NewSessionHandler(deps.Credentials, deps.Listener, deps.Identity)
	functionHandler := NewFunctionHandler(deps.Invoker)
	bootstrapHandler := NewBootstrapHandler(deps.Resolver)
	navigationHandler := NewNavigationHandler(deps.Recorder)
	identityHandler := NewIdentityHandler(deps.Resetter)

	r.Get("/health", healthHandler.Health)
	r.Handle("/metrics", metrics.SetupMetricsRoute(deps.Gatherer))

	r.Route("/api", func(r chi.Router) {
		r.Get("/session", sessionHandler.GetSession)
		r.Post("/functions/{name}", functionHandler.Invoke)
		r.Post("/bootstrap", bootstrapHandler.Resolve)
		r.Post("/navigations", navigationHandler.Record)
		r.Post("/identity/reset", identityHandler.Reset)
	})

	return r
}
