// Package app はエージェントの初期化と起動を行う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/sessync/internal/analytics"
	"github.com/hitoshi/sessync/internal/bootstrap"
	"github.com/hitoshi/sessync/internal/config"
	"github.com/hitoshi/sessync/internal/credential"
	"github.com/hitoshi/sessync/internal/database"
	"github.com/hitoshi/sessync/internal/gateway"
	"github.com/hitoshi/sessync/internal/handler"
	"github.com/hitoshi/sessync/internal/idp"
	"github.com/hitoshi/sessync/internal/logger"
	"github.com/hitoshi/sessync/internal/metrics"
	"github.com/hitoshi/sessync/internal/model"
	"github.com/hitoshi/sessync/internal/nav"
	"github.com/hitoshi/sessync/internal/repository"
	"github.com/hitoshi/sessync/internal/security"
	"github.com/hitoshi/sessync/internal/session"
	"github.com/hitoshi/sessync/internal/tracker"
)

// devTokenRefreshInterval はローカル開発用IdPのトークン更新間隔。
const devTokenRefreshInterval = 5 * time.Minute

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8780"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting agent",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("functions_base_url", cfg.FunctionsBaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// listenerStatus はリスナー未構成時にも稼働状態を提供するアダプタ。
type listenerStatus struct {
	listener *session.Listener
}

func (s listenerStatus) Running() bool {
	return s.listener != nil && s.listener.Running()
}

// runServe はエージェントサーバーモードで起動する。
// 識別子ストアを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. 識別子ストアの準備
	// ローカルの組み込みDBのため、起動時に未適用マイグレーションを適用する
	if err := database.RunMigrations(cfg.IdentityDBPath); err != nil {
		return fmt.Errorf("failed to migrate identity store: %w", err)
	}

	db, err := database.Open(cfg.IdentityDBPath)
	if err != nil {
		return fmt.Errorf("failed to open identity store: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to identity store: %w", err)
	}

	slog.Info("identity store opened", slog.String("path", cfg.IdentityDBPath))

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. 外部エンドポイントガードの初期化と設定値の検証
	var guard security.EndpointGuardService
	if cfg.AllowPrivateEndpoints {
		slog.Warn("private endpoint validation is disabled")
		guard = security.NewPermissiveGuard()
	} else {
		guard = security.NewEndpointGuard(cfg.FunctionsBaseURL, cfg.AnalyticsEndpoint, cfg.IDPStreamURL)
	}

	if err := guard.ValidateEndpoint(cfg.FunctionsBaseURL); err != nil {
		return fmt.Errorf("%w: %v", model.NewEndpointBlockedError(cfg.FunctionsBaseURL), err)
	}
	if err := guard.ValidateEndpoint(cfg.AnalyticsEndpoint); err != nil {
		return fmt.Errorf("%w: %v", model.NewEndpointBlockedError(cfg.AnalyticsEndpoint), err)
	}

	// 4. アナリティクスの初期化
	identityRepo := repository.NewSQLiteIdentityRepo(db)
	emitter := analytics.NewHTTPEmitter(
		guard.NewSafeClient(10*time.Second),
		cfg.AnalyticsEndpoint, cfg.AnalyticsToken,
		slog.Default(),
	)
	trackLimiter := rate.NewLimiter(rate.Limit(float64(cfg.TrackRateLimit)/60.0), cfg.TrackBurst)
	analyticsClient := analytics.NewClient(
		identityRepo, emitter, trackLimiter, cfg.AppOrigin, slog.Default(), collector,
	)

	// 5. 識別子引き継ぎと画面遷移計測の初期化
	history := nav.NewMemoryHistory()
	resolver := bootstrap.NewResolver(
		analyticsClient, history,
		cfg.DistinctIDParam, cfg.SessionIDParam,
		slog.Default(),
	)
	viewTracker := tracker.NewViewTracker(analyticsClient, cfg.DistinctIDParam, slog.Default())

	// 6. 資格情報ミラーと呼び出しゲートウェイの初期化
	mirror := credential.NewMirror()
	invoker := gateway.NewClient(
		guard.NewSafeClient(cfg.InvokeTimeout),
		cfg.FunctionsBaseURL, mirror,
		slog.Default(), collector,
	)

	// 7. IdPプロバイダの選択とリスナーの起動
	// どちらも未設定の場合、ミラーは恒久的に不在となり
	// 保護された呼び出しは認可エラーとして失敗する
	var provider idp.Provider
	switch {
	case cfg.IDPDevSecret != "":
		slog.Info("using local development identity provider")
		provider = idp.NewDevProvider(cfg.IDPDevSecret, devTokenRefreshInterval, slog.Default())
	case cfg.IDPStreamURL != "":
		if err := guard.ValidateEndpoint(cfg.IDPStreamURL); err != nil {
			return fmt.Errorf("%w: %v", model.NewEndpointBlockedError(cfg.IDPStreamURL), err)
		}
		provider = idp.NewStreamProvider(cfg.IDPStreamURL, slog.Default())
	default:
		slog.Warn("no identity provider configured; credential mirror stays absent")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var listener *session.Listener
	if provider != nil {
		listener = session.NewListener(
			provider, mirror, invoker,
			slog.Default(), collector, cfg.PropagateTimeout,
		)
		if err := listener.Start(ctx); err != nil {
			return fmt.Errorf("failed to start session listener: %w", err)
		}
		defer listener.Stop()
	}

	// 8. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Credentials:       mirror,
		Listener:          listenerStatus{listener: listener},
		Identity:          analyticsClient,
		Invoker:           invoker,
		Resolver:          resolver,
		Recorder:          viewTracker,
		Resetter:          analyticsClient,
		Store:             db,
		Gatherer:          registry,
	})

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("agent server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down agent server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("agent server stopped gracefully")
	return nil
}

// runMigrate は識別子ストアのマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running identity store migrations",
		slog.String("path", cfg.IdentityDBPath),
	)

	if err := database.RunMigrations(cfg.IdentityDBPath); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("identity store migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
