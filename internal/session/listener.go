// Package session はIdPの認証ライフサイクルイベントを購読し、
// クレデンシャルミラーとゲートウェイの同期を維持するリスナーを提供する。
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/sessync/internal/credential"
	"github.com/hitoshi/sessync/internal/idp"
	"github.com/hitoshi/sessync/internal/metrics"
	"github.com/hitoshi/sessync/internal/model"
)

// Propagator は新しいクレデンシャルの伝搬先。gateway.Clientがこれを実装する。
type Propagator interface {
	Configure(ctx context.Context, cred model.Credential) error
}

// Listener はセッションイベントリスナー。
// イベント受信ごとに、(1) ミラーを同期的に更新し、(2) ゲートウェイへ
// 非同期に伝搬する。伝搬は失敗しうるが致命的ではない。ミラーの値が常に
// 正であり、次のイベントまたは次の呼び出しで実質的にリトライされる。
// 購読のライフサイクルはStart/Stopで明示的に所有され、アンビエントな
// プロセス全域フラグには依存しない。Startは冪等。
type Listener struct {
	provider         idp.Provider
	mirror           *credential.Mirror
	propagator       Propagator
	logger           *slog.Logger
	collector        metrics.MetricsCollector
	propagateTimeout time.Duration

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	propagations sync.WaitGroup
}

// NewListener はListenerの新しいインスタンスを生成する。
// propagateTimeoutが0以下の場合はデフォルト値5秒を使用する。
func NewListener(
	provider idp.Provider,
	mirror *credential.Mirror,
	propagator Propagator,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
	propagateTimeout time.Duration,
) *Listener {
	if propagateTimeout <= 0 {
		propagateTimeout = 5 * time.Second
	}
	return &Listener{
		provider:         provider,
		mirror:           mirror,
		propagator:       propagator,
		logger:           logger,
		collector:        collector,
		propagateTimeout: propagateTimeout,
	}
}

// Start はIdPイベントストリームの購読を開始する。
// すでに開始済みの場合は何もしない（再初期化されても二重購読しない）。
// 購読の確立に失敗した場合はエラーを返し、開始済みとはならない。
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)

	ch, err := l.provider.Subscribe(runCtx)
	if err != nil {
		cancel()
		return err
	}

	l.started = true
	l.cancel = cancel
	l.done = make(chan struct{})

	go l.run(runCtx, ch)

	l.logger.Info("セッションイベントリスナーを開始しました")
	return nil
}

// Stop は購読を終了し、進行中の伝搬の完了を待つ。
// 開始していない場合は何もしない。停止後は再度Startできる。
func (l *Listener) Stop() {
	l.mu.Lock()
	if !l.started {
		l.mu.Unlock()
		return
	}
	cancel := l.cancel
	done := l.done
	l.mu.Unlock()

	cancel()
	<-done
	l.propagations.Wait()

	l.mu.Lock()
	l.started = false
	l.mu.Unlock()

	l.logger.Info("セッションイベントリスナーを停止しました")
}

// Running はリスナーが稼働中かどうかを返す。ヘルスチェック用。
// イベントループが終了している場合（ストリーム切断等で自然終了した場合を
// 含む）は、Stopが呼ばれていなくてもfalseを返す。
func (l *Listener) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started {
		return false
	}
	select {
	case <-l.done:
		return false
	default:
		return true
	}
}

// run はイベントループを実行する。チャネルのクローズで終了する。
func (l *Listener) run(ctx context.Context, ch <-chan model.AuthEvent) {
	defer close(l.done)

	for event := range ch {
		l.handle(ctx, event)
	}

	if ctx.Err() == nil {
		l.logger.Warn("IdPイベントストリームが終了しました")
	}
}

// handle は1件のライフサイクルイベントを処理する。
// ミラーの更新は他のオブザーバーへの通知より先に同期的に行う。
// このハンドラーから戻った後に発行される呼び出しは古いクレデンシャルを
// 観測しない。イベントは配送順に逐次処理されるため、連続する2イベントは
// 後勝ちで適用される。
func (l *Listener) handle(ctx context.Context, event model.AuthEvent) {
	cred := event.Credential
	if event.Type == model.AuthEventSignedOut {
		cred = model.CredentialAbsent
	}

	l.mirror.Set(cred)
	l.collector.RecordAuthEvent(string(event.Type))

	l.logger.Info("認証ライフサイクルイベントを処理しました",
		slog.String("type", string(event.Type)),
		slog.String("credential", cred.Masked()),
	)

	// ゲートウェイへの伝搬は切り離されたタスクとして実行する。
	// 失敗はログとメトリクスに記録するだけで巻き戻さない。
	// 伝搬する値は実行時点のミラーの最新値を読み直す。イベント受信時に
	// 捕捉した値は、伝搬が実行されるまでに後続イベントで古くなりうる。
	l.propagations.Add(1)
	go func() {
		defer l.propagations.Done()

		pctx, pcancel := context.WithTimeout(context.WithoutCancel(ctx), l.propagateTimeout)
		defer pcancel()

		latest := l.mirror.Get()
		if err := l.propagator.Configure(pctx, latest); err != nil {
			l.collector.RecordPropagationFailure()
			l.logger.Error("クレデンシャルの伝搬に失敗しました",
				slog.String("credential", latest.Masked()),
				slog.String("error", err.Error()),
			)
		}
	}()
}
