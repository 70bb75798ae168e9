package idp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hitoshi/sessync/internal/model"
)

// handshakeTimeout はWebSocket接続確立のタイムアウト。
const handshakeTimeout = 10 * time.Second

// StreamProvider はIdPのWebSocketイベントストリームからライフサイクルイベントを受信する。
// 各イベントはJSONフレーム1件として配送される。
// ストリームの切断は購読の終了として扱い、再接続はエージェントの再起動に委ねる。
type StreamProvider struct {
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger
}

// NewStreamProvider はStreamProviderの新しいインスタンスを生成する。
// urlはws://またはwss://スキームのストリームURL。
func NewStreamProvider(url string, logger *slog.Logger) *StreamProvider {
	return &StreamProvider{
		url: url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
		},
		logger: logger,
	}
}

// Subscribe はWebSocket接続を確立し、イベントチャネルを返す。
// 読み取りエラーまたはコンテキストのキャンセルでチャネルをクローズする。
func (p *StreamProvider) Subscribe(ctx context.Context) (<-chan model.AuthEvent, error) {
	conn, _, err := p.dialer.DialContext(ctx, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("IdPストリームへの接続に失敗しました: %w", err)
	}

	ch := make(chan model.AuthEvent)

	// コンテキストのキャンセルで接続を閉じ、読み取りループを解放する
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go func() {
		defer close(ch)
		defer conn.Close()

		for {
			var event model.AuthEvent
			if err := conn.ReadJSON(&event); err != nil {
				if ctx.Err() == nil {
					p.logger.Warn("IdPストリームの読み取りが終了しました",
						slog.String("error", err.Error()),
					)
				}
				return
			}

			select {
			case ch <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	p.logger.Info("IdPイベントストリームに接続しました", slog.String("url", p.url))
	return ch, nil
}
