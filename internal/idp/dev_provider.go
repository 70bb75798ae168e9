package idp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/sessync/internal/model"
)

// DevProvider はローカル開発用のIdP。外部IdPなしで認証ライフサイクルを再現する。
// 起動時にsigned_in、以降は一定間隔でtoken_refreshedを発行する。
// Subjectは固定の開発用ユーザー。発行するトークンはHS256署名のJWTだが、
// 消費側（ミラー、ゲートウェイ）は中身を解釈せず不透明な文字列として扱う。
type DevProvider struct {
	secret          []byte
	refreshInterval time.Duration
	logger          *slog.Logger
	now             func() time.Time // テスト用に差し替え可能
}

// devSubject は開発用トークンのSubject。
const devSubject = "dev-user"

// NewDevProvider はDevProviderの新しいインスタンスを生成する。
// refreshIntervalが0以下の場合はデフォルト値5分を使用する。
func NewDevProvider(secret string, refreshInterval time.Duration, logger *slog.Logger) *DevProvider {
	if refreshInterval <= 0 {
		refreshInterval = 5 * time.Minute
	}
	return &DevProvider{
		secret:          []byte(secret),
		refreshInterval: refreshInterval,
		logger:          logger,
		now:             time.Now,
	}
}

// Subscribe はイベントチャネルを返す。
// 即座にsigned_inを発行し、以降はrefreshInterval間隔でtoken_refreshedを発行する。
// コンテキストのキャンセルでチャネルをクローズする。
func (p *DevProvider) Subscribe(ctx context.Context) (<-chan model.AuthEvent, error) {
	first, err := p.mintToken()
	if err != nil {
		return nil, fmt.Errorf("開発用トークンの発行に失敗しました: %w", err)
	}

	ch := make(chan model.AuthEvent)

	go func() {
		defer close(ch)

		select {
		case ch <- model.AuthEvent{Type: model.AuthEventSignedIn, Credential: first}:
		case <-ctx.Done():
			return
		}

		ticker := time.NewTicker(p.refreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				token, err := p.mintToken()
				if err != nil {
					p.logger.Error("開発用トークンの再発行に失敗しました",
						slog.String("error", err.Error()),
					)
					continue
				}
				select {
				case ch <- model.AuthEvent{Type: model.AuthEventTokenRefreshed, Credential: token}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	p.logger.Info("開発用IdPを使用します",
		slog.Duration("refresh_interval", p.refreshInterval),
	)
	return ch, nil
}

// mintToken はHS256署名の短命JWTを発行する。
// 有効期限は更新間隔の2倍とし、更新の遅延で失効しないようにする。
func (p *DevProvider) mintToken() (model.Credential, error) {
	now := p.now()
	claims := jwt.RegisteredClaims{
		Subject:   devSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(2 * p.refreshInterval)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return model.CredentialAbsent, err
	}
	return model.Credential(signed), nil
}
