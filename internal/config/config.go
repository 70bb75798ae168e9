// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はエージェント全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// バックエンド関数
	FunctionsBaseURL string
	InvokeTimeout    time.Duration

	// アナリティクス
	AnalyticsEndpoint string
	AnalyticsToken    string
	TrackRateLimit    int // 1分あたりのページビュー送信上限
	TrackBurst        int

	// IdP
	// IDPStreamURLが空の場合、リスナーは起動せずミラーは恒久的に不在となる。
	// 保護された呼び出しはトランスポート層の認可エラーとして失敗する。
	IDPStreamURL string
	IDPDevSecret string // 設定時はローカル開発用IdPを使用する

	// 識別子ブートストラップ
	DistinctIDParam string
	SessionIDParam  string

	// ローカル識別子ストア
	IdentityDBPath string

	// トラッキング対象URLのオリジン
	AppOrigin string

	// クレデンシャル伝搬
	PropagateTimeout time.Duration

	// サーバー
	ServerPort string

	// CORS
	CORSAllowedOrigin string

	// エンドポイントガード
	// trueの場合、プライベートアドレスへのエンドポイント設定を許可する（開発用）。
	AllowPrivateEndpoints bool
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.FunctionsBaseURL = os.Getenv("FUNCTIONS_BASE_URL")
	if cfg.FunctionsBaseURL == "" {
		missing = append(missing, "FUNCTIONS_BASE_URL")
	}

	cfg.AnalyticsEndpoint = os.Getenv("ANALYTICS_ENDPOINT")
	if cfg.AnalyticsEndpoint == "" {
		missing = append(missing, "ANALYTICS_ENDPOINT")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.InvokeTimeout = getEnvDuration("INVOKE_TIMEOUT", 30*time.Second)
	cfg.AnalyticsToken = getEnvString("ANALYTICS_TOKEN", "")
	cfg.TrackRateLimit = getEnvInt("TRACK_RATE_LIMIT", 60)
	cfg.TrackBurst = getEnvInt("TRACK_BURST", 30)
	cfg.IDPStreamURL = getEnvString("IDP_STREAM_URL", "")
	cfg.IDPDevSecret = getEnvString("IDP_DEV_SECRET", "")
	cfg.DistinctIDParam = getEnvString("DISTINCT_ID_PARAM", "distinct_id")
	cfg.SessionIDParam = getEnvString("SESSION_ID_PARAM", "session_id")
	cfg.IdentityDBPath = getEnvString("IDENTITY_DB_PATH", "sessync.db")
	cfg.AppOrigin = getEnvString("APP_ORIGIN", "http://localhost:3000")
	cfg.PropagateTimeout = getEnvDuration("PROPAGATE_TIMEOUT", 5*time.Second)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8780")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.AllowPrivateEndpoints = getEnvBool("ALLOW_PRIVATE_ENDPOINTS", false)

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
