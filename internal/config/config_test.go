package config

import (
	"testing"
	"time"
)

// setRequiredEnv は必須環境変数を設定するヘルパー。
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("FUNCTIONS_BASE_URL", "https://functions.example.com")
	t.Setenv("ANALYTICS_ENDPOINT", "https://analytics.example.com/track")
}

func TestLoad_RequiredFieldsMissing(t *testing.T) {
	t.Setenv("FUNCTIONS_BASE_URL", "")
	t.Setenv("ANALYTICS_ENDPOINT", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when required env vars are missing")
	}
}

func TestLoad_PartiallyMissingRequired(t *testing.T) {
	t.Setenv("FUNCTIONS_BASE_URL", "https://functions.example.com")
	t.Setenv("ANALYTICS_ENDPOINT", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when ANALYTICS_ENDPOINT is missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.InvokeTimeout != 30*time.Second {
		t.Errorf("InvokeTimeout = %v, want %v", cfg.InvokeTimeout, 30*time.Second)
	}
	if cfg.PropagateTimeout != 5*time.Second {
		t.Errorf("PropagateTimeout = %v, want %v", cfg.PropagateTimeout, 5*time.Second)
	}
	if cfg.DistinctIDParam != "distinct_id" {
		t.Errorf("DistinctIDParam = %q, want %q", cfg.DistinctIDParam, "distinct_id")
	}
	if cfg.SessionIDParam != "session_id" {
		t.Errorf("SessionIDParam = %q, want %q", cfg.SessionIDParam, "session_id")
	}
	if cfg.TrackRateLimit != 60 {
		t.Errorf("TrackRateLimit = %d, want 60", cfg.TrackRateLimit)
	}
	if cfg.TrackBurst != 30 {
		t.Errorf("TrackBurst = %d, want 30", cfg.TrackBurst)
	}
	if cfg.ServerPort != "8780" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "8780")
	}
	if cfg.IdentityDBPath != "sessync.db" {
		t.Errorf("IdentityDBPath = %q, want %q", cfg.IdentityDBPath, "sessync.db")
	}
	if cfg.AllowPrivateEndpoints {
		t.Error("AllowPrivateEndpoints should default to false")
	}
	if cfg.IDPStreamURL != "" {
		t.Errorf("IDPStreamURL should default to empty, got %q", cfg.IDPStreamURL)
	}
}

func TestLoad_IDPStreamURLIsOptional(t *testing.T) {
	// IdP設定が完全に不在でも起動は成功する。
	// その場合ミラーは恒久的に不在となり、保護された呼び出しは
	// トランスポート層で認可エラーになる（この層では失敗しない）。
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load should succeed without IdP configuration: %v", err)
	}
	if cfg.IDPStreamURL != "" {
		t.Errorf("IDPStreamURL = %q, want empty", cfg.IDPStreamURL)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("INVOKE_TIMEOUT", "10s")
	t.Setenv("DISTINCT_ID_PARAM", "mp_distinct_id")
	t.Setenv("SESSION_ID_PARAM", "mp_session_id")
	t.Setenv("TRACK_RATE_LIMIT", "120")
	t.Setenv("IDP_STREAM_URL", "wss://idp.example.com/events")
	t.Setenv("ALLOW_PRIVATE_ENDPOINTS", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.InvokeTimeout != 10*time.Second {
		t.Errorf("InvokeTimeout = %v, want %v", cfg.InvokeTimeout, 10*time.Second)
	}
	if cfg.DistinctIDParam != "mp_distinct_id" {
		t.Errorf("DistinctIDParam = %q, want %q", cfg.DistinctIDParam, "mp_distinct_id")
	}
	if cfg.SessionIDParam != "mp_session_id" {
		t.Errorf("SessionIDParam = %q, want %q", cfg.SessionIDParam, "mp_session_id")
	}
	if cfg.TrackRateLimit != 120 {
		t.Errorf("TrackRateLimit = %d, want 120", cfg.TrackRateLimit)
	}
	if cfg.IDPStreamURL != "wss://idp.example.com/events" {
		t.Errorf("IDPStreamURL = %q", cfg.IDPStreamURL)
	}
	if !cfg.AllowPrivateEndpoints {
		t.Error("AllowPrivateEndpoints should be true")
	}
}

func TestLoad_InvalidOptionalValuesFallBackToDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TRACK_RATE_LIMIT", "abc")
	t.Setenv("INVOKE_TIMEOUT", "not-a-duration")
	t.Setenv("ALLOW_PRIVATE_ENDPOINTS", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.TrackRateLimit != 60 {
		t.Errorf("TrackRateLimit = %d, want default 60", cfg.TrackRateLimit)
	}
	if cfg.InvokeTimeout != 30*time.Second {
		t.Errorf("InvokeTimeout = %v, want default 30s", cfg.InvokeTimeout)
	}
	if cfg.AllowPrivateEndpoints {
		t.Error("AllowPrivateEndpoints should fall back to false")
	}
}
