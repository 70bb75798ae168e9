package app

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
)

func TestRun_WithMissingEnv_ReturnsError(t *testing.T) {
	t.Setenv("FUNCTIONS_BASE_URL", "")
	t.Setenv("ANALYTICS_ENDPOINT", "")

	var buf bytes.Buffer
	err := Run(&buf, []string{"serve"})
	if err == nil {
		t.Fatal("Run with missing env should return error")
	}
}

func TestRun_MigrateCommand(t *testing.T) {
	t.Setenv("FUNCTIONS_BASE_URL", "https://functions.example.com")
	t.Setenv("ANALYTICS_ENDPOINT", "https://analytics.example.com/track")
	t.Setenv("IDENTITY_DB_PATH", filepath.Join(t.TempDir(), "sessync.db"))

	var buf bytes.Buffer
	if err := Run(&buf, []string{"migrate"}); err != nil {
		t.Fatalf("Run(migrate) failed: %v", err)
	}

	// 再実行しても冪等
	if err := Run(&buf, []string{"migrate"}); err != nil {
		t.Fatalf("Run(migrate) second run failed: %v", err)
	}
}

func TestRun_HealthcheckCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("failed to parse server URL: %v", err)
	}
	t.Setenv("SERVER_PORT", u.Port())

	var buf bytes.Buffer
	if err := Run(&buf, []string{"healthcheck"}); err != nil {
		t.Fatalf("Run(healthcheck) failed: %v", err)
	}
}

func TestRun_HealthcheckCommand_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("failed to parse server URL: %v", err)
	}
	t.Setenv("SERVER_PORT", u.Port())

	var buf bytes.Buffer
	if err := Run(&buf, []string{"healthcheck"}); err == nil {
		t.Fatal("expected error for unavailable health endpoint")
	}
}
