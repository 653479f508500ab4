package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv(PathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Auth.BootstrapMaxAttempts != 2 {
		t.Errorf("expected 2 bootstrap attempts, got %d", cfg.Auth.BootstrapMaxAttempts)
	}
	if cfg.Auth.BootstrapRetryDelay != 2*time.Second {
		t.Errorf("expected 2s retry delay, got %v", cfg.Auth.BootstrapRetryDelay)
	}
	if cfg.Auth.SettleTimeout != 5*time.Second {
		t.Errorf("expected 5s settle timeout, got %v", cfg.Auth.SettleTimeout)
	}
	if cfg.Session.CookieName != "hrdash_sid" {
		t.Errorf("expected cookie hrdash_sid, got %q", cfg.Session.CookieName)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9090")
	t.Setenv("AUTH_BOOTSTRAP_RETRY_DELAY", "500ms")
	t.Setenv("AUTH_SETTLE_TIMEOUT", "3s")
	t.Setenv("SESSION_COOKIE_SECURE", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Auth.BootstrapRetryDelay != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", cfg.Auth.BootstrapRetryDelay)
	}
	if cfg.Auth.SettleTimeout != 3*time.Second {
		t.Errorf("expected 3s settle timeout, got %v", cfg.Auth.SettleTimeout)
	}
	if !cfg.Session.CookieSecure {
		t.Error("expected secure cookie")
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("unexpected origins: %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "log:\n  level: debug\nauth:\n  slow_loading_after: 8s\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(PathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected debug, got %q", cfg.Log.Level)
	}
	if cfg.Auth.SlowLoadingAfter != 8*time.Second {
		t.Errorf("expected 8s, got %v", cfg.Auth.SlowLoadingAfter)
	}
}

func TestLoad_MissingSupabaseURL(t *testing.T) {
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv(PathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestValidate_StoreNeedsSecret(t *testing.T) {
	cfg := defaults()
	cfg.Supabase = SupabaseConfig{URL: "https://example.supabase.co", AnonKey: "anon"}
	cfg.Session.StorePath = "/tmp/sessions"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for store path without encryption secret")
	}

	cfg.Session.EncryptionSecret = "s3cret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nHRDASH_TEST_A=from-file\nexport HRDASH_TEST_B=\"quoted\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HRDASH_TEST_A", "from-env")
	t.Setenv("HRDASH_TEST_B", "")
	os.Unsetenv("HRDASH_TEST_B")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("HRDASH_TEST_A"); got != "from-env" {
		t.Errorf("expected env to win, got %q", got)
	}
	if got := os.Getenv("HRDASH_TEST_B"); got != "quoted" {
		t.Errorf("expected quoted value, got %q", got)
	}
}
