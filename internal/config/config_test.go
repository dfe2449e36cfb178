package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadReadsYAMLAndDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
  cors-origins: ["https://admin.example.com"]
database:
  dsn: "file:data/qr.db"
jwt:
  secret: "s3cret"
  expiry: 2h
redis:
  addr: "localhost:6379"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Fatalf("expected addr :9000, got %q", cfg.Server.Addr)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "https://admin.example.com" {
		t.Fatalf("unexpected cors origins: %v", cfg.Server.CORSOrigins)
	}
	if cfg.JWT.Expiry != 2*time.Hour {
		t.Fatalf("expected 2h expiry, got %s", cfg.JWT.Expiry)
	}
	if cfg.Database.TimeZone != "UTC" {
		t.Fatalf("expected default time zone UTC, got %q", cfg.Database.TimeZone)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("expected default log level info, got %q", cfg.Log.Level)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: "file:data/qr.db"
jwt:
  secret: "from-file"
`)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("JWT_EXPIRY", "30m")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.JWT.Secret != "from-env" {
		t.Fatalf("expected env secret, got %q", cfg.JWT.Secret)
	}
	if cfg.JWT.Expiry != 30*time.Minute {
		t.Fatalf("expected 30m expiry, got %s", cfg.JWT.Expiry)
	}
	if len(cfg.Server.CORSOrigins) != 2 {
		t.Fatalf("expected two cors origins, got %v", cfg.Server.CORSOrigins)
	}
}

func TestLoadMissingFileRequiresEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error without dsn and secret")
	}

	t.Setenv("DATABASE_DSN", "file:qr.db")
	t.Setenv("JWT_SECRET", "x")
	if _, err := Load(path); err != nil {
		t.Fatalf("expected env-only config to load, got %v", err)
	}
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("QRSTOCK_CONFIG", "")
	if got := ResolveConfigPath(""); got != DefaultConfigPath {
		t.Fatalf("expected default path, got %q", got)
	}
	t.Setenv("QRSTOCK_CONFIG", "/etc/qrstock.yaml")
	if got := ResolveConfigPath(""); got != "/etc/qrstock.yaml" {
		t.Fatalf("expected env path, got %q", got)
	}
	if got := ResolveConfigPath("./local.yaml"); got != "./local.yaml" {
		t.Fatalf("expected flag path, got %q", got)
	}
}
