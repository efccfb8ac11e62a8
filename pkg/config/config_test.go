package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPPort != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.HTTPPort)
	}
	if cfg.CancelWindow != 24*time.Hour {
		t.Fatalf("expected 24h cancel window, got %v", cfg.CancelWindow)
	}
}

func TestLoadFileThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "http_port: 9000\nlog_level: debug\npostgres:\n  db: other_db\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPPort != 9000 {
		t.Fatalf("expected file port 9000, got %d", cfg.HTTPPort)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("env should win over file, got %q", cfg.LogLevel)
	}
	if cfg.Postgres.DB != "other_db" {
		t.Fatalf("expected file db name, got %q", cfg.Postgres.DB)
	}
}

func TestPostgresURL(t *testing.T) {
	p := Postgres{Host: "db", Port: 5433, User: "u", Pass: "p", DB: "shop"}
	got := p.URL()
	want := "postgres://u:p@db:5433/shop"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
