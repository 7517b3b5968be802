package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Addr != ":3000" || cfg.Auth.TokenTTL != 48*time.Hour || cfg.Schedule.SweepInterval != time.Minute {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Storage.Backend != "file" || cfg.Auth.CookieName != "troy_token" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if len(cfg.InsecureDefaults()) != 2 {
		t.Fatalf("expected insecure defaults to be reported: %v", cfg.InsecureDefaults())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "8080")
	t.Setenv("ADMIN_PASSWORD", "hunter2")
	t.Setenv("REEL_MEDIA_MAX_CONCURRENT", "3")
	t.Setenv("REEL_STORAGE_BACKEND", "sqlite")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("PORT not honored: %q", cfg.HTTP.Addr)
	}
	if cfg.Auth.AdminPassword != "hunter2" {
		t.Fatalf("ADMIN_PASSWORD not honored: %q", cfg.Auth.AdminPassword)
	}
	if cfg.Media.MaxConcurrent != 3 {
		t.Fatalf("max concurrent = %d", cfg.Media.MaxConcurrent)
	}
	if cfg.Storage.SQLitePath != filepath.Join("data", "reelcms.db") {
		t.Fatalf("sqlite path = %q", cfg.Storage.SQLitePath)
	}
}

func TestSampleTOMLReadsBack(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	b, err := SampleTOML()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "sweep_interval") || !strings.Contains(string(b), "1m0s") {
		t.Fatalf("durations should render as strings:\n%s", b)
	}
	path := filepath.Join(dir, "custom.toml")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load sample: %v", err)
	}
	if cfg.Source != path || cfg.Schedule.SweepInterval != time.Minute {
		t.Fatalf("sample did not round-trip: %+v", cfg)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("REEL_STORAGE_BACKEND", "postgres")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error")
	}
}
