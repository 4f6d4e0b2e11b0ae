package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TODO_CONFIG_FILE", "")
	t.Setenv("TODO_STORE", "")
	t.Setenv("API_ADDR", "")
	t.Setenv("TODO_ACCESS_TTL_SECONDS", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store != StoreMongo || cfg.Addr != ":8787" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.AccessTTL() != 15*time.Minute {
		t.Fatalf("AccessTTL() = %v", cfg.AccessTTL())
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "todo.yaml")
	contents := "addr: \":9000\"\nstore: postgres\naccess_ttl_seconds: 60\nseed_demo: false\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TODO_CONFIG_FILE", path)
	t.Setenv("API_ADDR", ":9100")
	t.Setenv("TODO_STORE", "")
	t.Setenv("TODO_ACCESS_TTL_SECONDS", "")
	t.Setenv("TODO_REFRESH_TTL_SECONDS", "")
	t.Setenv("TODO_SEED_DEMO", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr != ":9100" {
		t.Fatalf("env should override file, got addr %q", cfg.Addr)
	}
	if cfg.Store != StorePostgres || cfg.AccessTTLSeconds != 60 || cfg.SeedDemo {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.RefreshTTLSeconds != Defaults().RefreshTTLSeconds {
		t.Fatalf("unset file values should keep defaults, got %d", cfg.RefreshTTLSeconds)
	}
}

func TestLoadRejectsUnknownStore(t *testing.T) {
	t.Setenv("TODO_CONFIG_FILE", "")
	t.Setenv("TODO_STORE", "cassandra")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown store")
	}
}

func TestAdminEmailsFromEnv(t *testing.T) {
	t.Setenv("TODO_CONFIG_FILE", "")
	t.Setenv("TODO_STORE", "")
	t.Setenv("TODO_ADMIN_EMAILS", " Root@Example.com , ,ops@example.com")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.AdminEmails) != 2 {
		t.Fatalf("AdminEmails = %v", cfg.AdminEmails)
	}
	if !cfg.IsAdmin("root@example.com") || !cfg.IsAdmin("OPS@example.com") {
		t.Fatal("expected configured emails to be admins")
	}
	if cfg.IsAdmin("someone@example.com") || cfg.IsAdmin("") {
		t.Fatal("unexpected admin match")
	}
}
