package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DBPath != "bahikhata.db" {
		t.Errorf("unexpected default db path: %q", cfg.DBPath)
	}
	if cfg.SyncInterval != 6*time.Hour {
		t.Errorf("unexpected default sync interval: %v", cfg.SyncInterval)
	}
	if cfg.DebounceWindow != 5*time.Minute {
		t.Errorf("unexpected default debounce window: %v", cfg.DebounceWindow)
	}
	if cfg.CleanupAge != 90*24*time.Hour {
		t.Errorf("unexpected default cleanup age: %v", cfg.CleanupAge)
	}
	if cfg.LogFile != "" {
		t.Errorf("expected empty default log file, got %q", cfg.LogFile)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("BAHI_SYNC_INTERVAL", "1h")
	t.Setenv("BAHI_DB_PATH", "/tmp/override.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.SyncInterval != time.Hour {
		t.Errorf("expected env-overridden sync interval 1h, got %v", cfg.SyncInterval)
	}
	if cfg.DBPath != "/tmp/override.db" {
		t.Errorf("expected env-overridden db path, got %q", cfg.DBPath)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("db_path: ledger.db\nsync_interval: 30m\nlog_max_backups: 7\n")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DBPath != "ledger.db" {
		t.Errorf("expected db path from file, got %q", cfg.DBPath)
	}
	if cfg.SyncInterval != 30*time.Minute {
		t.Errorf("expected sync interval from file, got %v", cfg.SyncInterval)
	}
	if cfg.LogMaxBackups != 7 {
		t.Errorf("expected log max backups from file, got %d", cfg.LogMaxBackups)
	}
	// Unset keys keep their defaults.
	if cfg.DebounceWindow != 5*time.Minute {
		t.Errorf("expected default debounce window, got %v", cfg.DebounceWindow)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestWatchReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("sync_interval: 30m\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	reloads := make(chan *Config, 4)
	cfg, err := Watch(path, func(c *Config) { reloads <- c })
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if cfg.SyncInterval != 30*time.Minute {
		t.Fatalf("expected initial sync interval 30m, got %v", cfg.SyncInterval)
	}

	if err := os.WriteFile(path, []byte("sync_interval: 2h\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite config file: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case reloaded := <-reloads:
			if reloaded.SyncInterval == 2*time.Hour {
				return
			}
			// Editors and filesystems can surface several events per
			// write; keep draining until the final content shows up.
		case <-deadline:
			t.Fatal("config change never observed")
		}
	}
}
