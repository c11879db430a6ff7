package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 8000 {
		t.Errorf("Expected port 8000, got %d", cfg.Server.Port)
	}
	if cfg.BIDS.Root != "/data/bids" {
		t.Errorf("Expected BIDS root /data/bids, got %s", cfg.BIDS.Root)
	}
	if cfg.Store.Capacity != 0 || cfg.Store.TTL != 0 {
		t.Errorf("Expected unbounded store by default, got capacity=%d ttl=%s", cfg.Store.Capacity, cfg.Store.TTL)
	}
	if cfg.Render.Workers < 1 {
		t.Errorf("Expected at least one render worker, got %d", cfg.Render.Workers)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Expected defaults for missing file, got error: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Expected default port, got %d", cfg.Server.Port)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "augplayground.yaml")
	content := []byte(`
server:
  port: 9100
bids:
  root: /srv/bids
store:
  capacity: 16
  ttl: 30m
`)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Setenv("AUGPLAY_BIDS__HOST_PATH", "/mnt/host/bids")
	t.Setenv("AUGPLAY_LOG__LEVEL", "debug")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("Expected port 9100, got %d", cfg.Server.Port)
	}
	if cfg.BIDS.Root != "/srv/bids" {
		t.Errorf("Expected root /srv/bids, got %s", cfg.BIDS.Root)
	}
	if cfg.Store.Capacity != 16 {
		t.Errorf("Expected capacity 16, got %d", cfg.Store.Capacity)
	}
	if cfg.Store.TTL != 30*time.Minute {
		t.Errorf("Expected ttl 30m, got %s", cfg.Store.TTL)
	}
	if cfg.BIDS.HostPath != "/mnt/host/bids" {
		t.Errorf("Expected host path from env, got %q", cfg.BIDS.HostPath)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.Log.Level)
	}
	// untouched keys keep their defaults
	if cfg.Upload.MaxBytes != 1<<30 {
		t.Errorf("Expected default max bytes, got %d", cfg.Upload.MaxBytes)
	}
}

func TestLegacyBIDSRootEnv(t *testing.T) {
	t.Setenv("BIDS_ROOT", "/legacy/bids")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.BIDS.Root != "/legacy/bids" {
		t.Errorf("Expected root from BIDS_ROOT, got %s", cfg.BIDS.Root)
	}
}

func TestSaveAndReloadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile failed: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Telemetry.ServiceName != "augplayground" {
		t.Errorf("Expected service name to survive save/load, got %q", cfg.Telemetry.ServiceName)
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for port 0, got nil")
	}
}
