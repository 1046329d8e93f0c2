package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultProfile = "work"
	cfg.Remote.BaseURL = "https://api.kanux.example"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultProfile != "work" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "work")
	}
	if loaded.Remote.BaseURL != "https://api.kanux.example" {
		t.Errorf("BaseURL = %q, want https://api.kanux.example", loaded.Remote.BaseURL)
	}
}

func TestLoadMissingUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v, want nil for missing file", err)
	}
	if cfg.Sync.SweepIntervalSeconds != 5 {
		t.Errorf("SweepIntervalSeconds = %d, want 5", cfg.Sync.SweepIntervalSeconds)
	}
	if cfg.Sync.MessagePageSize != 50 {
		t.Errorf("MessagePageSize = %d, want 50", cfg.Sync.MessagePageSize)
	}
	if cfg.Net.ProbeIntervalSeconds != 5 {
		t.Errorf("ProbeIntervalSeconds = %d, want 5", cfg.Net.ProbeIntervalSeconds)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.Remote.BaseURL = "https://file.example"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	t.Setenv("KANUX_REMOTE_URL", "https://env.example")
	t.Setenv("KANUX_SYNC_MAX_ATTEMPTS", "9")

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Remote.BaseURL != "https://env.example" {
		t.Errorf("BaseURL = %q, want env override", loaded.Remote.BaseURL)
	}
	if loaded.Sync.MaxAttempts != 9 {
		t.Errorf("MaxAttempts = %d, want 9", loaded.Sync.MaxAttempts)
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
