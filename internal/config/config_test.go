package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Defaults()
	cfg.DefaultSession = "work"
	cfg.Gateway.APIURL = "http://gw.local:9000"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want %q", loaded.DefaultSession, "work")
	}
	if loaded.Gateway.APIURL != "http://gw.local:9000" {
		t.Errorf("Gateway.APIURL = %q", loaded.Gateway.APIURL)
	}
}

func TestLoadLayersOverDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	partial := "[sync]\nfast_limit = 10\n"
	if err := os.WriteFile(path, []byte(partial), 0600); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Sync.FastLimit != 10 {
		t.Errorf("Sync.FastLimit = %d, want 10", loaded.Sync.FastLimit)
	}
	if loaded.Sync.FullLimit != 300 {
		t.Errorf("Sync.FullLimit = %d, want default 300", loaded.Sync.FullLimit)
	}
	if loaded.Leads.CountryCode != "996" {
		t.Errorf("Leads.CountryCode = %q, want default", loaded.Leads.CountryCode)
	}
}

func TestLoadMissingReturnsDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
	if cfg == nil || cfg.UI.PageSize != 40 {
		t.Error("Load() should fall back to defaults on error")
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Defaults()); err != nil {
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
