package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("app_id: 12345\napp_hash: abcdef\noutput_dir: /data/chats\npart_size_kb: 256\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AppID != 12345 || cfg.AppHash != "abcdef" {
		t.Errorf("credentials = (%d, %q)", cfg.AppID, cfg.AppHash)
	}
	if cfg.OutputDir != "/data/chats" {
		t.Errorf("output dir = %q", cfg.OutputDir)
	}
	if cfg.PartSizeKB != 256 {
		t.Errorf("part size = %d, want 256", cfg.PartSizeKB)
	}
	if cfg.DownloadThreads != 1 {
		t.Errorf("threads = %d, want default 1", cfg.DownloadThreads)
	}
	if cfg.SessionFile == "" {
		t.Errorf("session file default not applied")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("app_id: 12345\napp_hash: fromfile\ndownload_threads: 2\npart_size_kb: 128\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("TG_APP_ID", "67890")
	t.Setenv("TG_APP_HASH", "fromenv")
	t.Setenv("TG_SESSION_FILE", "/tmp/session.json")
	t.Setenv("TG_OUTPUT_DIR", "/env/chats")
	t.Setenv("TG_DOWNLOAD_THREADS", "4")
	t.Setenv("TG_PART_SIZE_KB", "1024")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AppID != 67890 || cfg.AppHash != "fromenv" {
		t.Errorf("credentials = (%d, %q), want env values", cfg.AppID, cfg.AppHash)
	}
	if cfg.SessionFile != "/tmp/session.json" {
		t.Errorf("session file = %q", cfg.SessionFile)
	}
	if cfg.OutputDir != "/env/chats" {
		t.Errorf("output dir = %q", cfg.OutputDir)
	}
	if cfg.DownloadThreads != 4 {
		t.Errorf("threads = %d, want 4", cfg.DownloadThreads)
	}
	if cfg.PartSizeKB != 1024 {
		t.Errorf("part size = %d, want 1024", cfg.PartSizeKB)
	}
}

func TestLoadMissingCredentials(t *testing.T) {
	t.Setenv("TG_APP_ID", "")
	t.Setenv("TG_APP_HASH", "")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error without credentials")
	}
}

func TestLoadInvalidEnvInteger(t *testing.T) {
	t.Setenv("TG_APP_ID", "12345")
	t.Setenv("TG_APP_HASH", "abc")
	t.Setenv("TG_PART_SIZE_KB", "big")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for non-numeric TG_PART_SIZE_KB")
	}
}
