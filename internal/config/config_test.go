package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Address != DefaultAddress {
		t.Errorf("Address = %q, want %q", cfg.Address, DefaultAddress)
	}
	if cfg.Storage.Backend != "disk" {
		t.Errorf("Storage.Backend = %q, want disk", cfg.Storage.Backend)
	}
	if got := cfg.CleanupDelay(); got != 60*time.Second {
		t.Errorf("CleanupDelay() = %v, want 60s", got)
	}
	if got := cfg.SaveDelay(); got != time.Second {
		t.Errorf("SaveDelay() = %v, want 1s", got)
	}
	if got := cfg.PollInterval(); got != time.Second {
		t.Errorf("PollInterval() = %v, want 1s", got)
	}
}

func TestLoadFullConfig(t *testing.T) {
	dir := writeConfig(t, `{
		"address": "localhost:9000",
		"auth_token": "secret",
		"content_dir": "/srv/docs",
		"document_cleanup_delay": 120,
		"document_save_delay": 0.5,
		"file_poll_interval": 2,
		"storage": {"backend": "s3", "bucket": "docs", "region": "eu-west-1"}
	}`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Address != "localhost:9000" {
		t.Errorf("Address = %q", cfg.Address)
	}
	if cfg.AuthToken != "secret" {
		t.Errorf("AuthToken = %q", cfg.AuthToken)
	}
	if got := cfg.CleanupDelay(); got != 2*time.Minute {
		t.Errorf("CleanupDelay() = %v, want 2m", got)
	}
	if got := cfg.SaveDelay(); got != 500*time.Millisecond {
		t.Errorf("SaveDelay() = %v, want 500ms", got)
	}
	if got := cfg.PollInterval(); got != 2*time.Second {
		t.Errorf("PollInterval() = %v, want 2s", got)
	}
	if cfg.Storage.Bucket != "docs" {
		t.Errorf("Storage.Bucket = %q", cfg.Storage.Bucket)
	}
}

func TestCleanupDisabled(t *testing.T) {
	dir := writeConfig(t, `{"document_cleanup_delay": -1}`)
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.CleanupDelay(); got >= 0 {
		t.Errorf("CleanupDelay() = %v, want negative (disabled)", got)
	}
}

func TestPollDisabled(t *testing.T) {
	dir := writeConfig(t, `{"file_poll_interval": 0}`)
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.PollInterval(); got != 0 {
		t.Errorf("PollInterval() = %v, want 0 (disabled)", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{name: "valid_disk", content: `{"storage": {"backend": "disk"}}`},
		{name: "s3_without_bucket", content: `{"storage": {"backend": "s3"}}`, wantErr: true},
		{name: "unknown_backend", content: `{"storage": {"backend": "ftp"}}`, wantErr: true},
		{name: "zero_save_delay", content: `{"document_save_delay": 0}`, wantErr: true},
		{name: "negative_poll", content: `{"file_poll_interval": -1}`, wantErr: true},
		{name: "bad_json", content: `{`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	if Exists(dir) {
		t.Error("Exists() = true for empty dir")
	}
	writeDir := writeConfig(t, `{}`)
	if !Exists(writeDir) {
		t.Error("Exists() = false after writing config")
	}
}
