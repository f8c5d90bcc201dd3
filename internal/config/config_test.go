package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.DialTimeoutSeconds != 5 {
		t.Errorf("Expected default dial timeout 5, got %d", cfg.Engine.DialTimeoutSeconds)
	}
	if cfg.UI.BufferRows != 10 || cfg.UI.ErrorAutoClearSeconds != 10 {
		t.Errorf("Unexpected UI defaults: %+v", cfg.UI)
	}
	if !cfg.Notifications.Enabled {
		t.Error("Expected notifications enabled by default")
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")

	cfg := New()
	cfg.Engine.SocketPath = "/tmp/lex-test.sock"
	cfg.Engine.LaunchCommand = "lex-engine --verbose"
	cfg.UI.BufferRows = 25
	cfg.Notifications.Enabled = false

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Engine.SocketPath != "/tmp/lex-test.sock" {
		t.Errorf("Socket path lost: %q", loaded.Engine.SocketPath)
	}
	if got := loaded.LaunchCommand(); len(got) != 2 || got[0] != "lex-engine" || got[1] != "--verbose" {
		t.Errorf("Launch command mangled: %v", got)
	}
	if loaded.UI.BufferRows != 25 {
		t.Errorf("Buffer rows lost: %d", loaded.UI.BufferRows)
	}
	if loaded.Notifications.Enabled {
		t.Error("Notification toggle lost")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	cfg := New()
	cfg.Engine.SocketPath = "/from/file.sock"
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	os.Setenv("LEX_ENGINE_SOCKET", "/from/env.sock")
	os.Setenv("LEX_NOTIFICATIONS", "false")
	defer os.Unsetenv("LEX_ENGINE_SOCKET")
	defer os.Unsetenv("LEX_NOTIFICATIONS")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Engine.SocketPath != "/from/env.sock" {
		t.Errorf("Env override lost: %q", loaded.Engine.SocketPath)
	}
	if loaded.Notifications.Enabled {
		t.Error("Env notification override lost")
	}
}

func TestValidate(t *testing.T) {
	cfg := New()
	cfg.Engine.DialTimeoutSeconds = 0
	if err := cfg.Validate(); err != ErrInvalidDialTimeout {
		t.Errorf("Expected ErrInvalidDialTimeout, got %v", err)
	}

	cfg = New()
	cfg.UI.BufferRows = 500
	if err := cfg.Validate(); err != ErrInvalidBufferRows {
		t.Errorf("Expected ErrInvalidBufferRows, got %v", err)
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := New()
	if cfg.DialTimeout() != 5*time.Second {
		t.Errorf("DialTimeout = %v", cfg.DialTimeout())
	}
	cfg.UI.ErrorAutoClearSeconds = 0
	if cfg.ErrorAutoClear() != 0 {
		t.Errorf("Expected disabled auto-clear, got %v", cfg.ErrorAutoClear())
	}
}
